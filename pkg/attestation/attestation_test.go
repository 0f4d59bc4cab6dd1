/*
Copyright 2025 The Kubernetes Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package attestation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/metate/pkg/run"
)

func testRun() *run.Run {
	r := run.NewRun("Deploy", "refs/tags/v1.0.0")
	r.Status = run.StatusSucceeded
	r.StartTime = time.Now().Add(-time.Minute)
	r.EndTime = time.Now()
	r.Steps = []run.Step{
		{
			Name:    "Build Sdist",
			Command: "/usr/bin/python3.8",
			Params:  []string{"setup.py", "sdist"},
		},
		{
			Name:      "Publish to PyPi",
			Command:   "twine",
			Params:    []string{"upload", "dist/qiskit*"},
			SecretEnv: []string{"TWINE_PASSWORD"},
		},
	}
	r.Artifacts = []run.Artifact{
		{
			Path:     "qiskit-experiments-1.0.0.tar.gz",
			Checksum: map[string]string{"SHA256": "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		},
	}
	return r
}

func TestNewFromRun(t *testing.T) {
	att := NewFromRun(testRun(), "git+https://github.com/qiskit/qiskit-experiments", "deadbeef")

	require.Len(t, att.Subject, 1)
	require.Equal(t, "qiskit-experiments-1.0.0.tar.gz", att.Subject[0].Name)
	require.Contains(t, att.Subject[0].Digest, "sha256")

	pred, ok := att.Predicate.(*SLSAPredicate)
	require.True(t, ok)
	require.Equal(t, BuilderID, pred.Builder.ID)
	require.Equal(t, "Deploy", pred.Invocation.ConfigSource.EntryPoint)
	require.NotNil(t, pred.Metadata.BuildStartedOn)
	require.NotNil(t, pred.Metadata.BuildFinishedOn)
	require.Len(t, pred.Materials, 1)
	require.Equal(t, "deadbeef", pred.Materials[0].Digest["sha1"])
}

func TestAttestationJSONKeepsSecretsOut(t *testing.T) {
	att := NewFromRun(testRun(), "git+https://github.com/qiskit/qiskit-experiments", "")
	data, err := att.ToJSON()
	require.NoError(t, err)

	// Secret names are provenance, secret values never exist in the
	// run record so they cannot appear here
	require.Contains(t, string(data), "TWINE_PASSWORD")
	require.Contains(t, string(data), "Build Sdist")
	require.Contains(t, string(data), "refs/tags/v1.0.0")
}

func TestAddSubjectNormalizesAlgo(t *testing.T) {
	att := New().SLSA()
	att.AddSubject("file.tar.gz", map[string]string{"SHA256": "abc", "MD5": "def"})
	require.Contains(t, att.Subject[0].Digest, "sha256")
	require.Contains(t, att.Subject[0].Digest, "md5")
}

func TestNewFromRunV1(t *testing.T) {
	r := testRun()
	att := NewFromRunV1(r, "git+https://github.com/qiskit/qiskit-experiments", "deadbeef")

	require.Equal(t, "https://slsa.dev/provenance/v1", att.PredicateType)
	require.Len(t, att.Subject, 1)
	require.Equal(t, "qiskit-experiments-1.0.0.tar.gz", att.Subject[0].Name)
	require.Contains(t, att.Subject[0].Digest, "sha256")

	pred, ok := att.Predicate.(*SLSAPredicateV1)
	require.True(t, ok)
	require.Equal(t, r.ID, pred.RunDetails.Metadata.InvocationId)
	require.Equal(t, BuilderID, pred.RunDetails.Builder.Id)
	require.Len(t, pred.BuildDefinition.ResolvedDependencies, 1)
	require.Equal(t, "deadbeef", pred.BuildDefinition.ResolvedDependencies[0].Digest["sha1"])

	data, err := att.ToJSON()
	require.NoError(t, err)
	require.Contains(t, string(data), "refs/tags/v1.0.0")
	require.Contains(t, string(data), "qiskit-experiments@deadbeef")
}

func TestSLSAV1Predicate(t *testing.T) {
	pred := NewSLSAV1Predicate()
	pred.SetInvocationID("Deploy-123")
	pred.SetEntryPoint("Deploy")
	now := time.Now()
	pred.SetStartedOn(&now)
	pred.SetFinishedOn(&now)

	require.Equal(t, "https://slsa.dev/provenance/v1", pred.Type())
	require.Equal(t, "Deploy-123", pred.RunDetails.Metadata.InvocationId)

	data, err := pred.MarshalJSON()
	require.NoError(t, err)
	require.Contains(t, string(data), "Deploy")
}
