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
	"github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/common"
	slsa "github.com/in-toto/in-toto-golang/in_toto/slsa_provenance/v0.2"

	"sigs.k8s.io/metate/pkg/run"
)

const (
	// BuilderID identifies the release runner in the provenance
	BuilderID = "https://sigs.k8s.io/metate"

	// BuildType identifies the tag triggered release pipeline
	BuildType = "https://sigs.k8s.io/metate/release@v1"
)

type SLSAPredicate slsa.ProvenancePredicate

func NewSLSAPredicate() SLSAPredicate {
	return SLSAPredicate{
		Builder: common.ProvenanceBuilder{
			ID: BuilderID,
		},
		BuildType: BuildType,
		Metadata: &slsa.ProvenanceMetadata{
			Completeness: slsa.ProvenanceComplete{
				Parameters:  true,
				Environment: false,
				Materials:   true,
			},
			Reproducible: false,
		},
		Materials: []common.ProvenanceMaterial{},
	}
}

func (pred *SLSAPredicate) Type() string {
	return slsa.PredicateSLSAProvenance
}

// stepRecord is the shape a run step takes inside the provenance build
// config. Secret variable values are not part of the run record, only
// the names make it here.
type stepRecord struct {
	Name        string            `json:"name"`
	Command     string            `json:"command"`
	Params      []string          `json:"params,omitempty"`
	Environment map[string]string `json:"environment,omitempty"`
	SecretEnv   []string          `json:"secretEnv,omitempty"`
	ExitCode    int               `json:"exitCode"`
}

// NewFromRun assembles a provenance attestation for a finished run.
// The artifacts become the subjects, the source checkout the material
// and the executed steps the build config.
func NewFromRun(r *run.Run, sourceURL, sourceDigest string) *Attestation {
	att := New().SLSA()
	pred, ok := att.Predicate.(*SLSAPredicate)
	if !ok {
		return att
	}

	for _, artifact := range r.Artifacts {
		att.AddSubject(artifact.Path, artifact.Checksum)
	}

	pred.Invocation = slsa.ProvenanceInvocation{
		ConfigSource: slsa.ConfigSource{
			URI:        sourceURL,
			EntryPoint: r.Workflow,
		},
		Parameters: map[string]string{
			"ref": r.Ref,
		},
	}

	steps := []stepRecord{}
	for _, step := range r.Steps {
		steps = append(steps, stepRecord{
			Name:        step.Name,
			Command:     step.Command,
			Params:      step.Params,
			Environment: step.Environment,
			SecretEnv:   step.SecretEnv,
			ExitCode:    step.ExitCode,
		})
	}
	pred.BuildConfig = map[string]any{"steps": steps}

	pred.Metadata.BuildInvocationID = r.ID
	if !r.StartTime.IsZero() {
		start := r.StartTime
		pred.Metadata.BuildStartedOn = &start
	}
	if !r.EndTime.IsZero() {
		end := r.EndTime
		pred.Metadata.BuildFinishedOn = &end
	}

	if sourceURL != "" {
		material := common.ProvenanceMaterial{
			URI:    sourceURL,
			Digest: common.DigestSet{},
		}
		if sourceDigest != "" {
			material.Digest["sha1"] = sourceDigest
		}
		pred.Materials = append(pred.Materials, material)
	}

	return att
}
