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

package release

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/metate/pkg/registry"
	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/secrets"
	"sigs.k8s.io/metate/pkg/workflow"
)

// testWorkflow builds distribution files with plain shell commands so
// the full pipeline runs without an interpreter toolchain
func testWorkflow() *workflow.Workflow {
	return &workflow.Workflow{
		Name: "Deploy",
		On: workflow.Trigger{
			Push: workflow.PushFilter{Tags: []string{"*"}},
		},
		Steps: []workflow.Step{
			{
				Name:    "Build Sdist",
				Command: "sh",
				Params:  []string{"-c", "mkdir -p dist && echo sdist > dist/qiskit-test-0.1.0.tar.gz"},
			},
			{
				Name:    "Build Wheel",
				Command: "sh",
				Params:  []string{"-c", "echo wheel > dist/qiskit_test-0.1.0-py3-none-any.whl"},
			},
		},
		Artifacts: workflow.ArtifactSpec{
			Directory: "dist",
			Pattern:   "qiskit*",
			Bundle:    "artifacts",
		},
	}
}

type fakePublisher struct {
	err      error
	gotGlob  string
	gotCreds registry.Credentials
}

func (f *fakePublisher) Upload(_ context.Context, fileGlob string, creds registry.Credentials) error {
	f.gotGlob = fileGlob
	f.gotCreds = creds
	return f.err
}

func TestHandleEventNotTriggered(t *testing.T) {
	o := New(testWorkflow())

	// A branch push never matches
	_, err := o.HandleEvent(context.Background(), &workflow.Event{Type: "push", Ref: "refs/heads/main"})
	require.ErrorIs(t, err, ErrNotTriggered)

	// Neither does a non-push event for a tag ref
	_, err = o.HandleEvent(context.Background(), &workflow.Event{Type: "pull_request", Ref: "refs/tags/v1.0.0"})
	require.ErrorIs(t, err, ErrNotTriggered)

	// A semver filter rejects word tags
	o.Workflow.On.Push.Tags = []string{"v[0-9]*.[0-9]*.[0-9]*"}
	_, err = o.HandleEvent(context.Background(), workflow.NewTagEvent("not-a-release"))
	require.ErrorIs(t, err, ErrNotTriggered)
}

func TestHandleEventSuccess(t *testing.T) {
	workspace := t.TempDir()
	storeDir := t.TempDir()

	o := New(testWorkflow())
	o.Options.Workspace = workspace
	require.NoError(t, o.AddArtifactStore("file://"+storeDir))

	r, err := o.HandleEvent(context.Background(), workflow.NewTagEvent("v0.1.0"))
	require.NoError(t, err)
	require.Equal(t, run.StatusSucceeded, r.Status)
	require.Equal(t, "refs/tags/v0.1.0", r.Ref)
	require.Len(t, r.Artifacts, 2)

	// Two build steps plus the synthetic upload step
	require.Len(t, r.Steps, 3)
	require.Equal(t, uploadStepName, r.Steps[2].Name)
	require.True(t, r.Steps[2].IsSuccess)

	// The bundle landed in the store
	require.FileExists(t, filepath.Join(storeDir, "qiskit-test-0.1.0.tar.gz"))
	require.FileExists(t, filepath.Join(storeDir, "qiskit_test-0.1.0-py3-none-any.whl"))
}

func TestHandleEventWildcardMatchesAnyTag(t *testing.T) {
	o := New(testWorkflow())
	o.Options.Workspace = t.TempDir()

	// The catch-all filter triggers on tags that are not releases
	r, err := o.HandleEvent(context.Background(), workflow.NewTagEvent("not-a-release"))
	require.NoError(t, err)
	require.Equal(t, run.StatusSucceeded, r.Status)
}

func TestHandleEventStepFailure(t *testing.T) {
	wf := testWorkflow()
	wf.Steps = []workflow.Step{
		{Name: "Install Deps", Command: "sh", Params: []string{"-c", "exit 3"}},
		{Name: "Build Sdist", Command: "true"},
	}
	o := New(wf)
	o.Options.Workspace = t.TempDir()

	r, err := o.HandleEvent(context.Background(), workflow.NewTagEvent("v0.1.0"))
	require.Error(t, err)
	require.Equal(t, run.StatusFailed, r.Status)
	require.Equal(t, "Install Deps", r.FailedStep)

	// The run carries the exit code of the failing step
	require.Equal(t, 3, r.ExitCode)

	// Fail fast, the second step never ran
	require.Len(t, r.Steps, 1)

	var stepErr *run.StepExecutionError
	require.True(t, errors.As(err, &stepErr))
}

func TestHandleEventCancellation(t *testing.T) {
	wf := testWorkflow()
	wf.Steps = []workflow.Step{
		{Name: "Build Sdist", Command: "sleep", Params: []string{"5"}},
		{Name: "Build Wheel", Command: "true"},
	}
	o := New(wf)
	o.Options.Workspace = t.TempDir()
	o.Options.Timeout = 100 * time.Millisecond

	r, err := o.HandleEvent(context.Background(), workflow.NewTagEvent("v0.1.0"))
	require.Error(t, err)
	require.Equal(t, run.StatusCancelled, r.Status)

	var cancelErr *run.CancellationError
	require.True(t, errors.As(err, &cancelErr))
	require.Len(t, r.Steps, 1)
}

func TestHandleEventNoArtifacts(t *testing.T) {
	wf := testWorkflow()
	wf.Steps = []workflow.Step{
		{Name: "Build Nothing", Command: "true"},
	}
	o := New(wf)
	o.Options.Workspace = t.TempDir()
	require.NoError(t, o.AddArtifactStore("file://"+t.TempDir()))

	r, err := o.HandleEvent(context.Background(), workflow.NewTagEvent("v0.1.0"))
	require.Error(t, err)
	require.Equal(t, run.StatusFailed, r.Status)
	require.Equal(t, uploadStepName, r.FailedStep)
	require.Equal(t, 1, r.ExitCode)
}

func TestHandleEventPublishSuccess(t *testing.T) {
	wf := testWorkflow()
	wf.Publish = &workflow.PublishSpec{
		Files:          "dist/qiskit*",
		Username:       "qiskit",
		PasswordSecret: "TWINE_PASSWORD",
	}
	o := New(wf)
	o.Options.Workspace = t.TempDir()
	o.Options.Secrets = secrets.Static{"TWINE_PASSWORD": "t0psecret"}

	pub := &fakePublisher{}
	o.SetPublisher(pub)

	r, err := o.HandleEvent(context.Background(), workflow.NewTagEvent("v0.1.0"))
	require.NoError(t, err)
	require.Equal(t, run.StatusSucceeded, r.Status)

	// The registry client got the real credentials
	require.Equal(t, "dist/qiskit*", pub.gotGlob)
	require.Equal(t, "qiskit", pub.gotCreds.Username)
	require.Equal(t, "t0psecret", pub.gotCreds.Password.Reveal())

	// The run record keeps only the secret name
	last := r.Steps[len(r.Steps)-1]
	require.Equal(t, publishStepName, last.Name)
	require.True(t, last.IsSuccess)
	require.Equal(t, []string{"TWINE_PASSWORD"}, last.SecretEnv)
	require.Empty(t, last.Environment)
}

func TestHandleEventPublishAuthFailure(t *testing.T) {
	wf := testWorkflow()
	wf.Publish = &workflow.PublishSpec{
		Files:          "dist/qiskit*",
		Username:       "qiskit",
		PasswordSecret: "TWINE_PASSWORD",
	}
	storeDir := t.TempDir()

	o := New(wf)
	o.Options.Workspace = t.TempDir()
	o.Options.Secrets = secrets.Static{"TWINE_PASSWORD": "wr0ng"}
	require.NoError(t, o.AddArtifactStore("file://"+storeDir))
	o.SetPublisher(&fakePublisher{
		err: &run.AuthenticationError{Registry: "pypi"},
	})

	r, err := o.HandleEvent(context.Background(), workflow.NewTagEvent("v0.1.0"))
	require.Error(t, err)
	require.Equal(t, run.StatusFailed, r.Status)
	require.Equal(t, publishStepName, r.FailedStep)
	require.Equal(t, 1, r.ExitCode)

	var authErr *run.AuthenticationError
	require.True(t, errors.As(err, &authErr))

	// The bundle uploaded before publish survives the rejection
	require.FileExists(t, filepath.Join(storeDir, "qiskit-test-0.1.0.tar.gz"))
}

func TestHandleEventMissingPublishSecret(t *testing.T) {
	wf := testWorkflow()
	wf.Publish = &workflow.PublishSpec{
		Files:          "dist/qiskit*",
		Username:       "qiskit",
		PasswordSecret: "TWINE_PASSWORD",
	}
	o := New(wf)
	o.Options.Workspace = t.TempDir()
	o.Options.Secrets = secrets.Static{}
	o.SetPublisher(&fakePublisher{})

	r, err := o.HandleEvent(context.Background(), workflow.NewTagEvent("v0.1.0"))
	require.Error(t, err)
	require.Equal(t, run.StatusFailed, r.Status)

	var authErr *run.AuthenticationError
	require.True(t, errors.As(err, &authErr))
}
