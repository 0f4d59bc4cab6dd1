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

// Package release drives a workflow from trigger event to published
// artifacts. The orchestrator owns the run state machine and hands the
// actual work to the provisioner, the step runner, the artifact stores
// and the registry client.
package release

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/util"

	"sigs.k8s.io/metate/pkg/exec"
	"sigs.k8s.io/metate/pkg/provision"
	"sigs.k8s.io/metate/pkg/registry"
	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/secrets"
	"sigs.k8s.io/metate/pkg/store"
	"sigs.k8s.io/metate/pkg/store/driver"
	"sigs.k8s.io/metate/pkg/store/snapshot"
	"sigs.k8s.io/metate/pkg/workflow"
)

// ErrNotTriggered is returned when an event does not pass the workflow
// trigger filter. No run is created for it.
var ErrNotTriggered = errors.New("event does not match the workflow trigger")

// Names of the synthetic steps the orchestrator appends to the run
// record after the build steps finish
const (
	uploadStepName  = "Upload Artifacts"
	publishStepName = "Publish to PyPi"
)

type Options struct {
	// Workspace is a preexisting source checkout. When empty a
	// temporary workspace is provisioned.
	Workspace string

	// Repository is the clone URL to fetch the source from
	Repository string

	// Timeout caps the wall clock time of a run. Zero means no cap.
	Timeout time.Duration

	// Verbose streams step output to the log
	Verbose bool

	// Secrets resolves credential values at invocation time
	Secrets secrets.Provider
}

// Orchestrator runs a workflow when a matching event arrives
type Orchestrator struct {
	Options  Options
	Workflow *workflow.Workflow
	Stores   []store.Store

	provisioner *provision.Provisioner
	runner      *exec.Runner
	publisher   Publisher
	env         *provision.Environment
}

// Publisher pushes distribution files to a package index
type Publisher interface {
	Upload(ctx context.Context, fileGlob string, creds registry.Credentials) error
}

func New(wf *workflow.Workflow) *Orchestrator {
	return &Orchestrator{
		Options: Options{
			Secrets: secrets.NewEnv(),
		},
		Workflow:    wf,
		Stores:      []store.Store{},
		provisioner: provision.New(),
		runner:      exec.NewRunner(),
		publisher:   registry.NewTwine(),
	}
}

// AddArtifactStore adds a destination for the artifact bundle
func (o *Orchestrator) AddArtifactStore(specURL string) error {
	s, err := store.New(specURL)
	if err != nil {
		return fmt.Errorf("getting artifact store: %w", err)
	}
	o.Stores = append(o.Stores, s)
	return nil
}

// SetProvisioner swaps the environment provisioner, used by tests
func (o *Orchestrator) SetProvisioner(p *provision.Provisioner) { o.provisioner = p }

// SetRunner swaps the step runner, used by tests
func (o *Orchestrator) SetRunner(r *exec.Runner) { o.runner = r }

// SetPublisher swaps the registry client, used by tests
func (o *Orchestrator) SetPublisher(p Publisher) { o.publisher = p }

// HandleEvent checks an event against the workflow trigger and, when
// it matches, executes the full release run. The returned run record
// reflects the terminal state even when the error is non-nil; events
// that do not match return ErrNotTriggered and no run.
func (o *Orchestrator) HandleEvent(ctx context.Context, e *workflow.Event) (*run.Run, error) {
	matches, err := o.Workflow.On.Matches(e)
	if err != nil {
		return nil, fmt.Errorf("filtering event: %w", err)
	}
	if !matches {
		return nil, ErrNotTriggered
	}

	if o.Options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Options.Timeout)
		defer cancel()
	}

	r := run.NewRun(o.Workflow.Name, e.Ref)
	r.StartTime = time.Now()
	defer func() {
		r.EndTime = time.Now()
	}()
	logrus.Infof("Run %s triggered by %s", r.ID, e.Ref)

	env, err := o.provisionRun(ctx, r, e.TagName())
	if err != nil {
		return r, err
	}

	if err := o.runSteps(ctx, r, env); err != nil {
		return r, err
	}

	if err := o.uploadArtifacts(ctx, r, env); err != nil {
		return r, err
	}

	if err := o.publish(ctx, r, env); err != nil {
		return r, err
	}

	if err := r.Transition(run.StatusSucceeded); err != nil {
		return r, err
	}
	logrus.Infof("Run %s succeeded with %d artifacts", r.ID, len(r.Artifacts))
	return r, nil
}

// fail moves the run to its terminal failure state. A cancelled
// context always wins over the error that surfaced it.
func (o *Orchestrator) fail(ctx context.Context, r *run.Run, err error) error {
	status := run.StatusFailed
	var cancelErr *run.CancellationError
	if ctx.Err() != nil || errors.As(err, &cancelErr) {
		status = run.StatusCancelled
	}
	// A failed run always carries a non-zero exit code, even when the
	// failure happened outside a build step
	if status == run.StatusFailed && r.ExitCode == 0 {
		r.ExitCode = 1
	}
	if terr := r.Transition(status); terr != nil {
		return errors.Join(err, terr)
	}
	return err
}

func (o *Orchestrator) provisionRun(
	ctx context.Context, r *run.Run, tag string,
) (*provision.Environment, error) {
	if err := r.Transition(run.StatusProvisioning); err != nil {
		return nil, err
	}

	o.provisioner.Options.Workspace = o.Options.Workspace
	o.provisioner.Options.Repository = o.Options.Repository
	o.provisioner.Options.Runtime = o.Workflow.Runtime

	env, err := o.provisioner.Provision(ctx, tag)
	if err != nil {
		return nil, o.fail(ctx, r, err)
	}
	o.env = env
	return env, nil
}

// Environment returns the provisioned environment of the last run,
// nil before provisioning succeeded once
func (o *Orchestrator) Environment() *provision.Environment {
	return o.env
}

// runSteps executes the workflow steps in order, stopping at the first
// failure. Every executed step lands in the run record.
func (o *Orchestrator) runSteps(ctx context.Context, r *run.Run, env *provision.Environment) error {
	if err := r.Transition(run.StatusRunning); err != nil {
		return err
	}

	o.runner.Options.CWD = env.Workspace
	o.runner.Options.Verbose = o.Options.Verbose
	if o.Options.Secrets != nil {
		o.runner.Options.Secrets = o.Options.Secrets
	}

	preSnap := o.snapArtifactDir(env.Workspace)

	for _, step := range o.Workflow.RunSteps(env.Interpreter) {
		logrus.Infof("Running step: %s", step.Name)
		_, err := o.runner.RunStep(ctx, &step)
		r.Steps = append(r.Steps, step)
		if err != nil {
			r.FailedStep = step.Name
			r.ExitCode = step.ExitCode
			return o.fail(ctx, r, err)
		}
	}

	postSnap := o.snapArtifactDir(env.Workspace)
	r.Artifacts = o.filterArtifacts(preSnap.Delta(postSnap))
	return nil
}

// snapArtifactDir snapshots the build output directory. Before the
// build runs the directory may not exist yet, that reads as empty.
func (o *Orchestrator) snapArtifactDir(workspace string) *snapshot.Snapshot {
	dir := filepath.Join(workspace, o.Workflow.Artifacts.Directory)
	if !util.Exists(dir) {
		return &snapshot.Snapshot{}
	}
	d := &driver.Directory{Path: dir}
	snap, err := d.Snap()
	if err != nil {
		logrus.Warnf("Snapshotting %s: %v", dir, err)
		return &snapshot.Snapshot{}
	}
	return snap
}

// filterArtifacts keeps the files matching the bundle pattern
func (o *Orchestrator) filterArtifacts(artifacts []run.Artifact) []run.Artifact {
	pattern := o.Workflow.Artifacts.Pattern
	if pattern == "" {
		return artifacts
	}
	bundle := []run.Artifact{}
	for _, artifact := range artifacts {
		if ok, err := path.Match(pattern, artifact.Path); err == nil && ok {
			bundle = append(bundle, artifact)
		}
	}
	return bundle
}

// uploadArtifacts pushes the bundle to every configured store. The
// upload is recorded in the run as a step of its own.
func (o *Orchestrator) uploadArtifacts(ctx context.Context, r *run.Run, env *provision.Environment) error {
	if len(o.Stores) == 0 {
		return nil
	}
	if len(r.Artifacts) == 0 {
		r.FailedStep = uploadStepName
		return o.fail(ctx, r, fmt.Errorf(
			"build steps produced no artifacts matching %s in %s",
			o.Workflow.Artifacts.Pattern, o.Workflow.Artifacts.Directory,
		))
	}

	step := run.Step{Name: uploadStepName, Command: "metate", StartTime: time.Now()}
	sourceDir := filepath.Join(env.Workspace, o.Workflow.Artifacts.Directory)
	for _, s := range o.Stores {
		logrus.Infof("Uploading %d artifacts to %s", len(r.Artifacts), s.SpecURL)
		if err := s.Push(ctx, sourceDir, r.Artifacts); err != nil {
			step.EndTime = time.Now()
			r.Steps = append(r.Steps, step)
			r.FailedStep = step.Name
			return o.fail(ctx, r, fmt.Errorf("uploading bundle to %s: %w", s.SpecURL, err))
		}
	}
	step.EndTime = time.Now()
	step.IsSuccess = true
	r.Steps = append(r.Steps, step)
	return nil
}

// publish uploads the distribution files to the package index. The
// password only ever travels from the secret provider to the registry
// client, the run record keeps the secret name.
func (o *Orchestrator) publish(ctx context.Context, r *run.Run, env *provision.Environment) error {
	spec := o.Workflow.Publish
	if spec == nil {
		return nil
	}

	step := run.Step{
		Name:      publishStepName,
		Command:   "twine",
		Params:    []string{"upload", spec.Files},
		SecretEnv: []string{spec.PasswordSecret},
		StartTime: time.Now(),
	}

	err := o.runPublish(ctx, env.Workspace, spec)
	step.EndTime = time.Now()
	step.IsSuccess = err == nil
	r.Steps = append(r.Steps, step)
	if err != nil {
		// The bundle pushed to the stores stays where it is
		r.FailedStep = step.Name
		return o.fail(ctx, r, err)
	}
	return nil
}

func (o *Orchestrator) runPublish(ctx context.Context, workspace string, spec *workflow.PublishSpec) error {
	if o.Options.Secrets == nil {
		return fmt.Errorf("publishing needs secret %s but no provider is set", spec.PasswordSecret)
	}
	password, err := o.Options.Secrets.Get(spec.PasswordSecret)
	if err != nil {
		return &run.AuthenticationError{Registry: "pypi", Err: err}
	}

	if twine, ok := o.publisher.(*registry.Twine); ok {
		twine.Options.WorkDir = workspace
		twine.Options.RepositoryURL = spec.RepositoryURL
	}
	return o.publisher.Upload(ctx, spec.Files, registry.Credentials{
		Username: spec.Username,
		Password: password,
	})
}
