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

// Package provision sets up the execution environment of a release
// run: a workspace, the source checkout at the triggering tag and the
// pinned interpreter. Any failure here aborts the run before the
// first step executes.
package provision

import (
	"context"
	"fmt"
	"os"
	gexec "os/exec"
	"strings"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/command"
	"sigs.k8s.io/release-utils/util"

	"sigs.k8s.io/metate/pkg/git"
	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/workflow"
)

// Options configures a provisioner
type Options struct {
	// Workspace is the directory the source lives in. When empty a
	// temporary directory is created.
	Workspace string

	// Repository is the clone URL of the source. When empty the
	// workspace is assumed to hold a checkout already.
	Repository string

	// Runtime is the interpreter requirement of the workflow
	Runtime workflow.Runtime
}

// Environment is a provisioned execution environment
type Environment struct {
	Workspace   string
	Interpreter string
	SourceURL   string
}

func New() *Provisioner {
	return &Provisioner{
		Options:        Options{},
		implementation: &defaultProvisionerImplementation{},
	}
}

type Provisioner struct {
	Options        Options
	implementation ProvisionerImplementation
}

type ProvisionerImplementation interface {
	EnsureWorkspace(*Options) (string, error)
	Checkout(context.Context, *Options, string, string) (string, error)
	ResolveRuntime(*Options) (string, error)
}

// SetImplementation swaps the provisioner internals, used by tests
func (p *Provisioner) SetImplementation(impl ProvisionerImplementation) {
	p.implementation = impl
}

// Provision prepares the environment the run executes in. Every
// failure wraps into run.ProvisioningError so the orchestrator can
// fail the run before any step executes.
func (p *Provisioner) Provision(ctx context.Context, tag string) (*Environment, error) {
	workspace, err := p.implementation.EnsureWorkspace(&p.Options)
	if err != nil {
		return nil, &run.ProvisioningError{Reason: "creating workspace", Err: err}
	}

	sourceURL, err := p.implementation.Checkout(ctx, &p.Options, workspace, tag)
	if err != nil {
		return nil, &run.ProvisioningError{Reason: "checking out source", Err: err}
	}

	interpreter, err := p.implementation.ResolveRuntime(&p.Options)
	if err != nil {
		return nil, &run.ProvisioningError{Reason: "installing runtime", Err: err}
	}

	return &Environment{
		Workspace:   workspace,
		Interpreter: interpreter,
		SourceURL:   sourceURL,
	}, nil
}

type defaultProvisionerImplementation struct{}

func (di *defaultProvisionerImplementation) EnsureWorkspace(opts *Options) (string, error) {
	if opts.Workspace != "" {
		if !util.Exists(opts.Workspace) {
			return "", fmt.Errorf("workspace %s does not exist", opts.Workspace)
		}
		return opts.Workspace, nil
	}
	dir, err := os.MkdirTemp("", "metate-workspace-")
	if err != nil {
		return "", fmt.Errorf("creating temporary workspace: %w", err)
	}
	return dir, nil
}

func (di *defaultProvisionerImplementation) Checkout(
	ctx context.Context, opts *Options, workspace, tag string,
) (string, error) {
	if opts.Repository == "" {
		// Workspace already holds the source, just probe its origin
		repo := git.NewRepository(workspace)
		url, err := repo.SourceURL()
		if err != nil {
			return "", fmt.Errorf("reading source URL: %w", err)
		}
		return url, nil
	}

	repo, err := git.CloneAtTag(ctx, opts.Repository, tag, workspace)
	if err != nil {
		return "", fmt.Errorf("fetching source at tag %s: %w", tag, err)
	}
	url, err := repo.SourceURL()
	if err != nil {
		return "", fmt.Errorf("reading source URL: %w", err)
	}
	return url, nil
}

// ResolveRuntime finds an interpreter satisfying the pinned version.
// Candidates go from most to least specific (python3.8, python3,
// python) and the first one reporting the right version wins.
func (di *defaultProvisionerImplementation) ResolveRuntime(opts *Options) (string, error) {
	interpreter := opts.Runtime.Interpreter
	if interpreter == "" {
		return "", nil
	}

	candidates := []string{interpreter}
	if opts.Runtime.Version != "" {
		major, _, _ := strings.Cut(opts.Runtime.Version, ".")
		candidates = []string{
			interpreter + opts.Runtime.Version,
			interpreter + major,
			interpreter,
		}
	}

	for _, candidate := range candidates {
		path, err := gexec.LookPath(candidate)
		if err != nil {
			continue
		}
		if opts.Runtime.Version == "" {
			return path, nil
		}
		if reportsVersion(path, opts.Runtime.Version) {
			logrus.Infof("Using interpreter %s for runtime %s %s", path, interpreter, opts.Runtime.Version)
			return path, nil
		}
	}
	return "", fmt.Errorf(
		"no %s interpreter with version %s found in path", interpreter, opts.Runtime.Version,
	)
}

// reportsVersion checks the version string the interpreter prints
func reportsVersion(path, version string) bool {
	output, err := command.New(path, "--version").RunSilentSuccessOutput()
	if err != nil {
		return false
	}
	reported := output.OutputTrimNL()
	if reported == "" {
		reported = strings.TrimSpace(output.Error())
	}
	_, v, found := strings.Cut(reported, " ")
	if !found {
		return false
	}
	return v == version || strings.HasPrefix(v, version+".")
}
