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

package workflow

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"sigs.k8s.io/metate/pkg/run"
)

// Workflow is a declarative release pipeline definition. It is the
// explicit rendering of the tag → build → upload → publish pipelines
// that CI systems keep in their workflow files.
type Workflow struct {
	Name      string       `yaml:"name"`
	On        Trigger      `yaml:"on"`
	Runtime   Runtime      `yaml:"runtime"`
	Steps     []Step       `yaml:"steps"`
	Artifacts ArtifactSpec `yaml:"artifacts"`
	Publish   *PublishSpec `yaml:"publish,omitempty"`
}

// Runtime pins the interpreter the steps run against
type Runtime struct {
	Interpreter string `yaml:"interpreter"`
	Version     string `yaml:"version"`
}

// Step is one entry in the ordered step list. Command and Params are
// an argv, never a shell line. Env values are literal; SecretEnv lists
// variable names whose values come from the secret store when the step
// is invoked, the workflow file never carries them.
type Step struct {
	Name      string            `yaml:"name"`
	Command   string            `yaml:"command"`
	Params    []string          `yaml:"params,omitempty"`
	Env       map[string]string `yaml:"env,omitempty"`
	SecretEnv []string          `yaml:"secretEnv,omitempty"`
}

// ArtifactSpec tells the runner where the build drops its
// distributable files and which of them form the artifact bundle
type ArtifactSpec struct {
	Directory string `yaml:"directory"`
	Pattern   string `yaml:"pattern"`
	Bundle    string `yaml:"bundle"`
}

// PublishSpec configures the package index upload. The password is
// referenced by secret name only.
type PublishSpec struct {
	Files          string `yaml:"files"`
	Username       string `yaml:"username"`
	PasswordSecret string `yaml:"passwordSecret"`
	RepositoryURL  string `yaml:"repositoryURL,omitempty"`
}

// Load reads a workflow definition from a YAML file
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	return Parse(data)
}

// Parse unmarshals and validates a workflow definition
func Parse(data []byte) (*Workflow, error) {
	w := &Workflow{}
	if err := yaml.Unmarshal(data, w); err != nil {
		return nil, fmt.Errorf("unmarshalling workflow: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("validating workflow: %w", err)
	}
	return w, nil
}

// Validate checks the definition is runnable
func (w *Workflow) Validate() error {
	errs := []error{}
	if w.Name == "" {
		errs = append(errs, errors.New("workflow has no name"))
	}
	if len(w.Steps) == 0 {
		errs = append(errs, errors.New("workflow has no steps"))
	}
	for i, s := range w.Steps {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("step %d has no name", i))
		}
		if s.Command == "" {
			errs = append(errs, fmt.Errorf("step %d has no command", i))
		}
	}
	if w.Publish != nil {
		if w.Publish.Files == "" {
			errs = append(errs, errors.New("publish block has no file glob"))
		}
		if w.Publish.PasswordSecret == "" {
			errs = append(errs, errors.New("publish block does not name a password secret"))
		}
	}
	return errors.Join(errs...)
}

// RunSteps expands the declared steps into run steps, substituting the
// resolved interpreter path wherever a step invokes the pinned runtime
// by its bare name.
func (w *Workflow) RunSteps(interpreter string) []run.Step {
	steps := []run.Step{}
	for _, s := range w.Steps {
		command := s.Command
		if interpreter != "" && command == w.Runtime.Interpreter {
			command = interpreter
		}
		env := map[string]string{}
		for k, v := range s.Env {
			env[k] = v
		}
		steps = append(steps, run.Step{
			Name:        s.Name,
			Command:     command,
			Params:      append([]string{}, s.Params...),
			Environment: env,
			SecretEnv:   append([]string{}, s.SecretEnv...),
		})
	}
	return steps
}

// Default returns the built-in workflow: the python release pipeline
// this tool was written to reproduce. Any pushed tag triggers it.
func Default() *Workflow {
	return &Workflow{
		Name: "Deploy",
		On: Trigger{
			Push: PushFilter{Tags: []string{"*"}},
		},
		Runtime: Runtime{
			Interpreter: "python",
			Version:     "3.8",
		},
		Steps: []Step{
			{
				Name:    "Install Deps",
				Command: "python",
				Params:  []string{"-m", "pip", "install", "-U", "twine", "wheel"},
			},
			{
				Name:    "Build Sdist",
				Command: "python",
				Params:  []string{"setup.py", "sdist"},
			},
			{
				Name:    "Build Wheel",
				Command: "python",
				Params:  []string{"setup.py", "bdist_wheel"},
			},
		},
		Artifacts: ArtifactSpec{
			Directory: "dist",
			Pattern:   "qiskit*",
			Bundle:    "artifacts",
		},
		Publish: &PublishSpec{
			Files:          "dist/qiskit*",
			Username:       "qiskit",
			PasswordSecret: "TWINE_PASSWORD",
		},
	}
}
