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

package exec

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/secrets"
)

func NewRunner() *Runner {
	return &Runner{
		Options: Options{
			Logger:  logrus.New(),
			Secrets: secrets.NewEnv(),
		},
		implementation: &defaultRunnerImplementation{},
	}
}

// Runner executes workflow steps one at a time
type Runner struct {
	Options        Options
	implementation RunnerImplementation
}

type Options struct {
	Verbose bool
	CWD     string
	Logger  *logrus.Logger
	Secrets secrets.Provider
}

// SetImplementation swaps the runner internals, used by tests
func (r *Runner) SetImplementation(impl RunnerImplementation) {
	r.implementation = impl
}

// RunStep executes a step and mirrors the result back into the step
// struct. A non-zero exit surfaces as run.StepExecutionError, a
// cancelled context as run.CancellationError.
func (r *Runner) RunStep(ctx context.Context, step *run.Step) (cmdRun *Run, err error) {
	// Steps after a cancellation never start
	if ctx.Err() != nil {
		return nil, &run.CancellationError{Step: step.Name}
	}

	cmdRun, err = r.implementation.CreateRun(&r.Options, step)
	if err != nil {
		return nil, fmt.Errorf("getting step command and arguments: %w", err)
	}

	err = r.implementation.Execute(ctx, &r.Options, cmdRun)
	step.StartTime = cmdRun.StartTime
	step.EndTime = cmdRun.EndTime
	step.ExitCode = cmdRun.ExitCode
	step.IsSuccess = err == nil

	if err != nil {
		if ctx.Err() != nil {
			return cmdRun, &run.CancellationError{Step: step.Name}
		}
		return cmdRun, &run.StepExecutionError{
			Step:     step.Name,
			ExitCode: cmdRun.ExitCode,
			Err:      err,
		}
	}
	return cmdRun, nil
}
