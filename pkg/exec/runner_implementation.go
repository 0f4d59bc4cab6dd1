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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	gexec "os/exec"
	"strings"
	"syscall"
	"time"

	"sigs.k8s.io/metate/pkg/run"
)

type RunnerImplementation interface {
	CreateRun(*Options, *run.Step) (*Run, error)
	Execute(context.Context, *Options, *Run) error
}

type defaultRunnerImplementation struct{}

// waitDelay bounds how long Execute waits for output pipes after the
// process is gone, so a killed step with lingering children cannot
// hang the run.
const waitDelay = 2 * time.Second

// CreateRun creates a run from the data defined in the step. Secret
// environment values are resolved here and go straight into the
// command environment, the step definition keeps only the names.
func (ri *defaultRunnerImplementation) CreateRun(opts *Options, step *run.Step) (r *Run, err error) {
	cwd := opts.CWD
	if opts.CWD == "" {
		cwd, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("getting current directory: %w", err)
		}
	}

	env := os.Environ()
	variables := map[string]string{}
	for name, value := range step.Environment {
		variables[name] = value
		env = append(env, name+"="+value)
	}
	for _, name := range step.SecretEnv {
		if opts.Secrets == nil {
			return nil, fmt.Errorf("step %q needs secret %s but no provider is set", step.Name, name)
		}
		value, err := opts.Secrets.Get(name)
		if err != nil {
			return nil, fmt.Errorf("resolving secret for step %q: %w", step.Name, err)
		}
		env = append(env, name+"="+value.Reveal())
	}

	r = &Run{
		ExitCode: 0,
		Output:   &Stream{},
		Command:  step.Command,
		Params:   step.Params,
		env:      env,
		Environment: RunEnvironment{
			Directory: cwd,
			Variables: variables,
		},
	}

	opts.Logger.Infof(
		"Executing command: %s %s", step.Command, strings.Join(step.Params, " "),
	)
	return r, nil
}

// Execute runs the command under the context. When the context is
// cancelled the whole process group is killed, so a cancelled step
// cannot keep doing work in the background. The exit code of a failed
// command is mirrored into the run.
func (ri *defaultRunnerImplementation) Execute(ctx context.Context, opts *Options, cmdRun *Run) error {
	cmd := gexec.CommandContext(ctx, cmdRun.Command, cmdRun.Params...)
	cmd.Dir = cmdRun.Environment.Directory
	cmd.Env = cmdRun.env

	// Run the step in its own process group and take the group down on
	// cancellation, children included.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	if opts.Verbose {
		cmd.Stdout = io.MultiWriter(&stdout, os.Stdout)
		cmd.Stderr = io.MultiWriter(&stderr, os.Stderr)
	} else {
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
	}

	cmdRun.StartTime = time.Now()
	err := cmd.Run()
	cmdRun.EndTime = time.Now()
	cmdRun.Output = &Stream{
		stdout: stdout.String(),
		stderr: stderr.String(),
	}

	if err != nil {
		cmdRun.ExitCode = exitCodeFromError(err)
		return fmt.Errorf("executing run: %w", err)
	}
	return nil
}

// exitCodeFromError digs the process exit code out of an execution
// error. A process that never started or died to a signal reports 1.
func exitCodeFromError(err error) int {
	var exitErr *gexec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
	}
	return 1
}
