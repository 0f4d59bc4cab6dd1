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

package run

import "fmt"

// ProvisioningError means the execution environment could not be set
// up. Fatal, no steps run after it.
type ProvisioningError struct {
	Reason string
	Err    error
}

func (e *ProvisioningError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provisioning execution environment: %s", e.Reason)
	}
	return fmt.Sprintf("provisioning execution environment: %s: %v", e.Reason, e.Err)
}

func (e *ProvisioningError) Unwrap() error { return e.Err }

// StepExecutionError means a step's underlying command exited
// non-zero. Fatal, halts all remaining steps.
type StepExecutionError struct {
	Step     string
	ExitCode int
	Err      error
}

func (e *StepExecutionError) Error() string {
	return fmt.Sprintf("step %q failed with exit code %d", e.Step, e.ExitCode)
}

func (e *StepExecutionError) Unwrap() error { return e.Err }

// AuthenticationError means the package registry rejected the
// credentials during publish. The artifact bundle built and stored by
// the earlier steps survives it.
type AuthenticationError struct {
	Registry string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("registry %s rejected credentials", e.Registry)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// CancellationError means an external cancellation signal arrived
// mid-run. The in-flight step is terminated and the rest are skipped.
type CancellationError struct {
	Step string
}

func (e *CancellationError) Error() string {
	if e.Step == "" {
		return "run cancelled"
	}
	return fmt.Sprintf("run cancelled while executing step %q", e.Step)
}
