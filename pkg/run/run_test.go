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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransition(t *testing.T) {
	for _, tc := range []struct {
		path    []Status
		mustErr bool
	}{
		// The happy path
		{[]Status{StatusProvisioning, StatusRunning, StatusSucceeded}, false},
		// Provisioning failure, no steps run
		{[]Status{StatusProvisioning, StatusFailed}, false},
		// A step failed mid run
		{[]Status{StatusProvisioning, StatusRunning, StatusFailed}, false},
		// Operator cancellation while running
		{[]Status{StatusProvisioning, StatusRunning, StatusCancelled}, false},
		// No skipping provisioning
		{[]Status{StatusRunning}, true},
		// No jumping straight to success
		{[]Status{StatusSucceeded}, true},
		// Terminal states are terminal, a failed run needs a new trigger
		{[]Status{StatusProvisioning, StatusFailed, StatusRunning}, true},
		{[]Status{StatusProvisioning, StatusRunning, StatusSucceeded, StatusRunning}, true},
		{[]Status{StatusProvisioning, StatusRunning, StatusCancelled, StatusRunning}, true},
	} {
		r := NewRun("deploy", "refs/tags/v1.0.0")
		require.Equal(t, StatusPending, r.Status)
		var err error
		for _, next := range tc.path {
			if err = r.Transition(next); err != nil {
				break
			}
		}
		if tc.mustErr {
			require.Error(t, err, "path %v should not be legal", tc.path)
		} else {
			require.NoError(t, err, "path %v should be legal", tc.path)
		}
	}
}

func TestTerminal(t *testing.T) {
	require.True(t, StatusSucceeded.Terminal())
	require.True(t, StatusFailed.Terminal())
	require.True(t, StatusCancelled.Terminal())
	require.False(t, StatusPending.Terminal())
	require.False(t, StatusProvisioning.Terminal())
	require.False(t, StatusRunning.Terminal())
}

func TestErrorTypes(t *testing.T) {
	wrapped := fmt.Errorf("running release: %w", &StepExecutionError{Step: "Install Deps", ExitCode: 1})
	var stepErr *StepExecutionError
	require.True(t, errors.As(wrapped, &stepErr))
	require.Equal(t, "Install Deps", stepErr.Step)
	require.Equal(t, 1, stepErr.ExitCode)

	inner := errors.New("network unreachable")
	provErr := &ProvisioningError{Reason: "installing runtime", Err: inner}
	require.True(t, errors.Is(provErr, inner))

	authErr := fmt.Errorf("publishing: %w", &AuthenticationError{Registry: "pypi"})
	var ae *AuthenticationError
	require.True(t, errors.As(authErr, &ae))
}
