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
	"strings"
	"time"
)

// Stream captures the output a step command wrote while running
type Stream struct {
	stdout string
	stderr string
}

// Output returns the captured standard output
func (s *Stream) Output() string { return s.stdout }

// Error returns the captured standard error
func (s *Stream) Error() string { return s.stderr }

// OutputTrimNL returns the standard output with trailing newlines
// removed
func (s *Stream) OutputTrimNL() string {
	return strings.TrimRight(s.stdout, "\n")
}

// Run records a single executed step command
type Run struct {
	ExitCode    int
	Output      *Stream
	Command     string
	Params      []string
	StartTime   time.Time
	EndTime     time.Time
	Environment RunEnvironment

	// env is the full process environment, secret values included.
	// It stays unexported so it can never leak through logs or
	// serialized run records.
	env []string
}

// RunEnvironment is the context the command executed in. Variables
// holds only the non-secret variables; secret values are injected
// straight into the process environment and never recorded here.
type RunEnvironment struct {
	Variables map[string]string
	Directory string
}
