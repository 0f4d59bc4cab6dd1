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
	"fmt"
	"time"
)

// Status is the observable state of a release run
type Status string

const (
	StatusPending      Status = "PENDING"
	StatusProvisioning Status = "PROVISIONING"
	StatusRunning      Status = "RUNNING"
	StatusSucceeded    Status = "SUCCEEDED"
	StatusFailed       Status = "FAILED"
	StatusCancelled    Status = "CANCELLED"
)

// legalTransitions captures the run state machine. A run always starts
// PENDING and only ever moves forward, there are no retry edges.
var legalTransitions = map[Status][]Status{
	StatusPending:      {StatusProvisioning, StatusFailed, StatusCancelled},
	StatusProvisioning: {StatusRunning, StatusFailed, StatusCancelled},
	StatusRunning:      {StatusSucceeded, StatusFailed, StatusCancelled},
	StatusSucceeded:    {},
	StatusFailed:       {},
	StatusCancelled:    {},
}

// Terminal returns true when no further transitions are possible
func (s Status) Terminal() bool {
	return len(legalTransitions[s]) == 0
}

// Run models one end-to-end execution of a release workflow for a
// single trigger event.
type Run struct {
	ID         string
	Workflow   string
	Ref        string // the ref of the triggering event
	Status     Status
	ExitCode   int
	FailedStep string // name of the step that failed the run, if any
	Steps      []Step
	Artifacts  []Artifact
	StartTime  time.Time
	EndTime    time.Time
}

// NewRun returns a pending run for the ref that triggered it
func NewRun(workflow, ref string) *Run {
	return &Run{
		ID:        fmt.Sprintf("%s-%d", workflow, time.Now().UnixNano()),
		Workflow:  workflow,
		Ref:       ref,
		Status:    StatusPending,
		Steps:     []Step{},
		Artifacts: []Artifact{},
	}
}

// Transition advances the run to a new status, enforcing the state
// machine edges. Moving out of a terminal state is an error.
func (r *Run) Transition(next Status) error {
	for _, s := range legalTransitions[r.Status] {
		if s == next {
			r.Status = next
			return nil
		}
	}
	return fmt.Errorf("illegal run transition %s → %s", r.Status, next)
}

// Step is one ordered unit of work in a run, backed by an external
// tool invocation. Environment holds plain variables; SecretEnv lists
// the names of variables whose values get resolved from the secret
// provider when the step runs. The values themselves are never stored
// in the step definition.
type Step struct {
	Name        string
	Command     string
	Params      []string
	IsSuccess   bool
	ExitCode    int
	Environment map[string]string
	SecretEnv   []string
	StartTime   time.Time
	EndTime     time.Time
}

// Artifact abstracts a built distribution file with the items we are
// interested in recording
type Artifact struct {
	Path     string
	Checksum map[string]string
	Time     time.Time
}
