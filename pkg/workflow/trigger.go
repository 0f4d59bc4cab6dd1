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
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

const tagRefPrefix = "refs/tags/"

// Event is the notification that may start a run. Its shape follows
// the push events version control hosts emit.
type Event struct {
	Type string `json:"type"`
	Ref  string `json:"ref"`
}

// ParseEvent unmarshals an event payload
func ParseEvent(data []byte) (*Event, error) {
	e := &Event{}
	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("unmarshalling event payload: %w", err)
	}
	if e.Type == "" || e.Ref == "" {
		return nil, fmt.Errorf("event payload is missing type or ref")
	}
	return e, nil
}

// NewTagEvent returns a push event for a tag name
func NewTagEvent(tag string) *Event {
	return &Event{Type: "push", Ref: tagRefPrefix + tag}
}

// IsTagPush returns true if the event is a push of a tag ref
func (e *Event) IsTagPush() bool {
	return e.Type == "push" && strings.HasPrefix(e.Ref, tagRefPrefix)
}

// TagName returns the bare tag name of a tag push event
func (e *Event) TagName() string {
	return strings.TrimPrefix(e.Ref, tagRefPrefix)
}

// Trigger is the event filter of a workflow
type Trigger struct {
	Push PushFilter `yaml:"push"`
}

// PushFilter matches pushed refs. Tags holds glob patterns; the
// observed pipeline uses the catch-all "*" and we preserve that
// behavior when no pattern is set.
type PushFilter struct {
	Tags []string `yaml:"tags"`
}

// Matches reports whether an event passes the trigger filter. Only tag
// pushes ever match. A malformed pattern is an error, not a silent
// non-match.
func (t *Trigger) Matches(e *Event) (bool, error) {
	if e == nil || !e.IsTagPush() {
		return false, nil
	}
	patterns := t.Push.Tags
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	tag := e.TagName()
	for _, pattern := range patterns {
		ok, err := path.Match(pattern, tag)
		if err != nil {
			return false, fmt.Errorf("matching tag %q against pattern %q: %w", tag, pattern, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
