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

// Package secrets supplies credential values to the release runner at
// invocation time. Values travel inside a redacting wrapper so that a
// stray log line or %v never leaks them.
package secrets

import (
	"fmt"
	"os"
)

const redacted = "(redacted)"

// Value wraps a secret string. The zero value is empty and prints
// redacted like any other.
type Value struct {
	v string
}

// NewValue wraps a plaintext secret
func NewValue(v string) Value {
	return Value{v: v}
}

// Reveal returns the wrapped plaintext. Call it only at the point the
// value is injected into a process environment.
func (v Value) Reveal() string { return v.v }

// IsEmpty is true when no value is set
func (v Value) IsEmpty() bool { return v.v == "" }

func (v Value) String() string   { return redacted }
func (v Value) GoString() string { return redacted }

// Format keeps every fmt verb from printing the plaintext
func (v Value) Format(f fmt.State, _ rune) {
	fmt.Fprint(f, redacted)
}

// Provider is a read-only source of secret values
type Provider interface {
	Get(name string) (Value, error)
}

// Env reads secrets from the ambient process environment, the way CI
// runners expose their secret stores to jobs.
type Env struct{}

// NewEnv returns an environment backed provider
func NewEnv() *Env {
	return &Env{}
}

// Get looks up a secret by variable name. A missing or empty variable
// is an error: a blank credential would only fail later and further
// from the cause.
func (e *Env) Get(name string) (Value, error) {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return Value{}, fmt.Errorf("secret %s is not set in the environment", name)
	}
	return NewValue(v), nil
}

// Static is a fixed map of secrets for tests
type Static map[string]string

func (s Static) Get(name string) (Value, error) {
	v, ok := s[name]
	if !ok {
		return Value{}, fmt.Errorf("secret %s not found", name)
	}
	return NewValue(v), nil
}
