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

// Package registry publishes built distributions to a package index
// by driving the twine upload client.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"sigs.k8s.io/release-utils/command"

	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/secrets"
)

const (
	usernameVar = "TWINE_USERNAME"
	passwordVar = "TWINE_PASSWORD" //nolint:gosec // variable name, not a credential
)

// Credentials authenticate the upload. The password value only leaves
// its wrapper when it enters the twine process environment.
type Credentials struct {
	Username string
	Password secrets.Value
}

type Options struct {
	// WorkDir is the directory the file glob resolves against
	WorkDir string

	// Executable is the upload client binary
	Executable string

	// RepositoryURL overrides the default package index
	RepositoryURL string
}

var defaultOptions = Options{
	Executable: "twine",
}

func NewTwine() *Twine {
	return &Twine{
		Options: defaultOptions,
	}
}

// Twine wraps the python package index upload client
type Twine struct {
	Options Options
}

// registryName is the label used in errors and logs
func (t *Twine) registryName() string {
	if t.Options.RepositoryURL != "" {
		return t.Options.RepositoryURL
	}
	return "pypi"
}

// Upload publishes every file matching the glob. Missing credentials
// and index rejections surface as run.AuthenticationError, the files
// already uploaded to the artifact stores stay where they are.
func (t *Twine) Upload(ctx context.Context, fileGlob string, creds Credentials) error {
	if creds.Username == "" || creds.Password.IsEmpty() {
		return &run.AuthenticationError{Registry: t.registryName()}
	}

	files, err := filepath.Glob(filepath.Join(t.Options.WorkDir, fileGlob))
	if err != nil {
		return fmt.Errorf("globbing distribution files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no distribution files match %s", fileGlob)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", t.registryName(), err)
	}

	args := []string{"upload"}
	if t.Options.RepositoryURL != "" {
		args = append(args, "--repository-url", t.Options.RepositoryURL)
	}
	args = append(args, files...)

	logrus.Infof("Publishing %d distribution files to %s", len(files), t.registryName())
	cmd := command.NewWithWorkDir(t.Options.WorkDir, t.Options.Executable, args...).Env(
		append(
			os.Environ(),
			usernameVar+"="+creds.Username,
			passwordVar+"="+creds.Password.Reveal(),
		)...,
	)

	output, err := cmd.RunSilentSuccessOutput()
	if err != nil {
		if isAuthFailure(err, output) {
			return &run.AuthenticationError{Registry: t.registryName(), Err: err}
		}
		return fmt.Errorf("running upload client: %w", err)
	}
	return nil
}

// isAuthFailure sniffs a credential rejection out of the upload
// client output
func isAuthFailure(err error, output *command.Stream) bool {
	text := err.Error()
	if output != nil {
		text += " " + output.Output() + " " + output.Error()
	}
	text = strings.ToLower(text)
	for _, marker := range []string{
		"401", "403", "unauthorized", "forbidden", "authentication",
		"invalid or non-existent authentication",
	} {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
