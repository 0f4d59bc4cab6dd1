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

package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/workflow"
)

// writeFakeInterpreter drops an executable that reports a python
// style version string
func writeFakeInterpreter(t *testing.T, dir, name, version string) {
	t.Helper()
	script := "#!/bin/sh\necho \"Python " + version + "\"\n"
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, name), []byte(script), os.FileMode(0o755),
	))
}

func TestResolveRuntime(t *testing.T) {
	bin := t.TempDir()
	writeFakeInterpreter(t, bin, "python9.9", "9.9.1")
	writeFakeInterpreter(t, bin, "python9", "9.1.0")
	t.Setenv("PATH", bin)

	impl := &defaultProvisionerImplementation{}

	// The pinned version resolves to the most specific interpreter
	path, err := impl.ResolveRuntime(&Options{
		Runtime: workflow.Runtime{Interpreter: "python", Version: "9.9"},
	})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(bin, "python9.9"), path)

	// A version nothing in PATH satisfies is an error
	_, err = impl.ResolveRuntime(&Options{
		Runtime: workflow.Runtime{Interpreter: "python", Version: "2.4"},
	})
	require.Error(t, err)

	// No runtime requirement, nothing to resolve
	path, err = impl.ResolveRuntime(&Options{})
	require.NoError(t, err)
	require.Empty(t, path)
}

func TestEnsureWorkspace(t *testing.T) {
	impl := &defaultProvisionerImplementation{}

	// A preset workspace must exist
	_, err := impl.EnsureWorkspace(&Options{Workspace: "/does/not/exist"})
	require.Error(t, err)

	dir := t.TempDir()
	ws, err := impl.EnsureWorkspace(&Options{Workspace: dir})
	require.NoError(t, err)
	require.Equal(t, dir, ws)

	// No workspace means a temporary one
	ws, err = impl.EnsureWorkspace(&Options{})
	require.NoError(t, err)
	require.DirExists(t, ws)
	defer os.RemoveAll(ws)
}

func TestProvisionWrapsErrors(t *testing.T) {
	p := New()
	p.Options.Workspace = "/does/not/exist"

	_, err := p.Provision(context.Background(), "v1.0.0")
	require.Error(t, err)

	var provErr *run.ProvisioningError
	require.True(t, errors.As(err, &provErr))
}
