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

package driver

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/metate/pkg/run"
)

func TestDirectoryPushAndSnap(t *testing.T) {
	source := t.TempDir()
	storeDir := t.TempDir()

	require.NoError(t, os.WriteFile(
		filepath.Join(source, "qiskit-1.0.0.tar.gz"), []byte("sdist"), os.FileMode(0o644),
	))
	require.NoError(t, os.WriteFile(
		filepath.Join(source, "qiskit-1.0.0-py3-none-any.whl"), []byte("wheel"), os.FileMode(0o644),
	))

	d, err := NewDirectory("file://" + storeDir)
	require.NoError(t, err)
	require.Equal(t, storeDir, d.Path)

	artifacts := []run.Artifact{
		{Path: "qiskit-1.0.0.tar.gz"},
		{Path: "qiskit-1.0.0-py3-none-any.whl"},
	}
	require.NoError(t, d.Push(context.Background(), source, artifacts))

	// The bundle must be retrievable from the store afterwards
	snap, err := d.Snap()
	require.NoError(t, err)
	require.Len(t, *snap, 2)
	require.True(t, snap.Has("qiskit-1.0.0.tar.gz"))
	require.True(t, snap.Has("qiskit-1.0.0-py3-none-any.whl"))
	require.NotEmpty(t, (*snap)["qiskit-1.0.0.tar.gz"].Checksum["SHA256"])
}

func TestDirectoryPushMissingSource(t *testing.T) {
	d := &Directory{Path: t.TempDir()}
	err := d.Push(context.Background(), t.TempDir(), []run.Artifact{{Path: "not-there.tar.gz"}})
	require.Error(t, err)
}

func TestDirectorySnapEmptyPath(t *testing.T) {
	d := &Directory{}
	_, err := d.Snap()
	require.Error(t, err)
}
