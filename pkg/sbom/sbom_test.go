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

package sbom

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sigs.k8s.io/metate/pkg/run"
)

const testDigest = "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"

const testSPDXDoc = `{
  "spdxVersion": "SPDX-2.3",
  "dataLicense": "CC0-1.0",
  "SPDXID": "SPDXRef-DOCUMENT",
  "name": "artifacts",
  "documentNamespace": "https://sigs.k8s.io/metate/test",
  "creationInfo": {
    "created": "2025-01-01T00:00:00Z",
    "creators": ["Tool: metate"]
  },
  "packages": [
    {
      "name": "qiskit-experiments-1.0.0.tar.gz",
      "SPDXID": "SPDXRef-Package-sdist",
      "downloadLocation": "NOASSERTION",
      "checksums": [
        {
          "algorithm": "SHA256",
          "checksumValue": "` + testDigest + `"
        }
      ]
    },
    {
      "name": "no-checksum-entry",
      "SPDXID": "SPDXRef-Package-empty",
      "downloadLocation": "NOASSERTION"
    }
  ]
}`

func writeTestSBOM(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "artifacts.spdx.json")
	require.NoError(t, os.WriteFile(path, []byte(testSPDXDoc), os.FileMode(0o644)))
	return path
}

func TestReadArtifacts(t *testing.T) {
	artifacts, err := NewParser().ReadArtifacts(writeTestSBOM(t))
	require.NoError(t, err)

	// The entry without checksums is dropped
	require.Len(t, artifacts, 1)
	require.Equal(t, "qiskit-experiments-1.0.0.tar.gz", artifacts[0].Path)
	require.Equal(t, testDigest, artifacts[0].Checksum["SHA256"])
}

func TestVerifyBundle(t *testing.T) {
	path := writeTestSBOM(t)
	parser := NewParser()

	// Matching bundle
	require.NoError(t, parser.VerifyBundle(path, []run.Artifact{
		{
			Path:     "qiskit-experiments-1.0.0.tar.gz",
			Checksum: map[string]string{"SHA256": testDigest},
		},
	}))

	// Artifact missing from the document
	err := parser.VerifyBundle(path, []run.Artifact{
		{
			Path:     "qiskit_experiments-1.0.0-py3-none-any.whl",
			Checksum: map[string]string{"SHA256": testDigest},
		},
	})
	require.Error(t, err)

	// Checksum mismatch
	err = parser.VerifyBundle(path, []run.Artifact{
		{
			Path:     "qiskit-experiments-1.0.0.tar.gz",
			Checksum: map[string]string{"SHA256": "0000000000000000000000000000000000000000000000000000000000000000"},
		},
	})
	require.Error(t, err)

	// No common algorithm
	err = parser.VerifyBundle(path, []run.Artifact{
		{
			Path:     "qiskit-experiments-1.0.0.tar.gz",
			Checksum: map[string]string{"SHA512": testDigest},
		},
	})
	require.Error(t, err)
}

func TestWriteBundleEmpty(t *testing.T) {
	w := NewWriter()
	err := w.WriteBundle([]run.Artifact{}, filepath.Join(t.TempDir(), "out.spdx"))
	require.Error(t, err)
}
