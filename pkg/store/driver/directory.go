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
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/release-utils/hash"

	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/store/snapshot"
)

func NewDirectory(specURL string) (*Directory, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}
	return &Directory{
		Path: u.Path,
	}, nil
}

// Directory is an artifact store backed by a local filesystem path
type Directory struct {
	Path string
}

// Snap takes a snapshot of the directory
func (d *Directory) Snap() (*snapshot.Snapshot, error) {
	if d.Path == "" {
		return nil, errors.New("directory store has no path defined")
	}

	snap := snapshot.Snapshot{}

	// Walk the files in the directory
	if err := filepath.Walk(d.Path,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}

			// Hash the file
			sha, err := hash.SHA256ForFile(path)
			if err != nil {
				return fmt.Errorf("hashing %s: %w", path, err)
			}

			// Normalize the path....
			path, err = filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("normalizing path %s: %w", path, err)
			}

			// .. and trim the store root to make it relative
			path = strings.TrimPrefix(path, d.Path+"/")

			// Register the file with the path normalized
			snap[path] = run.Artifact{
				Path:     path,
				Checksum: map[string]string{"SHA256": sha},
				Time:     info.ModTime(),
			}
			return nil
		}); err != nil {
		return nil, fmt.Errorf("walking directory: %w", err)
	}

	return &snap, nil
}

// Push copies the bundle files from sourceDir into the store
func (d *Directory) Push(ctx context.Context, sourceDir string, artifacts []run.Artifact) error {
	if d.Path == "" {
		return errors.New("directory store has no path defined")
	}
	if err := os.MkdirAll(d.Path, os.FileMode(0o755)); err != nil {
		return fmt.Errorf("creating store directory: %w", err)
	}
	for _, artifact := range artifacts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pushing bundle to directory store: %w", err)
		}
		if err := copyFile(
			filepath.Join(sourceDir, artifact.Path),
			filepath.Join(d.Path, artifact.Path),
		); err != nil {
			return fmt.Errorf("copying %s to store: %w", artifact.Path, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), os.FileMode(0o755)); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source file: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("creating destination file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
