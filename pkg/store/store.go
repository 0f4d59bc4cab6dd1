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

package store

import (
	"context"
	"fmt"
	"net/url"

	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/store/driver"
	"sigs.k8s.io/metate/pkg/store/snapshot"
)

// Store is a durable destination for the artifact bundle of a run.
// The driver is selected from the spec URL scheme.
type Store struct {
	SpecURL string
	Driver  Implementation
}

// Implementation is the interface the storage drivers satisfy
type Implementation interface {
	Snap() (*snapshot.Snapshot, error)
	Push(ctx context.Context, sourceDir string, artifacts []run.Artifact) error
}

func New(specURL string) (s Store, err error) {
	s = Store{
		SpecURL: specURL,
	}
	u, err := url.Parse(specURL)
	if err != nil {
		return s, fmt.Errorf("parsing storage spec URL %s: %w", specURL, err)
	}
	var impl Implementation
	switch u.Scheme {
	case "file":
		impl, err = driver.NewDirectory(specURL)
		if err != nil {
			return s, fmt.Errorf("creating directory driver: %w", err)
		}
	case "gs":
		impl, err = driver.NewGCS(specURL)
		if err != nil {
			return s, fmt.Errorf("creating GCS driver: %w", err)
		}
	case "github":
		impl, err = driver.NewGithub(specURL)
		if err != nil {
			return s, fmt.Errorf("creating github driver: %w", err)
		}
	case "oci":
		impl, err = driver.NewOCI(specURL)
		if err != nil {
			return s, fmt.Errorf("creating oci driver: %w", err)
		}
	default:
		return s, fmt.Errorf("%s is not a storage URL", specURL)
	}
	s.Driver = impl

	return s, nil
}

// Push uploads the bundle files to the store
func (s *Store) Push(ctx context.Context, sourceDir string, artifacts []run.Artifact) error {
	return s.Driver.Push(ctx, sourceDir, artifacts)
}

// Snap reads the current contents of the store
func (s *Store) Snap() (*snapshot.Snapshot, error) {
	return s.Driver.Snap()
}
