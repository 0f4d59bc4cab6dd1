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
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	gopath "path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/store/snapshot"
)

func NewGCS(specURL string) (*GCS, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}

	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}

	logrus.Infof("GCS driver init: Bucket: %s Path: %s", u.Hostname(), u.Path)
	return &GCS{
		Bucket: u.Hostname(),
		Path:   u.Path,
		client: client,
	}, nil
}

// GCS is an artifact store backed by a Google Cloud Storage bucket
type GCS struct {
	Bucket string
	Path   string
	client *storage.Client
}

// objectName returns the bucket object name for a bundle file
func (gcs *GCS) objectName(artifactPath string) string {
	return strings.TrimPrefix(gopath.Join(gcs.Path, artifactPath), "/")
}

// Push uploads the bundle files to the bucket, fanning the uploads out
// in parallel
func (gcs *GCS) Push(ctx context.Context, sourceDir string, artifacts []run.Artifact) error {
	var wg errgroup.Group
	for _, artifact := range artifacts {
		artifact := artifact
		wg.Go(func() error {
			if err := gcs.uploadFile(
				ctx, filepath.Join(sourceDir, artifact.Path), gcs.objectName(artifact.Path),
			); err != nil {
				return fmt.Errorf("uploading %s: %w", artifact.Path, err)
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return fmt.Errorf("uploading bundle to gs://%s: %w", gcs.Bucket, err)
	}
	return nil
}

func (gcs *GCS) uploadFile(ctx context.Context, localPath, objectName string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening local file: %w", err)
	}
	defer f.Close()

	logrus.WithField("driver", "gcs").Debugf("Uploading %s to %s", localPath, objectName)
	w := gcs.client.Bucket(gcs.Bucket).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("writing object data: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing object writer: %w", err)
	}
	return nil
}

// Snap lists the objects under the store prefix
func (gcs *GCS) Snap() (*snapshot.Snapshot, error) {
	ctx := context.Background()
	snap := snapshot.Snapshot{}

	it := gcs.client.Bucket(gcs.Bucket).Objects(ctx, &storage.Query{
		Prefix: strings.TrimPrefix(gcs.Path, "/"),
	})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			logrus.WithField("driver", "gcs").Debugf("Done listing %s", gcs.Bucket)
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating bucket objects: %w", err)
		}
		// Zero length names are prefix markers
		if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") {
			continue
		}

		path := strings.TrimPrefix(strings.TrimPrefix(attrs.Name, strings.TrimPrefix(gcs.Path, "/")), "/")
		snap[path] = run.Artifact{
			Path:     path,
			Checksum: map[string]string{"MD5": hex.EncodeToString(attrs.MD5)},
			Time:     attrs.Updated,
		}
	}
	return &snap, nil
}
