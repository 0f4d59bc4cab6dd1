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
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/crane"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/static"
	"github.com/google/go-containerregistry/pkg/v1/types"

	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/store/snapshot"
)

const bundleLayerMediaType types.MediaType = "application/vnd.metate.bundle.layer.v1.tar"

// OCI stores the artifact bundle as an image in a container registry,
// tagged with the bundle tag from the spec URL.
type OCI struct {
	Repository string
	Image      string
	Tag        string
}

func NewOCI(specURL string) (*OCI, error) {
	u, err := url.Parse(specURL)
	if err != nil {
		return nil, fmt.Errorf("parsing SpecURL %s: %w", specURL, err)
	}
	if u.Path == "" {
		return nil, errors.New("spec url is not well formed")
	}
	oci := &OCI{}
	imageRef := u.Path
	if name, tag, ok := strings.Cut(imageRef, ":"); ok {
		imageRef = name
		oci.Tag = tag
	}
	parts := strings.Split(imageRef, "/")
	oci.Image = parts[len(parts)-1]
	oci.Repository = u.Hostname()
	if len(parts) > 1 {
		oci.Repository += strings.Join(parts[0:len(parts)-1], "/")
	}
	return oci, nil
}

func (oci *OCI) reference() string {
	ref := oci.Repository + "/" + oci.Image
	if oci.Tag != "" {
		ref += ":" + oci.Tag
	}
	return ref
}

// Push bundles the artifacts into a single layer image and pushes it
// to the registry
func (oci *OCI) Push(ctx context.Context, sourceDir string, artifacts []run.Artifact) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, artifact := range artifacts {
		data, err := os.ReadFile(filepath.Join(sourceDir, artifact.Path))
		if err != nil {
			return fmt.Errorf("reading bundle file: %w", err)
		}
		if err := tw.WriteHeader(&tar.Header{
			Name:    artifact.Path,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: artifact.Time,
		}); err != nil {
			return fmt.Errorf("writing tar header for %s: %w", artifact.Path, err)
		}
		if _, err := tw.Write(data); err != nil {
			return fmt.Errorf("archiving %s: %w", artifact.Path, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing bundle archive: %w", err)
	}

	img, err := mutate.AppendLayers(
		empty.Image, static.NewLayer(buf.Bytes(), bundleLayerMediaType),
	)
	if err != nil {
		return fmt.Errorf("appending bundle layer: %w", err)
	}

	if err := crane.Push(
		img, oci.reference(),
		crane.WithAuthFromKeychain(authn.DefaultKeychain),
		crane.WithContext(ctx),
	); err != nil {
		return fmt.Errorf("pushing bundle image to %s: %w", oci.reference(), err)
	}
	return nil
}

// Snap lists the tags pushed to the bundle image
func (oci *OCI) Snap() (*snapshot.Snapshot, error) {
	tags, err := crane.ListTags(
		oci.Repository+"/"+oci.Image, crane.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return nil, fmt.Errorf("fetching tags from registry: %w", err)
	}
	snap := &snapshot.Snapshot{}
	for _, t := range tags {
		(*snap)["oci://"+t] = run.Artifact{
			Path:     "oci://" + oci.Repository + "/" + oci.Image + ":" + t,
			Checksum: map[string]string{},
			Time:     time.Time{},
		}
	}
	return snap, nil
}
