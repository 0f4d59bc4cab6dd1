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

// Package sbom writes an SPDX bill of materials for the artifact
// bundle of a run and checks existing documents against a bundle.
package sbom

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/protobom/protobom/pkg/reader"
	protosbom "github.com/protobom/protobom/pkg/sbom"
	"github.com/sirupsen/logrus"
	"sigs.k8s.io/bom/pkg/spdx"

	"sigs.k8s.io/metate/pkg/run"
)

const defaultNamespace = "https://sigs.k8s.io/metate"

type Writer struct {
	Options WriterOptions
}

type WriterOptions struct {
	// CWD is the directory the artifact paths are relative to
	CWD string

	// Name labels the SPDX document
	Name string

	// Namespace is the SPDX document namespace URI
	Namespace string
}

func NewWriter() *Writer {
	return &Writer{
		Options: WriterOptions{
			Name:      "artifacts",
			Namespace: defaultNamespace,
		},
	}
}

// WriteBundle generates an SPDX document describing the bundle files
// and writes it to path
func (w *Writer) WriteBundle(artifacts []run.Artifact, path string) error {
	if len(artifacts) == 0 {
		return fmt.Errorf("bundle has no artifacts to describe")
	}

	files := []string{}
	for _, artifact := range artifacts {
		files = append(files, filepath.Join(w.Options.CWD, artifact.Path))
	}

	builder := spdx.NewDocBuilder()
	doc, err := builder.Generate(&spdx.DocGenerateOptions{
		Name:      w.Options.Name,
		Namespace: w.Options.Namespace,
		Files:     files,
	})
	if err != nil {
		return fmt.Errorf("generating SPDX document: %w", err)
	}

	markup, err := doc.Render()
	if err != nil {
		return fmt.Errorf("rendering SPDX document: %w", err)
	}
	if err := os.WriteFile(path, []byte(markup), os.FileMode(0o644)); err != nil {
		return fmt.Errorf("writing SPDX document: %w", err)
	}
	logrus.Infof("Wrote SBOM with %d files to %s", len(files), path)
	return nil
}

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// ReadArtifacts parses an SBOM and returns the artifacts it describes.
// Entries without checksums are skipped, a bundle check against them
// would prove nothing.
func (p *Parser) ReadArtifacts(path string) ([]run.Artifact, error) {
	doc, err := reader.New().ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("parsing SBOM: %w", err)
	}

	list := []run.Artifact{}
	for _, node := range doc.GetNodeList().GetNodes() {
		identifier := node.GetName()
		if identifier == "" {
			identifier = string(node.Purl())
		}
		if len(node.GetHashes()) == 0 {
			logrus.Warnf("SBOM entry %s has no checksum", identifier)
			continue
		}

		artifact := run.Artifact{
			Path:     identifier,
			Checksum: map[string]string{},
		}
		for algoID, value := range node.GetHashes() {
			artifact.Checksum[protosbom.HashAlgorithm(algoID).String()] = value
		}
		list = append(list, artifact)
	}
	return list, nil
}

// VerifyBundle checks that every bundle artifact appears in the SBOM
// with a matching checksum
func (p *Parser) VerifyBundle(path string, artifacts []run.Artifact) error {
	described, err := p.ReadArtifacts(path)
	if err != nil {
		return err
	}

	indexed := map[string]run.Artifact{}
	for _, artifact := range described {
		indexed[filepath.Base(artifact.Path)] = artifact
	}

	for _, artifact := range artifacts {
		documented, ok := indexed[filepath.Base(artifact.Path)]
		if !ok {
			return fmt.Errorf("artifact %s is not described in the SBOM", artifact.Path)
		}
		if err := matchChecksums(artifact, documented); err != nil {
			return err
		}
	}
	return nil
}

// matchChecksums compares the hashes two artifact records share. At
// least one common algorithm is required.
func matchChecksums(artifact, documented run.Artifact) error {
	compared := 0
	for algo, value := range artifact.Checksum {
		documentedValue, ok := documented.Checksum[strings.ToUpper(algo)]
		if !ok {
			if documentedValue, ok = documented.Checksum[algo]; !ok {
				continue
			}
		}
		compared++
		if !strings.EqualFold(value, documentedValue) {
			return fmt.Errorf(
				"%s checksum of %s does not match the SBOM", algo, artifact.Path,
			)
		}
	}
	if compared == 0 {
		return fmt.Errorf(
			"artifact %s shares no checksum algorithm with the SBOM", artifact.Path,
		)
	}
	return nil
}
