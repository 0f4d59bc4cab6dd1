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

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"chainguard.dev/apko/pkg/vcs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sigs.k8s.io/metate/pkg/attestation"
	"sigs.k8s.io/metate/pkg/git"
	"sigs.k8s.io/metate/pkg/release"
	"sigs.k8s.io/metate/pkg/run"
	"sigs.k8s.io/metate/pkg/sbom"
	"sigs.k8s.io/metate/pkg/workflow"
)

func addRelease(parentCmd *cobra.Command) {
	var opts *pipelineOptions
	releaseCmd := &cobra.Command{
		Short: "Run the release pipeline for a tag",
		Long: `metate release [tag]

The release subcommand runs the full pipeline for a tag as if the
push event for it had just arrived: provision the source at the tag,
execute the build steps, upload the artifact bundle to the configured
stores and publish the distribution files to the package index.

When the run succeeds, metate writes the provenance attestation of
the published artifacts and, if requested, an SPDX SBOM of the
bundle.

	`,
		Use:               "release",
		SilenceUsage:      false,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("no tag specified")
			}
			orchestrator, err := buildOrchestrator(opts)
			if err != nil {
				return err
			}

			r, err := orchestrator.HandleEvent(
				cmd.Context(), workflow.NewTagEvent(args[0]),
			)
			if err != nil {
				return fmt.Errorf("running release: %w", err)
			}
			return writeRunOutputs(cmd, orchestrator, r, opts)
		},
	}

	opts = addPipelineFlags(releaseCmd)
	parentCmd.AddCommand(releaseCmd)
}

// writeRunOutputs emits the provenance attestation and SBOM of a
// finished run
func writeRunOutputs(
	cmd *cobra.Command, orchestrator *release.Orchestrator, r *run.Run, opts *pipelineOptions,
) error {
	env := orchestrator.Environment()
	if env == nil {
		return nil
	}

	sourceURL, sourceDigest := sourceData(env.SourceURL, env.Workspace)
	var att *attestation.Attestation
	switch opts.SLSAVersion {
	case "", "0.2":
		att = attestation.NewFromRun(r, sourceURL, sourceDigest)
	case "1", "1.0":
		att = attestation.NewFromRunV1(r, sourceURL, sourceDigest)
	default:
		return fmt.Errorf("invalid slsa version %q (must be 0.2 or 1)", opts.SLSAVersion)
	}

	if opts.Sign {
		payload, err := att.Sign(cmd.Context(), attestation.SignOptions{})
		if err != nil {
			return fmt.Errorf("signing attestation: %w", err)
		}
		if err := writeOutput(opts.AttestationPath, payload); err != nil {
			return err
		}
	} else {
		data, err := att.ToJSON()
		if err != nil {
			return fmt.Errorf("serializing attestation json: %w", err)
		}
		if err := writeOutput(opts.AttestationPath, data); err != nil {
			return err
		}
	}

	if opts.SBOMPath != "" && len(r.Artifacts) > 0 {
		writer := sbom.NewWriter()
		writer.Options.CWD = filepath.Join(
			env.Workspace, orchestrator.Workflow.Artifacts.Directory,
		)
		writer.Options.Name = orchestrator.Workflow.Artifacts.Bundle
		if err := writer.WriteBundle(r.Artifacts, opts.SBOMPath); err != nil {
			return fmt.Errorf("writing SBOM: %w", err)
		}
	}
	return nil
}

// sourceData resolves the source URI and commit digest for the
// provenance materials. The checkout remote wins, a VCS probe of the
// workspace covers checkouts without one.
func sourceData(sourceURL, workspace string) (uri, digest string) {
	uri = sourceURL
	if uri == "" {
		probed, err := vcs.ProbeDirForVCSUrl(workspace, workspace)
		if err != nil {
			logrus.Debugf("Probing workspace VCS URL: %v", err)
		}
		uri = probed
	}
	if repoURL, repoDigest, ok := strings.Cut(uri, "@"); ok && !strings.HasPrefix(uri, "git@") {
		return repoURL, repoDigest
	}

	head, err := git.NewRepository(workspace).HeadCommit()
	if err != nil {
		logrus.Debugf("Reading workspace head commit: %v", err)
		return uri, ""
	}
	return uri, head
}

// writeOutput dumps data to a file or stdout when no path is set
func writeOutput(path string, data []byte) error {
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(path, data, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}
