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
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sigs.k8s.io/metate/pkg/release"
	"sigs.k8s.io/metate/pkg/workflow"
)

// pipelineOptions are the flags every command that executes a
// workflow shares
type pipelineOptions struct {
	WorkflowPath    string
	Workspace       string
	Repository      string
	Stores          []string
	Timeout         time.Duration
	Verbose         bool
	AttestationPath string
	SLSAVersion     string
	SBOMPath        string
	Sign            bool
}

func addPipelineFlags(command *cobra.Command) *pipelineOptions {
	opts := &pipelineOptions{}
	command.PersistentFlags().StringVarP(
		&opts.WorkflowPath,
		"workflow",
		"w",
		"",
		"path to the workflow definition (default: the built-in python deploy pipeline)",
	)
	command.PersistentFlags().StringVarP(
		&opts.Workspace,
		"workspace",
		"C",
		"",
		"directory holding the source checkout (default: a temporary clone)",
	)
	command.PersistentFlags().StringVar(
		&opts.Repository,
		"repository",
		"",
		"url of the repository to clone at the triggering tag",
	)
	command.PersistentFlags().StringSliceVar(
		&opts.Stores,
		"store",
		[]string{},
		"artifact store urls to push the bundle to (file:// gs:// github:// oci://)",
	)
	command.PersistentFlags().DurationVar(
		&opts.Timeout,
		"timeout",
		0,
		"wall clock cap for the whole run (0 means no cap)",
	)
	command.PersistentFlags().BoolVar(
		&opts.Verbose,
		"verbose",
		false,
		"verbose output (prints commands and output)",
	)
	command.PersistentFlags().StringVar(
		&opts.AttestationPath,
		"attestation",
		"",
		"file to store the provenance attestation (instead of STDOUT)",
	)
	command.PersistentFlags().StringVar(
		&opts.SLSAVersion,
		"slsa-version",
		"0.2",
		"SLSA provenance predicate version to generate (0.2 or 1)",
	)
	command.PersistentFlags().StringVar(
		&opts.SBOMPath,
		"sbom",
		"",
		"file to store an SPDX SBOM of the artifact bundle",
	)
	command.PersistentFlags().BoolVar(
		&opts.Sign,
		"sign",
		false,
		"sign the provenance attestation with sigstore",
	)
	return opts
}

// loadWorkflow reads the workflow definition from the options,
// falling back to the built-in pipeline
func loadWorkflow(opts *pipelineOptions) (*workflow.Workflow, error) {
	if opts.WorkflowPath == "" {
		return workflow.Default(), nil
	}
	return workflow.Load(opts.WorkflowPath)
}

// buildOrchestrator assembles an orchestrator from the common flags
func buildOrchestrator(opts *pipelineOptions) (*release.Orchestrator, error) {
	wf, err := loadWorkflow(opts)
	if err != nil {
		return nil, fmt.Errorf("loading workflow: %w", err)
	}

	orchestrator := release.New(wf)
	orchestrator.Options.Workspace = opts.Workspace
	orchestrator.Options.Repository = opts.Repository
	orchestrator.Options.Timeout = opts.Timeout
	orchestrator.Options.Verbose = opts.Verbose

	for _, specURL := range opts.Stores {
		if err := orchestrator.AddArtifactStore(specURL); err != nil {
			return nil, fmt.Errorf("adding artifact store: %w", err)
		}
	}
	return orchestrator, nil
}
