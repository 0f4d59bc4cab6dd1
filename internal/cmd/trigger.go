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
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sigs.k8s.io/metate/pkg/github"
	"sigs.k8s.io/metate/pkg/release"
	"sigs.k8s.io/metate/pkg/workflow"
)

type triggerOptions struct {
	EventPath  string
	VerifyRepo string
}

func addTrigger(parentCmd *cobra.Command) {
	var opts *pipelineOptions
	triggerOpts := triggerOptions{}
	triggerCmd := &cobra.Command{
		Short: "Handle a trigger event payload",
		Long: `metate trigger

The trigger subcommand reads a push event payload, checks it against
the workflow trigger filter and, when it matches, runs the pipeline.
Events that do not match are reported and dropped without error, the
way a CI system quietly skips workflows whose filters do not apply.

The payload is read from the file passed with --event or from STDIN:

	cat event.json | metate trigger --store file:///var/artifacts

	`,
		Use:               "trigger",
		SilenceUsage:      false,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := readEvent(triggerOpts.EventPath)
			if err != nil {
				return err
			}

			if triggerOpts.VerifyRepo != "" && event.IsTagPush() {
				if err := verifyEventTag(cmd, triggerOpts.VerifyRepo, event); err != nil {
					return err
				}
			}

			orchestrator, err := buildOrchestrator(opts)
			if err != nil {
				return err
			}

			r, err := orchestrator.HandleEvent(cmd.Context(), event)
			if errors.Is(err, release.ErrNotTriggered) {
				logrus.Infof("Event for %s does not match the workflow trigger, skipping", event.Ref)
				return nil
			}
			if err != nil {
				return fmt.Errorf("running release: %w", err)
			}
			return writeRunOutputs(cmd, orchestrator, r, opts)
		},
	}

	triggerCmd.PersistentFlags().StringVar(
		&triggerOpts.EventPath,
		"event",
		"",
		"file holding the event payload (default: STDIN)",
	)
	triggerCmd.PersistentFlags().StringVar(
		&triggerOpts.VerifyRepo,
		"verify-repo",
		"",
		"owner/name of the GitHub repository to verify the pushed tag against",
	)

	opts = addPipelineFlags(triggerCmd)
	parentCmd.AddCommand(triggerCmd)
}

// readEvent loads the event payload from a file or stdin
func readEvent(path string) (*workflow.Event, error) {
	var data []byte
	var err error
	if path == "" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading event payload: %w", err)
	}
	return workflow.ParseEvent(data)
}

// verifyEventTag checks the pushed tag exists in the upstream repo
// before anything builds from it
func verifyEventTag(cmd *cobra.Command, ownerRepo string, event *workflow.Event) error {
	owner, repo, found := strings.Cut(ownerRepo, "/")
	if !found {
		return fmt.Errorf("%s is not an owner/name repository slug", ownerRepo)
	}
	ref, err := github.VerifyTag(cmd.Context(), owner, repo, event.TagName())
	if err != nil {
		return fmt.Errorf("verifying tag: %w", err)
	}
	logrus.Infof("Tag %s verified, points at %s", event.TagName(), ref.Object.SHA)
	return nil
}
