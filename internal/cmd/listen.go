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
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sigs.k8s.io/metate/pkg/events"
	"sigs.k8s.io/metate/pkg/release"
	"sigs.k8s.io/metate/pkg/workflow"
)

type listenOptions struct {
	Project      string
	Subscription string
}

func addListen(parentCmd *cobra.Command) {
	var opts *pipelineOptions
	listenOpts := listenOptions{}
	listenCmd := &cobra.Command{
		Short: "Run releases for events from a Pub/Sub subscription",
		Long: `metate listen

The listen subcommand subscribes to a Pub/Sub subscription carrying
push event payloads and runs the pipeline for every event that passes
the workflow trigger filter. It blocks until interrupted.

	metate listen --project my-project --subscription tag-pushes \
	    --store gs://my-artifact-bucket

	`,
		Use:               "listen",
		SilenceUsage:      false,
		PersistentPreRunE: initLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			if listenOpts.Project == "" || listenOpts.Subscription == "" {
				return errors.New("both --project and --subscription are required")
			}

			listener, err := events.NewListener(
				cmd.Context(), listenOpts.Project, listenOpts.Subscription,
			)
			if err != nil {
				return fmt.Errorf("creating event listener: %w", err)
			}
			defer listener.Close()

			return listener.Listen(cmd.Context(), func(ctx context.Context, e *workflow.Event) error {
				orchestrator, err := buildOrchestrator(opts)
				if err != nil {
					return err
				}

				r, err := orchestrator.HandleEvent(ctx, e)
				if errors.Is(err, release.ErrNotTriggered) {
					logrus.Infof("Event for %s does not match the workflow trigger, skipping", e.Ref)
					return nil
				}
				if err != nil {
					// The run reached a terminal state, redelivering the
					// event would not change the outcome
					status := "without a run"
					if r != nil {
						status = string(r.Status)
					}
					logrus.Errorf("Run for %s finished %s: %v", e.Ref, status, err)
					return nil
				}
				return writeRunOutputs(cmd, orchestrator, r, opts)
			})
		},
	}

	listenCmd.PersistentFlags().StringVar(
		&listenOpts.Project,
		"project",
		"",
		"google cloud project of the subscription",
	)
	listenCmd.PersistentFlags().StringVar(
		&listenOpts.Subscription,
		"subscription",
		"",
		"pubsub subscription carrying the event payloads",
	)

	opts = addPipelineFlags(listenCmd)
	parentCmd.AddCommand(listenCmd)
}
