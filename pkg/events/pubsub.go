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

// Package events receives trigger events from a Pub/Sub subscription
// so the release runner can react to pushes without polling.
package events

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/sirupsen/logrus"

	"sigs.k8s.io/metate/pkg/workflow"
)

// Handler processes one parsed trigger event. A non-nil error makes
// the message redeliver.
type Handler func(context.Context, *workflow.Event) error

type Listener struct {
	Options ListenerOptions
	client  *pubsub.Client
}

type ListenerOptions struct {
	Project      string
	Subscription string
}

func NewListener(ctx context.Context, project, subscription string) (*Listener, error) {
	client, err := pubsub.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &Listener{
		Options: ListenerOptions{
			Project:      project,
			Subscription: subscription,
		},
		client: client,
	}, nil
}

// Listen blocks receiving messages until the context is cancelled.
// Payloads that do not parse as events are dropped, redelivery would
// not make them parse.
func (l *Listener) Listen(ctx context.Context, handle Handler) error {
	sub := l.client.Subscriber(l.Options.Subscription)
	logrus.Infof("Listening for events on subscription %s", l.Options.Subscription)

	err := sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		e, err := workflow.ParseEvent(msg.Data)
		if err != nil {
			logrus.Warnf("Dropping undecodable event payload: %v", err)
			msg.Ack()
			return
		}
		if err := handle(ctx, e); err != nil {
			logrus.Errorf("Handling event for %s: %v", e.Ref, err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("receiving from subscription: %w", err)
	}
	return nil
}

// Close releases the underlying client
func (l *Listener) Close() error {
	return l.client.Close()
}
