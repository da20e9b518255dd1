// Copyright 2023 The Authors (see AUTHORS file)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package messaging mirrors captured events onto a message bus so other
// systems can consume them.
package messaging

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Messenger publishes a single message.
type Messenger interface {
	Send(ctx context.Context, msg []byte, attrs map[string]string) error
}

// PubSubMessenger implements Messenger for a Google Cloud Pub/Sub topic.
type PubSubMessenger struct {
	projectID string
	topicID   string

	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubMessenger creates a new instance of the PubSubMessenger. Each
// publish is bounded by timeout.
func NewPubSubMessenger(ctx context.Context, projectID, topicID string, timeout time.Duration, opts ...option.ClientOption) (*PubSubMessenger, error) {
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create new pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	if timeout > 0 {
		topic.PublishSettings.Timeout = timeout
	}

	return &PubSubMessenger{
		projectID: projectID,
		topicID:   topicID,
		client:    client,
		topic:     topic,
	}, nil
}

// Send publishes a message and waits for the server to acknowledge it.
func (p *PubSubMessenger) Send(ctx context.Context, msg []byte, attrs map[string]string) error {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       msg,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("pubsub: failed to get result: %w", err)
	}
	return nil
}

// Shutdown flushes pending messages and closes the client.
func (p *PubSubMessenger) Shutdown() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close pubsub client: %w", err)
	}
	return nil
}
