// Copyright 2026 The Authors (see AUTHORS file)
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

package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abcxyz/github-notifier/pkg/events"
	"github.com/abcxyz/github-notifier/pkg/routing"
	"github.com/abcxyz/github-notifier/pkg/transform"
)

// SimulatedResponse is recorded for destinations without an adapter.
const SimulatedResponse = "Simulated OK (no adapter)"

const (
	// DefaultTimeout bounds a single outbound call.
	DefaultTimeout = 10 * time.Second

	mb = 1 << 20
)

// MissingConfigError is returned when a destination lacks a required config
// key. No outbound call is made in that case.
type MissingConfigError struct {
	DestinationID string
	Key           string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("destination %s missing %s in config", e.DestinationID, e.Key)
}

// Result is the outcome of a single send.
type Result struct {
	StatusCode int
	Body       string
}

// Adapter renders events for one destination family and delivers them.
type Adapter interface {
	// Build renders the event into the request payload.
	Build(event *events.Event) (json.RawMessage, error)

	// Send delivers the payload. A non-nil error means no response was
	// received.
	Send(ctx context.Context, dest *routing.Destination, payload json.RawMessage) (*Result, error)
}

// Registry resolves adapters by destination type. Unknown types resolve to
// the fallback.
type Registry struct {
	adapters map[routing.DestinationType]Adapter
	fallback Adapter
}

// NewRegistry creates a registry with the given fallback adapter.
func NewRegistry(fallback Adapter) *Registry {
	return &Registry{
		adapters: make(map[routing.DestinationType]Adapter),
		fallback: fallback,
	}
}

// NewDefaultRegistry registers the chat webhook adapters backed by client
// and a simulated fallback.
func NewDefaultRegistry(client *http.Client) *Registry {
	r := NewRegistry(&SimulatedAdapter{})
	r.Register(routing.DestinationDiscordWebhook, NewWebhookAdapter(client, embedBuilder))
	r.Register(routing.DestinationSlackWebhook, NewWebhookAdapter(client, markdownBuilder))
	return r
}

// Register binds an adapter to a destination type.
func (r *Registry) Register(t routing.DestinationType, a Adapter) {
	r.adapters[t] = a
}

// Lookup returns the adapter for t.
func (r *Registry) Lookup(t routing.DestinationType) Adapter {
	if a, ok := r.adapters[t]; ok {
		return a
	}
	return r.fallback
}

// BuildFunc renders an event into a JSON-encodable message.
type BuildFunc func(event *events.Event) any

func embedBuilder(event *events.Event) any {
	return transform.BuildEmbed(event)
}

func markdownBuilder(event *events.Event) any {
	return transform.BuildMarkdown(event)
}

// WebhookAdapter POSTs JSON to the destination's webhook URL.
type WebhookAdapter struct {
	client *http.Client
	build  BuildFunc
}

// NewWebhookAdapter creates a WebhookAdapter. A nil client gets one with
// DefaultTimeout.
func NewWebhookAdapter(client *http.Client, build BuildFunc) *WebhookAdapter {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &WebhookAdapter{client: client, build: build}
}

func (a *WebhookAdapter) Build(event *events.Event) (json.RawMessage, error) {
	return transform.Encode(a.build(event))
}

func (a *WebhookAdapter) Send(ctx context.Context, dest *routing.Destination, payload json.RawMessage) (*Result, error) {
	url, ok := dest.WebhookURL()
	if !ok {
		return nil, &MissingConfigError{DestinationID: dest.ID, Key: routing.ConfigWebhookURL}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*mb))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Result{StatusCode: resp.StatusCode, Body: string(body)}, nil
}

// SimulatedAdapter accepts every event without making a call.
type SimulatedAdapter struct{}

func (a *SimulatedAdapter) Build(event *events.Event) (json.RawMessage, error) {
	return transform.Encode(transform.BuildEmbed(event))
}

func (a *SimulatedAdapter) Send(ctx context.Context, dest *routing.Destination, payload json.RawMessage) (*Result, error) {
	return &Result{StatusCode: http.StatusOK, Body: SimulatedResponse}, nil
}
