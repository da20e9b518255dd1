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

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/abcxyz/pkg/logging"
)

const unknown = "unknown"

// ErrInvalidPayload is returned when the webhook body is not valid JSON.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// Writer persists events.
type Writer interface {
	// CreateEvent stores the event and assigns its ID and CreatedAt.
	CreateEvent(ctx context.Context, event *Event) error
}

// Input is a verified inbound delivery.
type Input struct {
	EventType  string
	DeliveryID string
	Body       []byte
}

// Capturer turns verified webhook bodies into stored events.
type Capturer struct {
	writer Writer
}

// NewCapturer creates a Capturer backed by the given writer.
func NewCapturer(w Writer) *Capturer {
	return &Capturer{writer: w}
}

// Capture parses the body, stores the resulting event and returns it. A body
// that does not parse is rejected before anything is written.
func (c *Capturer) Capture(ctx context.Context, in *Input) (*Event, error) {
	logger := logging.FromContext(ctx)

	event, err := Normalize(in)
	if err != nil {
		return nil, err
	}

	if err := c.writer.CreateEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to store event: %w", err)
	}

	logger.InfoContext(ctx, "stored github event",
		"event_id", event.ID,
		"event_type", event.EventType,
		"repository", event.Repository,
		"ref", event.RefValue())

	return event, nil
}

// Normalize parses the raw body and extracts the routing attributes. The
// returned event has no ID or CreatedAt yet.
func Normalize(in *Input) (*Event, error) {
	var doc any
	if err := json.Unmarshal(in.Body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	payload, _ := doc.(map[string]any)

	event := &Event{
		Source:     SourceGitHub,
		EventType:  in.EventType,
		Repository: repositoryName(payload),
		Payload:    json.RawMessage(append([]byte(nil), in.Body...)),
	}
	if in.DeliveryID != "" {
		id := in.DeliveryID
		event.DeliveryID = &id
	}
	if ref, ok := lookupString(payload, "ref"); ok {
		event.Ref = &ref
	}
	if actor, ok := lookupString(payload, "pusher", "name"); ok {
		event.Actor = &actor
	} else if actor, ok := lookupString(payload, "sender", "login"); ok {
		event.Actor = &actor
	}
	return event, nil
}

// repositoryName prefers repository.full_name and otherwise assembles
// owner/name, substituting "unknown" for missing parts.
func repositoryName(payload map[string]any) string {
	if name, ok := lookupString(payload, "repository", "full_name"); ok {
		return name
	}
	owner, ok := lookupString(payload, "repository", "owner", "login")
	if !ok {
		owner = unknown
	}
	name, ok := lookupString(payload, "repository", "name")
	if !ok {
		name = unknown
	}
	return owner + "/" + name
}

// lookupString walks nested objects and returns the string at the end of the
// path.
func lookupString(m map[string]any, path ...string) (string, bool) {
	var cur any = m
	for _, key := range path {
		obj, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		if cur, ok = obj[key]; !ok {
			return "", false
		}
	}
	s, ok := cur.(string)
	return s, ok
}
