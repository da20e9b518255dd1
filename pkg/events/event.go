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

// Package events captures inbound GitHub webhook deliveries as immutable
// event records.
package events

import (
	"encoding/json"
	"time"
)

// SourceGitHub is the source tag stored on every captured event.
const SourceGitHub = "github"

// Event is one accepted inbound webhook occurrence. Events are written once
// and never updated.
type Event struct {
	ID         string          `json:"id"`
	Source     string          `json:"source"`
	DeliveryID *string         `json:"delivery_id"`
	EventType  string          `json:"event_type"`
	Repository string          `json:"repository"`
	Ref        *string         `json:"ref"`
	Actor      *string         `json:"actor"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RefValue returns the ref or the empty string.
func (e *Event) RefValue() string {
	if e == nil || e.Ref == nil {
		return ""
	}
	return *e.Ref
}

// ActorValue returns the actor or the empty string.
func (e *Event) ActorValue() string {
	if e == nil || e.Actor == nil {
		return ""
	}
	return *e.Actor
}
