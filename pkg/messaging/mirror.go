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

package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/abcxyz/github-notifier/pkg/events"
)

// Message attribute keys.
const (
	AttrEventID    = "event_id"
	AttrEventType  = "event_type"
	AttrRepository = "repository"
	AttrDeliveryID = "delivery_id"
)

// EventMirror publishes stored events as JSON.
type EventMirror struct {
	messenger Messenger
}

// NewEventMirror creates an EventMirror.
func NewEventMirror(m Messenger) *EventMirror {
	return &EventMirror{messenger: m}
}

// Publish sends the event. Routing attributes are copied onto the message so
// subscribers can filter without decoding the body.
func (m *EventMirror) Publish(ctx context.Context, event *events.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	attrs := map[string]string{
		AttrEventID:    event.ID,
		AttrEventType:  event.EventType,
		AttrRepository: event.Repository,
	}
	if event.DeliveryID != nil {
		attrs[AttrDeliveryID] = *event.DeliveryID
	}

	if err := m.messenger.Send(ctx, data, attrs); err != nil {
		return fmt.Errorf("failed to publish event %s: %w", event.ID, err)
	}
	return nil
}
