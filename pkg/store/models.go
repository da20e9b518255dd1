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

package store

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"

	"github.com/abcxyz/github-notifier/pkg/dispatch"
	"github.com/abcxyz/github-notifier/pkg/events"
	"github.com/abcxyz/github-notifier/pkg/routing"
)

type eventRecord struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID         string    `bun:"id,pk"`
	Source     string    `bun:"source,notnull"`
	DeliveryID *string   `bun:"delivery_id"`
	EventType  string    `bun:"event_type,notnull"`
	Repository string    `bun:"repository,notnull"`
	Ref        *string   `bun:"ref"`
	Actor      *string   `bun:"actor"`
	Payload    string    `bun:"payload,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

type destinationRecord struct {
	bun.BaseModel `bun:"table:destinations,alias:dst"`

	ID        string         `bun:"id,pk"`
	Type      string         `bun:"type,notnull"`
	Name      string         `bun:"name,notnull"`
	Config    map[string]any `bun:"config,type:jsonb,notnull"`
	Enabled   bool           `bun:"enabled,notnull"`
	CreatedAt time.Time      `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time      `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type ruleRecord struct {
	bun.BaseModel `bun:"table:routing_rules,alias:rr"`

	ID            string             `bun:"id,pk"`
	Repository    *string            `bun:"repository"`
	Ref           *string            `bun:"ref"`
	EventType     *string            `bun:"event_type"`
	Enabled       bool               `bun:"enabled,notnull"`
	DestinationID string             `bun:"destination_id,notnull"`
	Destination   *destinationRecord `bun:"rel:belongs-to,join:destination_id=id"`
	CreatedAt     time.Time          `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time          `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryRecord struct {
	bun.BaseModel `bun:"table:deliveries,alias:d"`

	ID             string    `bun:"id,pk"`
	EventID        string    `bun:"event_id,notnull"`
	DestinationID  string    `bun:"destination_id,notnull"`
	Status         string    `bun:"status,notnull"`
	ResponseCode   *int      `bun:"response_code"`
	ErrorMessage   *string   `bun:"error_message"`
	RequestPayload *string   `bun:"request_payload"`
	ResponseBody   *string   `bun:"response_body"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func eventToDomain(r *eventRecord) *events.Event {
	return &events.Event{
		ID:         r.ID,
		Source:     r.Source,
		DeliveryID: r.DeliveryID,
		EventType:  r.EventType,
		Repository: r.Repository,
		Ref:        r.Ref,
		Actor:      r.Actor,
		Payload:    json.RawMessage(r.Payload),
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func destinationToDomain(r *destinationRecord) *routing.Destination {
	if r == nil {
		return nil
	}
	return &routing.Destination{
		ID:      r.ID,
		Type:    routing.DestinationType(r.Type),
		Name:    r.Name,
		Config:  r.Config,
		Enabled: r.Enabled,
	}
}

func ruleToDomain(r *ruleRecord) *routing.Rule {
	return &routing.Rule{
		ID:          r.ID,
		Repository:  r.Repository,
		Ref:         r.Ref,
		EventType:   r.EventType,
		Enabled:     r.Enabled,
		Destination: destinationToDomain(r.Destination),
	}
}

func deliveryToDomain(r *deliveryRecord) *dispatch.Delivery {
	d := &dispatch.Delivery{
		ID:            r.ID,
		EventID:       r.EventID,
		DestinationID: r.DestinationID,
		Status:        dispatch.Status(r.Status),
		ResponseCode:  r.ResponseCode,
		ErrorMessage:  r.ErrorMessage,
		ResponseBody:  r.ResponseBody,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if r.RequestPayload != nil {
		d.RequestPayload = json.RawMessage(*r.RequestPayload)
	}
	return d
}

func deliveryFromDomain(d *dispatch.Delivery) *deliveryRecord {
	r := &deliveryRecord{
		ID:            d.ID,
		EventID:       d.EventID,
		DestinationID: d.DestinationID,
		Status:        string(d.Status),
		ResponseCode:  d.ResponseCode,
		ErrorMessage:  d.ErrorMessage,
		ResponseBody:  d.ResponseBody,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.RequestPayload != nil {
		payload := string(d.RequestPayload)
		r.RequestPayload = &payload
	}
	return r
}
