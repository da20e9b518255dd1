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

// Package dispatch sends captured events to their destinations and records
// the outcome of every attempt.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a delivery.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// maxResponseBody is the number of characters of the response body kept on
// a delivery.
const maxResponseBody = 2000

// Delivery records one attempt to send one event to one destination.
type Delivery struct {
	ID             string          `json:"id"`
	EventID        string          `json:"event_id"`
	DestinationID  string          `json:"destination_id"`
	Status         Status          `json:"status"`
	ResponseCode   *int            `json:"response_code"`
	ErrorMessage   *string         `json:"error_message"`
	RequestPayload json.RawMessage `json:"request_payload"`
	ResponseBody   *string         `json:"response_body"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Store persists deliveries.
type Store interface {
	// CreateDelivery inserts a new delivery and assigns its ID and timestamps.
	CreateDelivery(ctx context.Context, d *Delivery) error

	// UpdateDelivery writes the terminal state of an existing delivery.
	UpdateDelivery(ctx context.Context, d *Delivery) error
}

func (d *Delivery) succeed(payload json.RawMessage, res *Result) {
	code := res.StatusCode
	body := capBody(res.Body)

	d.Status = StatusSuccess
	d.ResponseCode = &code
	d.ResponseBody = &body
	d.RequestPayload = payload
	d.ErrorMessage = nil
}

// respond records an HTTP answer. Anything outside 2xx is a failure.
func (d *Delivery) respond(payload json.RawMessage, res *Result) {
	d.succeed(payload, res)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		msg := fmt.Sprintf("HTTP %d", res.StatusCode)
		d.Status = StatusFailed
		d.ErrorMessage = &msg
	}
}

func (d *Delivery) fail(payload json.RawMessage, err error) {
	msg := storableText(err.Error())

	d.Status = StatusFailed
	d.ErrorMessage = &msg
	d.RequestPayload = payload
}

// storableText makes s valid for a text column: invalid UTF-8 is replaced and
// NUL bytes, which postgres rejects, are removed.
func storableText(s string) string {
	return strings.ReplaceAll(strings.ToValidUTF8(s, "\uFFFD"), "\x00", "")
}

func capBody(s string) string {
	s = storableText(s)
	r := []rune(s)
	if len(r) <= maxResponseBody {
		return s
	}
	return string(r[:maxResponseBody])
}
