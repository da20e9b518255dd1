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

// Package routing maps captured events to the notification destinations that
// should receive them.
package routing

import (
	"context"
	"strings"
)

// DestinationType tags the family of a destination.
type DestinationType string

const (
	DestinationDiscordWebhook DestinationType = "DISCORD_WEBHOOK"
	DestinationSlackWebhook   DestinationType = "SLACK_WEBHOOK"
)

// ConfigWebhookURL is the config key holding the outbound URL.
const ConfigWebhookURL = "webhookUrl"

// Destination is an external notification target. Destinations are owned by
// the admin layer; this package only reads them.
type Destination struct {
	ID      string          `json:"id"`
	Type    DestinationType `json:"type"`
	Name    string          `json:"name"`
	Config  map[string]any  `json:"config"`
	Enabled bool            `json:"enabled"`
}

// WebhookURL returns the configured webhook URL, if any.
func (d *Destination) WebhookURL() (string, bool) {
	if d == nil || d.Config == nil {
		return "", false
	}
	u, ok := d.Config[ConfigWebhookURL].(string)
	if !ok || strings.TrimSpace(u) == "" {
		return "", false
	}
	return u, true
}

// Rule binds an optional repository, ref and event type filter to a single
// destination. A nil or empty filter matches any value.
type Rule struct {
	ID          string       `json:"id"`
	Repository  *string      `json:"repository"`
	Ref         *string      `json:"ref"`
	EventType   *string      `json:"event_type"`
	Enabled     bool         `json:"enabled"`
	Destination *Destination `json:"destination"`
}

// RuleReader loads routing rules.
type RuleReader interface {
	// ListEnabledRules returns every enabled rule with its destination
	// populated.
	ListEnabledRules(ctx context.Context) ([]*Rule, error)
}
