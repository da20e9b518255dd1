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

package routing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/abcxyz/pkg/logging"
	"gopkg.in/yaml.v3"
)

// Manifest declares destinations together with the rules that feed them. It
// is the file format read by the routing import command.
//
//	destinations:
//	  - name: team-discord
//	    type: DISCORD_WEBHOOK
//	    config:
//	      webhookUrl: https://discord.com/api/webhooks/...
//	    rules:
//	      - repository: acme/widgets
//	        eventType: push
type Manifest struct {
	Destinations []*ManifestDestination `yaml:"destinations"`
}

// ManifestDestination is one destination entry. Enabled defaults to true.
type ManifestDestination struct {
	Name    string          `yaml:"name"`
	Type    DestinationType `yaml:"type"`
	Enabled *bool           `yaml:"enabled"`
	Config  map[string]any  `yaml:"config"`
	Rules   []*ManifestRule `yaml:"rules"`
}

// ManifestRule is one rule entry. Omitted filters are wildcards and Enabled
// defaults to true.
type ManifestRule struct {
	Repository *string `yaml:"repository"`
	Ref        *string `yaml:"ref"`
	EventType  *string `yaml:"eventType"`
	Enabled    *bool   `yaml:"enabled"`
}

// Writer persists destinations and rules.
type Writer interface {
	CreateDestination(ctx context.Context, d *Destination) error
	CreateRoutingRule(ctx context.Context, rule *Rule) error
}

// ParseManifest decodes and validates a YAML manifest. Unknown keys are
// rejected.
func ParseManifest(b []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Validate checks that every destination is named and typed.
func (m *Manifest) Validate() error {
	var merr error
	if len(m.Destinations) == 0 {
		merr = errors.Join(merr, fmt.Errorf("at least one destination is required"))
	}
	for i, d := range m.Destinations {
		if d == nil {
			merr = errors.Join(merr, fmt.Errorf("destinations[%d] is empty", i))
			continue
		}
		if d.Name == "" {
			merr = errors.Join(merr, fmt.Errorf("destinations[%d].name is required", i))
		}
		if d.Type == "" {
			merr = errors.Join(merr, fmt.Errorf("destinations[%d].type is required", i))
		}
		for j, r := range d.Rules {
			if r == nil {
				merr = errors.Join(merr, fmt.Errorf("destinations[%d].rules[%d] is empty", i, j))
			}
		}
	}
	return merr
}

// Apply creates every destination and rule in the manifest. Entries are
// always inserted, so applying the same manifest twice duplicates them.
func (m *Manifest) Apply(ctx context.Context, w Writer) error {
	logger := logging.FromContext(ctx)

	for _, md := range m.Destinations {
		dest := &Destination{
			Type:    md.Type,
			Name:    md.Name,
			Config:  md.Config,
			Enabled: enabledOrDefault(md.Enabled),
		}
		if err := w.CreateDestination(ctx, dest); err != nil {
			return fmt.Errorf("failed to create destination %q: %w", md.Name, err)
		}

		for _, mr := range md.Rules {
			rule := &Rule{
				Repository:  mr.Repository,
				Ref:         mr.Ref,
				EventType:   mr.EventType,
				Enabled:     enabledOrDefault(mr.Enabled),
				Destination: dest,
			}
			if err := w.CreateRoutingRule(ctx, rule); err != nil {
				return fmt.Errorf("failed to create rule for destination %q: %w", md.Name, err)
			}
		}

		logger.InfoContext(ctx, "imported destination",
			"destination_id", dest.ID,
			"name", dest.Name,
			"type", dest.Type,
			"rules", len(md.Rules))
	}
	return nil
}

func enabledOrDefault(b *bool) bool {
	return b == nil || *b
}
