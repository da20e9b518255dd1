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
	"context"
	"fmt"

	"github.com/abcxyz/github-notifier/pkg/events"
	"github.com/abcxyz/pkg/logging"
)

// Matcher computes the destinations for an event from the enabled rules.
type Matcher struct {
	rules RuleReader
}

// NewMatcher creates a Matcher reading rules from r.
func NewMatcher(r RuleReader) *Matcher {
	return &Matcher{rules: r}
}

// Match returns the distinct enabled destinations of every enabled rule that
// matches the event. An empty result is not an error.
func (m *Matcher) Match(ctx context.Context, event *events.Event) ([]*Destination, error) {
	logger := logging.FromContext(ctx)

	rules, err := m.rules.ListEnabledRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list routing rules: %w", err)
	}

	matched := MatchingRules(rules, event)
	if len(matched) == 0 {
		logger.WarnContext(ctx, "no routing rules matched, skipping dispatch",
			"event_id", event.ID,
			"repository", event.Repository,
			"ref", event.RefValue(),
			"event_type", event.EventType)
		return nil, nil
	}

	destinations := Destinations(matched)
	if len(destinations) == 0 {
		logger.WarnContext(ctx, "matched rules but no enabled destinations, skipping dispatch",
			"event_id", event.ID,
			"rules", len(matched))
		return nil, nil
	}

	logger.InfoContext(ctx, "resolved destinations",
		"event_id", event.ID,
		"destinations", len(destinations),
		"rules", len(matched))
	return destinations, nil
}

// MatchingRules returns the enabled rules that match the event.
func MatchingRules(rules []*Rule, event *events.Event) []*Rule {
	var out []*Rule
	for _, rule := range rules {
		if rule == nil || !rule.Enabled {
			continue
		}
		if Matches(rule, event) {
			out = append(out, rule)
		}
	}
	return out
}

// Destinations de-duplicates the rule destinations by ID and drops disabled
// ones. The result keeps first-seen order.
func Destinations(rules []*Rule) []*Destination {
	seen := make(map[string]struct{}, len(rules))
	var out []*Destination
	for _, rule := range rules {
		dest := rule.Destination
		if dest == nil || !dest.Enabled {
			continue
		}
		if _, ok := seen[dest.ID]; ok {
			continue
		}
		seen[dest.ID] = struct{}{}
		out = append(out, dest)
	}
	return out
}

// Matches reports whether every set filter of the rule equals the event's
// value exactly.
func Matches(rule *Rule, event *events.Event) bool {
	return filterMatches(rule.Repository, &event.Repository) &&
		filterMatches(rule.Ref, event.Ref) &&
		filterMatches(rule.EventType, &event.EventType)
}

func filterMatches(filter, value *string) bool {
	if filter == nil || *filter == "" {
		return true
	}
	return value != nil && *value == *filter
}
