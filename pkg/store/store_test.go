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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/abcxyz/github-notifier/pkg/dispatch"
	"github.com/abcxyz/github-notifier/pkg/events"
	"github.com/abcxyz/github-notifier/pkg/routing"
)

func newTestStore(t *testing.T) (context.Context, *Store) {
	t.Helper()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	s, err := Open(ctx, &Config{Driver: DriverSQLite, URL: dsn, ConnectAttempts: 1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Error(err)
		}
	})
	return ctx, s
}

func ptr(s string) *string {
	return &s
}

func mustCreateEvent(ctx context.Context, t *testing.T, s *Store, eventType, repo string) *events.Event {
	t.Helper()

	event := &events.Event{
		Source:     events.SourceGitHub,
		DeliveryID: ptr(uuid.NewString()),
		EventType:  eventType,
		Repository: repo,
		Ref:        ptr("refs/heads/main"),
		Actor:      ptr("octocat"),
		Payload:    json.RawMessage(`{"ref":"refs/heads/main"}`),
	}
	if err := s.CreateEvent(ctx, event); err != nil {
		t.Fatal(err)
	}
	return event
}

func mustCreateDestination(ctx context.Context, t *testing.T, s *Store, name string, enabled bool) *routing.Destination {
	t.Helper()

	dest := &routing.Destination{
		Type:    routing.DestinationDiscordWebhook,
		Name:    name,
		Config:  map[string]any{routing.ConfigWebhookURL: "https://example.com/" + name},
		Enabled: enabled,
	}
	if err := s.CreateDestination(ctx, dest); err != nil {
		t.Fatal(err)
	}
	return dest
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	t.Parallel()

	ctx := logging.WithLogger(context.Background(), logging.TestLogger(t))

	_, err := Open(ctx, &Config{Driver: "mysql", URL: "x"})
	if diff := testutil.DiffErrString(err, `unsupported database driver "mysql"`); diff != "" {
		t.Error(diff)
	}
}

func TestStore_Events(t *testing.T) {
	t.Parallel()

	ctx, s := newTestStore(t)

	first := mustCreateEvent(ctx, t, s, "push", "acme/widgets")
	mustCreateEvent(ctx, t, s, "issues", "acme/widgets")
	mustCreateEvent(ctx, t, s, "push", "acme/gadgets")

	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected id and creation time to be assigned, got %#v", first)
	}

	got, err := s.GetEvent(ctx, first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, got); diff != "" {
		t.Errorf("GetEvent (-want, +got):\n%s", diff)
	}

	cases := []struct {
		name   string
		filter *EventFilter
		want   int
	}{
		{name: "all", filter: nil, want: 3},
		{name: "by_type", filter: &EventFilter{EventType: "push"}, want: 2},
		{name: "by_repository", filter: &EventFilter{Repository: "acme/widgets"}, want: 2},
		{name: "both", filter: &EventFilter{EventType: "push", Repository: "acme/gadgets"}, want: 1},
		{name: "limit", filter: &EventFilter{Limit: 1}, want: 1},
	}

	for _, tc := range cases {
		list, err := s.ListEvents(ctx, tc.filter)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got := len(list); got != tc.want {
			t.Errorf("%s: expected %d events to be %d", tc.name, got, tc.want)
		}
	}

	if _, err := s.GetEvent(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListEnabledRules(t *testing.T) {
	t.Parallel()

	ctx, s := newTestStore(t)

	d1 := mustCreateDestination(ctx, t, s, "d1", true)
	d2 := mustCreateDestination(ctx, t, s, "d2", false)

	rules := []*routing.Rule{
		{Repository: ptr("acme/widgets"), EventType: ptr("push"), Enabled: true, Destination: d1},
		{Enabled: false, Destination: d1},
		{Ref: ptr("refs/heads/main"), Enabled: true, Destination: d2},
	}
	for _, r := range rules {
		if err := s.CreateRoutingRule(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListEnabledRules(ctx)
	if err != nil {
		t.Fatal(err)
	}

	want := []*routing.Rule{rules[0], rules[2]}
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(a, b *routing.Rule) bool { return a.ID < b.ID })); diff != "" {
		t.Errorf("ListEnabledRules (-want, +got):\n%s", diff)
	}

	if err := s.CreateRoutingRule(ctx, &routing.Rule{Enabled: true}); err == nil {
		t.Errorf("expected rule without destination to be rejected")
	}
}

func TestStore_DeliveryRoundTrip(t *testing.T) {
	t.Parallel()

	ctx, s := newTestStore(t)

	event := mustCreateEvent(ctx, t, s, "push", "acme/widgets")
	dest := mustCreateDestination(ctx, t, s, "d1", true)

	delivery := &dispatch.Delivery{
		EventID:       event.ID,
		DestinationID: dest.ID,
		Status:        dispatch.StatusPending,
	}
	if err := s.CreateDelivery(ctx, delivery); err != nil {
		t.Fatal(err)
	}

	pending, err := s.GetDelivery(ctx, delivery.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := pending.Status, dispatch.StatusPending; got != want {
		t.Errorf("expected status %s to be %s", got, want)
	}
	if pending.RequestPayload != nil {
		t.Errorf("expected no request payload, got %s", pending.RequestPayload)
	}

	code := 500
	delivery.Status = dispatch.StatusFailed
	delivery.ResponseCode = &code
	delivery.ErrorMessage = ptr("HTTP 500")
	delivery.ResponseBody = ptr("upstream exploded")
	delivery.RequestPayload = json.RawMessage(`{"content":"","embeds":[{"title":"Push to acme/widgets (main)","color":65433}]}`)
	if err := s.UpdateDelivery(ctx, delivery); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetDelivery(ctx, delivery.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(delivery, got); diff != "" {
		t.Errorf("GetDelivery (-want, +got):\n%s", diff)
	}

	list, err := s.ListDeliveriesByEvent(ctx, event.ID)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]*dispatch.Delivery{delivery}, list); diff != "" {
		t.Errorf("ListDeliveriesByEvent (-want, +got):\n%s", diff)
	}

	if err := s.UpdateDelivery(ctx, &dispatch.Delivery{ID: "missing", Status: dispatch.StatusFailed}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_Pipeline(t *testing.T) {
	t.Parallel()

	ctx, s := newTestStore(t)

	d1 := mustCreateDestination(ctx, t, s, "d1", true)
	d2 := mustCreateDestination(ctx, t, s, "d2", true)

	for _, r := range []*routing.Rule{
		{Repository: ptr("acme/widgets"), EventType: ptr("push"), Enabled: true, Destination: d1},
		{Enabled: false, Destination: d2},
	} {
		if err := s.CreateRoutingRule(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	event := mustCreateEvent(ctx, t, s, "push", "acme/widgets")

	// Simulated-only registry, no network calls.
	registry := dispatch.NewRegistry(&dispatch.SimulatedAdapter{})
	d := dispatch.NewDispatcher(routing.NewMatcher(s), s, registry)

	if _, err := d.DispatchEvent(ctx, event); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListDeliveriesByEvent(ctx, event.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(got))
	}
	if got, want := got[0].DestinationID, d1.ID; got != want {
		t.Errorf("expected destination %q to be %q", got, want)
	}
	if got, want := got[0].Status, dispatch.StatusSuccess; got != want {
		t.Errorf("expected status %s to be %s", got, want)
	}
}
