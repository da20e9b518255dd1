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
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/abcxyz/github-notifier/pkg/events"
)

const (
	testProjectID = "test-project-id"
	testTopicID   = "test-events-topic-id"
)

func setupPubSubServer(ctx context.Context, t *testing.T, opts ...pstest.ServerReactorOption) (*pstest.Server, *grpc.ClientConn) {
	t.Helper()

	srv := pstest.NewServer(opts...)

	//nolint:staticcheck // grpc.NewClient is not available in the pinned grpc version.
	conn, err := grpc.Dial(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("fail to connect to test pubsub server: %v", err)
	}

	client, err := pubsub.NewClient(ctx, testProjectID, option.WithGRPCConn(conn))
	if err != nil {
		t.Fatalf("fail to create test pubsub server client: %v", err)
	}
	if _, err := client.CreateTopic(ctx, testTopicID); err != nil {
		t.Fatalf("failed to create test pubsub topic: %v", err)
	}

	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("failed to cleanup test pubsub server: %v", err)
		}
		if err := conn.Close(); err != nil {
			t.Errorf("failed to cleanup test pubsub client: %v", err)
		}
	})

	return srv, conn
}

func TestNewPubSubMessenger_SetsTimeout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, conn := setupPubSubServer(ctx, t)

	m, err := NewPubSubMessenger(ctx, testProjectID, testTopicID, 15*time.Second, option.WithGRPCConn(conn))
	if err != nil {
		t.Fatal(err)
	}

	if got, want := m.topic.PublishSettings.Timeout, 15*time.Second; got != want {
		t.Errorf("expected timeout %v to be %v", got, want)
	}
}

func TestEventMirror_Publish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv, conn := setupPubSubServer(ctx, t)

	m, err := NewPubSubMessenger(ctx, testProjectID, testTopicID, 5*time.Second, option.WithGRPCConn(conn))
	if err != nil {
		t.Fatal(err)
	}

	delivery := "delivery-1"
	event := &events.Event{
		ID:         "event-1",
		Source:     events.SourceGitHub,
		DeliveryID: &delivery,
		EventType:  "push",
		Repository: "acme/widgets",
		Payload:    json.RawMessage(`{"ref":"refs/heads/main"}`),
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}

	if err := NewEventMirror(m).Publish(ctx, event); err != nil {
		t.Fatal(err)
	}

	msgs := srv.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 published message, got %d", len(msgs))
	}

	wantAttrs := map[string]string{
		AttrEventID:    "event-1",
		AttrEventType:  "push",
		AttrRepository: "acme/widgets",
		AttrDeliveryID: "delivery-1",
	}
	if diff := cmp.Diff(wantAttrs, msgs[0].Attributes); diff != "" {
		t.Errorf("attributes (-want, +got):\n%s", diff)
	}

	var got events.Event
	if err := json.Unmarshal(msgs[0].Data, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(event, &got); diff != "" {
		t.Errorf("message body (-want, +got):\n%s", diff)
	}
}

func TestEventMirror_PublishError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, conn := setupPubSubServer(ctx, t, pstest.WithErrorInjection("Publish", codes.NotFound, "topic id not found"))

	m, err := NewPubSubMessenger(ctx, testProjectID, testTopicID, 5*time.Second, option.WithGRPCConn(conn))
	if err != nil {
		t.Fatal(err)
	}

	err = NewEventMirror(m).Publish(ctx, &events.Event{ID: "event-1", EventType: "push", Payload: json.RawMessage(`{}`)})
	if err == nil || !strings.Contains(err.Error(), "failed to publish event event-1") {
		t.Errorf("expected publish error, got %v", err)
	}
}
