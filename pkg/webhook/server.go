// Copyright 2023 The Authors (see AUTHORS file)
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

// Package webhook is the inbound HTTP boundary of the notifier. It verifies
// GitHub webhook deliveries, captures them as events and dispatches them to
// the matching notification destinations.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/abcxyz/pkg/healthcheck"
	"github.com/abcxyz/pkg/logging"
	"github.com/abcxyz/pkg/renderer"
	"google.golang.org/api/option"

	"github.com/abcxyz/github-notifier/pkg/dispatch"
	"github.com/abcxyz/github-notifier/pkg/events"
	"github.com/abcxyz/github-notifier/pkg/messaging"
	"github.com/abcxyz/github-notifier/pkg/routing"
	"github.com/abcxyz/github-notifier/pkg/secrets"
	"github.com/abcxyz/github-notifier/pkg/store"
	"github.com/abcxyz/github-notifier/pkg/version"
)

// Datastore is everything the server needs from persistence.
type Datastore interface {
	events.Writer
	routing.RuleReader
	dispatch.Store

	GetEvent(ctx context.Context, id string) (*events.Event, error)
	ListEvents(ctx context.Context, f *store.EventFilter) ([]*events.Event, error)
	ListDeliveriesByEvent(ctx context.Context, eventID string) ([]*dispatch.Delivery, error)
	Close() error
}

// Publisher mirrors stored events to other systems.
type Publisher interface {
	Publish(ctx context.Context, event *events.Event) error
}

// WebhookClientOptions encapsulate client config options as well as dependency
// implementation overrides.
type WebhookClientOptions struct {
	EventPubsubClientOpts   []option.ClientOption
	SecretManagerClientOpts []option.ClientOption

	DatastoreClientOverride Datastore
	HTTPClientOverride      *http.Client
}

// Server provides the server implementation.
type Server struct {
	h         *renderer.Renderer
	projectID string
	readAPI   bool

	datastore  Datastore
	verifier   *Verifier
	limiter    *RateLimiter
	capturer   *events.Capturer
	dispatcher *dispatch.Dispatcher

	mirror    Publisher
	messenger *messaging.PubSubMessenger
}

// NewServer creates a new HTTP server implementation that will handle
// receiving webhook payloads.
func NewServer(ctx context.Context, h *renderer.Renderer, cfg *Config, wco *WebhookClientOptions) (*Server, error) {
	if wco == nil {
		wco = &WebhookClientOptions{}
	}

	secret := cfg.GitHubWebhookSecret
	if cfg.GitHubWebhookSecretName != "" {
		s, err := secrets.GetSecret(ctx, cfg.GitHubWebhookSecretName, wco.SecretManagerClientOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve webhook secret: %w", err)
		}
		secret = s
	}

	datastore := wco.DatastoreClientOverride
	if datastore == nil {
		s, err := store.Open(ctx, &store.Config{
			Driver:          cfg.DatabaseDriver,
			URL:             cfg.DatabaseURL,
			ConnectAttempts: uint64(cfg.DatabaseConnectAttempts),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open datastore: %w", err)
		}
		datastore = s
	}

	httpClient := wco.HTTPClientOverride
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.DeliveryTimeout}
	}

	dispatcher := dispatch.NewDispatcher(
		routing.NewMatcher(datastore),
		datastore,
		dispatch.NewDefaultRegistry(httpClient),
		dispatch.WithTimeout(cfg.DeliveryTimeout),
	)

	s := &Server{
		h:          h,
		projectID:  cfg.ProjectID,
		readAPI:    cfg.ReadAPI,
		datastore:  datastore,
		verifier:   NewVerifier(secret),
		limiter:    NewRateLimiter(cfg.RateLimitPerMinute, cfg.TrustedProxyHops),
		capturer:   events.NewCapturer(datastore),
		dispatcher: dispatcher,
	}

	if cfg.EventsTopicID != "" {
		m, err := messaging.NewPubSubMessenger(ctx, cfg.ProjectID, cfg.EventsTopicID, cfg.PubSubTimeout, wco.EventPubsubClientOpts...)
		if err != nil {
			return nil, errors.Join(
				fmt.Errorf("failed to create event pubsub: %w", err),
				datastore.Close())
		}
		s.messenger = m
		s.mirror = messaging.NewEventMirror(m)
	}

	return s, nil
}

// Routes creates a ServeMux of all of the routes that
// this Router supports.
func (s *Server) Routes(ctx context.Context) http.Handler {
	logger := logging.FromContext(ctx)
	mux := http.NewServeMux()
	mux.Handle("/healthz", healthcheck.HandleHTTPHealthCheck())
	mux.Handle("/webhook", s.handleWebhook())
	mux.Handle("/version", s.handleVersion())

	if s.readAPI {
		mux.Handle("/api/events", s.handleListEvents())
		mux.Handle("/api/deliveries", s.handleListDeliveries())
	}

	// Middleware
	root := logging.HTTPInterceptor(logger, s.projectID)(mux)

	return root
}

// handleVersion is a simple http.HandlerFunc that responds
// with version information for the server.
func (s *Server) handleVersion() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"version":%q}`+"\n", version.HumanVersion)
	})
}

// Shutdown handles the graceful shutdown of the webhook server.
func (s *Server) Shutdown() error {
	var merr error
	if s.messenger != nil {
		if err := s.messenger.Shutdown(); err != nil {
			merr = errors.Join(merr, fmt.Errorf("failed to shutdown pubsub connection: %w", err))
		}
	}
	if err := s.datastore.Close(); err != nil {
		merr = errors.Join(merr, fmt.Errorf("failed to close datastore: %w", err))
	}
	return merr
}
