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

package webhook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/abcxyz/pkg/logging"
	"github.com/google/go-github/v56/github"

	"github.com/abcxyz/github-notifier/pkg/events"
)

const (
	// mb is used for conversion to megabytes.
	mb = 1000000

	msgHandled          = "Webhook handled successfully"
	msgError            = "Error handling webhook"
	msgInvalidSignature = "Invalid signature"
	msgTooManyRequests  = "Too many requests"
)

// handleWebhook verifies and stores a GitHub delivery, then fans it out to
// the matching destinations. Once the event is stored the request never
// fails with a server error, so GitHub does not redeliver it.
func (s *Server) handleWebhook() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeText(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
			return
		}

		if !s.limiter.AllowRequest(r) {
			logger.WarnContext(ctx, "rate limit exceeded",
				"code", http.StatusTooManyRequests,
				"remote_addr", r.RemoteAddr)
			writeText(w, http.StatusTooManyRequests, msgTooManyRequests)
			return
		}

		eventType := r.Header.Get(github.EventTypeHeader)
		deliveryID := r.Header.Get(github.DeliveryIDHeader)
		signature := r.Header.Get(github.SHA256SignatureHeader)

		logger.InfoContext(ctx, "webhook handling started",
			"event_type", eventType,
			"delivery_id", deliveryID)

		body, err := io.ReadAll(io.LimitReader(r.Body, 25*mb))
		if err != nil {
			logger.ErrorContext(ctx, "failed to read webhook request body",
				"code", http.StatusBadRequest,
				"error", err)
			writeText(w, http.StatusBadRequest, msgError)
			return
		}

		if err := s.verifier.Verify(body, signature); err != nil {
			logger.WarnContext(ctx, "invalid signature",
				"code", http.StatusUnauthorized,
				"path", r.URL.Path,
				"error", err)
			writeText(w, http.StatusUnauthorized, msgInvalidSignature)
			return
		}

		event, err := s.capturer.Capture(ctx, &events.Input{
			EventType:  eventType,
			DeliveryID: deliveryID,
			Body:       body,
		})
		if err != nil {
			if errors.Is(err, events.ErrInvalidPayload) {
				logger.ErrorContext(ctx, "failed to parse webhook payload",
					"code", http.StatusBadRequest,
					"event_type", eventType,
					"error", err)
				writeText(w, http.StatusBadRequest, msgError)
				return
			}

			logger.ErrorContext(ctx, "failed to capture webhook event",
				"code", http.StatusOK,
				"event_type", eventType,
				"error", err)
			writeText(w, http.StatusOK, msgError)
			return
		}

		// Deliveries must reach a terminal state even if GitHub hangs up.
		ctx = context.WithoutCancel(ctx)
		s.fanOut(ctx, event)

		logger.InfoContext(ctx, "webhook handling finished",
			"event_type", eventType,
			"event_id", event.ID)
		writeText(w, http.StatusCreated, msgHandled)
	})
}

// fanOut mirrors and dispatches a stored event. Failures are only logged.
func (s *Server) fanOut(ctx context.Context, event *events.Event) {
	logger := logging.FromContext(ctx)

	if s.mirror != nil {
		if err := s.mirror.Publish(ctx, event); err != nil {
			logger.ErrorContext(ctx, "failed to mirror event",
				"event_id", event.ID,
				"error", err)
		}
	}

	if _, err := s.dispatcher.DispatchEvent(ctx, event); err != nil {
		logger.ErrorContext(ctx, "failed to dispatch event",
			"event_id", event.ID,
			"error", err)
	}
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	fmt.Fprint(w, msg)
}
