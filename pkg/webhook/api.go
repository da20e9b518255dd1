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

package webhook

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/abcxyz/pkg/logging"

	"github.com/abcxyz/github-notifier/pkg/store"
)

var (
	errMethodNotAllowed = fmt.Errorf("method not allowed")
	errInvalidLimit     = fmt.Errorf("limit must be a positive integer")
	errMissingEventID   = fmt.Errorf("eventId is required")
	errReadingBackend   = fmt.Errorf("failed to read from backend")
)

// handleListEvents serves the most recent events, optionally filtered by
// eventType and repository.
func (s *Server) handleListEvents() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		if r.Method != http.MethodGet {
			s.h.RenderJSON(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
			return
		}

		q := r.URL.Query()
		filter := &store.EventFilter{
			EventType:  q.Get("eventType"),
			Repository: q.Get("repository"),
		}
		if v := q.Get("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit <= 0 {
				s.h.RenderJSON(w, http.StatusBadRequest, errInvalidLimit)
				return
			}
			filter.Limit = limit
		}

		list, err := s.datastore.ListEvents(ctx, filter)
		if err != nil {
			logger.ErrorContext(ctx, "failed to list events",
				"code", http.StatusInternalServerError,
				"error", err)
			s.h.RenderJSON(w, http.StatusInternalServerError, errReadingBackend)
			return
		}

		s.h.RenderJSON(w, http.StatusOK, list)
	})
}

// handleListDeliveries serves the delivery attempts recorded for one event.
func (s *Server) handleListDeliveries() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.FromContext(ctx)

		if r.Method != http.MethodGet {
			s.h.RenderJSON(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
			return
		}

		eventID := r.URL.Query().Get("eventId")
		if eventID == "" {
			s.h.RenderJSON(w, http.StatusBadRequest, errMissingEventID)
			return
		}

		list, err := s.datastore.ListDeliveriesByEvent(ctx, eventID)
		if err != nil {
			logger.ErrorContext(ctx, "failed to list deliveries",
				"code", http.StatusInternalServerError,
				"event_id", eventID,
				"error", err)
			s.h.RenderJSON(w, http.StatusInternalServerError, errReadingBackend)
			return
		}

		s.h.RenderJSON(w, http.StatusOK, list)
	})
}
