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

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/abcxyz/github-notifier/pkg/events"
	"github.com/abcxyz/github-notifier/pkg/routing"
	"github.com/abcxyz/pkg/logging"
)

var errNoResult = errors.New("adapter returned no result")

// Matcher resolves the destinations for an event.
type Matcher interface {
	Match(ctx context.Context, event *events.Event) ([]*routing.Destination, error)
}

// Option configures a Dispatcher.
type Option func(d *Dispatcher) *Dispatcher

// WithTimeout bounds each outbound send. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) *Dispatcher {
		d.timeout = timeout
		return d
	}
}

// Dispatcher delivers events to every matching destination, one at a time.
type Dispatcher struct {
	matcher  Matcher
	store    Store
	registry *Registry
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(m Matcher, s Store, r *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		matcher:  m,
		store:    s,
		registry: r,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		d = opt(d)
	}
	return d
}

// DispatchEvent delivers the event to its destinations and returns the
// resulting deliveries. A failing destination never stops the others; its
// failure is recorded on its delivery and logged. The returned error is only
// set when the destinations could not be resolved.
func (d *Dispatcher) DispatchEvent(ctx context.Context, event *events.Event) ([]*Delivery, error) {
	logger := logging.FromContext(ctx)

	dests, err := d.matcher.Match(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to match destinations: %w", err)
	}
	if len(dests) == 0 {
		return nil, nil
	}

	logger.InfoContext(ctx, "dispatching event",
		"event_id", event.ID,
		"destinations", len(dests))

	deliveries := make([]*Delivery, 0, len(dests))
	for _, dest := range dests {
		delivery, err := d.isolate(ctx, event, dest)
		if err != nil {
			logger.ErrorContext(ctx, "failed to deliver event",
				"event_id", event.ID,
				"destination_id", dest.ID,
				"error", err)
		}
		if delivery != nil {
			deliveries = append(deliveries, delivery)
		}
	}
	return deliveries, nil
}

// isolate runs a single delivery inside its own panic boundary. A delivery
// already created when the panic happens is marked FAILED.
func (d *Dispatcher) isolate(ctx context.Context, event *events.Event, dest *routing.Destination) (delivery *Delivery, err error) {
	pending := &Delivery{
		EventID:       event.ID,
		DestinationID: dest.ID,
		Status:        StatusPending,
	}

	var resolved bool
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		err = fmt.Errorf("panic delivering to destination %s: %v", dest.ID, r)
		if pending.ID == "" || resolved {
			return
		}
		pending.fail(nil, err)
		delivery = pending
		if rerr := safely(func() error { return d.resolve(ctx, pending) }); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()
	return d.deliver(ctx, event, dest, pending, &resolved)
}

func (d *Dispatcher) deliver(ctx context.Context, event *events.Event, dest *routing.Destination, delivery *Delivery, resolved *bool) (*Delivery, error) {
	logger := logging.FromContext(ctx)
	adapter := d.registry.Lookup(dest.Type)

	var payload json.RawMessage
	buildErr := safely(func() (err error) {
		payload, err = adapter.Build(event)
		return err
	})

	if err := d.store.CreateDelivery(ctx, delivery); err != nil {
		return nil, fmt.Errorf("failed to create delivery: %w", err)
	}

	if buildErr != nil {
		delivery.fail(nil, fmt.Errorf("failed to build payload: %w", buildErr))
		if err := d.resolve(ctx, delivery); err != nil {
			return delivery, err
		}
		*resolved = true
		return delivery, nil
	}

	var res *Result
	sendErr := safely(func() (err error) {
		sendCtx := ctx
		if d.timeout > 0 {
			var cancel context.CancelFunc
			sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
			defer cancel()
		}
		res, err = adapter.Send(sendCtx, dest, payload)
		return err
	})
	if sendErr == nil && res == nil {
		sendErr = errNoResult
	}

	var missing *MissingConfigError
	switch {
	case errors.As(sendErr, &missing):
		delivery.fail(nil, sendErr)
	case sendErr != nil:
		delivery.fail(payload, sendErr)
	default:
		delivery.respond(payload, res)
	}

	if err := d.resolve(ctx, delivery); err != nil {
		return delivery, err
	}
	*resolved = true

	if delivery.Status == StatusSuccess {
		logger.InfoContext(ctx, "delivered event",
			"event_id", event.ID,
			"destination_id", dest.ID,
			"destination_type", dest.Type,
			"response_code", *delivery.ResponseCode)
	} else {
		logger.WarnContext(ctx, "delivery failed",
			"event_id", event.ID,
			"destination_id", dest.ID,
			"destination_type", dest.Type,
			"error", *delivery.ErrorMessage)
	}
	return delivery, nil
}

func (d *Dispatcher) resolve(ctx context.Context, delivery *Delivery) error {
	if err := d.store.UpdateDelivery(ctx, delivery); err != nil {
		return fmt.Errorf("failed to update delivery %s: %w", delivery.ID, err)
	}
	return nil
}

// safely converts a panic in fn into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
