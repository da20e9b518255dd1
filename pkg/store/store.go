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

// Package store persists events, routing configuration and deliveries in a
// SQL database through bun.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/abcxyz/github-notifier/pkg/dispatch"
	"github.com/abcxyz/github-notifier/pkg/events"
	"github.com/abcxyz/github-notifier/pkg/routing"
	"github.com/abcxyz/pkg/logging"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	connectRetryBase = 250 * time.Millisecond
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Config is the database connection configuration.
type Config struct {
	Driver string
	URL    string

	// ConnectAttempts is the number of pings made before giving up.
	ConnectAttempts uint64
}

// Store implements the persistence needs of the notification pipeline.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

// Open connects to the database, waits for it to answer and creates any
// missing tables.
func Open(ctx context.Context, cfg *Config) (*Store, error) {
	logger := logging.FromContext(ctx)

	var dialect schema.Dialect
	switch cfg.Driver {
	case DriverSQLite:
		dialect = sqlitedialect.New()
	case DriverPostgres:
		dialect = pgdialect.New()
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	sqldb, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		sqldb.SetMaxOpenConns(1)
	}

	attempts := cfg.ConnectAttempts
	if attempts == 0 {
		attempts = 1
	}
	b := retry.WithMaxRetries(attempts-1, retry.NewExponential(connectRetryBase))
	if err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := sqldb.PingContext(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	}); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := New(bun.NewDB(sqldb, dialect))
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "database ready", "driver", cfg.Driver)
	return s, nil
}

// New wraps an existing bun database.
func New(db *bun.DB) *Store {
	return &Store{
		db: db,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

// Migrate creates the tables that do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	tables := []struct {
		model       any
		foreignKeys []string
	}{
		{model: (*eventRecord)(nil)},
		{model: (*destinationRecord)(nil)},
		{
			model:       (*ruleRecord)(nil),
			foreignKeys: []string{`("destination_id") REFERENCES "destinations" ("id") ON DELETE CASCADE`},
		},
		{
			model: (*deliveryRecord)(nil),
			foreignKeys: []string{
				`("event_id") REFERENCES "events" ("id") ON DELETE CASCADE`,
				`("destination_id") REFERENCES "destinations" ("id") ON DELETE CASCADE`,
			},
		},
	}

	for _, tbl := range tables {
		q := s.db.NewCreateTable().Model(tbl.model).IfNotExists()
		for _, fk := range tbl.foreignKeys {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if _, err := s.db.NewCreateIndex().
		Model((*deliveryRecord)(nil)).
		Index("deliveries_event_id_idx").
		Column("event_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// CreateEvent inserts the event and assigns its ID and creation time.
func (s *Store) CreateEvent(ctx context.Context, event *events.Event) error {
	r := &eventRecord{
		ID:         uuid.NewString(),
		Source:     event.Source,
		DeliveryID: event.DeliveryID,
		EventType:  event.EventType,
		Repository: event.Repository,
		Ref:        event.Ref,
		Actor:      event.Actor,
		Payload:    string(event.Payload),
		CreatedAt:  s.now(),
	}
	if _, err := s.db.NewInsert().Model(r).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	event.ID = r.ID
	event.CreatedAt = r.CreatedAt
	return nil
}

// GetEvent returns a single event.
func (s *Store) GetEvent(ctx context.Context, id string) (*events.Event, error) {
	r := new(eventRecord)
	if err := s.db.NewSelect().Model(r).Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return eventToDomain(r), nil
}

// EventFilter narrows ListEvents. Empty fields match everything.
type EventFilter struct {
	EventType  string
	Repository string
	Limit      int
}

// ListEvents returns the most recent events first.
func (s *Store) ListEvents(ctx context.Context, f *EventFilter) ([]*events.Event, error) {
	if f == nil {
		f = &EventFilter{}
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var records []*eventRecord
	q := s.db.NewSelect().Model(&records).OrderExpr("?TableAlias.created_at DESC").Limit(limit)
	if f.EventType != "" {
		q = q.Where("?TableAlias.event_type = ?", f.EventType)
	}
	if f.Repository != "" {
		q = q.Where("?TableAlias.repository = ?", f.Repository)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	out := make([]*events.Event, 0, len(records))
	for _, r := range records {
		out = append(out, eventToDomain(r))
	}
	return out, nil
}

// CreateDestination inserts a destination and assigns its ID.
func (s *Store) CreateDestination(ctx context.Context, d *routing.Destination) error {
	now := s.now()
	config := d.Config
	if config == nil {
		config = map[string]any{}
	}
	r := &destinationRecord{
		ID:        uuid.NewString(),
		Type:      string(d.Type),
		Name:      d.Name,
		Config:    config,
		Enabled:   d.Enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.NewInsert().Model(r).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert destination: %w", err)
	}
	d.ID = r.ID
	return nil
}

// CreateRoutingRule inserts a rule bound to rule.Destination, which must
// already exist.
func (s *Store) CreateRoutingRule(ctx context.Context, rule *routing.Rule) error {
	if rule.Destination == nil || rule.Destination.ID == "" {
		return fmt.Errorf("routing rule requires an existing destination")
	}

	now := s.now()
	r := &ruleRecord{
		ID:            uuid.NewString(),
		Repository:    rule.Repository,
		Ref:           rule.Ref,
		EventType:     rule.EventType,
		Enabled:       rule.Enabled,
		DestinationID: rule.Destination.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.db.NewInsert().Model(r).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert routing rule: %w", err)
	}
	rule.ID = r.ID
	return nil
}

// ListEnabledRules returns every enabled rule with its destination loaded.
func (s *Store) ListEnabledRules(ctx context.Context) ([]*routing.Rule, error) {
	var records []*ruleRecord
	if err := s.db.NewSelect().
		Model(&records).
		Relation("Destination").
		Where("?TableAlias.enabled = ?", true).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list routing rules: %w", err)
	}

	out := make([]*routing.Rule, 0, len(records))
	for _, r := range records {
		out = append(out, ruleToDomain(r))
	}
	return out, nil
}

// CreateDelivery inserts a delivery and assigns its ID and timestamps.
func (s *Store) CreateDelivery(ctx context.Context, d *dispatch.Delivery) error {
	now := s.now()
	d.ID = uuid.NewString()
	d.CreatedAt = now
	d.UpdatedAt = now

	if _, err := s.db.NewInsert().Model(deliveryFromDomain(d)).Exec(ctx); err != nil {
		d.ID = ""
		return fmt.Errorf("failed to insert delivery: %w", err)
	}
	return nil
}

// UpdateDelivery writes the outcome columns of an existing delivery.
func (s *Store) UpdateDelivery(ctx context.Context, d *dispatch.Delivery) error {
	d.UpdatedAt = s.now()

	res, err := s.db.NewUpdate().
		Model(deliveryFromDomain(d)).
		Column("status", "response_code", "error_message", "request_payload", "response_body", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update delivery: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delivery %s: %w", d.ID, ErrNotFound)
	}
	return nil
}

// GetDelivery returns a single delivery.
func (s *Store) GetDelivery(ctx context.Context, id string) (*dispatch.Delivery, error) {
	r := new(deliveryRecord)
	if err := s.db.NewSelect().Model(r).Where("?TableAlias.id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("delivery %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return deliveryToDomain(r), nil
}

// ListDeliveriesByEvent returns the deliveries of one event, oldest first.
func (s *Store) ListDeliveriesByEvent(ctx context.Context, eventID string) ([]*dispatch.Delivery, error) {
	var records []*deliveryRecord
	if err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.event_id = ?", eventID).
		OrderExpr("?TableAlias.created_at ASC").
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}

	out := make([]*dispatch.Delivery, 0, len(records))
	for _, r := range records {
		out = append(out, deliveryToDomain(r))
	}
	return out, nil
}
