// Package bunstore implements record.Store on PostgreSQL via the Bun
// ORM. Wire it with the pgdriver connector:
//
//	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := bunstore.New(db)
//	if err := s.Migrate(ctx); err != nil { ... }
package bunstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/record"
)

var _ record.Store = (*Store)(nil)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is a Bun implementation of record.Store using the PostgreSQL
// dialect. The caller owns the *bun.DB lifecycle; Store never closes it.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

// New creates a new Bun record store.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Migrate creates the records table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*recordModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("record/bun: migrate: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpdateStatus implements record.Store.
func (s *Store) UpdateStatus(ctx context.Context, correlationID, status string, extra map[string]any) error {
	extraJSON, err := marshalExtra(extra)
	if err != nil {
		return err
	}
	return s.upsert(ctx, &recordModel{
		CorrelationID: correlationID,
		Status:        status,
		Extra:         extraJSON,
		UpdatedAt:     time.Now().UTC(),
	}, "status", "extra", "updated_at")
}

// Complete implements record.Store.
func (s *Store) Complete(ctx context.Context, correlationID string, results json.RawMessage) error {
	return s.upsert(ctx, &recordModel{
		CorrelationID: correlationID,
		Status:        "completed",
		Results:       []byte(results),
		UpdatedAt:     time.Now().UTC(),
	}, "status", "results", "updated_at")
}

// Fail implements record.Store.
func (s *Store) Fail(ctx context.Context, correlationID, errorMessage string) error {
	return s.upsert(ctx, &recordModel{
		CorrelationID: correlationID,
		Status:        "failed",
		Error:         errorMessage,
		UpdatedAt:     time.Now().UTC(),
	}, "status", "error", "updated_at")
}

// Cancel implements record.Store.
func (s *Store) Cancel(ctx context.Context, correlationID, reason string) error {
	return s.upsert(ctx, &recordModel{
		CorrelationID: correlationID,
		Status:        "cancelled",
		CancelReason:  reason,
		UpdatedAt:     time.Now().UTC(),
	}, "status", "cancel_reason", "updated_at")
}

// Get implements record.Store.
func (s *Store) Get(ctx context.Context, correlationID string) (*record.Record, error) {
	m := new(recordModel)
	err := s.db.NewSelect().Model(m).
		Where("correlation_id = ?", correlationID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, runq.ErrRecordNotFound
		}
		return nil, fmt.Errorf("record/bun: get %s: %w", correlationID, err)
	}
	return fromModel(m)
}

// upsert inserts the row or, on conflict, updates only the named
// columns so concurrent writers never clobber unrelated fields.
func (s *Store) upsert(ctx context.Context, m *recordModel, columns ...string) error {
	q := s.db.NewInsert().Model(m).On("CONFLICT (correlation_id) DO UPDATE")
	for _, col := range columns {
		q = q.Set(fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	if _, err := q.Exec(ctx); err != nil {
		return fmt.Errorf("record/bun: upsert %s: %w", m.CorrelationID, err)
	}
	return nil
}
