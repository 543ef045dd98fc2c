// Package redis implements record.Store backed by Redis. Records are
// stored as msgpack-encoded values under a configurable key prefix,
// with an optional TTL so finished test records age out on their own.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/record"
)

var _ record.Store = (*Store)(nil)

// DefaultKeyPrefix namespaces record keys in Redis.
const DefaultKeyPrefix = "runq:record:"

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKeyPrefix overrides the record key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithTTL sets an expiry on every record write. Zero keeps records
// forever.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// Store implements record.Store backed by Redis. The caller owns the
// Redis client lifecycle.
type Store struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// New creates a Redis-backed record store.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: DefaultKeyPrefix,
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) key(correlationID string) string {
	return s.prefix + correlationID
}

// UpdateStatus implements record.Store.
func (s *Store) UpdateStatus(ctx context.Context, correlationID, status string, extra map[string]any) error {
	return s.mutate(ctx, correlationID, func(r *record.Record) {
		r.Status = status
		r.Extra = extra
	})
}

// Complete implements record.Store.
func (s *Store) Complete(ctx context.Context, correlationID string, results json.RawMessage) error {
	return s.mutate(ctx, correlationID, func(r *record.Record) {
		r.Status = "completed"
		r.Results = results
	})
}

// Fail implements record.Store.
func (s *Store) Fail(ctx context.Context, correlationID, errorMessage string) error {
	return s.mutate(ctx, correlationID, func(r *record.Record) {
		r.Status = "failed"
		r.Error = errorMessage
	})
}

// Cancel implements record.Store.
func (s *Store) Cancel(ctx context.Context, correlationID, reason string) error {
	return s.mutate(ctx, correlationID, func(r *record.Record) {
		r.Status = "cancelled"
		r.CancelReason = reason
	})
}

// Get implements record.Store.
func (s *Store) Get(ctx context.Context, correlationID string) (*record.Record, error) {
	data, err := s.client.Get(ctx, s.key(correlationID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, runq.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record/redis: get %s: %w", correlationID, err)
	}

	var r record.Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("record/redis: decode %s: %w", correlationID, err)
	}
	return &r, nil
}

// mutate reads the record (creating it if absent), applies fn, stamps
// UpdatedAt, and writes it back.
func (s *Store) mutate(ctx context.Context, correlationID string, fn func(*record.Record)) error {
	r, err := s.Get(ctx, correlationID)
	if errors.Is(err, runq.ErrRecordNotFound) {
		r = &record.Record{CorrelationID: correlationID}
	} else if err != nil {
		return err
	}

	fn(r)
	r.UpdatedAt = time.Now().UTC()

	data, err := msgpack.Marshal(r)
	if err != nil {
		return fmt.Errorf("record/redis: encode %s: %w", correlationID, err)
	}
	if err := s.client.Set(ctx, s.key(correlationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("record/redis: set %s: %w", correlationID, err)
	}
	return nil
}
