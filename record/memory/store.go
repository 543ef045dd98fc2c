// Package memory implements record.Store fully in memory. Safe for
// concurrent access. Intended for unit testing and development.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/record"
)

var _ record.Store = (*Store)(nil)

// Store is an in-memory record.Store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*record.Record
}

// New returns a new empty Store.
func New() *Store {
	return &Store{records: make(map[string]*record.Record)}
}

// Put seeds a record, creating it if absent. Tests use this to stand in
// for the web layer that owns record creation.
func (s *Store) Put(r *record.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.records[r.CorrelationID] = &cp
}

// UpdateStatus implements record.Store. Unknown records are created,
// matching the upsert behaviour of the real record API.
func (s *Store) UpdateStatus(_ context.Context, correlationID, status string, extra map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreateLocked(correlationID)
	r.Status = status
	r.Extra = extra
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Complete implements record.Store.
func (s *Store) Complete(_ context.Context, correlationID string, results json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreateLocked(correlationID)
	r.Status = "completed"
	r.Results = results
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail implements record.Store.
func (s *Store) Fail(_ context.Context, correlationID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreateLocked(correlationID)
	r.Status = "failed"
	r.Error = errorMessage
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Cancel implements record.Store.
func (s *Store) Cancel(_ context.Context, correlationID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.getOrCreateLocked(correlationID)
	r.Status = "cancelled"
	r.CancelReason = reason
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// Get implements record.Store.
func (s *Store) Get(_ context.Context, correlationID string) (*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[correlationID]
	if !ok {
		return nil, runq.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *Store) getOrCreateLocked(correlationID string) *record.Record {
	r, ok := s.records[correlationID]
	if !ok {
		r = &record.Record{CorrelationID: correlationID}
		s.records[correlationID] = r
	}
	return r
}
