package job

import (
	"encoding/json"
	"fmt"
	"time"
)

// Spec is the caller-facing request for a test run.
type Spec struct {
	// CorrelationID ties the job to an externally persisted test record.
	// Required; must be unique among jobs currently queued or running.
	CorrelationID string

	Class    Class
	Priority Priority

	// Config is passed through to the executor unmodified.
	Config json.RawMessage

	// MaxRetries bounds automatic retries of execution failures.
	MaxRetries int

	// EstimatedDuration feeds the wait estimate and execution timeout.
	EstimatedDuration time.Duration
}

// Validate checks the spec and fills enum defaults in place.
func (s *Spec) Validate() error {
	if s.CorrelationID == "" {
		return fmt.Errorf("job: spec missing correlation id")
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("job: negative max retries %d", s.MaxRetries)
	}

	cls, err := ParseClass(string(s.Class))
	if err != nil {
		return err
	}
	s.Class = cls

	pri, err := ParsePriority(string(s.Priority))
	if err != nil {
		return err
	}
	s.Priority = pri

	return nil
}
