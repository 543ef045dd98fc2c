package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/XiangYd616/runq/job"
)

// EnqueueRequest mirrors the POST /v1/jobs payload.
type EnqueueRequest struct {
	CorrelationID    string          `json:"correlation_id"`
	Class            string          `json:"class,omitempty"`
	Priority         string          `json:"priority,omitempty"`
	Config           json.RawMessage `json:"config,omitempty"`
	MaxRetries       int             `json:"max_retries,omitempty"`
	EstimatedSeconds int             `json:"estimated_seconds,omitempty"`
}

// Enqueue submits a test run and returns its queue-side job.
func (c *Client) Enqueue(ctx context.Context, req EnqueueRequest) (*job.Job, error) {
	var j job.Job
	if err := c.doJSON(ctx, http.MethodPost, "/v1/jobs", req, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Get retrieves a job by id.
func (c *Client) Get(ctx context.Context, jobID string) (*job.Job, error) {
	var j job.Job
	if err := c.doJSON(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID), nil, &j); err != nil {
		return nil, err
	}
	return &j, nil
}

// Cancel cancels a job by id.
func (c *Client) Cancel(ctx context.Context, jobID, reason string) error {
	path := "/v1/jobs/" + url.PathEscape(jobID)
	if reason != "" {
		path += "?reason=" + url.QueryEscape(reason)
	}
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// Position holds a pending job's queue placement.
type Position struct {
	// Position is zero-based; -1 means the job is not pending.
	Position int `json:"position"`

	// EstimatedWait is advisory, in seconds.
	EstimatedWait float64 `json:"estimated_wait"`
}

// QueuePosition reports where the job sits in the pending queue.
func (c *Client) QueuePosition(ctx context.Context, jobID string) (*Position, error) {
	var p Position
	if err := c.doJSON(ctx, http.MethodGet, "/v1/jobs/"+url.PathEscape(jobID)+"/position", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Stats mirrors the GET /v1/stats response.
type Stats struct {
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`

	RunningJobs []*job.Job `json:"running_jobs,omitempty"`
	NextInQueue *job.Job   `json:"next_in_queue,omitempty"`
}

// Stats fetches queue counters.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	if err := c.doJSON(ctx, http.MethodGet, "/v1/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
