package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/engine"
	"github.com/XiangYd616/runq/executor"
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
	"github.com/XiangYd616/runq/schedule"
)

// stuckExecutor accepts every execution and never finishes it, keeping
// jobs observable as running.
type stuckExecutor struct{}

func (stuckExecutor) Start(context.Context, id.RunID, string, json.RawMessage) error {
	return nil
}

func (stuckExecutor) Poll(context.Context, string) (executor.Report, error) {
	return executor.Report{Status: executor.StatusRunning}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *engine.Manager) {
	t.Helper()
	cfg := runq.DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.MaxQueueSize = 3

	eng, err := engine.New(stuckExecutor{}, engine.WithConfig(cfg))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("engine.Start: %v", err)
	}

	sched := schedule.NewScheduler(eng.Enqueue)
	srv := httptest.NewServer(New(eng, WithScheduler(sched)).Handler())
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})
	return srv, eng
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	fields := map[string]json.RawMessage{}
	_ = json.NewDecoder(resp.Body).Decode(&fields)
	return resp, fields
}

func TestEnqueueAndGet(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/v1/jobs", EnqueueRequest{
		CorrelationID: "test-1",
		Class:         "regular",
		Priority:      "high",
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var jobID string
	if err := json.Unmarshal(fields["id"], &jobID); err != nil {
		t.Fatalf("no id in response: %v", err)
	}

	resp, fields = doJSON(t, http.MethodGet, srv.URL+"/v1/jobs/"+jobID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var corr string
	if err := json.Unmarshal(fields["correlation_id"], &corr); err != nil || corr != "test-1" {
		t.Errorf("correlation_id = %q (%v)", corr, err)
	}
}

func TestEnqueueErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/jobs", map[string]string{"class": "regular"}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing correlation id: status = %d, want 400", resp.StatusCode)
	}

	doJSON(t, http.MethodPost, srv.URL+"/v1/jobs", EnqueueRequest{CorrelationID: "dup"})
	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/jobs", EnqueueRequest{CorrelationID: "dup"}); resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate: status = %d, want 409", resp.StatusCode)
	}
}

func TestCancelAndPosition(t *testing.T) {
	srv, eng := newTestServer(t)

	jobID, err := eng.Enqueue(context.Background(), job.Spec{CorrelationID: "c-1"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/v1/jobs/"+jobID.String()+"/position", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("position status = %d", resp.StatusCode)
	}
	if _, ok := fields["estimated_wait"]; !ok {
		t.Error("position response missing estimated_wait")
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/v1/jobs/"+jobID.String(), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	// A second cancel hits an already-terminal job.
	if resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/v1/jobs/"+jobID.String(), nil); resp.StatusCode != http.StatusConflict {
		t.Errorf("second cancel status = %d, want 409", resp.StatusCode)
	}

	if resp, _ := doJSON(t, http.MethodGet, srv.URL+"/v1/jobs/not-an-id", nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", resp.StatusCode)
	}
}

func TestStats(t *testing.T) {
	srv, eng := newTestServer(t)

	for i := 0; i < 2; i++ {
		if _, err := eng.Enqueue(context.Background(), job.Spec{CorrelationID: fmt.Sprintf("s-%d", i)}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	resp, fields := doJSON(t, http.MethodGet, srv.URL+"/v1/stats", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stats status = %d", resp.StatusCode)
	}
	for _, key := range []string{"queued", "running", "completed", "failed", "cancelled"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("stats missing %q", key)
		}
	}
}

func TestScheduleCRUD(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, fields := doJSON(t, http.MethodPost, srv.URL+"/v1/schedules", CreateScheduleRequest{
		Name:          "nightly",
		Expression:    "0 3 * * *",
		CorrelationID: "nightly",
		Class:         "stress",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var scheduleID string
	if err := json.Unmarshal(fields["id"], &scheduleID); err != nil {
		t.Fatalf("no id: %v", err)
	}

	if resp, _ := doJSON(t, http.MethodPost, srv.URL+"/v1/schedules", CreateScheduleRequest{
		Name: "bad", Expression: "nope", CorrelationID: "x",
	}); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad expression status = %d, want 400", resp.StatusCode)
	}

	enabled := false
	if resp, _ := doJSON(t, http.MethodPatch, srv.URL+"/v1/schedules/"+scheduleID, PatchScheduleRequest{Enabled: &enabled}); resp.StatusCode != http.StatusOK {
		t.Errorf("patch status = %d", resp.StatusCode)
	}

	if resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/v1/schedules/"+scheduleID, nil); resp.StatusCode != http.StatusOK {
		t.Errorf("delete status = %d", resp.StatusCode)
	}
	if resp, _ := doJSON(t, http.MethodDelete, srv.URL+"/v1/schedules/"+scheduleID, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", resp.StatusCode)
	}
}
