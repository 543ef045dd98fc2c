package resource

import "time"

// Status is the derived health level gating admission of
// resource-sensitive jobs.
type Status string

const (
	// StatusHealthy means all metrics are below warning thresholds.
	StatusHealthy Status = "healthy"
	// StatusWarning means at least one metric crossed its warning
	// threshold. Stress jobs are still admitted under warning.
	StatusWarning Status = "warning"
	// StatusCritical means at least one metric crossed its critical
	// threshold. Stress admission is blocked.
	StatusCritical Status = "critical"
	// StatusOverloaded means the system has been critical for several
	// consecutive samples. Advisory only; core admission never keys on
	// it.
	StatusOverloaded Status = "overloaded"
)

// Snapshot is one observation of system resources.
type Snapshot struct {
	CPUUsagePct       float64   `json:"cpu_usage_pct"`
	MemoryUsagePct    float64   `json:"memory_usage_pct"`
	ActiveConnections int       `json:"active_connections"`
	DiskUsagePct      float64   `json:"disk_usage_pct"`
	Timestamp         time.Time `json:"timestamp"`
	Status            Status    `json:"status"`
}

// Thresholds configures status evaluation.
type Thresholds struct {
	WarningCPU     float64
	CriticalCPU    float64
	WarningMemory  float64
	CriticalMemory float64
	MaxConnections int
}

// DefaultThresholds returns the default evaluation thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WarningCPU:     70,
		CriticalCPU:    90,
		WarningMemory:  75,
		CriticalMemory: 90,
		MaxConnections: 1000,
	}
}

// Evaluate derives a status from the snapshot, most severe first.
// Overloaded is never produced here; it is a monitor-level condition
// over consecutive samples.
func (t Thresholds) Evaluate(s Snapshot) Status {
	switch {
	case s.CPUUsagePct >= t.CriticalCPU,
		s.MemoryUsagePct >= t.CriticalMemory,
		t.MaxConnections > 0 && s.ActiveConnections >= t.MaxConnections:
		return StatusCritical
	case s.CPUUsagePct >= t.WarningCPU,
		s.MemoryUsagePct >= t.WarningMemory,
		t.MaxConnections > 0 && float64(s.ActiveConnections) >= 0.8*float64(t.MaxConnections):
		return StatusWarning
	default:
		return StatusHealthy
	}
}
