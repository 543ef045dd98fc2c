package admission

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/XiangYd616/runq/job"
	"github.com/XiangYd616/runq/resource"
)

// StatusSource reports the current derived resource status.
// resource.Monitor satisfies it.
type StatusSource interface {
	CurrentStatus() resource.Status
}

// Config defines per-class admission behaviour.
type Config struct {
	// Class is the job class this configuration applies to.
	Class job.Class

	// MaxConcurrency limits how many jobs of this class may run
	// simultaneously. Zero means no limit.
	MaxConcurrency int

	// RateLimit is the maximum sustained admissions per second for
	// this class. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// classState tracks runtime state for a single class pool.
type classState struct {
	config  Config
	limiter *rate.Limiter
	active  int
}

func newClassState(cfg Config) *classState {
	cs := &classState{config: cfg}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		cs.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return cs
}

// Controller answers "can a job of this class start now?" and accounts
// for occupied slots. It is safe for concurrent use.
type Controller struct {
	mu      sync.Mutex
	classes map[job.Class]*classState
	status  StatusSource
}

// NewController creates a Controller. Classes not configured have no
// concurrency limit. status may be nil, which disables resource gating.
func NewController(status StatusSource, configs ...Config) *Controller {
	c := &Controller{
		classes: make(map[job.Class]*classState, len(configs)),
		status:  status,
	}
	for _, cfg := range configs {
		c.classes[cfg.Class] = newClassState(cfg)
	}
	return c
}

// CanStart reports whether a job of the given class could be admitted
// right now. It does not consume a slot or a rate token.
func (c *Controller) CanStart(class job.Class) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canStartLocked(class)
}

func (c *Controller) canStartLocked(class job.Class) bool {
	cs := c.classes[class]
	if cs != nil && cs.config.MaxConcurrency > 0 && cs.active >= cs.config.MaxConcurrency {
		return false
	}

	// Stress jobs are blocked at critical (and above); warning passes.
	// Regular jobs are never resource-gated.
	if class == job.ClassStress && c.status != nil {
		switch c.status.CurrentStatus() {
		case resource.StatusCritical, resource.StatusOverloaded:
			return false
		}
	}

	if cs != nil && cs.limiter != nil && cs.limiter.Tokens() < 1 {
		return false
	}

	return true
}

// Acquire claims a slot for the class if admission passes, consuming a
// rate token. The caller MUST call Release when the job reaches a
// terminal state or stops occupying its slot.
func (c *Controller) Acquire(class job.Class) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.canStartLocked(class) {
		return false
	}

	cs := c.classes[class]
	if cs == nil {
		cs = newClassState(Config{Class: class})
		c.classes[class] = cs
	}
	if cs.limiter != nil && !cs.limiter.Allow() {
		return false
	}
	cs.active++
	return true
}

// Release frees a slot for the class.
func (c *Controller) Release(class job.Class) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cs := c.classes[class]; cs != nil && cs.active > 0 {
		cs.active--
	}
}

// ActiveCount returns the number of occupied slots for a class.
func (c *Controller) ActiveCount(class job.Class) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cs := c.classes[class]; cs != nil {
		return cs.active
	}
	return 0
}
