// Package api exposes the queue over HTTP: enqueue, cancel, job and
// stats queries, schedule management and the WebSocket event feed.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/XiangYd616/runq/engine"
	"github.com/XiangYd616/runq/schedule"
	"github.com/XiangYd616/runq/stream"
)

// API wires the HTTP handlers for the queue engine.
type API struct {
	eng    *engine.Manager
	sched  *schedule.Scheduler
	feed   *stream.Feed
	logger *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithScheduler mounts the schedule management routes.
func WithScheduler(s *schedule.Scheduler) Option {
	return func(a *API) { a.sched = s }
}

// WithFeed mounts the WebSocket event feed at /v1/events.
func WithFeed(f *stream.Feed) Option {
	return func(a *API) { a.feed = f }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API over the engine.
func New(eng *engine.Manager, opts ...Option) *API {
	a := &API{eng: eng, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the assembled router.
func (a *API) Handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	a.RegisterRoutes(r)
	return r
}

// RegisterRoutes mounts all routes on the given router.
func (a *API) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/v1")
	v1.POST("/jobs", a.enqueueJob)
	v1.GET("/jobs/:jobId", a.getJob)
	v1.DELETE("/jobs/:jobId", a.cancelJob)
	v1.GET("/jobs/:jobId/position", a.jobPosition)
	v1.GET("/stats", a.getStats)

	if a.sched != nil {
		v1.POST("/schedules", a.createSchedule)
		v1.GET("/schedules", a.listSchedules)
		v1.DELETE("/schedules/:scheduleId", a.deleteSchedule)
		v1.PATCH("/schedules/:scheduleId", a.patchSchedule)
	}

	if a.feed != nil {
		v1.GET("/events", gin.WrapH(a.feed))
	}
}
