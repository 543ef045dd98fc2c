package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

// CreateScheduleRequest is the POST /v1/schedules payload.
type CreateScheduleRequest struct {
	Name             string          `json:"name" binding:"required"`
	Expression       string          `json:"expression" binding:"required"`
	CorrelationID    string          `json:"correlation_id" binding:"required"`
	Class            string          `json:"class"`
	Priority         string          `json:"priority"`
	Config           json.RawMessage `json:"config"`
	MaxRetries       int             `json:"max_retries"`
	EstimatedSeconds int             `json:"estimated_seconds"`
}

func (a *API) createSchedule(c *gin.Context) {
	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	template := job.Spec{
		CorrelationID:     req.CorrelationID,
		Class:             job.Class(req.Class),
		Priority:          job.Priority(req.Priority),
		Config:            req.Config,
		MaxRetries:        req.MaxRetries,
		EstimatedDuration: time.Duration(req.EstimatedSeconds) * time.Second,
	}
	if err := template.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	scheduleID, err := a.sched.Add(req.Name, req.Expression, template)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": scheduleID})
}

func (a *API) listSchedules(c *gin.Context) {
	c.JSON(http.StatusOK, a.sched.List())
}

func (a *API) deleteSchedule(c *gin.Context) {
	scheduleID, err := id.ParseScheduleID(c.Param("scheduleId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}
	if !a.sched.Remove(scheduleID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// PatchScheduleRequest toggles an entry.
type PatchScheduleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (a *API) patchSchedule(c *gin.Context) {
	scheduleID, err := id.ParseScheduleID(c.Param("scheduleId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return
	}
	var req PatchScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !a.sched.SetEnabled(scheduleID, *req.Enabled) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": *req.Enabled})
}
