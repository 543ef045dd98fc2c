package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/XiangYd616/runq"
	"github.com/XiangYd616/runq/id"
	"github.com/XiangYd616/runq/job"
)

// EnqueueRequest is the POST /v1/jobs payload.
type EnqueueRequest struct {
	CorrelationID    string          `json:"correlation_id" binding:"required"`
	Class            string          `json:"class"`
	Priority         string          `json:"priority"`
	Config           json.RawMessage `json:"config"`
	MaxRetries       int             `json:"max_retries"`
	EstimatedSeconds int             `json:"estimated_seconds"`
}

func (a *API) enqueueJob(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	spec := job.Spec{
		CorrelationID:     req.CorrelationID,
		Class:             job.Class(req.Class),
		Priority:          job.Priority(req.Priority),
		Config:            req.Config,
		MaxRetries:        req.MaxRetries,
		EstimatedDuration: time.Duration(req.EstimatedSeconds) * time.Second,
	}

	jobID, err := a.eng.Enqueue(c.Request.Context(), spec)
	if err != nil {
		switch {
		case errors.Is(err, runq.ErrQueueFull):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		case errors.Is(err, runq.ErrDuplicateJob):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	j, getErr := a.eng.Get(c.Request.Context(), jobID)
	if getErr != nil {
		c.JSON(http.StatusAccepted, gin.H{"id": jobID})
		return
	}
	c.JSON(http.StatusAccepted, j)
}

func (a *API) getJob(c *gin.Context) {
	jobID, err := id.ParseRunID(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	j, err := a.eng.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, runq.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, j)
}

func (a *API) cancelJob(c *gin.Context) {
	jobID, err := id.ParseRunID(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	reason := c.Query("reason")
	if reason == "" {
		reason = "cancelled via api"
	}

	ok, err := a.eng.Cancel(c.Request.Context(), jobID, reason)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "job not cancellable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

func (a *API) jobPosition(c *gin.Context) {
	jobID, err := id.ParseRunID(c.Param("jobId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job id"})
		return
	}

	pos, err := a.eng.QueuePositionOf(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	wait, err := a.eng.EstimateWait(c.Request.Context(), jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"position":       pos,
		"estimated_wait": wait.Seconds(),
	})
}
