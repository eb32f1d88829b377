package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tripwatch/internal/locations"
	"github.com/jengzang/tripwatch/internal/models"
	"github.com/jengzang/tripwatch/internal/service"
	"github.com/jengzang/tripwatch/pkg/response"
)

// RunHandler handles HTTP requests for segmentation runs
type RunHandler struct {
	service  *service.TripService
	lookback time.Duration
}

// NewRunHandler creates a new run handler. lookback is the window used when a request gives none.
func NewRunHandler(service *service.TripService, lookback time.Duration) *RunHandler {
	return &RunHandler{service: service, lookback: lookback}
}

// RunRequest is the optional body of POST /api/v1/subjects/:subject/runs
type RunRequest struct {
	From   int64  `json:"from"` // Unix milliseconds
	To     int64  `json:"to"`   // Unix milliseconds
	Name   string `json:"name"`
	Replay bool   `json:"replay"` // Re-segment stored pings instead of fetching
}

// CreateRun handles POST /api/v1/subjects/:subject/runs
func (h *RunHandler) CreateRun(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "Invalid request body", err)
			return
		}
	}

	to := time.Now()
	if req.To > 0 {
		to = time.UnixMilli(req.To)
	}
	from := to.Add(-h.lookback)
	if req.From > 0 {
		from = time.UnixMilli(req.From)
	}

	subject := service.Subject{ID: c.Param("subject"), Name: req.Name}
	run := h.service.RunSubject
	if req.Replay {
		run = h.service.ReplayStored
	}

	record, trips, err := run(c.Request.Context(), subject, from, to)
	if err != nil {
		if locations.IsUnauthorized(err) {
			response.Error(c, http.StatusBadGateway, "Location API rejected the credentials", err)
			return
		}
		var apiErr *locations.APIError
		if errors.As(err, &apiErr) {
			response.Error(c, http.StatusBadGateway, "Location API request failed", err)
			return
		}
		writeSegmentationError(c, err)
		return
	}

	response.Created(c, gin.H{
		"run":   record,
		"trips": trips,
	})
}

// ListRuns handles GET /api/v1/runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	var filter models.RunFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	runs, err := h.service.ListRuns(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to list runs", err)
		return
	}

	response.Success(c, runs)
}
