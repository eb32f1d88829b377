package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tripwatch/internal/locations"
	"github.com/jengzang/tripwatch/internal/render"
	"github.com/jengzang/tripwatch/internal/segmentation"
	"github.com/jengzang/tripwatch/internal/service"
	"github.com/jengzang/tripwatch/pkg/response"
)

// SegmentHandler handles ad-hoc segmentation requests
type SegmentHandler struct {
	service *service.TripService
}

// NewSegmentHandler creates a new segment handler
func NewSegmentHandler(service *service.TripService) *SegmentHandler {
	return &SegmentHandler{service: service}
}

// SegmentRequest is the body of POST /api/v1/segment
type SegmentRequest struct {
	SubjectID string           `json:"subject_id"`
	Locations locations.Series `json:"locations" binding:"required"`
	// Params overrides individual segmentation parameters; omitted fields keep their defaults
	Params json.RawMessage `json:"params"`
}

// Segment handles POST /api/v1/segment. With ?format=geojson the trips are
// returned as a GeoJSON FeatureCollection.
func (h *SegmentHandler) Segment(c *gin.Context) {
	var req SegmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}

	params := h.service.Params()
	if len(req.Params) > 0 && string(req.Params) != "null" {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			response.BadRequest(c, "Invalid segmentation parameters", err)
			return
		}
	}

	result, err := h.service.Segment(req.Locations, req.SubjectID, &params)
	if err != nil {
		writeSegmentationError(c, err)
		return
	}

	if c.Query("format") == "geojson" {
		fc, err := render.TripCollection(result.Trips)
		if err != nil {
			response.InternalError(c, "Failed to render trips", err)
			return
		}
		c.Header("Content-Type", "application/geo+json")
		c.JSON(http.StatusOK, fc)
		return
	}

	response.Success(c, result)
}

// writeSegmentationError maps engine and input errors to 400 and everything else to 500
func writeSegmentationError(c *gin.Context, err error) {
	var malformed *segmentation.MalformedPingError
	switch {
	case errors.As(err, &malformed):
		c.JSON(http.StatusBadRequest, response.Response{
			Code:    http.StatusBadRequest,
			Message: "Malformed ping",
			Error:   err.Error(),
			Data:    gin.H{"timestamp": malformed.Timestamp},
		})
	case errors.Is(err, segmentation.ErrInvalidParams):
		response.BadRequest(c, "Invalid segmentation parameters", err)
	case errors.Is(err, segmentation.ErrInvalidInput), errors.Is(err, locations.ErrAmbiguousSubject):
		response.BadRequest(c, "Invalid input", err)
	default:
		response.InternalError(c, "Segmentation failed", err)
	}
}
