package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/tripwatch/internal/models"
	"github.com/jengzang/tripwatch/internal/segmentation"
	"github.com/jengzang/tripwatch/internal/service"
	"github.com/jengzang/tripwatch/pkg/response"
)

// TripHandler handles HTTP requests for stored trips
type TripHandler struct {
	service *service.TripService
}

// NewTripHandler creates a new trip handler
func NewTripHandler(service *service.TripService) *TripHandler {
	return &TripHandler{service: service}
}

// GetTrips handles GET /api/v1/trips
func (h *TripHandler) GetTrips(c *gin.Context) {
	var filter models.TripFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	trips, err := h.service.GetTrips(c.Request.Context(), filter)
	if err != nil {
		response.InternalError(c, "Failed to get trips", err)
		return
	}

	response.Success(c, trips)
}

// GetTripByID handles GET /api/v1/trips/:id
func (h *TripHandler) GetTripByID(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}

	trip, err := h.service.GetTripByID(c.Request.Context(), id)
	if errors.Is(err, service.ErrTripNotFound) {
		response.NotFound(c, "Trip not found")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to get trip", err)
		return
	}

	segmented, err := trip.Segmented()
	if err != nil {
		response.InternalError(c, "Failed to decode trip", err)
		return
	}

	response.Success(c, gin.H{
		"trip":  trip,
		"pings": segmented.Pings,
	})
}

// GetTripGeoJSON handles GET /api/v1/trips/:id/geojson and returns a bare GeoJSON Feature
func (h *TripHandler) GetTripGeoJSON(c *gin.Context) {
	id, ok := tripID(c)
	if !ok {
		return
	}

	feature, err := h.service.GetTripFeature(c.Request.Context(), id)
	if errors.Is(err, service.ErrTripNotFound) {
		response.NotFound(c, "Trip not found")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to render trip", err)
		return
	}

	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, feature)
}

// StatsQuery bounds the trips summarized by GetTripStats, Unix milliseconds
type StatsQuery struct {
	From int64 `form:"from"`
	To   int64 `form:"to"`
}

// GetTripStats handles GET /api/v1/subjects/:subject/stats
func (h *TripHandler) GetTripStats(c *gin.Context) {
	var query StatsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}

	summary, err := h.service.GetTripStats(c.Request.Context(), c.Param("subject"), query.From, query.To)
	if errors.Is(err, segmentation.ErrInvalidInput) {
		response.BadRequest(c, "Invalid time window", err)
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to get trip stats", err)
		return
	}

	response.Success(c, summary)
}

func tripID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid trip ID", err)
		return 0, false
	}
	return id, true
}
