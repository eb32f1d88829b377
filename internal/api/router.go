package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/jengzang/tripwatch/internal/config"
	"github.com/jengzang/tripwatch/internal/handler"
	"github.com/jengzang/tripwatch/internal/middleware"
	"github.com/jengzang/tripwatch/internal/observability"
	"github.com/jengzang/tripwatch/internal/service"
)

// Dependencies are the components the router serves
type Dependencies struct {
	Config      *config.Config
	TripService *service.TripService
	Metrics     *observability.Metrics
	Logger      *logrus.Logger
	RateLimiter *middleware.RateLimiter
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(deps.Logger, deps.Metrics))
	r.Use(middleware.CORS())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "tripwatch is running",
			"time":    time.Now().UnixMilli(),
		})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	tripHandler := handler.NewTripHandler(deps.TripService)
	segmentHandler := handler.NewSegmentHandler(deps.TripService)
	runHandler := handler.NewRunHandler(deps.TripService, deps.Config.Poll.Lookback)

	// API 路由组
	api := r.Group("/api/v1")
	if deps.RateLimiter != nil {
		api.Use(middleware.RateLimit(deps.RateLimiter))
	}
	if deps.Config.Auth.JWTSecret != "" {
		api.Use(middleware.JWTAuth(deps.Config.Auth.JWTSecret))
	}
	{
		api.POST("/segment", segmentHandler.Segment)

		trips := api.Group("/trips")
		{
			trips.GET("", tripHandler.GetTrips)
			trips.GET("/:id", tripHandler.GetTripByID)
			trips.GET("/:id/geojson", tripHandler.GetTripGeoJSON)
		}

		api.POST("/subjects/:subject/runs", runHandler.CreateRun)
		api.GET("/subjects/:subject/stats", tripHandler.GetTripStats)
		api.GET("/runs", runHandler.ListRuns)
	}

	return r
}
