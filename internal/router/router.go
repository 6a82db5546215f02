package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"nearby/config"
	"nearby/internal/domain"
	"nearby/internal/handler"
	"nearby/internal/middleware"
	"nearby/internal/service"
	"nearby/internal/ws"
)

// Deps are the long-lived components the routes are wired to.
type Deps struct {
	Tracker  handler.Tracker
	Nearby   *service.NearbyService
	Hub      *ws.TrackingHub
	Limiter  *middleware.RateLimiter
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Setup builds the engine. runCtx bounds tracking started through the API.
func Setup(runCtx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if d.Logger != nil {
		r.Use(middleware.RequestLogger(d.Logger))
	}
	if d.Limiter != nil {
		r.Use(middleware.RateLimit(d.Limiter))
	}

	locationHandler := handler.NewLocationHandler(runCtx, d.Tracker, d.Nearby)
	nearbyHandler := handler.NewNearbyHandler(d.Nearby)
	distanceHandler := handler.NewDistanceHandler(d.Tracker)

	authMw := middleware.AuthRequired(&cfg.JWT)

	r.GET("/health", handler.Health(d.Tracker))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/ws/location", ws.UpgradeTrackingWS(&cfg.JWT, d.Hub))

	api := r.Group("/api/v1")
	{
		api.GET("/distance", distanceHandler.GetDistance)

		loc := api.Group("/location")
		loc.Use(authMw)
		{
			loc.GET("/state", locationHandler.GetState)
			loc.GET("/distance", distanceHandler.GetDistanceFromDevice)
			loc.POST("/tracking/start", middleware.RequireRole(domain.RoleOperator), locationHandler.StartTracking)
			loc.POST("/tracking/stop", middleware.RequireRole(domain.RoleOperator), locationHandler.StopTracking)
		}

		api.GET("/nearby", authMw, nearbyHandler.List)

		me := api.Group("/me")
		me.Use(authMw)
		{
			me.PUT("/location", locationHandler.SharePosition)
			me.DELETE("/location", locationHandler.ClearPosition)
		}
	}
	return r
}
