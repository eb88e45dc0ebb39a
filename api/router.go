package api

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/portalshot/api/handler"
	"github.com/use-agent/portalshot/api/middleware"
	"github.com/use-agent/portalshot/capture"
	"github.com/use-agent/portalshot/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring checks always work.
func NewRouter(svc *capture.Service, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(svc))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/capture", handler.Capture(svc))

	return r
}
