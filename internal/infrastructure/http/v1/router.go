// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"autoinc/internal/core/sequence"
	"autoinc/internal/domain"
	"autoinc/internal/domain/auth"
	"autoinc/internal/domain/counter"
	"autoinc/internal/infrastructure/http/v1/handlers"
	"autoinc/internal/infrastructure/http/v1/middleware"
	"autoinc/internal/metadata"
	"autoinc/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Store is the counter store behind the admin endpoints
	Store sequence.AdminStore

	// Allocator serves POST /counters/next
	Allocator *counter.Allocator

	// Entities saves documents of Models
	Entities *domain.EntityService
	Models   *metadata.Registry

	// JWTValidator enables bearer auth on /api/v1 when set
	JWTValidator middleware.JWTValidator

	// Metrics is served at /metrics when set
	Metrics http.Handler

	// ReadyTimeout bounds the store ping of the readiness probe
	ReadyTimeout time.Duration

	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	// Reference values must keep their exact numeric form for key derivation.
	binding.EnableDecoderUseNumber = true

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Store, cfg.ReadyTimeout)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	v1 := router.Group("/api/v1")
	if cfg.JWTValidator != nil {
		v1.Use(middleware.Auth(cfg.JWTValidator))
	}

	base := handlers.NewBaseHandler()
	registerCounterRoutes(v1, base, cfg)
	registerEntityRoutes(v1, base, cfg)
	registerModelRoutes(v1, base, cfg)

	return router
}

// requireRole enforces roles only when auth is enabled.
func requireRole(cfg RouterConfig, roles ...string) gin.HandlerFunc {
	if cfg.JWTValidator == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RequireRole(roles...)
}

func registerCounterRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewCounterHandler(base, cfg.Store, cfg.Allocator)

	read := requireRole(cfg, auth.RoleCounterReader, auth.RoleCounterAdmin)
	admin := requireRole(cfg, auth.RoleCounterAdmin)

	counters := rg.Group("/counters")
	{
		counters.GET("", read, h.List)
		counters.GET("/*id", read, h.Get)
		counters.POST("/next", admin, h.Next)
		counters.POST("/raise", admin, h.Raise)
	}
}

func registerEntityRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Entities == nil || cfg.Models == nil {
		return
	}
	h := handlers.NewEntityHandler(base, cfg.Entities, cfg.Models)

	write := requireRole(cfg, auth.RoleEntityWriter)
	read := requireRole(cfg, auth.RoleEntityWriter, auth.RoleCounterReader, auth.RoleCounterAdmin)

	entities := rg.Group("/entities/:model")
	{
		entities.POST("", write, h.Create)
		entities.GET("/:key", read, h.Get)
		entities.PUT("/:key", write, h.Update)
		entities.POST("/:key/next/:counter", write, h.SetNext)
	}

	rg.POST("/keys/:model/:counter", read, h.Key)
}

func registerModelRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	if cfg.Models == nil {
		return
	}
	h := handlers.NewModelHandler(base, cfg.Models)

	models := rg.Group("/models")
	{
		models.GET("", h.List)
		models.GET("/:name", h.Get)
	}
}
