package router

import (
	"github.com/gin-gonic/gin"
	"github.com/wms/stocktaking/internal/domain/stocktaking"
	"github.com/wms/stocktaking/internal/infrastructure/logger"
	"github.com/wms/stocktaking/internal/interfaces/http/handler"
	"github.com/wms/stocktaking/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// EngineConfig holds the cross-cutting settings of the HTTP engine
type EngineConfig struct {
	Logger         *zap.Logger
	JWT            middleware.JWTMiddlewareConfig
	CORS           middleware.CORSConfig
	Tracing        middleware.TracingConfig
	MaxBodySize    int64
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	TrustedProxies []string
}

// Handlers are every HTTP entry point of the service
type Handlers struct {
	Health      *handler.HealthHandler
	Files       *handler.FileHandler // nil when reports go to S3
	ScanSocket  gin.HandlerFunc
	Stocktaking StocktakingHandlers
}

// NewEngine builds the gin engine: the global middleware chain, the public
// probes, and the authenticated API and websocket routes.
func NewEngine(cfg EngineConfig, h Handlers) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		middleware.TracingWithConfig(cfg.Tracing),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORSWithConfig(cfg.CORS),
	)
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}

	engine.GET("/health", h.Health.Live)
	engine.GET("/ready", h.Health.Ready)
	if h.Files != nil {
		engine.GET("/files/*key", h.Files.Download)
	}

	guards := []gin.HandlerFunc{
		middleware.JWTAuthMiddlewareWithConfig(cfg.JWT),
		middleware.SpanEnricher(),
	}
	if cfg.RateLimiter != nil {
		guards = append(guards, middleware.RateLimit(cfg.RateLimiter))
	}
	guards = append(guards, middleware.RequireAnyRole(stocktaking.RoleCounter, stocktaking.RoleApprover))

	r := NewRouter(engine, WithMiddleware(guards...))
	r.Register(StocktakingRoutes(h.Stocktaking))
	r.Register(NewDomainGroup("system", "/system").GET("/info", h.Health.Info))
	r.Setup()

	if h.ScanSocket != nil {
		wsJWT := cfg.JWT
		wsJWT.AllowQueryToken = true
		engine.GET("/ws/scan",
			middleware.JWTAuthMiddlewareWithConfig(wsJWT),
			middleware.RequireAnyRole(stocktaking.RoleCounter, stocktaking.RoleApprover),
			h.ScanSocket,
		)
	}

	return engine, nil
}
