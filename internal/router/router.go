package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/telemed-api/internal/config"
	"github.com/jwalitptl/telemed-api/internal/handler"
	authhandler "github.com/jwalitptl/telemed-api/internal/handler/auth"
	consultationhandler "github.com/jwalitptl/telemed-api/internal/handler/consultation"
	doctorhandler "github.com/jwalitptl/telemed-api/internal/handler/doctor"
	"github.com/jwalitptl/telemed-api/internal/middleware"
	"github.com/jwalitptl/telemed-api/internal/model"
)

type Handlers struct {
	Health       *handler.Handler
	Auth         *authhandler.Handler
	Consultation *consultationhandler.Handler
	Doctor       *doctorhandler.Handler
}

// Setup assembles the engine: recovery, request id, logging, CORS,
// timeout and rate limiting first, then the public and authenticated
// route groups under /api/v1.
func Setup(cfg *config.Config, handlers Handlers, authMW *middleware.AuthMiddleware, reg prometheus.Registerer) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.NewHTTPMetrics(cfg.Metrics.Namespace, reg).Collect())
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Timeout(middleware.TimeoutConfig{Duration: cfg.Server.RequestTimeout}))

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})
	r.Use(limiter.RateLimit())

	health := r.Group("/health")
	health.GET("/live", handlers.Health.LivenessCheck)
	health.GET("/ready", handlers.Health.ReadinessCheck)
	health.GET("/metrics", handlers.Health.MetricsHandler)

	v1 := r.Group("/api/v1")
	handlers.Auth.RegisterPublicRoutes(v1)

	protected := v1.Group("")
	protected.Use(authMW.Authenticate())
	handlers.Auth.RegisterRoutes(protected)
	handlers.Consultation.RegisterRoutes(protected)

	doctor := protected.Group("/doctor")
	doctor.Use(authMW.RequireRole(model.RoleDoctor))
	handlers.Doctor.RegisterRoutes(doctor)

	return r
}
