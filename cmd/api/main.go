package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/telemed-api/internal/config"
	"github.com/jwalitptl/telemed-api/internal/email"
	"github.com/jwalitptl/telemed-api/internal/fallback"
	"github.com/jwalitptl/telemed-api/internal/handler"
	authHandler "github.com/jwalitptl/telemed-api/internal/handler/auth"
	consultationHandler "github.com/jwalitptl/telemed-api/internal/handler/consultation"
	doctorHandler "github.com/jwalitptl/telemed-api/internal/handler/doctor"
	"github.com/jwalitptl/telemed-api/internal/middleware"
	"github.com/jwalitptl/telemed-api/internal/router"
	auditService "github.com/jwalitptl/telemed-api/internal/service/audit"
	authService "github.com/jwalitptl/telemed-api/internal/service/auth"
	availabilityService "github.com/jwalitptl/telemed-api/internal/service/availability"
	consultationService "github.com/jwalitptl/telemed-api/internal/service/consultation"
	userService "github.com/jwalitptl/telemed-api/internal/service/user"
	"github.com/jwalitptl/telemed-api/internal/store"
	memorystore "github.com/jwalitptl/telemed-api/internal/store/memory"
	postgresstore "github.com/jwalitptl/telemed-api/internal/store/postgres"
	redisstore "github.com/jwalitptl/telemed-api/internal/store/redis"
	pkgauth "github.com/jwalitptl/telemed-api/pkg/auth"
	"github.com/jwalitptl/telemed-api/pkg/logger"
	"github.com/jwalitptl/telemed-api/pkg/messaging"
	redisbroker "github.com/jwalitptl/telemed-api/pkg/messaging/redis"
	"github.com/jwalitptl/telemed-api/pkg/metrics"
	"github.com/jwalitptl/telemed-api/pkg/security"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level := logger.InfoLevel
	if cfg.Server.Mode == "debug" {
		level = logger.DebugLevel
	}
	lg := logger.NewLogger(&logger.Config{Level: level, TimeFormat: time.RFC3339, Output: os.Stdout})
	log.Logger = *lg.Zerolog()

	// Directory store backend
	dir, err := newStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to initialize directory store")
	}
	defer dir.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(cfg.Metrics.Namespace, registry)

	// Message broker: redis pub/sub when a redis-backed deployment is
	// configured, otherwise a no-op.
	var broker messaging.Broker = messaging.Noop{}
	if cfg.Store.Backend != "memory" {
		b, err := redisbroker.NewRedisBroker(redisbroker.Config{URL: cfg.Redis.URL()}, &log.Logger)
		if err != nil {
			log.Warn().Err(err).Msg("redis broker unavailable, events disabled")
		} else {
			broker = b
			defer broker.Close()
		}
	}

	mailer := email.Noop()
	if cfg.SMTP.Enabled {
		mailer = email.NewSMTPService(email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	// Services
	hasher := security.NewBcryptHasher(0)
	jwtSvc := pkgauth.NewJWTService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		time.Duration(cfg.JWT.RefreshExpiryHours)*time.Hour,
	)

	users := userService.NewService(dir, hasher)
	authSvc := authService.NewService(users, hasher, jwtSvc)
	auditor := auditService.NewService(dir, log.Logger)
	ledger := availabilityService.NewService(dir, broker, auditor, m, log.Logger)

	// The spool holds provisional bookings while the primary store is
	// down. With a postgres primary it lives in redis so cmd/worker can
	// drain it; otherwise it is in-process and the local reconciler
	// drains it.
	var spool *fallback.Spool
	if cfg.Fallback.Enabled {
		spoolDir := store.Directory(memorystore.New())
		if cfg.Store.Backend == "postgres" {
			if ss, err := redisstore.New(redisstore.Config{URL: cfg.Redis.URL(), KeyPrefix: "spool"}); err == nil {
				spoolDir = ss
				defer ss.Close()
			} else {
				log.Warn().Err(err).Msg("redis spool unavailable, falling back to in-process spool")
			}
		}
		spool = fallback.NewSpool(spoolDir)
	}

	consultations := consultationService.NewService(
		dir, users, ledger, broker, mailer, auditor, spool, m, log.Logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if spool != nil {
		reconciler := fallback.NewReconciler(spool, dir, consultations, auditor, m,
			fallback.ReconcilerConfig{PollInterval: cfg.Fallback.PollInterval}, log.Logger)
		go reconciler.Start(ctx)
	}

	// Middleware and handlers
	authMW := middleware.NewAuthMiddleware(authSvc)
	handlers := router.Handlers{
		Health:       handler.NewHandler(dir, registry),
		Auth:         authHandler.NewHandler(authSvc, users),
		Consultation: consultationHandler.NewHandler(consultations),
		Doctor:       doctorHandler.NewHandler(consultations, ledger),
	}

	r := router.Setup(cfg, handlers, authMW, registry)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("store", cfg.Store.Backend).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}

func newStore(cfg *config.Config) (store.Directory, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memorystore.New(), nil
	case "redis":
		return redisstore.New(redisstore.Config{URL: cfg.Redis.URL()})
	case "postgres":
		return postgresstore.New(postgresstore.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
			SSLMode:  cfg.Database.SSLMode,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
