package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/telemed-api/internal/config"
	"github.com/jwalitptl/telemed-api/internal/email"
	"github.com/jwalitptl/telemed-api/internal/fallback"
	auditService "github.com/jwalitptl/telemed-api/internal/service/audit"
	availabilityService "github.com/jwalitptl/telemed-api/internal/service/availability"
	consultationService "github.com/jwalitptl/telemed-api/internal/service/consultation"
	userService "github.com/jwalitptl/telemed-api/internal/service/user"
	"github.com/jwalitptl/telemed-api/internal/store"
	memorystore "github.com/jwalitptl/telemed-api/internal/store/memory"
	postgresstore "github.com/jwalitptl/telemed-api/internal/store/postgres"
	redisstore "github.com/jwalitptl/telemed-api/internal/store/redis"
	"github.com/jwalitptl/telemed-api/pkg/logger"
	"github.com/jwalitptl/telemed-api/pkg/messaging"
	"github.com/jwalitptl/telemed-api/pkg/metrics"
	"github.com/jwalitptl/telemed-api/pkg/security"
)

// Standalone reconciler daemon for deployments that keep the booking
// spool in redis instead of in API-server memory. It shares nothing with
// the API process except the stores.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	lg := logger.NewLogger(&logger.Config{Level: logger.InfoLevel, TimeFormat: time.RFC3339, Output: os.Stdout})
	log.Logger = *lg.Zerolog()

	primary, err := newPrimary(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Store.Backend).Msg("failed to initialize directory store")
	}
	defer primary.Close()

	// Spool lives in redis so spooled bookings survive API restarts.
	spoolStore, err := redisstore.New(redisstore.Config{URL: cfg.Redis.URL(), KeyPrefix: "spool"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to spool store")
	}
	defer spoolStore.Close()
	spool := fallback.NewSpool(spoolStore)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Metrics.Namespace, registry)

	users := userService.NewService(primary, security.NewBcryptHasher(0))
	auditor := auditService.NewService(primary, log.Logger)
	ledger := availabilityService.NewService(primary, messaging.Noop{}, auditor, m, log.Logger)
	consultations := consultationService.NewService(
		primary, users, ledger, messaging.Noop{}, email.Noop(), auditor, spool, m, log.Logger,
	)

	reconciler := fallback.NewReconciler(spool, primary, consultations, auditor, m,
		fallback.ReconcilerConfig{PollInterval: cfg.Fallback.PollInterval}, log.Logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Dur("poll_interval", cfg.Fallback.PollInterval).Msg("starting reconciler")
	reconciler.Start(ctx)
	log.Info().Msg("reconciler stopped")
}

func newPrimary(cfg *config.Config) (store.Directory, error) {
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
