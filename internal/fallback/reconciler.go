package fallback

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jwalitptl/telemed-api/internal/model"
	"github.com/jwalitptl/telemed-api/internal/service/audit"
	"github.com/jwalitptl/telemed-api/internal/store"
	apperrors "github.com/jwalitptl/telemed-api/pkg/errors"
	"github.com/jwalitptl/telemed-api/pkg/metrics"
)

// Replayer runs a spooled booking through the authoritative booking path.
// Implemented by the consultation service.
type Replayer interface {
	Replay(ctx context.Context, c *model.Consultation) error
}

type ReconcilerConfig struct {
	PollInterval time.Duration
}

// Reconciler drains the spool once the primary store is reachable again.
type Reconciler struct {
	spool    *Spool
	primary  store.Directory
	replayer Replayer
	auditor  *audit.Service
	metrics  *metrics.Metrics
	config   ReconcilerConfig
	logger   zerolog.Logger
}

func NewReconciler(
	spool *Spool,
	primary store.Directory,
	replayer Replayer,
	auditor *audit.Service,
	m *metrics.Metrics,
	config ReconcilerConfig,
	logger zerolog.Logger,
) *Reconciler {
	if config.PollInterval <= 0 {
		config.PollInterval = 15 * time.Second
	}
	return &Reconciler{
		spool:    spool,
		primary:  primary,
		replayer: replayer,
		auditor:  auditor,
		metrics:  m,
		config:   config,
		logger:   logger,
	}
}

// Start polls until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("reconcile pass failed")
			}
		}
	}
}

// RunOnce replays every spooled booking. Replays are deduplicated by
// consultation id inside the replayer; a booking whose slot is gone by
// replay time is dropped with an audit entry, never silently.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	if err := r.primary.Ping(ctx); err != nil {
		r.logger.Debug().Err(err).Msg("primary store still unreachable, skipping reconcile")
		return nil
	}

	pending, err := r.spool.Pending(ctx)
	if err != nil {
		return err
	}

	for _, cons := range pending {
		err := r.replayer.Replay(ctx, cons)
		switch {
		case err == nil:
			if err := r.spool.Remove(ctx, cons.ID); err != nil {
				return err
			}
			r.metrics.ReconcileOutcomes.WithLabelValues("confirmed").Inc()
			r.logger.Info().Str("consultation_id", cons.ID).Msg("provisional booking confirmed")

		case isNoAvailability(err):
			// Slot was taken while we were degraded. Surface the drop.
			if err := r.spool.Remove(ctx, cons.ID); err != nil {
				return err
			}
			r.metrics.ReconcileOutcomes.WithLabelValues("dropped").Inc()
			r.auditor.Log(ctx, cons.PatientID, "reconcile_dropped", "consultation", cons.ID, map[string]interface{}{
				"date": cons.ScheduledDate,
				"time": cons.ScheduledTime,
			})
			r.logger.Warn().Str("consultation_id", cons.ID).
				Msg("provisional booking dropped, slot no longer available")

		default:
			// Store flapped mid-pass; leave the rest for the next tick.
			r.metrics.ReconcileOutcomes.WithLabelValues("error").Inc()
			return err
		}
	}
	return nil
}

func isNoAvailability(err error) bool {
	var appErr *apperrors.AppError
	return errors.As(err, &appErr) && appErr.Code == apperrors.ErrNoAvailability
}
