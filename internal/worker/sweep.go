package worker

// sweep.go
// Background goroutine that periodically re-triggers reconciliation for areas left
// in PENDING_COMPARISON, for instance after a failed inline run or a lost job.
// Uses the Circuit Breaker to avoid hammering a downed queue.

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/repository"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

const sweepBatchSize = 20

// SweepConfig holds all dependencies for the sweep goroutine.
type SweepConfig struct {
	Areas    repository.AreaRepository
	Trigger  service.ReconcileTrigger
	CB       *infra.CircuitBreaker // optional
	Interval time.Duration
}

// StartSweep launches the sweep. It respects the context for graceful shutdown.
func StartSweep(ctx context.Context, cfg SweepConfig) {
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Msg("sweep: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sweep: shutting down")
				return
			case <-ticker.C:
				Sweep(ctx, cfg)
			}
		}
	}()
}

// Sweep runs one pass and returns the number of areas triggered.
func Sweep(ctx context.Context, cfg SweepConfig) int {
	// skip while the queue circuit is open
	if cfg.CB != nil && cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("sweep: circuit breaker is open, skipping tick")
		return 0
	}

	areas, err := cfg.Areas.ListByStatus(ctx, model.AreaPendingComparison)
	if err != nil {
		log.Error().Err(err).Msg("sweep: failed to query pending areas")
		return 0
	}
	if len(areas) == 0 {
		return 0
	}
	if len(areas) > sweepBatchSize {
		areas = areas[:sweepBatchSize]
	}

	log.Info().Int("count", len(areas)).Msg("sweep: re-triggering pending comparisons")
	triggered := 0
	for _, a := range areas {
		if ctx.Err() != nil {
			break
		}
		if err := cfg.Trigger.TriggerReconcile(ctx, a.ID); err != nil {
			log.Warn().Err(err).Str("area_id", a.ID.String()).Msg("sweep: reconcile trigger failed")
			continue
		}
		triggered++
	}
	return triggered
}
