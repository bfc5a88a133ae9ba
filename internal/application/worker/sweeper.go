package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/tripcheckout/internal/infrastructure/observability"
	"github.com/rs/zerolog"
)

// SweepTarget deletes rows that expired at or before now.
type SweepTarget struct {
	Name   string
	Intent bool // counted as a swept intent
	Delete func(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper discards expired intents and idempotency records. The ephemeral
// tier expires on its own and is not swept.
type Sweeper struct {
	targets []SweepTarget
	now     func() time.Time
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewSweeper(logger zerolog.Logger, metrics *observability.Metrics, targets ...SweepTarget) *Sweeper {
	return &Sweeper{
		targets: targets,
		now:     time.Now,
		logger:  observability.Component(logger, "sweeper"),
		metrics: metrics,
	}
}

// RunOnce sweeps every target. A failing target does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	now := s.now()
	var (
		total int64
		errs  []error
	)
	for _, t := range s.targets {
		n, err := t.Delete(ctx, now)
		if err != nil {
			errs = append(errs, fmt.Errorf("sweep %s: %w", t.Name, err))
			continue
		}
		total += n
		if t.Intent && s.metrics != nil {
			s.metrics.IntentsSwept.Add(float64(n))
		}
		if n > 0 {
			s.logger.Info().Str("target", t.Name).Int64("deleted", n).Msg("expired rows swept")
		}
	}
	return total, errors.Join(errs...)
}
