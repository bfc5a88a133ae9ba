package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Every runs fn on each tick until ctx is done. Errors are logged and the
// loop carries on.
func Every(ctx context.Context, interval time.Duration, logger zerolog.Logger, name string, fn func(ctx context.Context) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := fn(ctx); err != nil {
			logger.Error().Err(err).Str("job", name).Msg("background job failed")
		}
	}
}
