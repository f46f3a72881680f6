package session

import (
	"context"
	"log/slog"
	"time"
)

// Purger is a store that has to drop expired sessions itself.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunPurger purges expired sessions every interval until ctx is done.
func RunPurger(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PurgeExpired(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to purge expired sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.InfoContext(ctx, "Purged expired sessions", "count", n)
			}
		}
	}
}
