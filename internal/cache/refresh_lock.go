package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/freekieb7/go-drawer/internal/util"
)

// RefreshLock serializes token refreshes of one session across replicas.
type RefreshLock struct {
	cache  *Service
	logger *slog.Logger
}

func NewRefreshLock(cache *Service, logger *slog.Logger) *RefreshLock {
	return &RefreshLock{
		cache:  cache,
		logger: logger,
	}
}

// Acquire takes the lock for sessionID. The lock expires after ttl even if the
// holder never releases it; release only deletes a lock this call still owns.
func (l *RefreshLock) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (func(), bool, error) {
	owner, err := util.GenerateRandomString(16)
	if err != nil {
		return nil, false, err
	}

	key := "refresh:" + sessionID
	acquired, err := l.cache.SetNX(ctx, key, []byte(owner), ttl)
	if err != nil || !acquired {
		return nil, false, err
	}

	release := func() {
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := l.cache.DeleteIfEquals(rctx, key, []byte(owner)); err != nil {
			l.logger.Warn("Failed to release refresh lock", "session", maskToken(sessionID), "error", err)
		}
	}
	return release, true, nil
}
