package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// CoordinatorConfig tunes a Coordinator. Zero values select the defaults.
type CoordinatorConfig struct {
	// ExpiryMargin is subtracted from the stored expiry before a token is reused.
	ExpiryMargin time.Duration
	// RefreshTimeout bounds one refresh, including waiting for a peer process.
	RefreshTimeout time.Duration
	// LockPoll is how often the record is re-read while a peer process refreshes.
	LockPoll time.Duration
	Locker   Locker
	Metrics  *Metrics
	Now      func() time.Time
}

// Coordinator hands out valid access tokens for sessions, refreshing expired ones.
// At most one refresh per session is in flight; concurrent callers share its result.
type Coordinator struct {
	repo     Repository
	provider Provider
	logger   *slog.Logger
	locker   Locker
	metrics  *Metrics
	now      func() time.Time

	margin   time.Duration
	timeout  time.Duration
	lockPoll time.Duration

	flights singleflight.Group
	running sync.Map
}

func NewCoordinator(repo Repository, provider Provider, logger *slog.Logger, cfg CoordinatorConfig) *Coordinator {
	c := &Coordinator{
		repo:     repo,
		provider: provider,
		logger:   logger,
		locker:   cfg.Locker,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
		margin:   cfg.ExpiryMargin,
		timeout:  cfg.RefreshTimeout,
		lockPoll: cfg.LockPoll,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.locker == nil {
		c.locker = LocalLocker{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if c.lockPoll <= 0 {
		c.lockPoll = 100 * time.Millisecond
	}
	return c
}

// Initialize exchanges an authorization code and stores the resulting record as the
// session's only grant. Any earlier record, failed or not, is replaced.
func (c *Coordinator) Initialize(ctx context.Context, sessionID, code string, opts ...oauth2.AuthCodeOption) (Record, Grant, error) {
	grant, err := c.provider.Exchange(ctx, code, opts...)
	if err != nil {
		c.logger.WarnContext(ctx, "Authorization code exchange rejected", "error", err)
		return Record{}, Grant{}, fmt.Errorf("%w: %w", ErrAuthExchange, err)
	}

	rec := NewRecord(grant, c.now())
	if err := c.repo.Commit(ctx, sessionID, rec); err != nil {
		return Record{}, Grant{}, fmt.Errorf("failed to commit token record: %w", err)
	}

	c.logger.InfoContext(ctx, "Session token initialized", "expires_at", rec.ExpiresAt, "refreshable", rec.RefreshToken != "")
	return rec, grant, nil
}

// GetValidToken returns an access token usable for one outbound request of the session.
// Every authentication failure satisfies errors.Is(err, ErrUnauthorized); any other error
// comes from the repository.
func (c *Coordinator) GetValidToken(ctx context.Context, sessionID string) (string, error) {
	rec, err := c.read(ctx, sessionID)
	if err != nil {
		return "", err
	}

	switch c.stateOf(rec) {
	case StateFresh:
		return rec.AccessToken, nil
	case StateFailed:
		return "", ErrRefreshRejected
	}

	return c.refresh(ctx, sessionID)
}

// Status reports the lifecycle state of the session without refreshing.
func (c *Coordinator) Status(ctx context.Context, sessionID string) (State, Record, error) {
	rec, err := c.read(ctx, sessionID)
	if errors.Is(err, ErrNoSession) {
		return StateNone, Record{}, nil
	}
	if err != nil {
		return "", Record{}, err
	}

	state := c.stateOf(rec)
	if state == StateExpired && c.inFlight(sessionID) {
		state = StateRefreshing
	}
	return state, rec, nil
}

func (c *Coordinator) read(ctx context.Context, sessionID string) (Record, error) {
	rec, err := c.repo.Read(ctx, sessionID)
	if errors.Is(err, ErrNoRecord) {
		return Record{}, ErrNoSession
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read token record: %w", err)
	}
	return rec, nil
}

func (c *Coordinator) stateOf(rec Record) State {
	switch {
	case rec.HasFailed():
		return StateFailed
	case IsValid(rec, c.now().Add(c.margin)):
		return StateFresh
	default:
		return StateExpired
	}
}

func (c *Coordinator) inFlight(sessionID string) bool {
	_, running := c.running.Load(sessionID)
	return running
}

func (c *Coordinator) refresh(ctx context.Context, sessionID string) (string, error) {
	ch := c.flights.DoChan(sessionID, func() (any, error) {
		c.running.Store(sessionID, struct{}{})
		defer c.running.Delete(sessionID)

		// The flight outlives any single caller; it is bounded by the refresh timeout.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.refreshOnce(fctx, sessionID)
	})

	select {
	case res := <-ch:
		if res.Shared {
			c.metrics.observeShared()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrUnauthorized, ctx.Err())
	}
}

func (c *Coordinator) refreshOnce(ctx context.Context, sessionID string) (string, error) {
	// A flight that finished between our read and joining may already have committed.
	rec, err := c.read(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if token, done, err := c.settled(rec); done {
		return token, err
	}

	release, acquired, err := c.locker.Acquire(ctx, sessionID, c.timeout)
	if err != nil {
		c.logger.WarnContext(ctx, "Refresh lock unavailable, refreshing without it", "error", err)
		release, acquired = func() {}, true
	}
	if !acquired {
		return c.awaitPeer(ctx, sessionID, rec)
	}
	defer release()

	rec, err = c.read(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if token, done, err := c.settled(rec); done {
		return token, err
	}

	started := time.Now()
	grant, err := c.provider.Refresh(ctx, rec.RefreshToken)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		c.metrics.observeRefresh(OutcomeRejected, elapsed)
		c.logger.WarnContext(ctx, "Access token refresh rejected", "error", err)

		// The flight context may be spent on a timeout; the marker must still land.
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if cerr := c.repo.Commit(cctx, sessionID, rec.Failed()); cerr != nil {
			c.logger.ErrorContext(ctx, "Failed to mark token record as failed", "error", cerr)
		}
		return "", ErrRefreshRejected
	}

	next := rec.Renewed(grant, c.now())
	if err := c.repo.Commit(ctx, sessionID, next); err != nil {
		c.metrics.observeRefresh(OutcomeError, elapsed)
		return "", fmt.Errorf("failed to commit refreshed token record: %w", err)
	}

	c.metrics.observeRefresh(OutcomeSuccess, elapsed)
	c.logger.InfoContext(ctx, "Access token refreshed",
		"expires_at", next.ExpiresAt,
		"rotated", grant.RefreshToken != "" && grant.RefreshToken != rec.RefreshToken)
	return next.AccessToken, nil
}

// settled reports whether rec needs no refresh, and what the caller should get.
func (c *Coordinator) settled(rec Record) (string, bool, error) {
	switch c.stateOf(rec) {
	case StateFresh:
		return rec.AccessToken, true, nil
	case StateFailed:
		return "", true, ErrRefreshRejected
	}
	return "", false, nil
}

// awaitPeer waits for another process holding the refresh lock to commit its result.
func (c *Coordinator) awaitPeer(ctx context.Context, sessionID string, stale Record) (string, error) {
	ticker := time.NewTicker(c.lockPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.metrics.observeRefresh(OutcomeTimeout, 0)
			c.logger.WarnContext(ctx, "Timed out waiting for peer refresh")
			return "", fmt.Errorf("%w: %w", ErrUnauthorized, ctx.Err())
		case <-ticker.C:
		}

		rec, err := c.read(ctx, sessionID)
		if err != nil {
			return "", err
		}
		if rec == stale {
			continue
		}
		if token, done, err := c.settled(rec); done {
			c.metrics.observeRefresh(OutcomePeer, 0)
			return token, err
		}
	}
}
