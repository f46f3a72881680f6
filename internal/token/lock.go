package token

import (
	"context"
	"time"
)

// Locker serializes refreshes of one session across processes. Within a process the
// Coordinator already guarantees a single in-flight refresh per session.
type Locker interface {
	// Acquire tries to take the lock for key without blocking. When acquired is
	// true the caller must call release once the refresh has been committed.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), acquired bool, err error)
}

// LocalLocker is used when the process is the only refresher.
type LocalLocker struct{}

func (LocalLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
