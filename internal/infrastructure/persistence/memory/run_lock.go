package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync"
)

// RunLock is the in-process counterpart of the Redis run lock. It only
// serializes runs within one process.
type RunLock struct {
	held *xsync.MapOf[string, string]
}

// NewRunLock creates a RunLock.
func NewRunLock() *RunLock {
	return &RunLock{held: xsync.NewMapOf[string]()}
}

// TryLock acquires key if it is free.
func (l *RunLock) TryLock(ctx context.Context, key string) (func(context.Context) error, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	token := uuid.NewString()
	if _, loaded := l.held.LoadOrStore(key, token); loaded {
		return nil, false, nil
	}

	release := func(context.Context) error {
		// Only the holder's token is ever stored under key.
		if current, ok := l.held.Load(key); ok && current == token {
			l.held.Delete(key)
		}
		return nil
	}
	return release, true, nil
}

// Held reports whether key is locked.
func (l *RunLock) Held(key string) bool {
	_, ok := l.held.Load(key)
	return ok
}
