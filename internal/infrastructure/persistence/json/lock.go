package json

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// fileLock serializes writers of one document across every process sharing the
// data directory. Callers must also hold the repository mutex, since a Flock
// handle is not reentrant across goroutines.
type fileLock struct {
	fl *flock.Flock
}

func newFileLock(documentPath string) *fileLock {
	return &fileLock{fl: flock.New(documentPath + ".lock")}
}

// with runs fn while holding the lock. It gives up when ctx ends.
func (l *fileLock) with(ctx context.Context, fn func() error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	locked, err := l.fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to lock %s: %w", l.fl.Path(), err)
	}
	if !locked {
		return fmt.Errorf("failed to lock %s", l.fl.Path())
	}
	defer func() { _ = l.fl.Unlock() }()
	return fn()
}
