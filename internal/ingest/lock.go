package ingest

import (
	"context"
	"sync"

	"stealthcompany.com/adtbridge/internal/couchbase"
)

// ErrRunInProgress is returned when another run holds the lock
var ErrRunInProgress = couchbase.ErrLocked

// Locker prevents overlapping ingest runs
type Locker interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// LocalLock guards runs within one process
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) Lock(context.Context) error {
	if !l.mu.TryLock() {
		return ErrRunInProgress
	}
	return nil
}

func (l *LocalLock) Unlock(context.Context) error {
	l.mu.Unlock()
	return nil
}
