package couchbase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/rs/zerolog/log"
)

const lockDocID = "_system/ingest_lock"

// ErrLocked is returned when another ingest run holds the lock.
var ErrLocked = errors.New("ingest run already in progress")

// documentInserter is the part of DocumentManager the lock needs.
type documentInserter interface {
	InsertDocument(ctx context.Context, docID string, data any, expiry time.Duration) error
	DeleteDocument(ctx context.Context, docID string) error
}

// RunLock is a cluster-wide mutex for ingest runs, held as a document
// that expires on its own if the holder dies.
type RunLock struct {
	docs  documentInserter
	owner string
	ttl   time.Duration
}

// NewRunLock creates a lock that expires after ttl.
func NewRunLock(docs documentInserter, ttl time.Duration) *RunLock {
	host, _ := os.Hostname()
	return &RunLock{
		docs:  docs,
		owner: fmt.Sprintf("%s-%d", host, os.Getpid()),
		ttl:   ttl,
	}
}

// Lock acquires the lock or returns ErrLocked.
func (l *RunLock) Lock(ctx context.Context) error {
	lockDoc := map[string]any{
		"locked":    true,
		"lockedAt":  time.Now().UTC(),
		"lockedBy":  l.owner,
		"expiresAt": time.Now().UTC().Add(l.ttl),
	}

	err := l.docs.InsertDocument(ctx, lockDocID, lockDoc, l.ttl)
	if errors.Is(err, gocb.ErrDocumentExists) {
		return ErrLocked
	}
	if err != nil {
		return fmt.Errorf("failed to create lock document: %w", err)
	}

	log.Info().Str("owner", l.owner).Msg("Ingest lock acquired")
	return nil
}

// Unlock releases the lock
func (l *RunLock) Unlock(ctx context.Context) error {
	if err := l.docs.DeleteDocument(ctx, lockDocID); err != nil {
		return fmt.Errorf("failed to remove lock document: %w", err)
	}

	log.Info().Str("owner", l.owner).Msg("Ingest lock released")
	return nil
}
