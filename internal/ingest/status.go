package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/cache"
)

// StatusKey is the cache key of the ingestion status document
const StatusKey = "_system/ingestion_status"

// Status describes the last ingest run
type Status struct {
	Ready       bool           `json:"ready"`
	RunID       string         `json:"runId,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Message     string         `json:"message"`
	Counts      map[string]int `json:"counts,omitempty"`
}

// StatusStore reads and writes the ingestion status document
type StatusStore struct {
	store cache.Store
}

// NewStatusStore creates a status store on top of a cache store
func NewStatusStore(store cache.Store) *StatusStore {
	return &StatusStore{store: store}
}

// Get returns the current status. No document yet means not ready.
func (s *StatusStore) Get(ctx context.Context) (*Status, error) {
	data, found, err := s.store.Get(ctx, StatusKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get ingestion status: %w", err)
	}
	if !found {
		return &Status{Ready: false, Message: "no ingest run yet"}, nil
	}

	var status Status
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse ingestion status: %w", err)
	}
	return &status, nil
}

// Set stores status without expiry
func (s *StatusStore) Set(ctx context.Context, status Status) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to encode ingestion status: %w", err)
	}

	if err := s.store.Set(ctx, StatusKey, data, 0); err != nil {
		return fmt.Errorf("failed to set ingestion status: %w", err)
	}

	log.Debug().Bool("ready", status.Ready).Str("run_id", status.RunID).Msg("Ingestion status updated")
	return nil
}
