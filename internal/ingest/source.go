package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/cache"
)

// EncounterSource lists the raw encounters of one run
type EncounterSource interface {
	Encounters(ctx context.Context) ([]json.RawMessage, error)
}

// Exporter runs a bulk export of a group's encounters
type Exporter interface {
	ExportGroupEncounters(ctx context.Context, groupID string) ([]json.RawMessage, error)
}

// CachedSource serves the last export from the cache and only exports
// again once it expired.
type CachedSource struct {
	store    cache.Store
	exporter Exporter
	groupID  string
	ttl      time.Duration
}

// NewCachedSource creates a cached bulk-export encounter source
func NewCachedSource(store cache.Store, exporter Exporter, groupID string, ttl time.Duration) *CachedSource {
	return &CachedSource{
		store:    store,
		exporter: exporter,
		groupID:  groupID,
		ttl:      ttl,
	}
}

func (s *CachedSource) Encounters(ctx context.Context) ([]json.RawMessage, error) {
	data, found, err := s.store.Get(ctx, cache.EncountersKey)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read cached encounters, exporting")
	}
	if found {
		var encounters []json.RawMessage
		if err := json.Unmarshal(data, &encounters); err == nil {
			log.Info().Int("count", len(encounters)).Msg("Using cached encounters")
			return encounters, nil
		}
		log.Warn().Msg("Cached encounters are corrupt, exporting")
	}

	encounters, err := s.exporter.ExportGroupEncounters(ctx, s.groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to export encounters: %w", err)
	}

	data, err = json.Marshal(encounters)
	if err != nil {
		return nil, fmt.Errorf("failed to encode encounters: %w", err)
	}
	if err := s.store.Set(ctx, cache.EncountersKey, data, s.ttl); err != nil {
		log.Warn().Err(err).Msg("Failed to cache encounters")
	}

	return encounters, nil
}

// StaticSource serves a fixed list, e.g. encounters posted to the API
type StaticSource []json.RawMessage

func (s StaticSource) Encounters(context.Context) ([]json.RawMessage, error) {
	return s, nil
}
