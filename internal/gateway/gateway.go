// Package gateway resolves locations and patients through the cache,
// fetching from the FHIR server only on a miss.
package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/cache"
	"stealthcompany.com/adtbridge/internal/fhir"
	"stealthcompany.com/adtbridge/internal/location"
	"stealthcompany.com/adtbridge/internal/metrics"
)

// DefaultPacing is the delay before every live location fetch.
const DefaultPacing = time.Second

// Source fetches raw resources from the FHIR server.
type Source interface {
	GetLocation(ctx context.Context, id string) ([]byte, error)
	GetPatient(ctx context.Context, id string) ([]byte, error)
}

// Gateway is safe for concurrent use.
type Gateway struct {
	store  cache.Store
	source Source
	ttl    time.Duration
	pacing time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	group  *singleflight.Group
}

// Option configures a Gateway
type Option func(*Gateway)

// WithTTL overrides cache.DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.ttl = ttl }
}

// WithPacing overrides DefaultPacing; 0 disables the delay.
func WithPacing(pacing time.Duration) Option {
	return func(g *Gateway) { g.pacing = pacing }
}

// WithCoalescing collapses concurrent misses for one key into one fetch.
func WithCoalescing() Option {
	return func(g *Gateway) { g.group = &singleflight.Group{} }
}

// New creates a gateway over store and source
func New(store cache.Store, source Source, opts ...Option) *Gateway {
	g := &Gateway{
		store:  store,
		source: source,
		ttl:    cache.DefaultTTL,
		pacing: DefaultPacing,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Location resolves Location/{id} and classifies it against entry.
func (g *Gateway) Location(ctx context.Context, id string, entry fhir.EncounterLocation) (location.Record, error) {
	raw, err := g.fetch(ctx, "location", cache.LocationKey(id), func(ctx context.Context) ([]byte, error) {
		if err := g.sleep(ctx, g.pacing); err != nil {
			return nil, err
		}
		return g.source.GetLocation(ctx, id)
	})
	if err != nil {
		return location.Record{}, err
	}

	res, err := fhir.ParseLocation(raw)
	if err != nil {
		return location.Record{}, err
	}
	if res.ID == "" {
		res.ID = id
	}

	return location.New(res, entry), nil
}

// LocationFromEntry builds a record from an entry's inline identifier
// without any I/O.
func (g *Gateway) LocationFromEntry(entry fhir.EncounterLocation) (location.Record, bool) {
	return location.FromEntry(entry)
}

// Patient resolves Patient/{id}
func (g *Gateway) Patient(ctx context.Context, id string) (adt.Patient, error) {
	raw, err := g.fetch(ctx, "patient", cache.PatientKey(id), func(ctx context.Context) ([]byte, error) {
		return g.source.GetPatient(ctx, id)
	})
	if err != nil {
		return adt.Patient{}, err
	}

	res, err := fhir.ParsePatient(raw)
	if err != nil {
		return adt.Patient{}, err
	}

	return adt.PatientFromFHIR(res), nil
}

// fetch returns the cached value for key, or loads and caches it.
func (g *Gateway) fetch(ctx context.Context, kind, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := g.lookup(ctx, kind, key); ok {
		return value, nil
	}

	if g.group == nil {
		return g.loadAndStore(ctx, key, load)
	}

	value, err, shared := g.group.Do(key, func() (any, error) {
		// another caller may have filled the cache while we waited
		if value, ok := g.lookup(ctx, kind, key); ok {
			return value, nil
		}
		return g.loadAndStore(ctx, key, load)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Str("key", key).Msg("Coalesced cache miss")
	}
	return value.([]byte), nil
}

func (g *Gateway) lookup(ctx context.Context, kind, key string) ([]byte, bool) {
	value, found, err := g.store.Get(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache read failed, fetching upstream")
		found = false
	}
	metrics.RecordCacheLookup(kind, found)
	return value, found
}

func (g *Gateway) loadAndStore(ctx context.Context, key string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	value, err := load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}

	if err := g.store.Set(ctx, key, value, g.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to cache resource")
	}
	return value, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
