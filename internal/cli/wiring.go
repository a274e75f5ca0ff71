package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/aggregator"
	"stealthcompany.com/adtbridge/internal/cache"
	"stealthcompany.com/adtbridge/internal/config"
	"stealthcompany.com/adtbridge/internal/couchbase"
	"stealthcompany.com/adtbridge/internal/delivery"
	"stealthcompany.com/adtbridge/internal/fhir"
	"stealthcompany.com/adtbridge/internal/gateway"
	"stealthcompany.com/adtbridge/internal/ingest"
)

const runLockTTL = 2 * time.Hour

var backendScopes = []string{
	"system/Encounter.read",
	"system/Location.read",
	"system/Patient.read",
	"system/Group.read",
}

// components are the wired collaborators shared by the commands
type components struct {
	store      cache.Store
	lock       ingest.Locker
	fhir       *fhir.Client
	gateway    *gateway.Gateway
	aggregator *aggregator.Aggregator
	delivery   *delivery.Client
	closers    []io.Closer
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}

func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{}

	if err := c.buildStore(cfg); err != nil {
		c.Close()
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.FHIRTimeout}
	if cfg.BackendAuthEnabled() {
		authed, err := fhir.NewBackendHTTPClient(ctx, fhir.BackendAuthConfig{
			ClientID:       cfg.EpicClientID,
			TokenURL:       cfg.EpicTokenURL,
			PrivateKeyPath: cfg.EpicPrivateKeyPath,
			Scopes:         backendScopes,
		}, httpClient)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to set up backend authentication: %w", err)
		}
		httpClient = authed
		log.Info().Str("client_id", cfg.EpicClientID).Msg("Using Epic backend-services authentication")
	}
	c.fhir = fhir.NewClient(cfg.FHIRBaseURL, cfg.FHIRTimeout, httpClient)

	opts := []gateway.Option{
		gateway.WithTTL(cfg.CacheTTL),
		gateway.WithPacing(cfg.FetchPacing),
	}
	if cfg.CacheCoalesce {
		opts = append(opts, gateway.WithCoalescing())
	}
	c.gateway = gateway.New(c.store, c.fhir, opts...)
	c.aggregator = aggregator.New(c.gateway)

	if cfg.DeliveryEnabled() {
		c.delivery = delivery.NewClient(cfg.TnTReceiveEndpoint, cfg.TnTAccessToken, cfg.FHIRTimeout)
	}

	log.Info().
		Str("cache_backend", cfg.CacheBackend).
		Str("fhir_base_url", cfg.FHIRBaseURL).
		Bool("delivery", c.delivery != nil).
		Msg("Components ready")

	return c, nil
}

func (c *components) buildStore(cfg *config.Config) error {
	switch cfg.CacheBackend {
	case config.CacheFile:
		store, err := cache.NewFileStore(cfg.CacheDir)
		if err != nil {
			return err
		}
		c.store = store
		c.lock = &ingest.LocalLock{}
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		c.closers = append(c.closers, client)
		c.store = cache.NewRedisStore(client, "adtbridge:")
		c.lock = &ingest.LocalLock{}
	case config.CacheCouchbase:
		client, err := couchbase.NewClient(couchbase.Config{
			URL:      cfg.CouchbaseURL,
			Username: cfg.CouchbaseUsername,
			Password: cfg.CouchbasePassword,
			Bucket:   cfg.CouchbaseBucket,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to Couchbase: %w", err)
		}
		c.closers = append(c.closers, client)
		c.store = cache.NewCouchbaseStore(client, "")
		c.lock = client.NewRunLock(runLockTTL)
	default:
		c.store = cache.NewMemoryStore()
		c.lock = &ingest.LocalLock{}
	}
	return nil
}

// runner builds an ingest runner over source. A nil sink aggregates only.
func (c *components) runner(source ingest.EncounterSource) *ingest.Runner {
	runner := &ingest.Runner{
		Aggregator: c.aggregator,
		Source:     source,
		Status:     ingest.NewStatusStore(c.store),
		Lock:       c.lock,
	}
	if c.delivery != nil {
		runner.Sink = c.delivery
	}
	return runner
}

func (c *components) exportSource(cfg *config.Config) ingest.EncounterSource {
	return ingest.NewCachedSource(c.store, c.fhir, cfg.EpicFHIRGroupID, cfg.CacheTTL)
}
