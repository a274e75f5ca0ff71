package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/adtbridge/internal/cache"
)

type fakeExporter struct {
	calls   int
	results []json.RawMessage
	err     error
}

func (f *fakeExporter) ExportGroupEncounters(_ context.Context, groupID string) ([]json.RawMessage, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func TestCachedSource(t *testing.T) {
	store := cache.NewMemoryStore()
	exporter := &fakeExporter{results: encounters("E1", "E2")}
	source := NewCachedSource(store, exporter, "G1", time.Hour)

	for i := 0; i < 2; i++ {
		got, err := source.Encounters(context.Background())
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.JSONEq(t, string(encounters("E2")[0]), string(got[1]))
	}
	assert.Equal(t, 1, exporter.calls)

	_, found, err := store.Get(context.Background(), cache.EncountersKey)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCachedSource_ExportError(t *testing.T) {
	source := NewCachedSource(cache.NewMemoryStore(), &fakeExporter{err: errors.New("boom")}, "G1", time.Hour)

	_, err := source.Encounters(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestSchedule(t *testing.T) {
	_, err := Schedule(context.Background(), "not a spec", &Runner{})
	assert.Error(t, err)

	var mu sync.Mutex
	runs := 0
	runner := &Runner{
		Aggregator: byID(nil),
		Source: sourceFunc(func(context.Context) ([]json.RawMessage, error) {
			mu.Lock()
			runs++
			mu.Unlock()
			return encounters("E1"), nil
		}),
		Lock: &LocalLock{},
	}

	c, err := Schedule(context.Background(), "@every 1s", runner)
	require.NoError(t, err)
	defer c.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs > 0
	}, 3*time.Second, 10*time.Millisecond)
}

type sourceFunc func(context.Context) ([]json.RawMessage, error)

func (f sourceFunc) Encounters(ctx context.Context) ([]json.RawMessage, error) {
	return f(ctx)
}
