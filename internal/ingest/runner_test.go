package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/cache"
	"stealthcompany.com/adtbridge/internal/delivery"
	"stealthcompany.com/adtbridge/internal/fhir"
)

type aggregatorFunc func(ctx context.Context, encounter fhir.Encounter) ([]adt.Message, error)

func (f aggregatorFunc) Aggregate(ctx context.Context, encounter fhir.Encounter) ([]adt.Message, error) {
	return f(ctx, encounter)
}

type recordingSink struct {
	mu        sync.Mutex
	delivered []adt.Message
	failFor   map[string]error
}

func (s *recordingSink) Deliver(_ context.Context, message adt.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failFor[message.HospitalStay.ID]; ok {
		return err
	}
	s.delivered = append(s.delivered, message)
	return nil
}

// byID yields one message per encounter, except for the ids listed in errs
// and encounters whose id starts with "none".
func byID(errs map[string]error) Aggregator {
	return aggregatorFunc(func(_ context.Context, encounter fhir.Encounter) ([]adt.Message, error) {
		if err, ok := errs[encounter.ID]; ok {
			return nil, err
		}
		if len(encounter.ID) >= 4 && encounter.ID[:4] == "none" {
			return []adt.Message{}, nil
		}
		return []adt.Message{{
			Hospital:     adt.Reference{ID: "H1"},
			Patient:      adt.PatientReference("P1"),
			HospitalStay: adt.HospitalStay{ID: encounter.ID},
		}}, nil
	})
}

func encounters(ids ...string) []json.RawMessage {
	raws := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		raws = append(raws, json.RawMessage(`{"resourceType":"Encounter","id":"`+id+`","hospitalization":{}}`))
	}
	return raws
}

func TestRunner_ProcessIsolatesFailures(t *testing.T) {
	sink := &recordingSink{failFor: map[string]error{
		"E3": &delivery.Error{StatusCode: http.StatusBadRequest, Body: "bad"},
	}}
	runner := &Runner{
		Aggregator: byID(map[string]error{
			"E2": &fhir.APIError{StatusCode: http.StatusNotFound, Resource: "Location"},
		}),
		Sink: sink,
	}

	raws := append(encounters("E1", "E2", "E3", "none-1"), json.RawMessage(`{"id": 42}`))
	report, err := runner.Process(context.Background(), raws)
	require.NoError(t, err)
	assert.False(t, report.Aborted)
	assert.NotEmpty(t, report.RunID)

	require.Len(t, report.Items, 5)
	assert.Equal(t, Item{EncounterID: "E1", Status: StatusDelivered, Messages: 1}, report.Items[0])

	assert.Equal(t, "E2", report.Items[1].EncounterID)
	assert.Equal(t, StatusFailed, report.Items[1].Status)
	assert.Equal(t, http.StatusNotFound, report.Items[1].StatusCode)

	assert.Equal(t, StatusFailed, report.Items[2].Status)
	assert.Equal(t, http.StatusBadRequest, report.Items[2].StatusCode)

	assert.Equal(t, StatusSkipped, report.Items[3].Status)

	assert.Equal(t, StatusFailed, report.Items[4].Status)
	assert.Equal(t, http.StatusUnprocessableEntity, report.Items[4].StatusCode)

	assert.Equal(t, map[string]int{StatusDelivered: 1, StatusFailed: 3, StatusSkipped: 1}, report.Counts)

	// delivered messages are sanitized
	require.Len(t, sink.delivered, 1)
	assert.Equal(t, adt.NullString(adt.DefaultVersion), sink.delivered[0].HospitalStay.Version)
}

func TestRunner_AuthErrorAbortsBatch(t *testing.T) {
	runner := &Runner{
		Aggregator: byID(map[string]error{
			"E2": &fhir.AuthError{StatusCode: http.StatusUnauthorized, Message: "expired"},
		}),
		Sink: &recordingSink{},
	}

	report, err := runner.Process(context.Background(), encounters("E1", "E2", "E3"))

	var authErr *fhir.AuthError
	require.True(t, errors.As(err, &authErr))
	assert.True(t, report.Aborted)
	require.Len(t, report.Items, 2)
	assert.Equal(t, http.StatusUnauthorized, report.Items[1].StatusCode)
}

func TestRunner_DryRun(t *testing.T) {
	runner := &Runner{Aggregator: byID(nil)}

	report, err := runner.Process(context.Background(), encounters("E1"))
	require.NoError(t, err)
	assert.Equal(t, StatusAggregated, report.Items[0].Status)
}

func TestRunner_RunRecordsStatus(t *testing.T) {
	store := cache.NewMemoryStore()
	statuses := NewStatusStore(store)

	runner := &Runner{
		Aggregator: byID(nil),
		Source:     StaticSource(encounters("E1", "E2")),
		Sink:       &recordingSink{},
		Status:     statuses,
		Lock:       &LocalLock{},
	}

	before, err := statuses.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, before.Ready)

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Counts[StatusDelivered])

	status, err := statuses.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Ready)
	assert.Equal(t, report.RunID, status.RunID)
	require.NotNil(t, status.CompletedAt)
	assert.Equal(t, 2, status.Counts[StatusDelivered])

	// lock was released
	require.NoError(t, runner.Lock.Lock(context.Background()))
}

func TestRunner_RunRespectsLock(t *testing.T) {
	lock := &LocalLock{}
	require.NoError(t, lock.Lock(context.Background()))

	runner := &Runner{Aggregator: byID(nil), Source: StaticSource(encounters("E1")), Lock: lock}
	_, err := runner.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
}

type failingSource struct{}

func (failingSource) Encounters(context.Context) ([]json.RawMessage, error) {
	return nil, errors.New("export unavailable")
}

func TestRunner_RunSourceFailure(t *testing.T) {
	statuses := NewStatusStore(cache.NewMemoryStore())
	runner := &Runner{Aggregator: byID(nil), Source: failingSource{}, Status: statuses}

	_, err := runner.Run(context.Background())
	assert.ErrorContains(t, err, "export unavailable")

	status, err := statuses.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, status.Ready)
	assert.Equal(t, "export unavailable", status.Message)
}
