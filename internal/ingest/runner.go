// Package ingest runs batches of encounters through aggregation and
// delivery, one encounter at a time.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/delivery"
	"stealthcompany.com/adtbridge/internal/fhir"
	"stealthcompany.com/adtbridge/internal/metrics"
)

// Per-encounter outcomes
const (
	StatusDelivered  = "delivered"
	StatusAggregated = "aggregated"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

// Aggregator turns one encounter into ADT messages
type Aggregator interface {
	Aggregate(ctx context.Context, encounter fhir.Encounter) ([]adt.Message, error)
}

// Deliverer sends one message to the tracking system
type Deliverer interface {
	Deliver(ctx context.Context, message adt.Message) error
}

// Item is the outcome of one encounter
type Item struct {
	EncounterID string `json:"encounter_id"`
	Status      string `json:"status"`
	Messages    int    `json:"messages"`
	StatusCode  int    `json:"status_code,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Report is the outcome of one batch
type Report struct {
	RunID       string         `json:"run_id"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at"`
	Aborted     bool           `json:"aborted"`
	Counts      map[string]int `json:"counts"`
	Items       []Item         `json:"items"`
}

func (r *Report) add(item Item) {
	r.Items = append(r.Items, item)
	r.Counts[item.Status]++
}

// Runner processes batches. A nil Sink aggregates without delivering.
type Runner struct {
	Aggregator Aggregator
	Source     EncounterSource
	Sink       Deliverer
	Status     *StatusStore
	Lock       Locker
}

// Run processes every encounter of Source under the run lock and
// records the outcome in the status document.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if r.Lock != nil {
		if err := r.Lock.Lock(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := r.Lock.Unlock(context.WithoutCancel(ctx)); err != nil {
				log.Error().Err(err).Msg("Failed to release ingest lock")
			}
		}()
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	r.setStatus(ctx, Status{Ready: false, RunID: runID, StartedAt: startedAt, Message: "ingest running"})

	encounters, err := r.Source.Encounters(ctx)
	if err != nil {
		r.setStatus(ctx, Status{Ready: false, RunID: runID, StartedAt: startedAt, Message: err.Error()})
		metrics.RecordIngestRun("failed", startedAt, nil)
		return nil, fmt.Errorf("failed to list encounters: %w", err)
	}

	report, err := r.process(ctx, runID, startedAt, encounters)

	completedAt := report.CompletedAt
	status := Status{
		Ready:       err == nil,
		RunID:       runID,
		StartedAt:   startedAt,
		CompletedAt: &completedAt,
		Message:     "ingest completed",
		Counts:      report.Counts,
	}
	runStatus := "completed"
	if err != nil {
		status.Message = err.Error()
		runStatus = "aborted"
	}
	r.setStatus(ctx, status)
	metrics.RecordIngestRun(runStatus, startedAt, report.Counts)

	return report, err
}

// Process runs the given encounters without the lock or status document.
func (r *Runner) Process(ctx context.Context, encounters []json.RawMessage) (*Report, error) {
	return r.process(ctx, uuid.NewString(), time.Now().UTC(), encounters)
}

// process stops early only on AuthError or cancellation; any other
// failure is recorded on its item and the batch continues.
func (r *Runner) process(ctx context.Context, runID string, startedAt time.Time, encounters []json.RawMessage) (*Report, error) {
	report := &Report{
		RunID:     runID,
		StartedAt: startedAt,
		Counts:    make(map[string]int),
		Items:     make([]Item, 0, len(encounters)),
	}
	logger := log.With().Str("run_id", runID).Logger()
	logger.Info().Int("encounters", len(encounters)).Msg("Starting ingest batch")

	var abortErr error
	for i, raw := range encounters {
		item, err := r.processOne(ctx, raw)
		report.add(item)

		var authErr *fhir.AuthError
		if errors.As(err, &authErr) || ctx.Err() != nil {
			abortErr = err
			if ctx.Err() != nil {
				abortErr = ctx.Err()
			}
			logger.Error().Err(abortErr).Int("processed", i+1).Msg("Aborting ingest batch")
			break
		}

		if (i+1)%100 == 0 {
			logger.Info().
				Int("processed", i+1).
				Int("total", len(encounters)).
				Msg("Progress update")
		}
	}

	report.Aborted = abortErr != nil
	report.CompletedAt = time.Now().UTC()

	logger.Info().
		Int("delivered", report.Counts[StatusDelivered]).
		Int("aggregated", report.Counts[StatusAggregated]).
		Int("skipped", report.Counts[StatusSkipped]).
		Int("failed", report.Counts[StatusFailed]).
		Bool("aborted", report.Aborted).
		Msg("Completed ingest batch")

	return report, abortErr
}

func (r *Runner) processOne(ctx context.Context, raw json.RawMessage) (Item, error) {
	encounter, err := fhir.ParseEncounter(raw)
	if err != nil {
		item := failedItem("", err)
		item.StatusCode = http.StatusUnprocessableEntity
		return item, err
	}

	item := Item{EncounterID: encounter.ID}

	messages, err := r.Aggregator.Aggregate(ctx, encounter)
	if err != nil {
		log.Warn().Err(err).Str("encounter_id", encounter.ID).Msg("Failed to aggregate encounter")
		return failedItem(encounter.ID, err), err
	}

	item.Messages = len(messages)
	if len(messages) == 0 {
		item.Status = StatusSkipped
		return item, nil
	}

	if r.Sink == nil {
		item.Status = StatusAggregated
		return item, nil
	}

	for _, message := range messages {
		if err := r.Sink.Deliver(ctx, adt.Sanitize(message)); err != nil {
			log.Warn().
				Err(err).
				Str("encounter_id", encounter.ID).
				Str("hospital_id", message.Hospital.ID).
				Msg("Failed to deliver ADT message")
			failed := failedItem(encounter.ID, err)
			failed.Messages = len(messages)
			return failed, err
		}
	}

	item.Status = StatusDelivered
	return item, nil
}

func failedItem(encounterID string, err error) Item {
	item := Item{
		EncounterID: encounterID,
		Status:      StatusFailed,
		Message:     err.Error(),
	}

	var deliveryErr *delivery.Error
	if errors.As(err, &deliveryErr) {
		item.StatusCode = deliveryErr.StatusCode
	} else {
		item.StatusCode = fhir.NewErrorResponse(err).StatusCode
	}
	return item
}

func (r *Runner) setStatus(ctx context.Context, status Status) {
	if r.Status == nil {
		return
	}
	if err := r.Status.Set(context.WithoutCancel(ctx), status); err != nil {
		log.Error().Err(err).Msg("Failed to update ingestion status")
	}
}
