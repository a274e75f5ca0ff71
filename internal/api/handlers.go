package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/cache"
	"stealthcompany.com/adtbridge/internal/fhir"
	"stealthcompany.com/adtbridge/internal/ingest"
	"stealthcompany.com/adtbridge/internal/metrics"
)

// BatchResponse is the answer of the batch aggregation endpoints
type BatchResponse struct {
	Messages []adt.Message `json:"messages"`
	Items    []ingest.Item `json:"items"`
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": h.Environment,
	})
}

func (h *handlers) ingestionStatus(w http.ResponseWriter, r *http.Request) {
	if h.Status == nil {
		writeErrorStatus(w, http.StatusServiceUnavailable, "ingestion status is not available")
		return
	}

	status, err := h.Status.Get(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to read ingestion status")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *handlers) getLocation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	record, err := h.Locations.Location(r.Context(), id, fhir.EncounterLocation{})
	if err != nil {
		log.Warn().Err(err).Str("location_id", id).Msg("Failed to resolve location")
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

func (h *handlers) encounterADT(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	raw, err := h.Encounters.GetEncounter(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Str("encounter_id", id).Msg("Failed to fetch encounter")
		metrics.RecordADTRequest("encounter", "upstream_error")
		writeError(w, err)
		return
	}

	encounter, err := fhir.ParseEncounter(raw)
	if err != nil {
		log.Warn().Err(err).Str("encounter_id", id).Msg("Failed to parse encounter")
		metrics.RecordADTRequest("encounter", "invalid")
		writeErrorStatus(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	messages, err := h.Aggregator.Aggregate(r.Context(), encounter)
	if err != nil {
		log.Warn().Err(err).Str("encounter_id", id).Msg("Failed to aggregate encounter")
		metrics.RecordADTRequest("encounter", "upstream_error")
		writeError(w, err)
		return
	}

	metrics.RecordADTRequest("encounter", "success")
	writeJSON(w, http.StatusOK, sanitizeAll(messages))
}

// patientADT aggregates every encounter of a patient. Outside production,
// test encounters stored under the patient-encounters key take precedence.
func (h *handlers) patientADT(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	raws, err := h.patientEncounters(r.Context(), id)
	if err != nil {
		log.Warn().Err(err).Str("patient_id", id).Msg("Failed to list patient encounters")
		metrics.RecordADTRequest("patient", "upstream_error")
		writeError(w, err)
		return
	}

	h.respondBatch(r.Context(), w, "patient", raws)
}

func (h *handlers) patientEncounters(ctx context.Context, patientID string) ([]json.RawMessage, error) {
	if h.Environment != "production" && h.Store != nil {
		data, found, err := h.Store.Get(ctx, cache.PatientEncountersKey(patientID))
		if err != nil {
			log.Warn().Err(err).Str("patient_id", patientID).Msg("Failed to read test encounters")
		}
		if found {
			var raws []json.RawMessage
			if err := json.Unmarshal(data, &raws); err == nil {
				return raws, nil
			}
		}
	}

	return h.Encounters.SearchEncounters(ctx, patientID)
}

func (h *handlers) aggregate(w http.ResponseWriter, r *http.Request) {
	raws, ok := h.decodeEncounters(w, r, "aggregate")
	if !ok {
		return
	}
	h.respondBatch(r.Context(), w, "aggregate", raws)
}

func (h *handlers) sanitize(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	sanitized, err := adt.SanitizeJSON(body)
	if err != nil {
		metrics.RecordADTRequest("sanitize", "invalid_json")
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	metrics.RecordADTRequest("sanitize", "success")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(sanitized)
}

func (h *handlers) deliver(w http.ResponseWriter, r *http.Request) {
	if h.Delivery == nil {
		writeErrorStatus(w, http.StatusServiceUnavailable, "delivery is not configured")
		return
	}

	raws, ok := h.decodeEncounters(w, r, "deliver")
	if !ok {
		return
	}

	report, err := h.Delivery.Process(r.Context(), raws)
	var authErr *fhir.AuthError
	if errors.As(err, &authErr) {
		metrics.RecordADTRequest("deliver", "auth_error")
		writeError(w, err)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	metrics.RecordADTRequest("deliver", "success")
	writeJSON(w, http.StatusOK, report)
}

func (h *handlers) decodeEncounters(w http.ResponseWriter, r *http.Request, operation string) ([]json.RawMessage, bool) {
	body, err := readBody(w, r)
	if err != nil {
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	raws, err := fhir.SplitResources(body)
	if err != nil {
		log.Warn().Err(err).Str("operation", operation).Msg("Invalid encounter payload")
		metrics.RecordADTRequest(operation, "invalid_json")
		writeErrorStatus(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return raws, true
}

// respondBatch aggregates raws one by one. A failed encounter is reported
// on its item; an AuthError fails the whole request.
func (h *handlers) respondBatch(ctx context.Context, w http.ResponseWriter, operation string, raws []json.RawMessage) {
	resp := BatchResponse{
		Messages: []adt.Message{},
		Items:    make([]ingest.Item, 0, len(raws)),
	}

	for _, raw := range raws {
		item, messages, err := h.aggregateOne(ctx, raw)

		var authErr *fhir.AuthError
		if errors.As(err, &authErr) {
			metrics.RecordADTRequest(operation, "auth_error")
			writeError(w, err)
			return
		}

		resp.Items = append(resp.Items, item)
		resp.Messages = append(resp.Messages, sanitizeAll(messages)...)
	}

	metrics.RecordADTRequest(operation, "success")
	writeJSON(w, http.StatusOK, resp)
}

// aggregateOne reports an unparseable encounter as a failed item with 422
// and keeps going.
func (h *handlers) aggregateOne(ctx context.Context, raw json.RawMessage) (ingest.Item, []adt.Message, error) {
	encounter, err := fhir.ParseEncounter(raw)
	if err != nil {
		return ingest.Item{
			Status:     ingest.StatusFailed,
			StatusCode: http.StatusUnprocessableEntity,
			Message:    err.Error(),
		}, nil, nil
	}

	messages, err := h.Aggregator.Aggregate(ctx, encounter)
	if err != nil {
		resp := fhir.NewErrorResponse(err)
		return ingest.Item{
			EncounterID: encounter.ID,
			Status:      ingest.StatusFailed,
			StatusCode:  resp.StatusCode,
			Message:     resp.Message,
		}, nil, err
	}

	status := ingest.StatusAggregated
	if len(messages) == 0 {
		status = ingest.StatusSkipped
	}
	return ingest.Item{EncounterID: encounter.ID, Status: status, Messages: len(messages)}, messages, nil
}

func sanitizeAll(messages []adt.Message) []adt.Message {
	sanitized := make([]adt.Message, 0, len(messages))
	for _, message := range messages {
		sanitized = append(sanitized, adt.Sanitize(message))
	}
	return sanitized
}
