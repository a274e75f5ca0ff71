// Package api exposes the bridge over HTTP.
package api

import (
	"context"
	"encoding/json"

	"github.com/gorilla/mux"

	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/cache"
	"stealthcompany.com/adtbridge/internal/fhir"
	"stealthcompany.com/adtbridge/internal/ingest"
	"stealthcompany.com/adtbridge/internal/location"
	"stealthcompany.com/adtbridge/internal/metrics"
)

// Aggregator turns a parsed encounter into ADT messages
type Aggregator interface {
	Aggregate(ctx context.Context, encounter fhir.Encounter) ([]adt.Message, error)
}

// EncounterClient reads encounters from the FHIR server
type EncounterClient interface {
	GetEncounter(ctx context.Context, id string) ([]byte, error)
	SearchEncounters(ctx context.Context, patientID string) ([]json.RawMessage, error)
}

// LocationResolver resolves one location through the cache
type LocationResolver interface {
	Location(ctx context.Context, id string, entry fhir.EncounterLocation) (location.Record, error)
}

// Deps are the collaborators of the HTTP handlers. Delivery is optional;
// without it POST /adt/deliver answers 503.
type Deps struct {
	Aggregator  Aggregator
	Encounters  EncounterClient
	Locations   LocationResolver
	Delivery    *ingest.Runner
	Status      *ingest.StatusStore
	Store       cache.Store
	Environment string
}

type handlers struct {
	Deps
}

// SetupRoutes configures and returns the HTTP router
func SetupRoutes(deps Deps) *mux.Router {
	h := &handlers{Deps: deps}
	r := mux.NewRouter()

	r.Use(metrics.MetricsMiddleware)

	r.HandleFunc("/health", h.health).Methods("GET")
	r.HandleFunc("/ingestion-status", h.ingestionStatus).Methods("GET")
	r.HandleFunc("/locations/{id}", h.getLocation).Methods("GET")
	r.HandleFunc("/encounters/{id}/adt", h.encounterADT).Methods("GET")
	r.HandleFunc("/patients/{id}/adt", h.patientADT).Methods("GET")
	r.HandleFunc("/adt/aggregate", h.aggregate).Methods("POST")
	r.HandleFunc("/adt/sanitize", h.sanitize).Methods("POST")
	r.HandleFunc("/adt/deliver", h.deliver).Methods("POST")

	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	return r
}
