// Package aggregator turns one FHIR Encounter into ADT messages by
// rebuilding the hospital > department > room > bed hierarchy of the
// locations it visited.
package aggregator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/fhir"
	"stealthcompany.com/adtbridge/internal/location"
	"stealthcompany.com/adtbridge/internal/metrics"
)

// DefaultMaxParentDepth bounds the partOf walk from a department to its hospital.
const DefaultMaxParentDepth = 5

// Resolver resolves locations and patients, usually through the cache gateway.
type Resolver interface {
	Location(ctx context.Context, id string, entry fhir.EncounterLocation) (location.Record, error)
	LocationFromEntry(entry fhir.EncounterLocation) (location.Record, bool)
	Patient(ctx context.Context, id string) (adt.Patient, error)
}

// Aggregator is stateless between calls and safe for concurrent use.
type Aggregator struct {
	resolver       Resolver
	maxParentDepth int
}

// New creates an aggregator
func New(resolver Resolver) *Aggregator {
	return &Aggregator{
		resolver:       resolver,
		maxParentDepth: DefaultMaxParentDepth,
	}
}

// AggregateJSON parses a raw Encounter and aggregates it.
func (a *Aggregator) AggregateJSON(ctx context.Context, raw []byte) ([]adt.Message, error) {
	encounter, err := fhir.ParseEncounter(raw)
	if err != nil {
		return nil, err
	}
	return a.Aggregate(ctx, encounter)
}

// Aggregate emits one message per hospital the encounter passed through.
// Encounters without hospitalization are not hospital stays and yield none.
func (a *Aggregator) Aggregate(ctx context.Context, encounter fhir.Encounter) ([]adt.Message, error) {
	startTime := time.Now()
	logger := log.With().Str("encounter_id", encounter.ID).Logger()

	if encounter.Hospitalization == nil {
		logger.Debug().Msg("Encounter has no hospitalization, skipping")
		metrics.RecordAggregation("skipped", startTime, 0)
		return []adt.Message{}, nil
	}

	messages, err := a.aggregate(ctx, encounter)
	if err != nil {
		metrics.RecordAggregation("failed", startTime, 0)
		return nil, err
	}

	logger.Info().
		Int("locations", len(encounter.Location)).
		Int("messages", len(messages)).
		Dur("duration", time.Since(startTime)).
		Msg("Aggregated encounter")

	metrics.RecordAggregation("success", startTime, len(messages))
	return messages, nil
}

func (a *Aggregator) aggregate(ctx context.Context, encounter fhir.Encounter) ([]adt.Message, error) {
	patient, err := a.resolvePatient(ctx, encounter)
	if err != nil {
		return nil, err
	}

	ws := newWorkingSet()
	for i, entry := range encounter.Location {
		if err := a.scan(ctx, ws, entry); err != nil {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Trace().Str("encounter_id", encounter.ID).Int("entry", i).Msg("Scanned location entry")
	}

	return ws.match(stayTemplate(encounter, patient), patient), nil
}

// scan resolves and classifies one encounter-location entry into ws.
func (a *Aggregator) scan(ctx context.Context, ws *workingSet, entry fhir.EncounterLocation) error {
	record, ok, err := a.resolveEntry(ctx, entry)
	if err != nil || !ok {
		return err
	}

	switch record.Kind {
	case location.Hospital:
		ws.addHospital(record)
	case location.Department:
		if !entry.HasPeriod() {
			log.Debug().Str("department_id", record.ID).Msg("Department entry has no period, discarding")
			return nil
		}
		hospitalID, err := a.findHospital(ctx, ws, record)
		if err != nil {
			return err
		}
		ws.addDepartment(record, hospitalID)
	case location.Room:
		ws.addRoom(record)
	case location.Bed:
		ws.addBed(record)
	case location.Unclassified:
		log.Trace().Str("location_id", record.ID).Msg("Unclassified location")
	}
	return nil
}

// resolveEntry resolves the entry's reference through the resolver, or
// its inline identifier when the reference does not resolve.
func (a *Aggregator) resolveEntry(ctx context.Context, entry fhir.EncounterLocation) (location.Record, bool, error) {
	if id, ok := fhir.ResolveReference(entry.Reference()); ok {
		record, err := a.resolver.Location(ctx, id, entry)
		if err != nil {
			return location.Record{}, false, err
		}
		return record, true, nil
	}

	record, ok := a.resolver.LocationFromEntry(entry)
	return record, ok, nil
}

// findHospital walks a department's partOf chain until it reaches a
// hospital, registering it in ws. A broken chain yields "".
func (a *Aggregator) findHospital(ctx context.Context, ws *workingSet, department location.Record) (string, error) {
	parentID := department.PartOfID
	for depth := 0; parentID != "" && depth < a.maxParentDepth; depth++ {
		if _, ok := ws.hospitals[parentID]; ok {
			return parentID, nil
		}

		parent, err := a.resolver.Location(ctx, parentID, fhir.EncounterLocation{})
		if fhir.IsNotFound(err) {
			log.Debug().Str("location_id", parentID).Msg("Dangling partOf reference")
			return "", nil
		}
		if err != nil {
			return "", err
		}

		if parent.Kind == location.Hospital {
			ws.addHospital(parent)
			return parent.ID, nil
		}
		parentID = parent.PartOfID
	}

	log.Debug().Str("department_id", department.ID).Msg("No hospital found for department")
	return "", nil
}

func stayTemplate(encounter fhir.Encounter, patient adt.Patient) adt.HospitalStay {
	class := encounter.ClassDisplay()

	return adt.HospitalStay{
		ID:                encounter.ID,
		Patient:           adt.Reference{ID: patient.ID},
		FromAt:            adt.NullString(encounter.PeriodStart()),
		UntilAt:           adt.NullString(encounter.PeriodEnd()),
		IsPreAdmission:    class == "Admission",
		IsPreDischarge:    class == "Discharge",
		ReasonOfAdmission: adt.NullString(encounter.AdmitSource()),
		ReasonOfDischarge: adt.NullString(encounter.DischargeDisposition()),
	}
}
