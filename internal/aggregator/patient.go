package aggregator

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/fhir"
)

// resolvePatient returns the full patient, or a reference stub for any
// failure other than auth, transport or cancellation. An unreadable
// patient document still yields a stub.
func (a *Aggregator) resolvePatient(ctx context.Context, encounter fhir.Encounter) (adt.Patient, error) {
	reference := encounter.SubjectReference()

	id, ok := fhir.ResolveReference(reference)
	if !ok {
		return adt.PatientReference(reference), nil
	}

	patient, err := a.resolver.Patient(ctx, id)
	if err != nil {
		if isFatal(ctx, err) {
			return adt.Patient{}, err
		}
		log.Warn().
			Err(err).
			Str("encounter_id", encounter.ID).
			Str("patient_id", id).
			Msg("Patient not available, using reference")
		return adt.PatientReference(id), nil
	}

	if patient.ID == "" {
		return adt.PatientReference(id), nil
	}
	return patient, nil
}

// isFatal reports whether err must abort the encounter instead of
// degrading to a reference stub.
func isFatal(ctx context.Context, err error) bool {
	var authErr *fhir.AuthError
	var transportErr *fhir.TransportError

	switch {
	case ctx.Err() != nil:
		return true
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.As(err, &authErr), errors.As(err, &transportErr):
		return true
	default:
		return false
	}
}
