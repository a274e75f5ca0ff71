package adt

import "stealthcompany.com/adtbridge/internal/fhir"

// EpicFHIRIDSystem identifies Epic's internal FHIR id, which is not an
// alternative patient identifier.
const EpicFHIRIDSystem = "http://open.epic.com/FHIR/StructureDefinition/patient-dstu2-fhir-id"

// PatientFromFHIR maps a FHIR Patient onto a full ADT patient.
func PatientFromFHIR(res fhir.Patient) Patient {
	if res.ID == "" {
		return PatientReference("")
	}

	return Patient{
		ID:             res.ID,
		FirstName:      NullString(res.FirstName()),
		LastName:       NullString(res.LastName()),
		DateOfBirth:    NullString(res.BirthDate),
		Gender:         NullString(res.Gender),
		IsDeleted:      res.Active != nil && !*res.Active,
		AlternativeIDs: res.IdentifierValues(EpicFHIRIDSystem),
	}
}
