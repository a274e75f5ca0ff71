package adt

import (
	"encoding/json"
	"fmt"
)

// Sentinels substituted for values the tracking system requires.
const (
	DefaultDate    = "1900-01-01T00:00:00Z"
	DefaultVersion = "NA"
	DefaultID      = "default_id"
)

// Sanitize fills required fields the tracking system rejects when empty.
// It does not modify m and Sanitize(Sanitize(m)) == Sanitize(m).
func Sanitize(m Message) Message {
	out := m

	out.HospitalStay.FromAt = orDefault(m.HospitalStay.FromAt, DefaultDate)
	out.HospitalStay.UntilAt = orDefault(m.HospitalStay.UntilAt, DefaultDate)
	out.HospitalStay.Version = orDefault(m.HospitalStay.Version, DefaultVersion)

	if !m.Patient.Stub {
		out.Patient.DateOfBirth = orDefault(m.Patient.DateOfBirth, DefaultDate)
	}
	if m.Patient.AlternativeIDs != nil {
		out.Patient.AlternativeIDs = append([]string(nil), m.Patient.AlternativeIDs...)
	}

	if m.DepartmentStays != nil {
		out.DepartmentStays = make([]DepartmentStay, len(m.DepartmentStays))
	}
	for i, stay := range m.DepartmentStays {
		stay.StartsAt = orDefault(stay.StartsAt, DefaultDate)
		stay.Version = orDefault(stay.Version, DefaultVersion)
		stay.Location.Room = referenceOrDefault(stay.Location.Room)
		stay.Location.Bed = referenceOrDefault(stay.Location.Bed)
		out.DepartmentStays[i] = stay
	}

	return out
}

// SanitizeJSON sanitizes an untyped message document. Keys the message
// model does not know, such as a location-level id, are dropped.
func SanitizeJSON(data []byte) ([]byte, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse ADT message: %w", err)
	}
	return json.Marshal(Sanitize(m))
}

func orDefault(value NullString, fallback string) NullString {
	if value == "" {
		return NullString(fallback)
	}
	return value
}

func referenceOrDefault(ref *Reference) *Reference {
	if ref == nil || ref.ID == "" {
		return &Reference{ID: DefaultID}
	}
	return &Reference{ID: ref.ID}
}
