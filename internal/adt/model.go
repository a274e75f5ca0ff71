// Package adt holds the Admission/Discharge/Transfer message model sent
// to the tracking system.
package adt

import (
	"encoding/json"
	"fmt"
)

// NullString encodes as JSON null when empty.
type NullString string

func (s NullString) MarshalJSON() ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

func (s *NullString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = ""
		return nil
	}
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*s = NullString(value)
	return nil
}

// Reference points at another entity by id.
type Reference struct {
	ID string `json:"id"`
}

// Patient is either a reference stub (only ID) or a full demographic record.
type Patient struct {
	ID             string
	FirstName      NullString
	LastName       NullString
	DateOfBirth    NullString
	Gender         NullString
	IsDeleted      bool
	AlternativeIDs []string

	// Stub marks a reference-only patient.
	Stub bool
}

type fullPatient struct {
	ID             string     `json:"id"`
	FirstName      NullString `json:"first_name"`
	LastName       NullString `json:"last_name"`
	DateOfBirth    NullString `json:"date_of_birth"`
	Gender         NullString `json:"gender"`
	IsDeleted      bool       `json:"is_deleted"`
	AlternativeIDs []string   `json:"alternative_ids"`
}

// PatientReference builds a reference-only patient.
func PatientReference(id string) Patient {
	return Patient{ID: id, Stub: true}
}

func (p Patient) MarshalJSON() ([]byte, error) {
	if p.Stub {
		return json.Marshal(Reference{ID: p.ID})
	}

	alternativeIDs := p.AlternativeIDs
	if alternativeIDs == nil {
		alternativeIDs = []string{}
	}

	return json.Marshal(fullPatient{
		ID:             p.ID,
		FirstName:      p.FirstName,
		LastName:       p.LastName,
		DateOfBirth:    p.DateOfBirth,
		Gender:         p.Gender,
		IsDeleted:      p.IsDeleted,
		AlternativeIDs: alternativeIDs,
	})
}

// UnmarshalJSON treats an object holding only "id" as a stub.
func (p *Patient) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("failed to parse patient: %w", err)
	}

	var full fullPatient
	if err := json.Unmarshal(data, &full); err != nil {
		return fmt.Errorf("failed to parse patient: %w", err)
	}

	_, hasID := fields["id"]
	*p = Patient{
		ID:             full.ID,
		FirstName:      full.FirstName,
		LastName:       full.LastName,
		DateOfBirth:    full.DateOfBirth,
		Gender:         full.Gender,
		IsDeleted:      full.IsDeleted,
		AlternativeIDs: full.AlternativeIDs,
		Stub:           hasID && len(fields) == 1,
	}
	return nil
}

// HospitalStay is one (encounter, hospital) admission.
type HospitalStay struct {
	ID                string     `json:"id"`
	Version           NullString `json:"version"`
	Patient           Reference  `json:"patient"`
	Hospital          Reference  `json:"hospital"`
	FromAt            NullString `json:"from_at"`
	UntilAt           NullString `json:"until_at"`
	IsPreDischarge    bool       `json:"is_pre_discharge"`
	IsPreAdmission    bool       `json:"is_pre_admission"`
	ReasonOfAdmission NullString `json:"reason_of_admission"`
	ReasonOfDischarge NullString `json:"reason_of_discharge"`
}

// StayLocation places a department stay in the hierarchy.
type StayLocation struct {
	Hospital   Reference  `json:"hospital"`
	Venue      Reference  `json:"venue"`
	Department Reference  `json:"department"`
	Room       *Reference `json:"room"`
	Bed        *Reference `json:"bed"`
}

// DepartmentStay is one department visit within a hospital stay.
type DepartmentStay struct {
	ID           string       `json:"id"`
	HospitalStay Reference    `json:"hospital_stay"`
	Version      NullString   `json:"version"`
	Location     StayLocation `json:"location"`
	StartsAt     NullString   `json:"starts_at"`
}

// DepartmentStayID derives the id of a department stay.
func DepartmentStayID(hospitalStayID, departmentID string) string {
	return hospitalStayID + "-" + departmentID
}

// Message is one ADT message: a hospital stay with its department stays.
type Message struct {
	Hospital        Reference        `json:"hospital"`
	Patient         Patient          `json:"patient"`
	HospitalStay    HospitalStay     `json:"hospital_stay"`
	DepartmentStays []DepartmentStay `json:"department_stays"`
}
