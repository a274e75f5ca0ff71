package adt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() Message {
	return Message{
		Hospital: Reference{ID: "H1"},
		Patient:  Patient{ID: "P1", FirstName: "Ada", AlternativeIDs: []string{"MRN1"}},
		HospitalStay: HospitalStay{
			ID:       "E1",
			Patient:  Reference{ID: "P1"},
			Hospital: Reference{ID: "H1"},
			FromAt:   "2024-01-01T10:00:00Z",
		},
		DepartmentStays: []DepartmentStay{
			{
				ID:           "E1-D1",
				HospitalStay: Reference{ID: "E1"},
				Location: StayLocation{
					Hospital:   Reference{ID: "H1"},
					Venue:      Reference{ID: "H1"},
					Department: Reference{ID: "D1"},
					Room:       &Reference{ID: "R1"},
				},
			},
		},
	}
}

func TestSanitize(t *testing.T) {
	original := sampleMessage()
	sanitized := Sanitize(original)

	assert.Equal(t, NullString("2024-01-01T10:00:00Z"), sanitized.HospitalStay.FromAt)
	assert.Equal(t, NullString(DefaultDate), sanitized.HospitalStay.UntilAt)
	assert.Equal(t, NullString(DefaultVersion), sanitized.HospitalStay.Version)
	assert.Equal(t, NullString(DefaultDate), sanitized.Patient.DateOfBirth)

	require.Len(t, sanitized.DepartmentStays, 1)
	stay := sanitized.DepartmentStays[0]
	assert.Equal(t, NullString(DefaultDate), stay.StartsAt)
	assert.Equal(t, NullString(DefaultVersion), stay.Version)
	assert.Equal(t, &Reference{ID: "R1"}, stay.Location.Room)
	assert.Equal(t, &Reference{ID: DefaultID}, stay.Location.Bed)

	// input untouched
	assert.Nil(t, original.DepartmentStays[0].Location.Bed)
	assert.Empty(t, original.HospitalStay.UntilAt)
}

func TestSanitize_Idempotent(t *testing.T) {
	messages := []Message{
		sampleMessage(),
		{},
		{Patient: PatientReference("P9"), DepartmentStays: []DepartmentStay{{Location: StayLocation{Room: &Reference{}}}}},
	}

	for _, m := range messages {
		once := Sanitize(m)
		assert.Equal(t, once, Sanitize(once))
	}
}

func TestSanitize_StubPatientKeepsShape(t *testing.T) {
	m := sampleMessage()
	m.Patient = PatientReference("P1")

	data, err := json.Marshal(Sanitize(m))
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, map[string]any{"id": "P1"}, doc["patient"])
}

func TestSanitizeJSON_DropsLocationID(t *testing.T) {
	raw := `{
		"hospital": {"id": "H1"},
		"patient": {"id": "P1"},
		"hospital_stay": {"id": "E1", "version": null, "from_at": null},
		"department_stays": [
			{"id": "E1-D1", "location": {"id": "stray", "department": {"id": "D1"}, "room": null, "bed": {"id": ""}}}
		]
	}`

	out, err := SanitizeJSON([]byte(raw))
	require.NoError(t, err)

	var doc struct {
		Patient         map[string]any `json:"patient"`
		HospitalStay    map[string]any `json:"hospital_stay"`
		DepartmentStays []struct {
			Location map[string]any `json:"location"`
		} `json:"department_stays"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))

	assert.Equal(t, map[string]any{"id": "P1"}, doc.Patient)
	assert.Equal(t, "NA", doc.HospitalStay["version"])
	assert.Equal(t, DefaultDate, doc.HospitalStay["from_at"])

	require.Len(t, doc.DepartmentStays, 1)
	location := doc.DepartmentStays[0].Location
	assert.NotContains(t, location, "id")
	assert.Equal(t, map[string]any{"id": DefaultID}, location["room"])
	assert.Equal(t, map[string]any{"id": DefaultID}, location["bed"])

	_, err = SanitizeJSON([]byte(`not json`))
	assert.Error(t, err)
}
