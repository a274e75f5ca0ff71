package location

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stealthcompany.com/adtbridge/internal/fhir"
)

func parseLocation(t *testing.T, raw string) fhir.Location {
	t.Helper()
	res, err := fhir.ParseLocation([]byte(raw))
	require.NoError(t, err)
	return res
}

func parseEntry(t *testing.T, raw string) fhir.EncounterLocation {
	t.Helper()
	var entry fhir.EncounterLocation
	require.NoError(t, json.Unmarshal([]byte(raw), &entry))
	return entry
}

func TestClassify(t *testing.T) {
	hospital := `{"id":"H1","identifier":[{"type":{"coding":[{"code":"TAX"}]},"value":"123"}]}`
	department := `{"id":"D1","managingOrganization":{"reference":"Organization/O1"},"partOf":{"reference":"Location/H1"}}`

	tests := []struct {
		name     string
		resource string
		entry    string
		want     Kind
	}{
		{name: "tax identifier is a hospital", resource: hospital, entry: `{}`, want: Hospital},
		{name: "blank tax value is not a hospital", resource: `{"id":"X","identifier":[{"type":{"coding":[{"code":"TAX"}]},"value":"  "}]}`, entry: `{}`, want: Unclassified},
		{name: "other identifier type", resource: `{"id":"X","identifier":[{"type":{"coding":[{"code":"MR"}]},"value":"1"}]}`, entry: `{}`, want: Unclassified},
		{name: "managed and part of is a department", resource: department, entry: `{}`, want: Department},
		{name: "partOf without managingOrganization", resource: `{"id":"X","partOf":{"reference":"Location/H1"}}`, entry: `{}`, want: Unclassified},
		{name: "managingOrganization by display only", resource: `{"id":"D2","managingOrganization":{"display":"Cardiology Org"},"partOf":{"reference":"Location/H1"}}`, entry: `{}`, want: Department},
		{name: "managingOrganization by identifier only", resource: `{"id":"D3","managingOrganization":{"identifier":{"value":"ORG-1"}},"partOf":{"display":"Main site"}}`, entry: `{}`, want: Department},
		{name: "unknown identifier use still a hospital", resource: `{"id":"H2","identifier":[{"use":"custom","type":{"coding":[{"code":"TAX"}]},"value":"1"}]}`, entry: `{}`, want: Hospital},
		{name: "managingOrganization without partOf", resource: `{"id":"X","managingOrganization":{"reference":"Organization/O1"}}`, entry: `{}`, want: Unclassified},
		{name: "room physical type on entry", resource: `{"id":"R1"}`, entry: `{"physicalType":{"coding":[{"code":"ro"}]}}`, want: Room},
		{name: "bed physical type on entry", resource: `{"id":"B1"}`, entry: `{"physicalType":{"coding":[{"code":"bd"}]}}`, want: Bed},
		{name: "only first coding counts", resource: `{"id":"X"}`, entry: `{"physicalType":{"coding":[{"code":"wa"},{"code":"ro"}]}}`, want: Unclassified},
		{name: "hospital wins over room", resource: hospital, entry: `{"physicalType":{"coding":[{"code":"ro"}]}}`, want: Hospital},
		{name: "department wins over bed", resource: department, entry: `{"physicalType":{"coding":[{"code":"bd"}]}}`, want: Department},
		{name: "empty resource", resource: `{}`, entry: `{}`, want: Unclassified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(parseLocation(t, tt.resource), parseEntry(t, tt.entry))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("department keeps parent and entry period", func(t *testing.T) {
		record := New(
			parseLocation(t, `{"id":"D1","name":"Cardio","status":"active","managingOrganization":{"reference":"Organization/O1"},"partOf":{"reference":"Location/H1"}}`),
			parseEntry(t, `{"location":{"reference":"Location/D1"},"period":{"start":"2024-01-01"}}`),
		)
		assert.Equal(t, Record{
			ID:       "D1",
			Name:     "Cardio",
			Status:   "active",
			PartOfID: "H1",
			Period:   &Period{Start: "2024-01-01"},
			Kind:     Department,
		}, record)
	})

	t.Run("bed takes identity from entry identifier", func(t *testing.T) {
		record := New(
			parseLocation(t, `{"id":"L9","partOf":{"reference":"Location/R1"}}`),
			parseEntry(t, `{"location":{"reference":"Location/L9"},"identifier":{"value":"BED-7"},"physicalType":{"coding":[{"code":"bd"}]}}`),
		)
		assert.Equal(t, "BED-7", record.ID)
		assert.Equal(t, "R1", record.PartOfID)
		assert.Equal(t, Bed, record.Kind)
	})

	t.Run("bed without identifier keeps record id", func(t *testing.T) {
		record := New(
			parseLocation(t, `{"id":"B1"}`),
			parseEntry(t, `{"physicalType":{"coding":[{"code":"bd"}]}}`),
		)
		assert.Equal(t, "B1", record.ID)
	})

	t.Run("empty period object still counts", func(t *testing.T) {
		record := New(parseLocation(t, `{"id":"X"}`), parseEntry(t, `{"period":{}}`))
		require.NotNil(t, record.Period)
		assert.Empty(t, record.Period.Start)
	})
}

func TestFromEntry(t *testing.T) {
	record, ok := FromEntry(parseEntry(t, `{"location":{"identifier":{"value":"INLINE-1"},"display":"Room 4"},"physicalType":{"coding":[{"code":"ro"}]}}`))
	require.True(t, ok)
	assert.Equal(t, "INLINE-1", record.ID)
	assert.Equal(t, "Room 4", record.Name)
	assert.Equal(t, Room, record.Kind)

	_, ok = FromEntry(parseEntry(t, `{"location":{"display":"nothing"}}`))
	assert.False(t, ok)
}

func TestKindMarshal(t *testing.T) {
	data, err := json.Marshal(Record{ID: "H1", Kind: Hospital})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"H1","kind":"hospital"}`, string(data))
}
