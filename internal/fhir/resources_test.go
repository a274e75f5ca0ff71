package fhir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_UnknownCodedValues(t *testing.T) {
	t.Run("location identifier use", func(t *testing.T) {
		location, err := ParseLocation([]byte(`{"resourceType":"Location","id":"H1","identifier":[{"use":"custom","type":{"coding":[{"code":"TAX"}]},"value":"123"}]}`))
		require.NoError(t, err)
		assert.Equal(t, "custom", location.Identifier[0].Use)
		assert.True(t, location.HasTaxIdentifier())
	})

	t.Run("patient name and identifier use", func(t *testing.T) {
		patient, err := ParsePatient([]byte(`{"resourceType":"Patient","id":"P1","name":[{"use":"legal-ish","family":"Doe","given":["Jane"]}],"identifier":[{"use":"epic-internal","system":"urn:mrn","value":"X"}]}`))
		require.NoError(t, err)
		assert.Equal(t, "Jane", patient.FirstName())
		assert.Equal(t, "Doe", patient.LastName())
		assert.Equal(t, []string{"X"}, patient.IdentifierValues())
	})

	t.Run("encounter location identifier use", func(t *testing.T) {
		encounter, err := ParseEncounter([]byte(`{"resourceType":"Encounter","id":"E1","location":[{"location":{"identifier":{"use":"unlisted","value":"B7"},"display":"Bed 7"}}]}`))
		require.NoError(t, err)
		require.Len(t, encounter.Location, 1)
		assert.Equal(t, "B7", encounter.Location[0].IdentifierValue())
	})
}

func TestLocation_ReferencePresence(t *testing.T) {
	location, err := ParseLocation([]byte(`{"id":"D1","managingOrganization":{"display":"Org"},"partOf":{"display":"Main"}}`))
	require.NoError(t, err)
	assert.True(t, location.HasManagingOrganization())
	assert.True(t, location.HasPartOf())
	assert.Empty(t, location.PartOfReference())

	location, err = ParseLocation([]byte(`{"id":"X"}`))
	require.NoError(t, err)
	assert.False(t, location.HasManagingOrganization())
	assert.False(t, location.HasPartOf())
}
