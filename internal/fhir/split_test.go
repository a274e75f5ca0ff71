package fhir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitResources(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantIDs []string
		wantErr bool
	}{
		{name: "single", body: `{"resourceType":"Encounter","id":"E1"}`, wantIDs: []string{"E1"}},
		{name: "array", body: ` [{"id":"E1"},{"id":"E2"}] `, wantIDs: []string{"E1", "E2"}},
		{name: "bundle", body: `{"resourceType":"Bundle","entry":[{"resource":{"id":"E1"}},{"resource":{"id":"E2"}}]}`, wantIDs: []string{"E1", "E2"}},
		{name: "ndjson", body: "{\"id\":\"E1\"}\n\n{\"id\":\"E2\"}\n", wantIDs: []string{"E1", "E2"}},
		{name: "empty", body: "  ", wantErr: true},
		{name: "garbage", body: "{nope", wantErr: true},
		{name: "broken array", body: "[{]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws, err := SplitResources([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			var ids []string
			for _, raw := range raws {
				encounter, err := ParseEncounter(raw)
				require.NoError(t, err)
				ids = append(ids, encounter.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}
