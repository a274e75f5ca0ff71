// Package cache stores raw FHIR resources under a TTL envelope.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultTTL is how long cached resources stay valid.
const DefaultTTL = 9600 * time.Second

// Store is a key/value store for cached resources. A missing or expired
// key is reported as found == false, never as an error.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Envelope wraps a cached value with its expiry in epoch seconds.
// Expires == 0 never expires.
type Envelope struct {
	Expires int64           `json:"expires"`
	Value   json.RawMessage `json:"value"`
}

// LocationKey is the cache key of a Location resource.
func LocationKey(id string) string {
	return "location-" + id
}

// PatientKey is the cache key of a Patient resource.
func PatientKey(id string) string {
	return "patient-" + id
}

// PatientEncountersKey holds test encounters of a patient.
func PatientEncountersKey(id string) string {
	return "patient-encounters-" + id
}

// EncountersKey holds the last bulk-exported encounter list.
const EncountersKey = "encounters"

func encodeEnvelope(value []byte, ttl time.Duration, now time.Time) ([]byte, error) {
	if !json.Valid(value) {
		return nil, fmt.Errorf("cache value is not valid JSON")
	}

	envelope := Envelope{Value: value}
	if ttl > 0 {
		envelope.Expires = now.Add(ttl).Unix()
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode cache envelope: %w", err)
	}
	return data, nil
}

// decodeEnvelope returns the value, or ok == false once expired.
func decodeEnvelope(data []byte, now time.Time) ([]byte, bool, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache envelope: %w", err)
	}

	if envelope.Expires != 0 && now.Unix() >= envelope.Expires {
		return nil, false, nil
	}
	return envelope.Value, true, nil
}
