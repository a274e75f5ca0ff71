package fhir

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SplitResources accepts one resource, a JSON array of resources, a Bundle
// or NDJSON, and returns the individual resources.
func SplitResources(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("empty request body")
	}

	if trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, fmt.Errorf("invalid JSON array: %w", err)
		}
		return raws, nil
	}

	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		if trimmed[0] == '{' && bytes.IndexByte(trimmed, '\n') > 0 {
			return splitNDJSON(trimmed)
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if head.ResourceType != "Bundle" {
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}

	var bundle Bundle
	if err := json.Unmarshal(trimmed, &bundle); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}
	raws := make([]json.RawMessage, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		raws = append(raws, entry.Resource)
	}
	return raws, nil
}
