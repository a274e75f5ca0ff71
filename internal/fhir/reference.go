package fhir

import "strings"

// ResolveReference returns the id segment of a "<Type>/<id>" reference.
// Versioned references ("Location/1/_history/2") resolve to the id only.
// The second return value is false when the reference carries no id.
func ResolveReference(reference string) (string, bool) {
	_, rest, found := strings.Cut(strings.TrimSpace(reference), "/")
	if !found {
		return "", false
	}

	id, _, _ := strings.Cut(rest, "/")
	if id == "" {
		return "", false
	}

	return id, true
}
