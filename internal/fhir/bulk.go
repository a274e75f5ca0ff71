package fhir

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ExportManifest is the completion body of a Bulk Data export.
type ExportManifest struct {
	TransactionTime string `json:"transactionTime"`
	Request         string `json:"request"`
	Output          []struct {
		Type string `json:"type"`
		URL  string `json:"url"`
	} `json:"output"`
}

// ExportGroupEncounters runs a Bulk Data export of a Group's Encounters:
// kickoff, poll Content-Location, then download the NDJSON output files.
func (fc *Client) ExportGroupEncounters(ctx context.Context, groupID string) ([]json.RawMessage, error) {
	statusURL, err := fc.kickoffExport(ctx, groupID)
	if err != nil {
		return nil, err
	}

	manifest, err := fc.pollExport(ctx, statusURL)
	if err != nil {
		return nil, err
	}

	var encounters []json.RawMessage
	for _, output := range manifest.Output {
		if output.Type != "Encounter" {
			continue
		}

		body, err := fc.get(ctx, "Encounter", output.URL, map[string]string{"Accept": "application/fhir+ndjson"})
		if err != nil {
			return nil, fmt.Errorf("failed to download export file: %w", err)
		}

		resources, err := splitNDJSON(body)
		if err != nil {
			return nil, err
		}
		encounters = append(encounters, resources...)
	}

	log.Info().
		Str("group_id", groupID).
		Int("count", len(encounters)).
		Msg("Completed bulk export")

	return encounters, nil
}

func (fc *Client) kickoffExport(ctx context.Context, groupID string) (string, error) {
	resp, err := fc.do(ctx, "Group", "/Group/"+groupID+"/$export?_type=Encounter", map[string]string{
		"Accept": fhirJSON,
		"Prefer": "respond-async",
	})
	if err != nil {
		return "", fmt.Errorf("failed to start bulk export: %w", err)
	}

	statusURL := resp.Header().Get("Content-Location")
	if statusURL == "" {
		return "", &APIError{StatusCode: resp.StatusCode(), Resource: "Group", Message: "export kickoff returned no Content-Location"}
	}

	log.Info().Str("group_id", groupID).Str("status_url", statusURL).Msg("Started bulk export")
	return statusURL, nil
}

func (fc *Client) pollExport(ctx context.Context, statusURL string) (*ExportManifest, error) {
	for attempt := 1; attempt <= fc.MaxPolls; attempt++ {
		resp, err := fc.do(ctx, "Export", statusURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll bulk export: %w", err)
		}

		if resp.StatusCode() == http.StatusOK {
			var manifest ExportManifest
			if err := json.Unmarshal(resp.Body(), &manifest); err != nil {
				return nil, fmt.Errorf("failed to parse export manifest: %w", err)
			}
			return &manifest, nil
		}

		log.Debug().
			Int("attempt", attempt).
			Str("progress", resp.Header().Get("X-Progress")).
			Msg("Bulk export still running")

		if attempt == fc.MaxPolls {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(fc.PollInterval):
		}
	}

	return nil, fmt.Errorf("bulk export not complete after %d polls", fc.MaxPolls)
}

func splitNDJSON(body []byte) ([]json.RawMessage, error) {
	var resources []json.RawMessage

	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("invalid NDJSON line in export file")
		}
		resources = append(resources, json.RawMessage(bytes.Clone(line)))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}

	return resources, nil
}
