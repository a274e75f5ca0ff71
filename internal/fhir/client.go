package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"stealthcompany.com/adtbridge/internal/metrics"
)

const fhirJSON = "application/fhir+json"

// Client fetches raw FHIR resources from the clinical source.
type Client struct {
	http    *resty.Client
	baseURL string

	// Bulk export polling
	PollInterval time.Duration
	MaxPolls     int
}

// NewClient creates a new FHIR client. httpClient carries authentication
// (see NewBackendHTTPClient); nil uses a plain client.
func NewClient(baseURL string, timeout time.Duration, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	restyClient := resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", fhirJSON)

	return &Client{
		http:         restyClient,
		baseURL:      baseURL,
		PollInterval: 10 * time.Second,
		MaxPolls:     5,
	}
}

// GetLocation fetches Location/{id}
func (fc *Client) GetLocation(ctx context.Context, id string) ([]byte, error) {
	return fc.read(ctx, "Location", id)
}

// GetPatient fetches Patient/{id}
func (fc *Client) GetPatient(ctx context.Context, id string) ([]byte, error) {
	return fc.read(ctx, "Patient", id)
}

// GetEncounter fetches Encounter/{id}
func (fc *Client) GetEncounter(ctx context.Context, id string) ([]byte, error) {
	return fc.read(ctx, "Encounter", id)
}

// SearchEncounters returns every Encounter whose subject is the given patient.
func (fc *Client) SearchEncounters(ctx context.Context, patientID string) ([]json.RawMessage, error) {
	body, err := fc.get(ctx, "Encounter", "/Encounter?patient="+url.QueryEscape(patientID), nil)
	if err != nil {
		return nil, err
	}

	var bundle Bundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		return nil, fmt.Errorf("failed to parse FHIR bundle for Encounter: %w", err)
	}

	encounters := make([]json.RawMessage, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		if len(entry.Resource) > 0 {
			encounters = append(encounters, entry.Resource)
		}
	}

	log.Debug().
		Str("patient_id", patientID).
		Int("count", len(encounters)).
		Msg("Searched encounters")

	return encounters, nil
}

func (fc *Client) read(ctx context.Context, resourceType, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("empty %s id", resourceType)
	}
	return fc.get(ctx, resourceType, "/"+resourceType+"/"+url.PathEscape(id), nil)
}

// get performs one GET and maps failures onto AuthError and APIError.
func (fc *Client) get(ctx context.Context, resourceType, path string, headers map[string]string) ([]byte, error) {
	resp, err := fc.do(ctx, resourceType, path, headers)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (fc *Client) do(ctx context.Context, resourceType, path string, headers map[string]string) (*resty.Response, error) {
	startTime := time.Now()

	resp, err := fc.http.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(path)
	if err != nil {
		metrics.RecordFHIRRequest(resourceType, startTime, 0)
		return nil, transportError(resourceType, err)
	}

	metrics.RecordFHIRRequest(resourceType, startTime, resp.StatusCode())

	switch status := resp.StatusCode(); {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, &AuthError{StatusCode: status, Message: resp.String()}
	case resp.IsError():
		return nil, &APIError{StatusCode: status, Resource: resourceType, Message: resp.String()}
	}

	return resp, nil
}

// transportError keeps token endpoint failures recognisable as AuthError.
func transportError(resourceType string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := http.StatusUnauthorized
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &AuthError{StatusCode: status, Message: retrieveErr.Error()}
	}

	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	return &TransportError{Resource: resourceType, Err: pkgerrors.Wrapf(err, "failed to fetch %s", resourceType)}
}
