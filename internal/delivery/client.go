// Package delivery posts ADT messages to the tracking system.
package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/metrics"
)

// Error reports a delivery the tracking system did not accept.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tracking system rejected message (status %d): %s", e.StatusCode, e.Body)
}

// Client delivers messages to the tracking system's receive endpoint.
type Client struct {
	http     *resty.Client
	endpoint string
}

// NewClient creates a delivery client authenticating with a bearer token
func NewClient(endpoint, token string, timeout time.Duration) *Client {
	client := resty.New().
		SetTimeout(timeout).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:     client,
		endpoint: endpoint,
	}
}

// Deliver posts one message. Any status above 204 is an *Error.
func (c *Client) Deliver(ctx context.Context, message adt.Message) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(message).
		Post(c.endpoint)
	if err != nil {
		metrics.RecordDelivery("error", 0)
		return fmt.Errorf("failed to deliver hospital stay %s: %w", message.HospitalStay.ID, err)
	}

	if resp.StatusCode() > http.StatusNoContent {
		metrics.RecordDelivery("rejected", resp.StatusCode())
		return &Error{StatusCode: resp.StatusCode(), Body: resp.String()}
	}

	metrics.RecordDelivery("success", resp.StatusCode())
	log.Debug().
		Str("hospital_stay_id", message.HospitalStay.ID).
		Int("status", resp.StatusCode()).
		Msg("Delivered ADT message")

	return nil
}
