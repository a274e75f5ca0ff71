package couchbase

import (
	"context"
	"time"
)

// Client bundles the connection and document operations
type Client struct {
	connManager *ConnectionManager
	docManager  *DocumentManager
}

// NewClient connects to Couchbase
func NewClient(cfg Config) (*Client, error) {
	connManager, err := NewConnectionManager(cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		connManager: connManager,
		docManager:  NewDocumentManager(connManager.GetBucket()),
	}, nil
}

// Close closes the Couchbase connection
func (c *Client) Close() error {
	return c.connManager.Close()
}

// NewRunLock returns an ingest lock stored in this bucket
func (c *Client) NewRunLock(ttl time.Duration) *RunLock {
	return NewRunLock(c.docManager, ttl)
}

// UpsertDocument stores or replaces a document
func (c *Client) UpsertDocument(ctx context.Context, docID string, data any, expiry time.Duration) error {
	return c.docManager.UpsertDocument(ctx, docID, data, expiry)
}

// GetDocument retrieves a document
func (c *Client) GetDocument(ctx context.Context, docID string, result any) error {
	return c.docManager.GetDocument(ctx, docID, result)
}

// DeleteDocument removes a document
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	return c.docManager.DeleteDocument(ctx, docID)
}
