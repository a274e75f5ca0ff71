package couchbase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchbase/gocb/v2"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// DocumentManager handles document CRUD operations on the default collection
type DocumentManager struct {
	bucket *gocb.Bucket
}

// NewDocumentManager creates a new document manager
func NewDocumentManager(bucket *gocb.Bucket) *DocumentManager {
	return &DocumentManager{bucket: bucket}
}

// UpsertDocument stores or replaces a document. expiry 0 keeps it forever.
func (dm *DocumentManager) UpsertDocument(ctx context.Context, docID string, data any, expiry time.Duration) error {
	col := dm.bucket.DefaultCollection()

	_, err := col.Upsert(docID, data, &gocb.UpsertOptions{
		Expiry:  expiry,
		Context: ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", docID, err)
	}

	return nil
}

// InsertDocument stores a document only if the id is free.
func (dm *DocumentManager) InsertDocument(ctx context.Context, docID string, data any, expiry time.Duration) error {
	col := dm.bucket.DefaultCollection()

	_, err := col.Insert(docID, data, &gocb.InsertOptions{
		Expiry:  expiry,
		Context: ctx,
	})
	if err != nil {
		return fmt.Errorf("failed to insert document %s: %w", docID, err)
	}

	return nil
}

// GetDocument decodes a document into result
func (dm *DocumentManager) GetDocument(ctx context.Context, docID string, result any) error {
	col := dm.bucket.DefaultCollection()

	resultDoc, err := col.Get(docID, &gocb.GetOptions{Context: ctx})
	if errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, docID)
	}
	if err != nil {
		return fmt.Errorf("failed to get document %s: %w", docID, err)
	}

	err = resultDoc.Content(result)
	if err != nil {
		return fmt.Errorf("failed to parse document content: %w", err)
	}

	return nil
}

// DeleteDocument removes a document. Missing documents are not an error.
func (dm *DocumentManager) DeleteDocument(ctx context.Context, docID string) error {
	col := dm.bucket.DefaultCollection()

	_, err := col.Remove(docID, &gocb.RemoveOptions{Context: ctx})
	if err != nil && !errors.Is(err, gocb.ErrDocumentNotFound) {
		return fmt.Errorf("failed to delete document %s: %w", docID, err)
	}

	return nil
}
