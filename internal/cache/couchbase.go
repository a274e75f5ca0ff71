package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"stealthcompany.com/adtbridge/internal/couchbase"
)

// DocumentStore is the document API CouchbaseStore needs.
type DocumentStore interface {
	UpsertDocument(ctx context.Context, docID string, data any, expiry time.Duration) error
	GetDocument(ctx context.Context, docID string, result any) error
	DeleteDocument(ctx context.Context, docID string) error
}

// CouchbaseStore keeps envelopes as Couchbase documents with native expiry.
type CouchbaseStore struct {
	docs   DocumentStore
	prefix string
	now    func() time.Time
}

// NewCouchbaseStore wraps a document store, usually a *couchbase.Client.
func NewCouchbaseStore(docs DocumentStore, prefix string) *CouchbaseStore {
	return &CouchbaseStore{docs: docs, prefix: prefix, now: time.Now}
}

func (s *CouchbaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data json.RawMessage
	err := s.docs.GetDocument(ctx, s.prefix+key, &data)
	if errors.Is(err, couchbase.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeEnvelope(data, s.now())
}

func (s *CouchbaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := encodeEnvelope(value, ttl, s.now())
	if err != nil {
		return err
	}
	return s.docs.UpsertDocument(ctx, s.prefix+key, json.RawMessage(data), ttl)
}

func (s *CouchbaseStore) Delete(ctx context.Context, key string) error {
	return s.docs.DeleteDocument(ctx, s.prefix+key)
}
