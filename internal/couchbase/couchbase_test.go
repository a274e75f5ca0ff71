package couchbase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/couchbase/gocb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionString(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{url: "couchbase://db", want: "couchbase://db"},
		{url: "couchbases://db.cloud", want: "couchbases://db.cloud"},
		{url: "http://localhost", want: "couchbase://localhost"},
		{url: "https://db.cloud", want: "couchbases://db.cloud"},
		{url: "localhost", want: "couchbase://localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, ConnectionString(tt.url))
		})
	}
}

type fakeDocs struct {
	docs map[string]any
}

func (f *fakeDocs) InsertDocument(_ context.Context, docID string, data any, _ time.Duration) error {
	if _, ok := f.docs[docID]; ok {
		return fmt.Errorf("failed to insert document %s: %w", docID, gocb.ErrDocumentExists)
	}
	f.docs[docID] = data
	return nil
}

func (f *fakeDocs) DeleteDocument(_ context.Context, docID string) error {
	delete(f.docs, docID)
	return nil
}

func TestRunLock(t *testing.T) {
	docs := &fakeDocs{docs: map[string]any{}}
	first := NewRunLock(docs, time.Hour)
	second := NewRunLock(docs, time.Hour)
	ctx := context.Background()

	require.NoError(t, first.Lock(ctx))
	assert.ErrorIs(t, second.Lock(ctx), ErrLocked)

	require.NoError(t, first.Unlock(ctx))
	require.NoError(t, second.Lock(ctx))
}
