package zerolog_config

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "debug", want: zerolog.DebugLevel},
		{in: " WARN ", want: zerolog.WarnLevel},
		{in: "trace", want: zerolog.TraceLevel},
		{in: "", want: zerolog.InfoLevel},
		{in: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestElasticsearchWriter(t *testing.T) {
	var gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	writer := ElasticsearchWriter{URL: server.URL + "/logs"}
	n, err := writer.Write([]byte(`{"message":"hello"}`))
	require.NoError(t, err)

	assert.Equal(t, len(`{"message":"hello"}`), n)
	assert.Equal(t, "/logs/_doc", gotPath)
	assert.JSONEq(t, `{"message":"hello"}`, string(gotBody))
}

func TestElasticsearchWriter_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := ElasticsearchWriter{URL: server.URL}.Write([]byte(`{}`))
	assert.Error(t, err)
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "", "logs")

	logger.Info().Str("encounter_id", "E1").Msg("Aggregated encounter")
	assert.Contains(t, buf.String(), "Aggregated encounter")
	assert.Contains(t, buf.String(), "E1")
}

func TestStartupWithEnv_RequiresSubAddress(t *testing.T) {
	assert.Error(t, StartupWithEnv("", "", "info"))
}
