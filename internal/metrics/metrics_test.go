package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	Configure(true, false)
	defer Configure(false, false)

	router := mux.NewRouter()
	router.Use(MetricsMiddleware)
	router.HandleFunc("/locations/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/locations/L1", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	RecordCacheLookup("location", true)
	RecordFHIRRequest("Location", time.Now(), 200)

	metricsRec := httptest.NewRecorder()
	Handler().ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, metricsRec.Code)

	body := metricsRec.Body.String()
	assert.True(t, strings.Contains(body, `endpoint="/locations/{id}"`), body)
	assert.Contains(t, body, `adt_cache_lookups_total{kind="location",result="hit"} 1`)
	assert.Contains(t, body, `fhir_http_requests_total{resource="Location",status_code="200"} 1`)
}

func TestRecorders_DisabledAreNoops(t *testing.T) {
	Configure(false, false)

	// must not panic or register anything while disabled
	RecordDelivery("success", 200)
	RecordAggregation("success", time.Now(), 1)
	RecordIngestRun("completed", time.Now(), map[string]int{"delivered": 1})
	RecordADTRequest("aggregate", "success")
}

func TestStartSystemMetrics(t *testing.T) {
	Configure(false, true)
	defer Configure(false, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartSystemMetrics(ctx, time.Hour)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "system_memory_usage_bytes")
}
