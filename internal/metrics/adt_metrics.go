package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Business metrics, nil until first use with business metrics enabled
var (
	fhirRequestsTotal     *prometheus.CounterVec
	fhirRequestDuration   *prometheus.HistogramVec
	cacheLookupsTotal     *prometheus.CounterVec
	aggregationsTotal     *prometheus.CounterVec
	aggregationDuration   prometheus.Histogram
	adtMessagesTotal      prometheus.Counter
	deliveriesTotal       *prometheus.CounterVec
	ingestRunsTotal       *prometheus.CounterVec
	ingestRunDuration     prometheus.Histogram
	ingestEncountersTotal *prometheus.CounterVec
)

// initializeADTMetrics initializes business metrics if they haven't been initialized yet
func initializeADTMetrics() {
	businessMu.Lock()
	defer businessMu.Unlock()

	if fhirRequestsTotal != nil {
		return
	}

	fhirRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhir_http_requests_total",
			Help: "Total number of HTTP requests to the FHIR server",
		},
		[]string{"resource", "status_code"},
	)

	fhirRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fhir_http_request_duration_seconds",
			Help:    "Time spent making HTTP requests to the FHIR server",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	cacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adt_cache_lookups_total",
			Help: "Cache lookups for FHIR resources",
		},
		[]string{"kind", "result"}, // result: "hit", "miss"
	)

	aggregationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adt_aggregations_total",
			Help: "Encounters aggregated into ADT messages",
		},
		[]string{"result"}, // "success", "skipped", "failed"
	)

	aggregationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adt_aggregation_duration_seconds",
			Help:    "Time spent aggregating one encounter",
			Buckets: prometheus.DefBuckets,
		},
	)

	adtMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adt_messages_total",
			Help: "ADT messages produced",
		},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adt_deliveries_total",
			Help: "ADT messages delivered to the tracking system",
		},
		[]string{"result", "status_code"},
	)

	ingestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adt_ingest_runs_total",
			Help: "Batch ingest runs",
		},
		[]string{"status"},
	)

	ingestRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "adt_ingest_run_duration_seconds",
			Help:    "Duration of batch ingest runs",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
		},
	)

	ingestEncountersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adt_ingest_encounters_total",
			Help: "Encounters processed by ingest runs",
		},
		[]string{"status"},
	)

	GetInstance().registry.MustRegister(
		fhirRequestsTotal,
		fhirRequestDuration,
		cacheLookupsTotal,
		aggregationsTotal,
		aggregationDuration,
		adtMessagesTotal,
		deliveriesTotal,
		ingestRunsTotal,
		ingestRunDuration,
		ingestEncountersTotal,
	)
}

// RecordFHIRRequest records one request to the FHIR server. statusCode 0
// means the request never got an answer.
func RecordFHIRRequest(resource string, startTime time.Time, statusCode int) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeADTMetrics()

	fhirRequestsTotal.WithLabelValues(resource, strconv.Itoa(statusCode)).Inc()
	fhirRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
}

// RecordCacheLookup records a cache hit or miss for a resource kind
func RecordCacheLookup(kind string, hit bool) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeADTMetrics()

	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookupsTotal.WithLabelValues(kind, result).Inc()
}

// RecordAggregation records the outcome of aggregating one encounter
func RecordAggregation(result string, startTime time.Time, messages int) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeADTMetrics()

	aggregationsTotal.WithLabelValues(result).Inc()
	aggregationDuration.Observe(time.Since(startTime).Seconds())
	adtMessagesTotal.Add(float64(messages))
}

// RecordDelivery records one delivery attempt to the tracking system
func RecordDelivery(result string, statusCode int) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeADTMetrics()

	deliveriesTotal.WithLabelValues(result, strconv.Itoa(statusCode)).Inc()
}

// RecordIngestRun records a finished batch run and its per-status counts
func RecordIngestRun(status string, startTime time.Time, counts map[string]int) {
	if !BusinessMetricsEnabled() {
		return
	}
	initializeADTMetrics()

	ingestRunsTotal.WithLabelValues(status).Inc()
	ingestRunDuration.Observe(time.Since(startTime).Seconds())
	for itemStatus, count := range counts {
		ingestEncountersTotal.WithLabelValues(itemStatus).Add(float64(count))
	}
}
