// Package metrics records Prometheus metrics for the bridge on a private
// registry served by Handler.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// httpMetrics are the metrics of the bridge's own HTTP API
type httpMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	active      prometheus.Gauge
	adtRequests *prometheus.CounterVec
}

// nil until first use with business metrics enabled
var apiMetrics *httpMetrics

func httpAPI() *httpMetrics {
	businessMu.Lock()
	defer businessMu.Unlock()

	if apiMetrics != nil {
		return apiMetrics
	}

	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Requests currently being served",
		}),
		adtRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adt_api_requests_total",
			Help: "ADT API operations by outcome",
		}, []string{"operation", "result"}), // success, invalid_json, upstream_error, auth_error
	}

	GetInstance().registry.MustRegister(m.requests, m.duration, m.active, m.adtRequests)
	apiMetrics = m
	return apiMetrics
}

// RecordHTTPRequest records one served request
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if !BusinessMetricsEnabled() {
		return
	}
	m := httpAPI()
	m.requests.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.duration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordADTRequest records the outcome of an ADT API operation
func RecordADTRequest(operation, result string) {
	if !BusinessMetricsEnabled() {
		return
	}
	httpAPI().adtRequests.WithLabelValues(operation, result).Inc()
}

func trackActive(delta float64) {
	if !BusinessMetricsEnabled() {
		return
	}
	httpAPI().active.Add(delta)
}
