package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// MetricsManager owns the registry every bridge metric is registered with
type MetricsManager struct {
	registry *prometheus.Registry

	hostCPU    *prometheus.GaugeVec
	hostMemory *prometheus.GaugeVec
	hostLoad   *prometheus.GaugeVec

	systemOnce sync.Once
}

var (
	instance *MetricsManager
	once     sync.Once

	businessEnabled atomic.Bool
	systemEnabled   atomic.Bool

	// guards lazy registration of business metrics
	businessMu sync.Mutex
)

// Configure switches business and system metrics on or off
func Configure(business, system bool) {
	businessEnabled.Store(business)
	systemEnabled.Store(system)
}

// BusinessMetricsEnabled reports whether business metrics are recorded
func BusinessMetricsEnabled() bool {
	return businessEnabled.Load()
}

// GetInstance returns the singleton instance of MetricsManager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = &MetricsManager{
			registry: prometheus.NewRegistry(),
		}
	})
	return instance
}

// Handler serves every registered metric
func Handler() http.Handler {
	return promhttp.HandlerFor(GetInstance().registry, promhttp.HandlerOpts{})
}

// registerSystemMetrics registers the Go runtime and process collectors
// and the host gauges. Safe to call more than once.
func (mm *MetricsManager) registerSystemMetrics() {
	mm.systemOnce.Do(func() {
		mm.hostCPU = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_cpu_usage_percent",
				Help: "Current CPU usage percentage",
			},
			[]string{"core"}, // "total" or "cpuN"
		)
		mm.hostMemory = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
			[]string{"type"},
		)
		mm.hostLoad = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_load_average",
				Help: "Host load average",
			},
			[]string{"window"},
		)

		mm.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			mm.hostCPU,
			mm.hostMemory,
			mm.hostLoad,
		)
	})
}

// StartSystemMetrics samples host metrics every interval until ctx ends.
// It does nothing unless system metrics are enabled.
func StartSystemMetrics(ctx context.Context, interval time.Duration) {
	if !systemEnabled.Load() {
		return
	}

	mm := GetInstance()
	mm.registerSystemMetrics()
	mm.collectHostMetrics()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.collectHostMetrics()
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("System metrics collection started")
}

func (mm *MetricsManager) collectHostMetrics() {
	if total, err := cpu.Percent(0, false); err == nil && len(total) > 0 {
		mm.hostCPU.WithLabelValues("total").Set(total[0])
	}
	if perCore, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range perCore {
			mm.hostCPU.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		mm.hostMemory.WithLabelValues("total").Set(float64(vmstat.Total))
		mm.hostMemory.WithLabelValues("available").Set(float64(vmstat.Available))
		mm.hostMemory.WithLabelValues("used").Set(float64(vmstat.Used))
	} else {
		log.Debug().Err(err).Msg("Failed to read host memory")
	}

	if avg, err := load.Avg(); err == nil {
		mm.hostLoad.WithLabelValues("1m").Set(avg.Load1)
		mm.hostLoad.WithLabelValues("5m").Set(avg.Load5)
		mm.hostLoad.WithLabelValues("15m").Set(avg.Load15)
	}
}
