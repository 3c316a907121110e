package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warden"

var livenessStates = []string{"starting", "healthy", "unhealthy"}

// Set holds the supervisor's Prometheus metrics
type Set struct {
	registry *prometheus.Registry

	livenessState       *prometheus.GaugeVec
	consecutiveFailures prometheus.Gauge
	probesTotal         *prometheus.CounterVec
	probeDuration       prometheus.Histogram
	processCPUPercent   prometheus.Gauge
	processRSSBytes     prometheus.Gauge
}

// NewSet creates and registers the metric set on a private registry
func NewSet() *Set {
	registry := prometheus.NewRegistry()
	startTime := time.Now()

	s := &Set{
		registry: registry,
		livenessState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "liveness_state",
			Help:      "Current liveness state, one-hot by state label",
		}, []string{"state"}),
		consecutiveFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "probe_consecutive_failures",
			Help:      "Consecutive probe failures since the last success",
		}),
		probesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total probe attempts by result",
		}, []string{"result"}),
		probeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_duration_seconds",
			Help:      "Probe attempt duration",
			Buckets:   []float64{.01, .05, .1, .5, 1, 2.5, 5},
		}),
		processCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workload_cpu_percent",
			Help:      "CPU usage of the supervised process",
		}),
		processRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workload_rss_bytes",
			Help:      "Resident memory of the supervised process",
		}),
	}

	uptime := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "uptime_seconds",
		Help:      "Time since the supervisor started",
	}, func() float64 {
		return time.Since(startTime).Seconds()
	})

	registry.MustRegister(
		s.livenessState,
		s.consecutiveFailures,
		s.probesTotal,
		s.probeDuration,
		s.processCPUPercent,
		s.processRSSBytes,
		uptime,
	)

	s.SetLivenessState("starting")
	return s
}

// Handler returns the /metrics HTTP handler
func (s *Set) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// ObserveProbe records one probe attempt
func (s *Set) ObserveProbe(ok bool, status string, failures int, duration time.Duration) {
	result := "failure"
	if ok {
		result = "success"
	}
	s.probesTotal.WithLabelValues(result).Inc()
	s.probeDuration.Observe(duration.Seconds())
	s.consecutiveFailures.Set(float64(failures))
	s.SetLivenessState(status)
}

// SetLivenessState sets the one-hot liveness state gauge
func (s *Set) SetLivenessState(state string) {
	for _, known := range livenessStates {
		value := 0.0
		if known == state {
			value = 1.0
		}
		s.livenessState.WithLabelValues(known).Set(value)
	}
}

// SetProcessUsage records workload resource usage
func (s *Set) SetProcessUsage(cpuPercent float64, rssBytes uint64) {
	s.processCPUPercent.Set(cpuPercent)
	s.processRSSBytes.Set(float64(rssBytes))
}
