package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the work of one run. Every method is safe on a nil receiver
// so components can be built without metrics in tests.
type Metrics struct {
	registry *prometheus.Registry
	runID    string

	APICalls      *prometheus.CounterVec
	APIDuration   *prometheus.HistogramVec
	Retries       *prometheus.CounterVec
	Users         *prometheus.CounterVec
	CacheLookups  *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// New registers all run metrics on a private registry
func New(runID string) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	labels := prometheus.Labels{"run_id": runID}

	return &Metrics{
		registry: reg,
		runID:    runID,
		APICalls: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "friendgeo_api_calls_total",
			Help:        "External API calls by provider and outcome",
			ConstLabels: labels,
		}, []string{"provider", "outcome"}),
		APIDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "friendgeo_api_call_duration_seconds",
			Help:        "Latency of external API calls",
			ConstLabels: labels,
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "friendgeo_retries_total",
			Help:        "Retries by provider and error type",
			ConstLabels: labels,
		}, []string{"provider", "error_type"}),
		Users: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "friendgeo_users_total",
			Help:        "Target users per substep by outcome (succeeded, skipped, failed)",
			ConstLabels: labels,
		}, []string{"substep", "outcome"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "friendgeo_geocode_cache_lookups_total",
			Help:        "Geocode cache lookups by result (hit, miss)",
			ConstLabels: labels,
		}, []string{"result"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "friendgeo_stage_duration_seconds",
			Help:        "Wall time of each substep",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"substep"}),
	}
}

func (m *Metrics) RunID() string {
	if m == nil {
		return ""
	}
	return m.runID
}

// ObserveAPICall records one provider call. Call with time.Now() taken before the call.
func (m *Metrics) ObserveAPICall(provider, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.APICalls.WithLabelValues(provider, outcome).Inc()
	m.APIDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncRetry(provider, errorType string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(provider, errorType).Inc()
}

func (m *Metrics) IncUser(substep, outcome string) {
	if m == nil {
		return
	}
	m.Users.WithLabelValues(substep, outcome).Inc()
}

func (m *Metrics) AddUsers(substep, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Users.WithLabelValues(substep, outcome).Add(float64(n))
}

func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveStage records the duration of a substep
func (m *Metrics) ObserveStage(substep string, start time.Time) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(substep).Observe(time.Since(start).Seconds())
}

// Registry exposes the private registry, e.g. for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile exports the registry in the node_exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
