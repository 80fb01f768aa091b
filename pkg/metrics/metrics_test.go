package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New("run-1")

	m.ObserveAPICall("graph", "ok", time.Now())
	m.ObserveAPICall("graph", "ok", time.Now())
	m.ObserveAPICall("geocoder", "rate_limited", time.Now())
	m.IncRetry("graph", "rate_limit")
	m.IncUser("fetch-graph", "succeeded")
	m.AddUsers("fetch-graph", "skipped", 3)
	m.IncCacheLookup(true)
	m.IncCacheLookup(false)
	m.IncCacheLookup(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.APICalls.WithLabelValues("graph", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APICalls.WithLabelValues("geocoder", "rate_limited")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries.WithLabelValues("graph", "rate_limit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Users.WithLabelValues("fetch-graph", "skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, "run-1", m.RunID())
}

func TestTwoInstancesDoNotCollide(t *testing.T) {
	a := New("a")
	b := New("b")
	a.IncUser("geocode", "failed")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Users.WithLabelValues("geocode", "failed")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAPICall("graph", "ok", time.Now())
		m.IncRetry("graph", "network")
		m.IncUser("aggregate", "succeeded")
		m.AddUsers("aggregate", "succeeded", 2)
		m.IncCacheLookup(true)
		m.ObserveStage("aggregate", time.Now())
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Empty(t, m.RunID())
}

func TestWriteTextfile(t *testing.T) {
	m := New("run-2")
	m.IncUser("fetch-graph", "succeeded")
	m.ObserveStage("fetch-graph", time.Now())

	path := filepath.Join(t.TempDir(), "metrics", "friendgeo.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `friendgeo_users_total{outcome="succeeded",run_id="run-2",substep="fetch-graph"} 1`)
	assert.Contains(t, string(data), "friendgeo_stage_duration_seconds")
}
