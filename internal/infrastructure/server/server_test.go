package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/ringsim/internal/infrastructure/config"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/tracing"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()

	cfg := config.Default()
	cfg.RateLimit.Enabled = false
	cfg.Simulation.Backoff = 5 * time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := NewServer(cfg, logging.NewNop(), "test")
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
	})
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthCarriesTraceHeaders(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := get(t, ts, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(tracing.TraceHeader))
	assert.NotEmpty(t, resp.Header.Get(tracing.SpanHeader))
}

func TestIncomingTraceIsPropagated(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(tracing.TraceHeader, "trace-abc")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "trace-abc", resp.Header.Get(tracing.TraceHeader))
}

func TestSimulationLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts, "/api/producer-consumer/start", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = post(t, ts, "/api/producer-consumer/init",
		`{"bufferSize":3,"producerCount":1,"consumerCount":1,"simulationSpeed":100,"productionDelayMs":0,"consumptionDelayMs":0}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, ts, "/api/producer-consumer/start", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, err := http.Get(ts.URL + "/api/producer-consumer/status")
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var snap struct {
			Stats struct {
				Consumed int64 `json:"totalConsumed"`
			} `json:"stats"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			return false
		}
		return snap.Stats.Consumed > 0
	}, 3*time.Second, 20*time.Millisecond)

	resp = post(t, ts, "/api/producer-consumer/stop", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = get(t, ts, "/api/producer-consumer/is-running")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "false", strings.TrimSpace(string(body)))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	post(t, ts, "/api/producer-consumer/init", `{"bufferSize":2}`)
	get(t, ts, "/api/producer-consumer/status")

	resp := get(t, ts, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, "ringsim_lifecycle_operations_total")
	assert.Contains(t, text, "ringsim_http_requests_total")
	assert.Contains(t, text, "ringsim_slots")
	assert.Contains(t, text, "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/producer-consumer/init", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimitApplies(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{
			RequestsPerSecond: 1,
			Burst:             1,
			Enabled:           true,
		}
	})

	first := get(t, ts, "/health")
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := get(t, ts, "/health")
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestPresetsFileIsLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[presets]]
name = "pair"
bufferSize = 2
producerCount = 1
consumerCount = 1
`), 0o644))

	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Presets.Path = path
	})

	resp := post(t, ts, "/api/producer-consumer/presets/pair/init", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = post(t, ts, "/api/producer-consumer/presets/balanced/init", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMissingPresetsFileFails(t *testing.T) {
	cfg := config.Default()
	cfg.Presets.Path = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := NewServer(cfg, logging.NewNop(), "test")
	assert.Error(t, err)
}
