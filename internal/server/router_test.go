package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/supplytrace/internal/config"
	"github.com/vanshika/supplytrace/internal/registry"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		health     HealthService
		wantStatus int
		wantBody   string
	}{
		{name: "no probe", wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "memory store", health: StoreHealthService{Store: registry.NewMemoryStore()}, wantStatus: http.StatusOK, wantBody: "ok"},
		{name: "store down", health: StoreHealthService{Store: stubPinger{err: errors.New("database is locked")}}, wantStatus: http.StatusServiceUnavailable, wantBody: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := NewRouter(discardLogger(), RouterDependencies{Health: tt.health})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantBody, body["status"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "supplytrace_test_total", Help: "test counter"})
	reg.MustRegister(counter)
	counter.Add(3)

	router := NewRouter(discardLogger(), RouterDependencies{Metrics: reg})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "supplytrace_test_total 3")
}

func TestNoEntityRoutes(t *testing.T) {
	router := NewRouter(discardLogger(), RouterDependencies{})
	for _, path := range []string{"/metrics", "/traders", "/commodities/C1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", strings.NewReader("{}")))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerRunStopsOnCancel(t *testing.T) {
	srv := New(discardLogger(), config.OpsConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}, http.NotFoundHandler())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
