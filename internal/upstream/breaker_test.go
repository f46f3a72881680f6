package upstream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreakerConfig() BreakerConfig {
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 2
	cfg.Timeout = time.Hour
	return cfg
}

func TestClient_TripsOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	metrics := NewMetrics(prometheus.NewRegistry())
	c := NewClient(srv.Client(), testBreakerConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	for range 2 {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		_, err := c.Do(req)
		var statusErr *StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := c.Do(req)

	assert.ErrorIs(t, err, ErrOpen)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, gobreaker.StateOpen, c.State())
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.state.WithLabelValues("test")))
}

func TestClient_ClientErrorsDoNotTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testBreakerConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	for range 5 {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		resp, err := c.Do(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		_ = resp.Body.Close()
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())
}

func TestClient_CancelledCallersDoNotTrip(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), testBreakerConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 5 {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
		_, err := c.Do(req)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, c.State())

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, int32(1), hits.Load())
}
