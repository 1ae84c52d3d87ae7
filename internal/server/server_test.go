package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/kalshibot/internal/domain"
)

type fakeBook struct {
	positions []domain.Position
}

func (f *fakeBook) Snapshot() []domain.Position { return f.positions }

func (f *fakeBook) TotalExposure() float64 {
	var total float64
	for _, p := range f.positions {
		total += p.TotalCost()
	}
	return total
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(context.Context) error { return f.err }

func newTestServer(book BookView, checks map[string]Pinger) *Server {
	return NewServer(Config{Port: 0, Mode: "paper"}, book, checks,
		prometheus.NewRegistry(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHealthAllBackendsUp(t *testing.T) {
	srv := newTestServer(&fakeBook{}, map[string]Pinger{
		"postgres": &fakePinger{},
		"redis":    &fakePinger{},
	})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHealthDegradedBackend(t *testing.T) {
	srv := newTestServer(&fakeBook{}, map[string]Pinger{
		"postgres": &fakePinger{},
		"redis":    &fakePinger{err: errors.New("connection refused")},
	})

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
}

func TestStatusReportsBookTotals(t *testing.T) {
	book := &fakeBook{positions: []domain.Position{
		{Ticker: "KXBTCD-25AUG2918", Contracts: 10, AvgPriceCents: 85},
	}}
	srv := newTestServer(book, nil)

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "paper", body["mode"])
	assert.Equal(t, float64(1), body["open_positions"])
	assert.Equal(t, 8.5, body["exposure_dollars"])
}

func TestPositionsRendersBook(t *testing.T) {
	expiry := time.Date(2025, time.August, 29, 19, 0, 0, 0, time.UTC)
	book := &fakeBook{positions: []domain.Position{
		{Ticker: "KXBTCD-25AUG2918", Contracts: 5, AvgPriceCents: 90, LastEdge: 12.5, ExpiryTime: expiry},
	}}
	srv := newTestServer(book, nil)

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/positions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Positions []map[string]any `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Positions, 1)
	assert.Equal(t, "KXBTCD-25AUG2918", body.Positions[0]["ticker"])
	assert.Equal(t, 12.5, body.Positions[0]["last_edge_pct"])
}

func TestMetricsEndpointRegistered(t *testing.T) {
	srv := newTestServer(&fakeBook{}, nil)

	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
