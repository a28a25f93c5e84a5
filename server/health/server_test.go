// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/absmach/courier/dispatch"
	"github.com/absmach/courier/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) *dispatch.Engine {
	t.Helper()
	cfg := dispatch.DefaultConfig()
	cfg.TickInterval = 2 * time.Millisecond
	engine, err := dispatch.New(cfg, []dispatch.Provider{
		provider.NewStatic("primary", false, 0),
	}, nil, discardLogger())
	require.NoError(t, err)
	return engine
}

func TestHandleHealth(t *testing.T) {
	s := New(DefaultConfig(), nil, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHandleHealthMethodNotAllowed(t *testing.T) {
	s := New(DefaultConfig(), nil, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	w := httptest.NewRecorder()
	s.handleHealth(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestHandleReadyNoEngine(t *testing.T) {
	s := New(DefaultConfig(), nil, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.handleReady(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "not_ready", resp.Status)
}

func TestHandleReadyEngineNotStarted(t *testing.T) {
	engine := newTestEngine(t)
	s := New(DefaultConfig(), engine, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.handleReady(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleReadyRunning(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()
	t.Cleanup(func() { engine.Close() })

	s := New(DefaultConfig(), engine, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.handleReady(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ReadyResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ready", resp.Status)
}

func TestHandleReadyAfterClose(t *testing.T) {
	engine := newTestEngine(t)
	engine.Start()
	require.NoError(t, engine.Close())

	s := New(DefaultConfig(), engine, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.handleReady(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
