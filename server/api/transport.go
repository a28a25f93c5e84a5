// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/absmach/courier/dispatch"
)

const idempotencyHeader = "Idempotency-Key"

// submitRequest is the POST /v1/messages payload. The idempotency key may
// come from the body or the Idempotency-Key header; the header wins when
// both are set.
type submitRequest struct {
	To             string            `json:"to"`
	Subject        string            `json:"subject,omitempty"`
	Body           string            `json:"body"`
	Headers        map[string]string `json:"headers,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// submitResponse acknowledges an accepted submission.
type submitResponse struct {
	TrackingID string          `json:"tracking_id"`
	Status     dispatch.Status `json:"status"`
}

// queueResponse reports the current queue depth.
type queueResponse struct {
	Depth int `json:"depth"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSubmit accepts a message for asynchronous dispatch. A fresh
// submission answers 202: acceptance means queued, not delivered, and
// callers poll the status endpoint or watch the event feed for the outcome.
// An idempotent replay answers 200 with the already-known tracking id.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.To == "" || req.Body == "" {
		writeError(w, http.StatusBadRequest, "to and body are required")
		return
	}

	key := r.Header.Get(idempotencyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	handle, replayed, err := s.engine.Submit(dispatch.Message{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
		Headers: req.Headers,
	}, key)
	switch {
	case errors.Is(err, dispatch.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "dispatcher is shutting down")
		return
	case err != nil:
		s.logger.Error("failed to submit message", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "submission failed")
		return
	}

	status := http.StatusAccepted
	if replayed {
		status = http.StatusOK
	}
	rec, _ := s.engine.Status(handle.TrackingID())
	writeJSON(w, status, submitResponse{
		TrackingID: handle.TrackingID(),
		Status:     rec.Status,
	})
}

// handleStatus returns the ledger record for one tracking id.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.engine.Status(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown tracking id")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleQueue returns the number of queued tasks.
func (s *Server) handleQueue(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, queueResponse{Depth: s.engine.QueueDepth()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
