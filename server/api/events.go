// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	eventWriteTimeout = 10 * time.Second
	pingInterval      = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleEvents streams dispatch lifecycle events over a websocket. Each
// frame is one JSON envelope. The stream is best effort: a slow consumer
// loses events rather than backpressuring the engine.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusNotFound, "event feed disabled")
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	s.logger.Debug("event feed subscriber connected", slog.String("remote_addr", r.RemoteAddr))

	sub, cancel := s.bus.Subscribe()
	defer cancel()

	// Discard inbound frames, surface close errors.
	readErr := make(chan struct{})
	go func() {
		defer close(readErr)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case env, ok := <-sub:
			if !ok {
				return
			}
			ws.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := ws.WriteJSON(env); err != nil {
				s.logger.Debug("event feed write failed", slog.String("error", err.Error()))
				return
			}
		case <-ping.C:
			ws.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readErr:
			return
		case <-r.Context().Done():
			return
		}
	}
}
