// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// FanoutServer is the inbound HTTP receiver the consumer tier calls to push
// a delivered message to every client connection in a room. It runs on the
// internal broadcast port, never exposed publicly.
//
// The response is 200 once a fan-out was attempted, regardless of individual
// per-connection failures: the broker tier must not retry merely because one
// of many recipients was momentarily disconnected.
type FanoutServer struct {
	registry *Registry
	logger   *zap.Logger
}

// NewFanoutServer builds a fan-out receiver over the given registry.
func NewFanoutServer(registry *Registry, logger *zap.Logger) *FanoutServer {
	return &FanoutServer{
		registry: registry,
		logger:   orNop(logger),
	}
}

// Handler returns the HTTP handler exposing POST /internal/broadcast.
func (s *FanoutServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/internal/broadcast", s.handleBroadcast)
	return r
}

func (s *FanoutServer) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.RoomID == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "roomId and message are required"})
		return
	}

	payload := []byte(req.Message)
	sent, failed := 0, 0
	for _, conn := range s.registry.InRoom(req.RoomID) {
		if err := conn.Send(payload); err != nil {
			failed++
			s.logger.Warn("send to client failed",
				zap.String("roomId", req.RoomID),
				zap.Error(err))
			continue
		}
		sent++
	}

	s.logger.Debug("fan-out complete",
		zap.String("roomId", req.RoomID),
		zap.Int("sent", sent),
		zap.Int("failed", failed))

	writeJSON(w, http.StatusOK, broadcastResponse{
		Sent:   sent,
		Failed: failed,
		RoomID: req.RoomID,
	})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
