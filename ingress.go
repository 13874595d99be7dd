// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package chatflow

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// publisher is the subset of ConnManager the ingress server needs.
type publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, persistent bool) error
	IsConnected() bool
}

// IngressServer accepts client WebSocket connections at /chat/{roomID},
// validates inbound events and publishes them as durable envelopes. It also
// owns the connection registry the fan-out receiver reads.
type IngressServer struct {
	registry *Registry
	pub      publisher
	metrics  *PipelineMetrics
	logger   *zap.Logger

	// serverID identifies this ingress instance in every envelope it
	// publishes, generated once at startup.
	serverID string

	upgrader websocket.Upgrader
}

// NewIngressServer builds the ingress side. metrics may be nil.
func NewIngressServer(registry *Registry, pub publisher, metrics *PipelineMetrics, logger *zap.Logger) *IngressServer {
	return &IngressServer{
		registry: registry,
		pub:      pub,
		metrics:  metrics,
		logger:   orNop(logger),
		serverID: "server-" + uuid.NewString()[:8],
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients connect from arbitrary origins; there is no
			// auth layer in front of this surface.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServerID returns this instance's identifier.
func (s *IngressServer) ServerID() string {
	return s.serverID
}

// Handler returns the HTTP handler exposing GET /chat/{roomID} for
// WebSocket upgrades. Requests without a room segment never reach the
// upgrade.
func (s *IngressServer) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/chat/{roomID}", s.handleWebSocket)
	return r
}

func (s *IngressServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	c, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &wsClient{conn: c}
	s.registry.Add(conn, roomID)
	s.metrics.SetConnections(s.registry.Len())
	s.logger.Info("client connected",
		zap.String("roomId", roomID),
		zap.String("remote", c.RemoteAddr().String()))

	defer func() {
		s.registry.Remove(conn)
		s.metrics.SetConnections(s.registry.Len())
		_ = conn.Close()
		s.logger.Info("client disconnected", zap.String("roomId", roomID))
	}()

	clientIP := c.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		clientIP = host
	}

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		s.handleEvent(r.Context(), conn, roomID, clientIP, data)
	}
}

// handleEvent runs the full ingress publish path for one inbound frame:
// parse, validate, availability check, envelope, durable publish.
func (s *IngressServer) handleEvent(ctx context.Context, conn ClientConn, roomID, clientIP string, data []byte) {
	var event ChatEvent
	if err := json.Unmarshal(data, &event); err != nil {
		s.sendError(conn, "invalid JSON format")
		return
	}

	if err := event.Validate(); err != nil {
		s.sendError(conn, userMessage(err))
		return
	}

	if !s.pub.IsConnected() {
		s.sendError(conn, "message service temporarily unavailable, please try again")
		return
	}

	env := NewEnvelope(&event, roomID, s.serverID, clientIP)
	body, err := json.Marshal(env)
	if err != nil {
		s.logger.Error("envelope serialization failed", zap.Error(err))
		s.sendError(conn, "failed to deliver message, please try again")
		return
	}

	if err := s.pub.Publish(ctx, chatExchange, roomKey(roomID), body, true); err != nil {
		s.logger.Error("publish failed",
			zap.String("messageId", env.MessageID),
			zap.String("routingKey", roomKey(roomID)),
			zap.Error(err))
		s.sendError(conn, "failed to deliver message, please try again")
		return
	}

	s.logger.Debug("published",
		zap.String("messageId", env.MessageID),
		zap.String("routingKey", roomKey(roomID)))
}

// sendError returns a structured error response over the same connection.
func (s *IngressServer) sendError(conn ClientConn, msg string) {
	body, err := json.Marshal(ChatResponse{Status: "ERROR", Error: msg})
	if err != nil {
		return
	}
	if err := conn.Send(body); err != nil {
		s.logger.Warn("error response not delivered", zap.Error(err))
	}
}

// userMessage flattens a joined validation error into the single most
// specific line, suitable for returning to the client.
func userMessage(err error) string {
	parts := strings.Split(err.Error(), "\n")
	return parts[len(parts)-1]
}

// wsClient adapts a gorilla connection to ClientConn. gorilla allows only
// one concurrent writer, and sends arrive from both the read-loop goroutine
// (error responses) and the fan-out handler, hence the mutex.
type wsClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsClient) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsClient) Close() error {
	return c.conn.Close()
}
