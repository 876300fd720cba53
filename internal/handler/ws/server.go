// Package ws implements the real-time WebSocket channel. A connection must
// authenticate with its first frame (an auth JSON message carrying a session
// token) before it is registered for event delivery.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ashgrove-labs/chat-service/internal/broadcast"
	"github.com/ashgrove-labs/chat-service/internal/domain/models"
	"github.com/ashgrove-labs/chat-service/internal/service"
	"github.com/ashgrove-labs/chat-service/internal/utils/metrics"
)

const (
	authTimeout  = 30 * time.Second
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 45 * time.Second
)

// AuthMessage is the first frame a client must send.
type AuthMessage struct {
	MessageType  string `json:"message_type"`
	SessionToken string `json:"session_token"`
}

// AuthResponse answers the auth frame.
type AuthResponse struct {
	MessageType string  `json:"message_type"`
	Success     bool    `json:"success"`
	UserID      *string `json:"user_id,omitempty"`
	Error       *string `json:"error,omitempty"`
}

// Server upgrades HTTP requests to authenticated WebSocket connections and
// bridges hub deliveries onto them.
type Server struct {
	authService    *service.AuthService
	messageService *service.MessageService
	hub            *broadcast.Hub
	upgrader       websocket.Upgrader
	logger         *zap.Logger
}

// NewServer creates a new instance of Server.
func NewServer(authService *service.AuthService, messageService *service.MessageService, hub *broadcast.Hub, logger *zap.Logger) *Server {
	return &Server{
		authService:    authService,
		messageService: messageService,
		hub:            hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Token auth happens in-band; origin policy is the proxy's job.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the connection and runs the auth handshake.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	user, ok := s.handshake(ws)
	if !ok {
		_ = ws.Close()
		return
	}

	conn := s.hub.Register(user.ID)
	metrics.ConnectionsGauge.WithLabelValues("ws").Inc()
	s.logger.Info("WebSocket client connected",
		zap.String("user_id", user.ID.String()),
		zap.String("username", user.Username),
	)

	go s.writePump(ws, conn)
	go s.readPump(ws, conn)
}

// handshake reads the auth frame and validates the session. The client gets
// exactly one auth_response either way.
func (s *Server) handshake(ws *websocket.Conn) (*models.User, bool) {
	_ = ws.SetReadDeadline(time.Now().Add(authTimeout))

	var auth AuthMessage
	if err := ws.ReadJSON(&auth); err != nil {
		s.rejectAuth(ws, "invalid auth frame")
		return nil, false
	}
	if auth.MessageType != "auth" {
		s.rejectAuth(ws, "expected message_type \"auth\"")
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
	defer cancel()
	u, err := s.authService.ValidateSession(ctx, auth.SessionToken)
	if err != nil {
		s.rejectAuth(ws, "invalid or expired session token")
		return nil, false
	}

	id := u.ID.String()
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteJSON(AuthResponse{MessageType: "auth_response", Success: true, UserID: &id}); err != nil {
		return nil, false
	}
	_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))
	return u, true
}

func (s *Server) rejectAuth(ws *websocket.Conn, reason string) {
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	_ = ws.WriteJSON(AuthResponse{MessageType: "auth_response", Success: false, Error: &reason})
}

// writePump drains the hub outbox onto the socket until the connection is
// evicted or the socket breaks.
func (s *Server) writePump(ws *websocket.Conn, conn *broadcast.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		s.hub.Unregister(conn)
		_ = ws.Close()
		metrics.ConnectionsGauge.WithLabelValues("ws").Dec()
	}()

	for {
		select {
		case <-conn.Closed:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case event := <-conn.Outbox:
			frame, err := s.encodeFrame(event)
			if err != nil {
				s.logger.Warn("Dropping unencodable event", zap.Error(err),
					zap.String("event_kind", string(event.Kind)))
				continue
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump consumes client frames. The channel is outbound-only after auth;
// inbound frames keep the connection alive but carry no commands (those go
// over the command channel).
func (s *Server) readPump(ws *websocket.Conn, conn *broadcast.Conn) {
	defer s.hub.Unregister(conn)

	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))
	}
}
