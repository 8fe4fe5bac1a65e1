// Package gateway serves live viewer sessions over WebSocket. Each
// connection registers a session with the broadcast Hub (optionally
// filtered to one geofence name) and streams tracker messages until the
// client disconnects or falls too far behind.
package gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/manolocortes/evTrak/internal/broadcast"
	"github.com/manolocortes/evTrak/internal/config"
)

// welcomeMessage is the first frame sent on every new connection.
type welcomeMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// Handler upgrades HTTP requests to WebSocket sessions fed by the Hub.
type Handler struct {
	hub          *broadcast.Hub
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *slog.Logger
}

// NewHandler creates a gateway Handler.
func NewHandler(hub *broadcast.Hub, cfg config.GatewayConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browsers connect from arbitrary origins; session data is
			// public fleet state, so origin checking is not enforced here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: cfg.WriteTimeout,
		pingInterval: cfg.PingInterval,
		logger:       logger,
	}
}

// ServeWS handles GET /ws. The optional "geofence" query parameter
// restricts transition-event delivery to that geofence name; position
// updates are always streamed.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		h.logger.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	filter := r.URL.Query().Get("geofence")
	session := h.hub.Register(filter)

	go h.writePump(conn, session)
	go h.readPump(conn, session)
}

// writePump streams the session's messages to the connection, interleaved
// with pings. It exits when the session's channel closes (unregistered, or
// disconnected by the Hub on overflow) or a write fails.
func (h *Handler) writePump(conn *websocket.Conn, session *broadcast.Session) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	welcome := welcomeMessage{
		Type:      "welcome",
		Message:   "Connected to evTrak gateway",
		SessionID: session.ID(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
	if err := conn.WriteJSON(welcome); err != nil {
		h.hub.Unregister(session)
		return
	}

	for {
		select {
		case msg, ok := <-session.Messages():
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if !ok {
				// Hub closed the stream; tell the client and go away.
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				h.hub.Unregister(session)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.hub.Unregister(session)
				return
			}
		}
	}
}

// readPump drains inbound frames so control messages (pong, close) are
// processed, and deregisters the session when the connection drops.
func (h *Handler) readPump(conn *websocket.Conn, session *broadcast.Session) {
	defer func() {
		h.hub.Unregister(session)
		conn.Close()
	}()

	conn.SetReadLimit(512)
	readWait := h.pingInterval * 2
	conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("session read error", "session_id", session.ID(), "error", err)
			}
			return
		}
	}
}
