package realtime

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"sentra/internal/platform/config"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 1024
)

// WSHandler upgrades dashboard connections and pumps envelopes between the
// hub and the socket.
type WSHandler struct {
	hub      *Hub
	cfg      config.RealtimeConfig
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler builds the realtime endpoint handler.
func NewWSHandler(hub *Hub, cfg config.RealtimeConfig, logger *slog.Logger) *WSHandler {
	return &WSHandler{
		hub:    hub,
		cfg:    cfg,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin enforcement happens at the edge proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

type handshakeClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// identify resolves the connecting user and any rooms implied by their role.
// With a signing key configured the handshake token is authoritative;
// otherwise the explicit user_id query parameter is trusted (development
// mode, or a deployment where the edge already authenticated the socket).
func (h *WSHandler) identify(r *http.Request) (userID string, rooms []string) {
	if token := r.URL.Query().Get("token"); token != "" && h.cfg.JWTSigningKey != "" {
		claims := &handshakeClaims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(h.cfg.JWTSigningKey), nil
		})
		if err == nil && parsed.Valid {
			if claims.Role != "" {
				rooms = append(rooms, RoleRoom(claims.Role))
			}
			return claims.Subject, rooms
		}
		h.logger.Warn("realtime handshake token rejected", "error", err)
		return "", nil
	}
	return r.URL.Query().Get("user_id"), nil
}

// ServeHTTP implements GET /realtime.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID, rooms := h.identify(r)
	if userID == "" {
		http.Error(w, "user identification required", http.StatusUnauthorized)
		return
	}

	if raw := r.URL.Query().Get("rooms"); raw != "" {
		for _, room := range strings.Split(raw, ",") {
			if room = strings.TrimSpace(room); room != "" {
				rooms = append(rooms, room)
			}
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	sub := h.hub.Subscribe(userID, rooms, h.cfg.SendBuffer)

	go h.writePump(conn, sub)
	go h.readPump(conn, sub)
}

// readPump consumes client control messages until the socket closes, then
// removes the subscription from every hub index.
func (h *WSHandler) readPump(conn *websocket.Conn, sub *Subscription) {
	defer func() {
		h.hub.Unsubscribe(sub)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("realtime connection closed unexpectedly", "user_id", sub.UserID, "error", err)
			}
			return
		}
		switch msg.Type {
		case controlJoinRoom:
			h.hub.JoinRoom(sub, msg.Room)
		case controlLeaveRoom:
			h.hub.LeaveRoom(sub, msg.Room)
		case controlPing:
			select {
			case sub.Send <- Envelope{Type: "pong", Timestamp: time.Now().UTC()}:
			default:
			}
		}
	}
}

// writePump drains the subscription channel to the socket and drives
// keepalive pings.
func (h *WSHandler) writePump(conn *websocket.Conn, sub *Subscription) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-sub.Done():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case env := <-sub.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
