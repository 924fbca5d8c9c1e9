package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wolfman30/careconnect-platform/internal/identity"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Handler serves the notification feed and the real-time socket.
type Handler struct {
	dispatcher *Dispatcher
	hub        *Hub
	upgrader   websocket.Upgrader
	logger     *logging.Logger
}

// NewHandler accepts socket upgrades from any origin when allowedOrigins is
// empty.
func NewHandler(dispatcher *Dispatcher, hub *Hub, allowedOrigins []string, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &Handler{
		dispatcher: dispatcher,
		hub:        hub,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// List handles GET /notifications.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	list, err := h.dispatcher.List(r.Context(), session.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// MarkAsRead handles POST /notifications/{notificationID}/read.
func (h *Handler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.dispatcher.MarkAsRead)
}

// Archive handles POST /notifications/{notificationID}/archive.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.dispatcher.Archive)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID, id uuid.UUID) (*Notification, error)) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "notificationID"))
	if err != nil {
		jsonError(w, "invalid notificationID", http.StatusBadRequest)
		return
	}
	n, err := apply(r.Context(), session.UserID, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// Socket handles GET /ws/notifications. The caller only ever receives their
// own channel.
func (h *Handler) Socket(w http.ResponseWriter, r *http.Request) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		jsonError(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err, "user_id", session.UserID)
		return
	}
	client := newClient(Channel(session.UserID))
	h.hub.Register(client)
	h.logger.Debug("websocket client connected", "user_id", session.UserID, "client_id", client.ID)

	go h.writePump(conn, client)
	h.readPump(conn, client)
}

// readPump discards inbound frames and unregisters the client on disconnect.
func (h *Handler) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		_ = conn.Close()
	}()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()
	for {
		select {
		case msg, ok := <-client.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		jsonError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		jsonError(w, "not found", http.StatusNotFound)
	default:
		h.logger.Error("notification request failed", "error", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
