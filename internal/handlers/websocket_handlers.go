package handlers

import (
	"net/http"

	"cipher-relay/internal/services"
	ws "cipher-relay/internal/websocket"
	"cipher-relay/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxEncryptedUsernameLen = 256

type WebSocketHandlers struct {
	roomService   *services.RoomService
	hubManager    *ws.Manager
	maxFrameBytes int64
	upgrader      websocket.Upgrader
}

func NewWebSocketHandlers(roomService *services.RoomService, hubManager *ws.Manager, maxFrameBytes int64) *WebSocketHandlers {
	return &WebSocketHandlers{
		roomService:   roomService,
		hubManager:    hubManager,
		maxFrameBytes: maxFrameBytes,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // Configure for production
		},
	}
}

// HandleWebSocket is the admission gate: every check happens before the
// upgrade, from connection metadata only, so a refused connection leaves no
// state behind.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chatID := q.Get("chatId")
	token := q.Get("token")

	// An absent room and a bad token are deliberately the same failure.
	roomID, err := h.roomService.Authorize(chatID, token)
	if err != nil {
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	encryptedUsername := q.Get("encryptedUsername")
	if encryptedUsername == "" || len(encryptedUsername) > maxEncryptedUsernameLen {
		http.Error(w, "invalid encryptedUsername", http.StatusBadRequest)
		return
	}

	clientID := q.Get("clientId")
	newSession := clientID == ""
	if newSession {
		clientID = uuid.NewString()
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	hub := h.hubManager.HubForRoom(roomID)
	client := ws.NewClient(hub, conn, uuid.NewString(), clientID, encryptedUsername, h.maxFrameBytes)

	// session_set must be queued before registration so the client learns
	// its id ahead of any room event.
	client.SendSessionSet()
	hub.Register(client)

	if newSession {
		logger.Debug("Issued client id %s to connection %s", clientID, client.ConnID())
	}

	go client.WritePump()
	go client.ReadPump()
}
