package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"cipher-relay/internal/models"
	"cipher-relay/internal/registry"
	"cipher-relay/internal/services"
	"cipher-relay/pkg/logger"
)

type RoomHandlers struct {
	roomService *services.RoomService
}

func NewRoomHandlers(roomService *services.RoomService) *RoomHandlers {
	return &RoomHandlers{
		roomService: roomService,
	}
}

// CreateRoom handles POST /api/room/create. The submitted serverHash is the
// only thing the server ever learns about the room's secret.
func (h *RoomHandlers) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	chatID, err := h.roomService.CreateRoom(req.ServerHash)
	if err != nil {
		switch {
		case errors.Is(err, registry.ErrInvalidInput):
			http.Error(w, "invalid serverHash", http.StatusBadRequest)
		case errors.Is(err, registry.ErrConflict):
			logger.Error("Create room error: %v", err)
			http.Error(w, "could not allocate room id", http.StatusBadRequest)
		default:
			logger.Error("Create room error: %v", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	logger.Info("Created room %s", chatID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.CreateRoomResponse{ChatID: chatID})
}

// Health handles GET /healthz.
func (h *RoomHandlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.HealthResponse{
		Status: "ok",
		Rooms:  h.roomService.RoomCount(),
	})
}
