package services

import (
	"errors"
	"fmt"
	"strconv"

	"cipher-relay/internal/auth"
	"cipher-relay/internal/registry"
)

// createAttempts bounds id regeneration on collision. Collisions on random
// 64-bit ids are near-impossible but handled, not assumed away.
const createAttempts = 5

type RoomService struct {
	store registry.Store
}

func NewRoomService(store registry.Store) *RoomService {
	return &RoomService{store: store}
}

// CreateRoom creates a room for the submitted verification hash and returns
// its id as a decimal string.
func (s *RoomService) CreateRoom(serverHash string) (string, error) {
	var lastErr error
	for i := 0; i < createAttempts; i++ {
		id, err := s.store.Create(serverHash)
		if err == nil {
			return strconv.FormatUint(id, 10), nil
		}
		if !errors.Is(err, registry.ErrConflict) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("room id space exhausted after %d attempts: %w", createAttempts, lastErr)
}

// Authorize resolves chatID and checks token against the room's verification
// hash. Absent rooms, unparsable ids, and credential mismatches all come
// back as ErrAuthenticationFailed.
func (s *RoomService) Authorize(chatID, token string) (uint64, error) {
	id, err := strconv.ParseUint(chatID, 10, 64)
	if err != nil {
		return 0, ErrAuthenticationFailed
	}

	room, ok := s.store.Get(id)
	if !ok {
		return 0, ErrAuthenticationFailed
	}

	if !auth.Verify(token, room.VerificationHash) {
		return 0, ErrAuthenticationFailed
	}
	return id, nil
}

func (s *RoomService) RoomCount() int {
	return s.store.Len()
}
