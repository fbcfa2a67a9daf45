// Package registry holds the in-memory room store. Rooms live only in
// process memory; a restart wipes every room by contract.
package registry

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"cipher-relay/pkg/logger"
)

const maxHashLen = 128

// Room is a snapshot of one room record.
type Room struct {
	ID               uint64
	VerificationHash string
	CreatedAt        time.Time
	LastActiveAt     time.Time
}

// Store is the registry surface consumed by the room service and the
// session coordinator.
type Store interface {
	Create(verificationHash string) (uint64, error)
	Get(id uint64) (Room, bool)
	Touch(id uint64)
	Sweep(now time.Time) int
	Len() int
}

type Registry struct {
	mu            sync.RWMutex
	rooms         map[uint64]*Room
	ttl           time.Duration
	sweepInterval time.Duration
	newID         func() (uint64, error)
}

func New(ttl, sweepInterval time.Duration) *Registry {
	return &Registry{
		rooms:         make(map[uint64]*Room),
		ttl:           ttl,
		sweepInterval: sweepInterval,
		newID:         randomID,
	}
}

func randomID() (uint64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

// Create registers a new room for verificationHash and returns its id.
// Returns ErrInvalidInput for a missing or oversized hash and ErrConflict if
// the generated id collides with a live room; collisions are retryable by
// the caller.
func (r *Registry) Create(verificationHash string) (uint64, error) {
	if verificationHash == "" || len(verificationHash) > maxHashLen {
		return 0, fmt.Errorf("verification hash must be 1-%d characters: %w", maxHashLen, ErrInvalidInput)
	}

	id, err := r.newID()
	if err != nil {
		return 0, fmt.Errorf("generating room id: %w", err)
	}

	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.rooms[id]; exists {
		return 0, ErrConflict
	}
	r.rooms[id] = &Room{
		ID:               id,
		VerificationHash: verificationHash,
		CreatedAt:        now,
		LastActiveAt:     now,
	}
	return id, nil
}

// Get returns a copy of the room record, if it exists.
func (r *Registry) Get(id uint64) (Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return Room{}, false
	}
	return *room, true
}

// Touch updates the room's last-activity timestamp. No-op if the room is
// absent.
func (r *Registry) Touch(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[id]; ok {
		room.LastActiveAt = time.Now()
	}
}

// Sweep removes every room inactive for longer than the TTL, measured
// against now. A room exactly at the boundary survives. Returns the number
// of evicted rooms.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := 0
	for id, room := range r.rooms {
		if now.Sub(room.LastActiveAt) > r.ttl {
			delete(r.rooms, id)
			evicted++
		}
	}
	return evicted
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Run sweeps on a fixed interval until ctx is cancelled. Intended to run in
// its own goroutine, independent of request traffic.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(time.Now()); n > 0 {
				logger.Info("Evicted %d inactive rooms", n)
			}
		}
	}
}
