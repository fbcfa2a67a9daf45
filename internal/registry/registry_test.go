package registry

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTTL = time.Hour

func newTestRegistry() *Registry {
	return New(testTTL, time.Minute)
}

func TestCreateAndGet(t *testing.T) {
	r := newTestRegistry()

	id, err := r.Create("abc123")
	require.NoError(t, err)

	room, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, room.ID)
	assert.Equal(t, "abc123", room.VerificationHash)
	assert.False(t, room.CreatedAt.IsZero())
	assert.Equal(t, room.CreatedAt, room.LastActiveAt)
	assert.Equal(t, 1, r.Len())
}

func TestCreateInvalidHash(t *testing.T) {
	r := newTestRegistry()

	_, err := r.Create("")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Create(strings.Repeat("a", 129))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// 128 chars is the inclusive limit.
	_, err = r.Create(strings.Repeat("a", 128))
	assert.NoError(t, err)
}

func TestCreateCollision(t *testing.T) {
	r := newTestRegistry()
	r.newID = func() (uint64, error) { return 42, nil }

	id, err := r.Create("hash-a")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	// Same id again: conflict, and the existing room's hash is untouched.
	_, err = r.Create("hash-b")
	assert.ErrorIs(t, err, ErrConflict)

	room, ok := r.Get(42)
	require.True(t, ok)
	assert.Equal(t, "hash-a", room.VerificationHash)
}

func TestGetAbsent(t *testing.T) {
	r := newTestRegistry()
	_, ok := r.Get(7)
	assert.False(t, ok)
}

func TestTouchUpdatesOnlyLastActive(t *testing.T) {
	r := newTestRegistry()
	id, err := r.Create("abc")
	require.NoError(t, err)

	before, _ := r.Get(id)
	time.Sleep(5 * time.Millisecond)
	r.Touch(id)
	after, _ := r.Get(id)

	assert.True(t, after.LastActiveAt.After(before.LastActiveAt))
	assert.Equal(t, before.CreatedAt, after.CreatedAt)
	assert.Equal(t, before.VerificationHash, after.VerificationHash)

	// Repeated touches keep moving LastActiveAt forward, nothing else.
	r.Touch(id)
	again, _ := r.Get(id)
	assert.False(t, again.LastActiveAt.Before(after.LastActiveAt))
	assert.Equal(t, 1, r.Len())
}

func TestTouchAbsentIsNoop(t *testing.T) {
	r := newTestRegistry()
	assert.NotPanics(t, func() { r.Touch(99) })
	assert.Equal(t, 0, r.Len())
}

func TestSweepBoundary(t *testing.T) {
	r := newTestRegistry()
	id, err := r.Create("abc")
	require.NoError(t, err)

	room, _ := r.Get(id)

	// Exactly at the TTL boundary: not evicted.
	evicted := r.Sweep(room.LastActiveAt.Add(testTTL))
	assert.Equal(t, 0, evicted)
	assert.Equal(t, 1, r.Len())

	// One nanosecond past it: evicted.
	evicted = r.Sweep(room.LastActiveAt.Add(testTTL + time.Nanosecond))
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, r.Len())
}

func TestSweepKeepsTouchedRooms(t *testing.T) {
	r := newTestRegistry()
	stale, err := r.Create("stale")
	require.NoError(t, err)
	fresh, err := r.Create("fresh")
	require.NoError(t, err)

	staleRoom, _ := r.Get(stale)
	r.mu.Lock()
	r.rooms[stale].LastActiveAt = staleRoom.LastActiveAt.Add(-2 * testTTL)
	r.mu.Unlock()

	evicted := r.Sweep(time.Now())
	assert.Equal(t, 1, evicted)

	_, ok := r.Get(stale)
	assert.False(t, ok)
	_, ok = r.Get(fresh)
	assert.True(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	r := newTestRegistry()
	id, err := r.Create("abc")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Touch(id)
				r.Get(id)
				r.Sweep(time.Now())
				_, _ = r.Create("other")
			}
		}()
	}
	wg.Wait()

	_, ok := r.Get(id)
	assert.True(t, ok)
}
