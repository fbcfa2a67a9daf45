package services_test

import (
	"strconv"
	"testing"
	"time"

	"cipher-relay/internal/registry"
	"cipher-relay/internal/services"
	"cipher-relay/pkg/keychain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictStore always reports an id collision.
type conflictStore struct {
	registry.Store
	calls int
}

func (s *conflictStore) Create(string) (uint64, error) {
	s.calls++
	return 0, registry.ErrConflict
}

func newService() (*services.RoomService, *registry.Registry) {
	reg := registry.New(time.Hour, time.Minute)
	return services.NewRoomService(reg), reg
}

func TestCreateRoomReturnsDecimalID(t *testing.T) {
	svc, reg := newService()

	chatID, err := svc.CreateRoom("abc123")
	require.NoError(t, err)

	id, err := strconv.ParseUint(chatID, 10, 64)
	require.NoError(t, err)

	room, ok := reg.Get(id)
	require.True(t, ok)
	assert.Equal(t, "abc123", room.VerificationHash)
}

func TestCreateRoomInvalidHash(t *testing.T) {
	svc, _ := newService()

	_, err := svc.CreateRoom("")
	assert.ErrorIs(t, err, registry.ErrInvalidInput)
}

func TestCreateRoomRetriesExhausted(t *testing.T) {
	store := &conflictStore{}
	svc := services.NewRoomService(store)

	_, err := svc.CreateRoom("abc")
	assert.ErrorIs(t, err, registry.ErrConflict)
	assert.Equal(t, 5, store.calls)
}

func TestAuthorize(t *testing.T) {
	svc, _ := newService()

	key, err := keychain.NewRoomKey()
	require.NoError(t, err)
	token, err := keychain.DeriveToken(key)
	require.NoError(t, err)
	hash, err := keychain.VerificationHash(token)
	require.NoError(t, err)

	chatID, err := svc.CreateRoom(hash)
	require.NoError(t, err)

	id, err := svc.Authorize(chatID, token)
	require.NoError(t, err)
	assert.Equal(t, chatID, strconv.FormatUint(id, 10))

	_, err = svc.Authorize(chatID, "deadbeef")
	assert.ErrorIs(t, err, services.ErrAuthenticationFailed)

	_, err = svc.Authorize("12345", token)
	assert.ErrorIs(t, err, services.ErrAuthenticationFailed)

	_, err = svc.Authorize("not-a-number", token)
	assert.ErrorIs(t, err, services.ErrAuthenticationFailed)
}

func TestAuthorizeTokenFromOtherRoom(t *testing.T) {
	svc, _ := newService()

	mint := func() (chatID, token string) {
		key, err := keychain.NewRoomKey()
		require.NoError(t, err)
		token, err = keychain.DeriveToken(key)
		require.NoError(t, err)
		hash, err := keychain.VerificationHash(token)
		require.NoError(t, err)
		chatID, err = svc.CreateRoom(hash)
		require.NoError(t, err)
		return chatID, token
	}

	chatA, _ := mint()
	_, tokenB := mint()

	// Token B is valid for room B, which exists, but must not open room A.
	_, err := svc.Authorize(chatA, tokenB)
	assert.ErrorIs(t, err, services.ErrAuthenticationFailed)
}
