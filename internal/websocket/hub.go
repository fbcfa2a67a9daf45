package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"cipher-relay/internal/models"
	"cipher-relay/internal/registry"
	"cipher-relay/pkg/logger"
)

// frame is one relayed message queued for fan-out.
type frame struct {
	sender     *Client
	ciphertext json.RawMessage
	iv         json.RawMessage
}

// Hub coordinates the live connections of one room. All membership mutation
// runs on the hub's single Run goroutine, which is what guarantees that
// zombie reconciliation completes before a newcomer is registered and that
// snapshots never observe a half-reconciled member set.
type Hub struct {
	roomID   uint64
	store    registry.Store
	clients  map[*Client]bool
	register chan *Client
	unregis  chan *Client
	frames   chan frame
	done     chan struct{}
	stop     sync.Once
	members  atomic.Int32

	// handedOut is the unix-nano time the manager last handed this hub to
	// an admission in progress.
	handedOut atomic.Int64
}

func NewHub(roomID uint64, store registry.Store) *Hub {
	return &Hub{
		roomID:   roomID,
		store:    store,
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unregis:  make(chan *Client),
		frames:   make(chan frame, sendBufferSize),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.evict(client)
			}
			return

		case client := <-h.register:
			h.admit(client)

		case client := <-h.unregis:
			h.drop(client)

		case f := <-h.frames:
			h.relay(f)
		}
	}
}

// Register hands a freshly admitted connection to the hub loop.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.conn.Close()
	}
}

// Unregister removes a departing connection. Safe to call for connections
// the hub has already displaced.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregis <- c:
	case <-h.done:
	}
}

// Relay queues a message for fan-out to the rest of the room.
func (h *Hub) Relay(sender *Client, ciphertext, iv json.RawMessage) {
	select {
	case h.frames <- frame{sender: sender, ciphertext: ciphertext, iv: iv}:
	case <-h.done:
	}
}

func (h *Hub) Members() int { return int(h.members.Load()) }

// Shutdown stops the hub loop and disconnects every remaining member.
func (h *Hub) Shutdown() {
	h.stop.Do(func() { close(h.done) })
}

// admit runs the Joined transition: reconcile, register, snapshot, announce.
func (h *Hub) admit(c *Client) {
	// Reconciliation must complete before the newcomer becomes a member:
	// any other live connection with the same client id is displaced,
	// silently from the room's point of view.
	for other := range h.clients {
		if other.clientID == c.clientID {
			h.evict(other)
			logger.Info("Displaced zombie connection %s for client %s in room %d", other.connID, c.clientID, h.roomID)
		}
	}

	h.clients[c] = true
	h.members.Store(int32(len(h.clients)))
	h.store.Touch(h.roomID)

	// Point-in-time snapshot of the other members, to the newcomer only.
	users := make([]models.RoomUser, 0, len(h.clients)-1)
	for other := range h.clients {
		if other == c {
			continue
		}
		users = append(users, models.RoomUser{ID: other.connID, EncryptedUsername: other.encryptedUsername})
	}
	c.enqueue(models.Event{Type: models.EventRoomUsers, Users: users})

	h.broadcast(models.Event{
		Type:              models.EventUserJoined,
		ID:                c.connID,
		EncryptedUsername: c.encryptedUsername,
	}, c)

	logger.Info("Connection %s joined room %d", c.connID, h.roomID)
}

// drop handles a voluntary departure. A connection that was already
// displaced during reconciliation is no longer a member, so the room is
// never notified twice about the same connection.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.members.Store(int32(len(h.clients)))
	close(c.send)

	h.broadcast(models.Event{
		Type:              models.EventUserLeft,
		ID:                c.connID,
		EncryptedUsername: c.encryptedUsername,
	}, nil)

	logger.Info("Connection %s left room %d", c.connID, h.roomID)
}

// evict removes a connection without notifying the room and releases its
// resources immediately. The displaced peer cannot refuse or delay this.
func (h *Hub) evict(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.members.Store(int32(len(h.clients)))
	close(c.send)
	c.conn.Close()
}

func (h *Hub) relay(f frame) {
	// Frames queued by a connection that has since been dropped are not
	// relayed; the displaced party is already gone from the room.
	if _, ok := h.clients[f.sender]; !ok {
		return
	}

	h.store.Touch(h.roomID)
	h.broadcast(models.Event{
		Type:       models.EventMessage,
		SenderID:   f.sender.connID,
		Ciphertext: f.ciphertext,
		IV:         f.iv,
	}, f.sender)
}

// broadcast fans evt out to every member except exclude. Sends never block:
// a member whose buffer is full is disconnected rather than allowed to stall
// the room. Unlike a reconciled zombie, a slow member is a normal departure,
// so the survivors still get its user_left.
func (h *Hub) broadcast(evt models.Event, exclude *Client) {
	data, err := json.Marshal(evt)
	if err != nil {
		logger.Error("Error marshaling %s broadcast: %v", evt.Type, err)
		return
	}

	var slow []*Client
	for client := range h.clients {
		if client == exclude {
			continue
		}
		select {
		case client.send <- data:
		default:
			slow = append(slow, client)
		}
	}

	for _, client := range slow {
		// A nested leave broadcast may already have removed this one.
		if _, ok := h.clients[client]; !ok {
			continue
		}
		logger.Warn("Connection %s too slow, dropping it from room %d", client.connID, h.roomID)
		client.conn.Close()
		h.drop(client)
	}
}

// Manager owns one hub per live room.
type Manager struct {
	mu    sync.Mutex
	hubs  map[uint64]*Hub
	store registry.Store

	reapInterval time.Duration
}

func NewManager(store registry.Store) *Manager {
	return &Manager{
		hubs:         make(map[uint64]*Hub),
		store:        store,
		reapInterval: 5 * time.Minute,
	}
}

// HubForRoom returns the room's hub, starting one if needed.
func (m *Manager) HubForRoom(roomID uint64) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	hub, exists := m.hubs[roomID]
	if !exists {
		hub = NewHub(roomID, m.store)
		m.hubs[roomID] = hub
		go hub.Run()
	}
	hub.handedOut.Store(time.Now().UnixNano())
	return hub
}

// Run reaps dead hubs until ctx is cancelled, then shuts every hub down.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			for roomID, hub := range m.hubs {
				hub.Shutdown()
				delete(m.hubs, roomID)
			}
			m.mu.Unlock()
			return

		case <-ticker.C:
			m.reap()
		}
	}
}

// reap shuts down hubs whose room was evicted and forgets empty hubs. A new
// hub is started on demand if the room is joined again later. An empty hub
// handed out within the last reap interval is spared: its admission may not
// have registered yet.
func (m *Manager) reap() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for roomID, hub := range m.hubs {
		if _, ok := m.store.Get(roomID); !ok {
			hub.Shutdown()
			delete(m.hubs, roomID)
			logger.Debug("Reaped hub for evicted room %d", roomID)
			continue
		}
		if hub.Members() == 0 && time.Since(time.Unix(0, hub.handedOut.Load())) > m.reapInterval {
			hub.Shutdown()
			delete(m.hubs, roomID)
			logger.Debug("Reaped idle hub for room %d", roomID)
		}
	}
}
