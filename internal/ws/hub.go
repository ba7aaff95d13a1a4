package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type cmdKind int

const (
	cmdRegister cmdKind = iota
	cmdUnregister
	cmdJoin
	cmdLeave
	cmdBroadcast
)

type command struct {
	kind   cmdKind
	client *Client
	room   string
	data   []byte
}

// Client is one live connection's hub-side state. The rooms set is touched
// only by the hub goroutine; the transport layer owns the socket itself.
type Client struct {
	ID     string
	UserID string
	rooms  map[string]struct{}

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClient(userID string, sendBuffer int) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]struct{}),
	}
}

// Outbox is the channel the transport's write pump drains. It is closed by
// the hub when the client is unregistered or falls too far behind.
func (c *Client) Outbox() <-chan []byte { return c.send }

// trySend queues data without blocking. It reports false when the outbox is
// full or already closed.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans live payloads out to per-conversation rooms. All state changes
// flow through one command channel and one goroutine, so every member of a
// room observes broadcasts in the same order and membership mutation never
// waits on persistence.
type Hub struct {
	log      *zap.SugaredLogger
	commands chan command
	clients  map[*Client]struct{}
	rooms    map[string]map[*Client]struct{}
}

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		log:      log,
		commands: make(chan command, 256),
		clients:  make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
	}
}

// Run processes commands until ctx is cancelled. It must run in its own
// goroutine before any client is registered.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return
		case cmd := <-h.commands:
			h.handle(cmd)
		}
	}
}

func (h *Hub) handle(cmd command) {
	switch cmd.kind {
	case cmdRegister:
		h.clients[cmd.client] = struct{}{}
		h.log.Infow("client connected", "socket_id", cmd.client.ID, "user_id", cmd.client.UserID)

	case cmdUnregister:
		if _, ok := h.clients[cmd.client]; ok {
			h.drop(cmd.client)
			h.log.Infow("client disconnected", "socket_id", cmd.client.ID, "user_id", cmd.client.UserID)
		}

	case cmdJoin:
		if _, ok := h.clients[cmd.client]; !ok {
			return
		}
		// idempotent: joining twice is a no-op
		if _, ok := cmd.client.rooms[cmd.room]; ok {
			return
		}
		if h.rooms[cmd.room] == nil {
			h.rooms[cmd.room] = make(map[*Client]struct{})
		}
		h.rooms[cmd.room][cmd.client] = struct{}{}
		cmd.client.rooms[cmd.room] = struct{}{}

	case cmdLeave:
		h.removeFromRoom(cmd.client, cmd.room)

	case cmdBroadcast:
		// delivery includes every current member, the sender's own
		// connections too; receivers dedupe by message id
		for c := range h.rooms[cmd.room] {
			if !c.trySend(cmd.data) {
				h.log.Warnw("dropping slow client", "socket_id", c.ID, "user_id", c.UserID)
				h.drop(c)
			}
		}
	}
}

func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	delete(h.clients, c)
	c.closeSend()
}

func (h *Hub) removeFromRoom(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) Register(c *Client)   { h.commands <- command{kind: cmdRegister, client: c} }
func (h *Hub) Unregister(c *Client) { h.commands <- command{kind: cmdUnregister, client: c} }

func (h *Hub) Join(c *Client, conversationID string) {
	h.commands <- command{kind: cmdJoin, client: c, room: conversationID}
}

func (h *Hub) Leave(c *Client, conversationID string) {
	h.commands <- command{kind: cmdLeave, client: c, room: conversationID}
}

// Broadcast queues payload for every connection currently in the room.
// Connections joining afterwards miss it; history fetch is the catch-up path.
func (h *Hub) Broadcast(conversationID string, payload []byte) {
	h.commands <- command{kind: cmdBroadcast, room: conversationID, data: payload}
}
