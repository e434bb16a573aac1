package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/agent-observatory/backend/internal/engine"
	"github.com/agent-observatory/backend/internal/event"
	"github.com/agent-observatory/backend/internal/metrics"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, 64),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() {
	close(c.send)
}

// Broadcaster fans state out to all connected consumers. Sends never block
// the core: a client whose buffer is full simply misses that message and
// resynchronizes on the next one, since every message carries a full
// snapshot. Liveness of the whole system beats per-consumer completeness.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	snapshot func() *engine.Snapshot
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[*client]bool),
	}
}

// SetSnapshotFunc wires the engine's snapshot assembly, used for the
// initial full-state message on connect. Must be set before AddClient.
func (b *Broadcaster) SetSnapshotFunc(fn func() *engine.Snapshot) {
	b.snapshot = fn
}

func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := newClient(conn)

	b.mu.Lock()
	b.clients[c] = true
	metrics.ConnectedClients.Set(float64(len(b.clients)))
	b.mu.Unlock()

	if b.snapshot != nil {
		msg := WSMessage{
			Type:    MsgSnapshot,
			Payload: SnapshotPayload{State: b.snapshot()},
		}
		if data, err := json.Marshal(msg); err == nil {
			select {
			case c.send <- data:
			default:
			}
		}
	}

	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	metrics.ConnectedClients.Set(float64(len(b.clients)))
	b.mu.Unlock()
}

// PublishEvent implements engine.Publisher.
func (b *Broadcaster) PublishEvent(ev event.Event, snap *engine.Snapshot) {
	b.broadcast(WSMessage{
		Type: MsgEvent,
		Payload: EventPayload{
			Phase: ev.Kind(),
			Event: ev,
			State: snap,
		},
	})
}

// PublishState implements engine.Publisher.
func (b *Broadcaster) PublishState(snap *engine.Snapshot) {
	b.broadcast(WSMessage{
		Type:    MsgState,
		Payload: StatePayload{State: snap},
	})
}

func (b *Broadcaster) broadcast(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("broadcast marshal error: %v", err)
		return
	}
	metrics.BroadcastsTotal.Inc()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for c := range b.clients {
		select {
		case c.send <- data:
		default:
			// Client can't keep up; it misses this update and catches up
			// on the next broadcast.
		}
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
