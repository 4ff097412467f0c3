package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const clientSendBuffer = 64

// wsClient is one connected event feed consumer. Frames are queued on a
// buffered send channel drained by a write pump; a full buffer drops the
// frame rather than stalling the publisher.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte

	closeOnce sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	go c.writePump()
	return c
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

// wsHub fans frames out to the websocket clients of each resource class.
type wsHub struct {
	mu      sync.RWMutex
	clients map[string]map[*wsClient]bool
	dropped atomic.Uint64
}

func newWSHub() *wsHub {
	return &wsHub{clients: make(map[string]map[*wsClient]bool)}
}

func (h *wsHub) add(class string, conn *websocket.Conn) *wsClient {
	c := newWSClient(conn)
	h.mu.Lock()
	if h.clients[class] == nil {
		h.clients[class] = make(map[*wsClient]bool)
	}
	h.clients[class][c] = true
	h.mu.Unlock()
	return c
}

func (h *wsHub) remove(class string, c *wsClient) {
	h.mu.Lock()
	if set, ok := h.clients[class]; ok && set[c] {
		delete(set, c)
		c.close()
	}
	h.mu.Unlock()
}

// publish queues frame on every client of class. Slow clients lose frames:
// the push channel is lossy and snapshots reconcile what was missed.
func (h *wsHub) publish(class string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[class] {
		select {
		case c.send <- frame:
		default:
			h.dropped.Add(1)
		}
	}
}

func (h *wsHub) clientCount(class string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[class])
}

func (h *wsHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for class, set := range h.clients {
		for c := range set {
			c.close()
		}
		delete(h.clients, class)
	}
}
