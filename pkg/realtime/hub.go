package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32
)

// Message is the envelope pushed to subscribers.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sentAt"`
}

// Hub fans messages out to websocket clients grouped in named rooms.
// Delivery is best effort: a client whose buffer is full is dropped.
type Hub struct {
	mu       sync.RWMutex
	rooms    map[string]map[*client]struct{}
	total    int
	onCount  func(total int)
	upgrader websocket.Upgrader
	logger   *zap.Logger
	now      func() time.Time
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	room string
	send chan []byte
	once sync.Once
}

// NewHub builds a hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(r *http.Request) bool, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	return &Hub{
		rooms: make(map[string]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		logger: logger,
		now:    time.Now,
	}
}

// Serve upgrades the request and subscribes the connection to room until it
// disconnects.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, room string) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	c := &client{hub: h, conn: conn, room: room, send: make(chan []byte, sendBuffer)}
	h.join(c)
	h.logger.Debug("realtime client connected", zap.String("room", room))

	go c.writePump()
	c.readPump()
	return nil
}

// Publish sends a message to every client in room and returns how many
// clients it was queued for.
func (h *Hub) Publish(room, msgType string, payload interface{}) int {
	body, err := json.Marshal(Message{Type: msgType, Payload: payload, SentAt: h.now().UTC()})
	if err != nil {
		h.logger.Warn("realtime marshal failed", zap.String("type", msgType), zap.Error(err))
		return 0
	}

	delivered := 0
	var slow []*client
	h.mu.RLock()
	for c := range h.rooms[room] {
		select {
		case c.send <- body:
			delivered++
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow realtime client", zap.String("room", room))
		h.leave(c)
	}
	return delivered
}

// OnCountChange registers fn to receive the connected client count after
// every join and leave. Call it before serving clients.
func (h *Hub) OnCountChange(fn func(total int)) {
	h.onCount = fn
}

// RoomSize reports the number of connected clients in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	var all []*client
	for _, members := range h.rooms {
		for c := range members {
			all = append(all, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range all {
		h.leave(c)
	}
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	members, ok := h.rooms[c.room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[c.room] = members
	}
	members[c] = struct{}{}
	h.total++
	total := h.total
	h.mu.Unlock()
	h.reportCount(total)
}

func (h *Hub) leave(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if members, ok := h.rooms[c.room]; ok {
			delete(members, c)
			h.total--
			if len(members) == 0 {
				delete(h.rooms, c.room)
			}
		}
		close(c.send)
		total := h.total
		h.mu.Unlock()
		h.reportCount(total)
	})
}

func (h *Hub) reportCount(total int) {
	if h.onCount != nil {
		h.onCount(total)
	}
}

// readPump discards inbound frames; the channel is server to client only.
func (c *client) readPump() {
	defer func() {
		c.hub.leave(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case body, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
