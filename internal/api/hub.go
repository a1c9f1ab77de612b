package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"flyover/pkg/camera"
	"flyover/pkg/tour"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

// Message types exchanged over /ws.
const (
	MsgProgress = "progress" // server -> client: tour snapshot
	MsgFly      = "fly"      // server -> client: camera move
	MsgStop     = "stop"     // server -> client: abort camera move
	MsgMoveEnd  = "moveend"  // client -> server: camera move finished
	MsgPing     = "ping"
	MsgPong     = "pong"
)

// Message is the websocket envelope.
type Message struct {
	Type string          `json:"type"`
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// flight is the camera move as the map renders it.
type flight struct {
	Center   [2]float64 `json:"center"`
	Zoom     float64    `json:"zoom"`
	Pitch    float64    `json:"pitch"`
	Bearing  float64    `json:"bearing"`
	Duration int64      `json:"duration"` // ms
	Curve    float64    `json:"curve,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans tour progress out to every connected map and acts as the camera
// engine: moves are rendered by the browser, which answers with moveend.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	pending map[string]chan struct{}
	last    []byte // latest progress frame, replayed to new clients
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		pending: make(map[string]chan struct{}),
	}
}

// Clients returns the number of connected maps.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeWS handles GET /ws.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("API: websocket upgrade failed", "error", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.last != nil {
		c.send <- h.last
	}
	h.mu.Unlock()
	slog.Debug("API: map connected", "remote", r.RemoteAddr)

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("API: websocket closed", "error", err)
			}
			return
		}
		switch msg.Type {
		case MsgMoveEnd:
			h.ended(msg.ID)
		case MsgPing:
			h.deliver(c, encode(Message{Type: MsgPong}))
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// deliver queues frame for c, dropping it when c has fallen behind.
func (h *Hub) deliver(c *client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// broadcastLocked queues frame for every client. h.mu must be held.
func (h *Hub) broadcastLocked(frame []byte) {
	for c := range h.clients {
		select {
		case c.send <- frame:
		default:
			slog.Debug("API: map too slow, dropping frame")
		}
	}
}

// Publish sends a progress snapshot to every map.
func (h *Hub) Publish(p *tour.Progress) {
	data, err := json.Marshal(p)
	if err != nil {
		slog.Error("API: failed to encode progress", "error", err)
		return
	}
	frame := encode(Message{Type: MsgProgress, Data: data})

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = frame
	h.broadcastLocked(frame)
}

// Run publishes every snapshot from updates until ctx ends or updates closes.
func (h *Hub) Run(ctx context.Context, updates <-chan *tour.Progress) {
	for {
		select {
		case p, ok := <-updates:
			if !ok {
				return
			}
			h.Publish(p)
		case <-ctx.Done():
			return
		}
	}
}

// FlyTo implements camera.Engine. Without a connected map it fails with
// camera.ErrNotReady.
func (h *Hub) FlyTo(ctx context.Context, m camera.Move) (<-chan struct{}, error) {
	data, err := json.Marshal(flight{
		Center:   [2]float64{m.Center.Lon(), m.Center.Lat()},
		Zoom:     m.Zoom,
		Pitch:    m.Pitch,
		Bearing:  m.Bearing,
		Duration: m.Duration.Milliseconds(),
		Curve:    m.Curve,
	})
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) == 0 {
		return nil, camera.ErrNotReady
	}
	done := make(chan struct{})
	h.pending[m.ID] = done
	// Moves the map never reports are dropped when the caller gives up on them.
	context.AfterFunc(ctx, func() { h.ended(m.ID) })
	h.broadcastLocked(encode(Message{Type: MsgFly, ID: m.ID, Data: data}))
	return done, nil
}

// Pending reports the moves still waiting for a moveend.
func (h *Hub) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Stop implements camera.Engine.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.pending {
		delete(h.pending, id)
		close(ch)
	}
	h.broadcastLocked(encode(Message{Type: MsgStop}))
}

// ended resolves the move with the given id. Unknown ids are ignored.
func (h *Hub) ended(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.pending[id]; ok {
		delete(h.pending, id)
		close(ch)
	}
}

// Close disconnects every map and resolves pending moves.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.pending {
		delete(h.pending, id)
		close(ch)
	}
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func encode(m Message) []byte {
	b, _ := json.Marshal(m)
	return b
}
