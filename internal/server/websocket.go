package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/forceviz/forceviz/internal/core/observability/log"
	"github.com/forceviz/forceviz/internal/engine"
	"github.com/forceviz/forceviz/internal/render"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

type hubClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// FrameSink receives every broadcast frame. Broadcast must not block.
type FrameSink interface {
	Broadcast(data []byte)
}

// Hub fans encoded frames out to websocket clients and any extra sinks. A client whose buffer is
// full is dropped rather than allowed to stall the engine loop.
type Hub struct {
	encoder      *render.Encoder
	writeTimeout time.Duration
	bufferSize   int
	logger       log.Log

	mu      sync.Mutex
	clients map[*hubClient]struct{}
	sinks   []FrameSink
	last    []byte
	closed  bool
}

func NewHub(encoder *render.Encoder, writeTimeout time.Duration, bufferSize int, logger log.Log) *Hub {
	if encoder == nil {
		encoder = render.NewEncoder()
	}
	if bufferSize <= 0 {
		bufferSize = 16
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Hub{
		encoder:      encoder,
		writeTimeout: writeTimeout,
		bufferSize:   bufferSize,
		logger:       logger.With(log.String("component", "hub")),
		clients:      make(map[*hubClient]struct{}),
	}
}

// PublishFrame encodes the loop state and broadcasts it if it changed. It
// is meant to be registered with engine.OnFrame.
func (h *Hub) PublishFrame(s *engine.State) {
	data, changed, err := h.encoder.Encode(render.NewFrame(s.Field.Snapshot()))
	if err != nil {
		h.logger.Error("Failed to encode frame", log.Error(err))
		return
	}
	if changed {
		h.Broadcast(data)
	}
}

// Broadcast queues data for every client without blocking and hands it to
// the sinks.
func (h *Hub) Broadcast(data []byte) {
	h.mu.Lock()
	h.last = data
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Client too slow, dropping", log.String("client_id", c.id))
			h.removeLocked(c)
		}
	}
	sinks := h.sinks
	h.mu.Unlock()

	for _, s := range sinks {
		s.Broadcast(data)
	}
}

// AddSink registers s for every later broadcast.
func (h *Hub) AddSink(s FrameSink) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks[:len(h.sinks):len(h.sinks)], s)
}

// Last returns the most recently broadcast frame, or nil.
func (h *Hub) Last() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Serve upgrades the request and streams frames until the client goes away.
// A new client first gets the last broadcast frame, or initial when nothing
// has been broadcast yet, so it does not wait for the next change.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial []byte) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}

	c := &hubClient{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.bufferSize),
	}
	if err := h.add(c, initial); err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.writeTimeout))
		_ = conn.Close()
		return
	}

	h.logger.Info("Client connected",
		log.String("client_id", c.id),
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int("total_clients", h.Clients()))

	go h.writePump(c)
	h.readPump(c)
}

// add registers c and queues its first frame under the same lock as
// Broadcast: the last broadcast frame if there is one, else initial.
func (h *Hub) add(c *hubClient, initial []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHubClosed
	}
	first := h.last
	if first == nil {
		first = initial
	}
	if first != nil {
		c.send <- first
	}
	h.clients[c] = struct{}{}
	return nil
}

func (h *Hub) remove(c *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *hubClient) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// readPump discards client messages; it only exists to notice disconnects.
func (h *Hub) readPump(c *hubClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.logger.Info("Client disconnected", log.String("client_id", c.id))
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *hubClient) {
	defer c.conn.Close()
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Debug("Write failed", log.String("client_id", c.id), log.Error(err))
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(h.writeTimeout))
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}
