package sse

import (
	"path/filepath"
	"sync"

	"github.com/kbukum/voicememo/logger"
)

// Frame is one server-sent event.
type Frame struct {
	Event string
	Data  []byte
}

// Broadcaster delivers frames to the clients whose id matches a glob
// pattern, e.g. "task:abc:*" or "tasks:*".
type Broadcaster interface {
	Broadcast(pattern string, f Frame)
}

// Client is one connected event stream.
type Client struct {
	id     string
	taskID string
	frames chan Frame
}

// clientBuffer is the number of frames a slow client may lag behind
// before frames are dropped.
const clientBuffer = 64

// NewClient creates a client. An empty taskID subscribes to every task.
func NewClient(id, taskID string) *Client {
	return &Client{id: id, taskID: taskID, frames: make(chan Frame, clientBuffer)}
}

func (c *Client) ID() string     { return c.id }
func (c *Client) TaskID() string { return c.taskID }

// Frames returns the channel frames arrive on. It is closed when the
// client is unregistered or the hub stops.
func (c *Client) Frames() <-chan Frame { return c.frames }

// send queues f without blocking. It reports false when the buffer is full.
func (c *Client) send(f Frame) bool {
	select {
	case c.frames <- f:
		return true
	default:
		return false
	}
}

// Hub tracks connected clients and fans frames out to them. All client
// map changes happen on the Run goroutine.
type Hub struct {
	log        *logger.Logger
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
}

type message struct {
	pattern string
	frame   Frame
}

// NewHub creates a hub. Call Run to start it.
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:        log.WithComponent("sse"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, 256),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", map[string]interface{}{
				"client_id":        c.id,
				logger.FieldTaskID: c.taskID,
				"clients":          n,
			})

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.frames)
			}
			h.mu.Unlock()

		case m := <-h.broadcast:
			h.deliver(m)
		}
	}
}

// Stop shuts the hub down and closes every client. It is safe to call
// more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.frames)
		delete(h.clients, id)
	}
}

// Register adds c. It returns false when the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its frame channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues f for every client whose id matches pattern.
func (h *Hub) Broadcast(pattern string, f Frame) {
	select {
	case h.broadcast <- message{pattern: pattern, frame: f}:
	case <-h.done:
	}
}

func (h *Hub) deliver(m message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		matched, err := filepath.Match(m.pattern, id)
		if err != nil {
			h.log.Error("bad broadcast pattern", map[string]interface{}{
				"pattern":         m.pattern,
				logger.FieldError: err.Error(),
			})
			return
		}
		if matched && !c.send(m.frame) {
			h.log.Warn("client too slow, frame dropped", map[string]interface{}{
				"client_id": id,
				"event":     m.frame.Event,
			})
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var _ Broadcaster = (*Hub)(nil)
