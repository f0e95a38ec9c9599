package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kbukum/meshkit/logger"
)

const (
	defaultClientBuffer = 256
	defaultHubBuffer    = 256
)

var (
	ErrHubStopped = errors.New("sse hub stopped")
	ErrHubFull    = errors.New("sse hub queue full")
)

// Broadcaster publishes events to the clients whose id matches a glob
// pattern.
type Broadcaster interface {
	Publish(pattern, event string, payload any) error
}

// Client is one connected stream.
type Client struct {
	id     string
	events chan Frame
}

func NewClient(id string) *Client {
	return &Client{id: id, events: make(chan Frame, defaultClientBuffer)}
}

func (c *Client) ID() string { return c.id }

// Events is closed when the hub drops the client.
func (c *Client) Events() <-chan Frame { return c.events }

// Send queues f, reporting false when the client is too slow to keep up.
func (c *Client) Send(f Frame) bool {
	select {
	case c.events <- f:
		return true
	default:
		return false
	}
}

type message struct {
	pattern string
	frame   Frame
}

// Hub fans frames out to clients. Registration and delivery happen on the
// goroutine running Run.
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

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:        logger.OrNop(log).WithComponent("sse"),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan message, defaultHubBuffer),
		done:       make(chan struct{}),
	}
}

// Run is the event loop. It returns after Stop, closing every client.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return

		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.id]; ok {
				close(old.events)
			}
			h.clients[c.id] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client registered", logger.Fields("client_id", c.id, "total_clients", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.id]; ok && cur == c {
				delete(h.clients, c.id)
				close(c.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("Client unregistered", logger.Fields("client_id", c.id, "total_clients", total))

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Stop makes Run return. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Register adds c, returning false when the hub has stopped. A client with
// the same id replaces the previous one.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish marshals payload to JSON and queues it for every client whose id
// matches pattern (filepath.Match syntax). It never blocks: a full queue
// drops the event and returns ErrHubFull.
func (h *Hub) Publish(pattern, event string, payload any) error {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("sse pattern %q: %w", pattern, err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse payload: %w", err)
	}

	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.broadcast <- message{pattern: pattern, frame: Frame{Event: event, Data: data}}:
		return nil
	default:
		h.log.Warn("Hub queue full, dropping event", logger.Fields("pattern", pattern, "event", event))
		return ErrHubFull
	}
}

func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if ok, _ := filepath.Match(msg.pattern, id); !ok {
			continue
		}
		if !c.Send(msg.frame) {
			h.log.Warn("Client channel full, dropping event", logger.Fields("client_id", id))
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

var _ Broadcaster = (*Hub)(nil)
