package network

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/MRamiBalles/reactor-sim/internal/config"
	"github.com/MRamiBalles/reactor-sim/internal/engine"
	"github.com/MRamiBalles/reactor-sim/internal/platform/logger"
	"github.com/MRamiBalles/reactor-sim/internal/platform/metrics"
)

// Hub maintains the set of active clients and broadcasts state frames to
// them.
type Hub struct {
	driver  *engine.Driver
	buffers config.BuffersConfig

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex

	metrics *metrics.Collector
	logger  *logger.Logger
}

// NewHub creates a hub serving driver's frames. Zero-valued buffer settings
// fall back to config.DefaultBuffers.
func NewHub(driver *engine.Driver, buffers config.BuffersConfig, log *logger.Logger) *Hub {
	def := config.DefaultBuffers()
	if buffers.BroadcastChannelBuffer <= 0 {
		buffers.BroadcastChannelBuffer = def.BroadcastChannelBuffer
	}
	if buffers.ClientSendBuffer <= 0 {
		buffers.ClientSendBuffer = def.ClientSendBuffer
	}
	if buffers.MaxClients <= 0 {
		buffers.MaxClients = def.MaxClients
	}
	if buffers.CommandsPerSecond <= 0 {
		buffers.CommandsPerSecond = def.CommandsPerSecond
	}
	if buffers.CommandBurst <= 0 {
		buffers.CommandBurst = def.CommandBurst
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		driver:     driver,
		buffers:    buffers,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, buffers.BroadcastChannelBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		metrics:    driver.Metrics(),
		logger:     log,
	}
}

// Run subscribes to the driver and handles client connections and
// broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	unsubscribe := h.driver.Subscribe(h.BroadcastFrame)
	defer unsubscribe()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
				h.metrics.RecordWSConnection(-1)
			}
			h.mu.Unlock()
			h.logger.Info("websocket hub shutting down")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.metrics.RecordWSConnection(1)
			h.logger.Info("websocket client connected", "client", client.id)
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.metrics.RecordWSConnection(-1)
				h.logger.Info("websocket client disconnected", "client", client.id)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow reader; it gets the next frame instead.
					h.metrics.RecordDroppedFrame()
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastFrame serializes f and queues it for every client. It never
// blocks: when the broadcast queue is full the frame is dropped.
func (h *Hub) BroadcastFrame(f engine.Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		h.logger.Error("failed to serialize frame for websocket broadcast", "error", err)
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		h.metrics.RecordDroppedFrame()
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// join registers c unless the hub has stopped or ctx ends first.
func (h *Hub) join(ctx context.Context, c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) full() bool {
	return h.ClientCount() >= h.buffers.MaxClients
}
