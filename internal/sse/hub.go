package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deckforge/deckforge-backend/internal/platform/logger"
)

type Event string

const (
	EventProgress   Event = "GenerationProgress"
	EventFallback   Event = "GenerationFallback"
	EventCompleted  Event = "GenerationCompleted"
	EventFailed     Event = "GenerationFailed"
	EventRefinement Event = "RefinementProgress"
)

// Message is one wire frame. Channel is the generation run id, so a
// client subscribed to a run sees that run's events and nothing else.
type Message struct {
	Channel string `json:"channel"`
	Event   Event  `json:"event"`
	Data    any    `json:"data,omitempty"`
}

type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan Message
	done     chan struct{}
}

// Hub fans generation events out to connected stream clients. Channels
// are created lazily on first subscription and dropped when empty.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "SSEHub"),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

func (h *Hub) NewClient() *Client {
	return &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan Message, 32),
		done:     make(chan struct{}),
	}
}

func (h *Hub) AddChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}

	client.Channels[channel] = true

	clients, exists := h.subscriptions[channel]
	if !exists {
		clients = make(map[*Client]bool)
		h.subscriptions[channel] = clients
	}
	clients[client] = true

	h.log.Debug("SSE client subscribed", "clientID", client.ID, "channel", channel)
}

func (h *Hub) RemoveChannel(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	delete(client.Channels, channel)

	if subMap, ok := h.subscriptions[channel]; ok {
		delete(subMap, client)
		if len(subMap) == 0 {
			delete(h.subscriptions, channel)
		}
	}
	h.log.Debug("SSE client unsubscribed from channel", "clientID", client.ID, "channel", channel)
}

func (h *Hub) RemoveClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range client.Channels {
		if subMap, ok := h.subscriptions[ch]; ok {
			delete(subMap, client)
			if len(subMap) == 0 {
				delete(h.subscriptions, ch)
			}
		}
	}
	client.Channels = make(map[string]bool)
	h.log.Debug("SSE client unsubscribed from all channels", "clientID", client.ID)
}

// Broadcast delivers to every subscriber of the message's channel. Slow
// consumers lose messages rather than stall the run.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if msg.Channel == "" {
		return
	}
	clientsMap, ok := h.subscriptions[msg.Channel]
	if !ok {
		return
	}
	for c := range clientsMap {
		select {
		case c.Outbound <- msg:
		default:
			h.log.Warn("Dropping SSE message; outbound buffer full", "clientID", c.ID)
		}
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, client *Client) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Debug("SSE client context done", "clientID", client.ID, "err", ctx.Err())
			return
		case <-client.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg := <-client.Outbound:
			raw, err := json.Marshal(msg)
			if err != nil {
				h.log.Warn("Failed to marshal SSE message", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\n", msg.Event)
			fmt.Fprintf(w, "data: %s\n\n", raw)
			flusher.Flush()
		}
	}
}

func (h *Hub) CloseClient(client *Client) {
	close(client.done)
	h.RemoveClient(client)
	close(client.Outbound)
}
