package detect

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Fantasim/tokenscout/internal/config"
)

// Event types published by the hub.
const (
	EventTokensChanged     = "tokens_changed"
	EventDetectionStarted  = "detection_started"
	EventDetectionFinished = "detection_finished"
)

// Event is one notification fanned out to subscribers.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// TokensChangedData is the payload of tokens_changed.
type TokensChangedData struct {
	Wallet  string `json:"wallet"`
	Network string `json:"network"`
	Reason  string `json:"reason"`
}

// DetectionStartedData is the payload of detection_started.
type DetectionStartedData struct {
	Wallet  string `json:"wallet"`
	Network string `json:"network"`
	Kind    string `json:"kind"`
	RunID   string `json:"runId,omitempty"`
}

// DetectionFinishedData is the payload of detection_finished.
type DetectionFinishedData struct {
	Wallet     string `json:"wallet"`
	Network    string `json:"network"`
	Kind       string `json:"kind"`
	RunID      string `json:"runId,omitempty"`
	Status     string `json:"status"`
	Candidates int    `json:"candidates"`
	Added      int    `json:"added"`
	Duration   string `json:"duration"`
}

// Hub fans events out to channel subscribers and registered listeners.
// It never blocks the publisher: a full subscriber channel drops the event
// for that subscriber.
type Hub struct {
	mu        sync.RWMutex
	clients   map[chan Event]struct{}
	listeners map[int]func(Event)
	nextID    int
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[chan Event]struct{}),
		listeners: make(map[int]func(Event)),
	}
}

// Run blocks until ctx is cancelled, then closes every subscriber channel.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}

	slog.Info("event hub stopped", "reason", ctx.Err())
}

// Subscribe registers a channel subscriber.
func (h *Hub) Subscribe() chan Event {
	ch := make(chan Event, config.EventHubChannelBuffer)

	h.mu.Lock()
	h.clients[ch] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	slog.Debug("event subscriber added", "subscribers", n)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	n := len(h.clients)
	h.mu.Unlock()

	slog.Debug("event subscriber removed", "subscribers", n)
}

// Listen registers fn to be called for every event and returns a function
// that removes it. fn runs on the publisher's goroutine and must not block.
func (h *Hub) Listen(fn func(Event)) (remove func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// Broadcast publishes an event.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	listeners := make([]func(Event), 0, len(h.listeners))
	for _, fn := range h.listeners {
		listeners = append(listeners, fn)
	}
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			slog.Warn("event dropped for slow subscriber", "eventType", event.Type)
		}
	}
	h.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

// ClientCount returns the number of channel subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
