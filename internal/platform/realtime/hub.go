// Package realtime provides the shared broadcast channel used by intake forms
// and staff viewers. It implements a hub-and-spoke pattern: WebSocket clients
// and in-process subscribers attach to named topics and receive every
// envelope published to those topics. Delivery is at-most-once; a subscriber
// whose buffer is full misses the envelope.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/liveintake/intake/internal/platform/broadcast"
)

// ErrMissingTopic is returned when an envelope does not name a topic.
var ErrMissingTopic = errors.New("topic is required")

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a single WebSocket connection.
type Client struct {
	ID     string
	Topics []string
	Send   chan []byte
	hub    *Hub
	conn   Conn
}

// Relay forwards locally published envelopes to another transport, e.g. a
// broker shared by several server instances. Forward must not block.
type Relay interface {
	Forward(ctx context.Context, env broadcast.Envelope)
}

type localSub struct {
	fn func(broadcast.Envelope)
}

// Hub tracks WebSocket clients and in-process subscribers per topic. All
// operations are safe for concurrent use.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}   // topic -> set of clients
	all     map[*Client]struct{}              // all connected clients
	locals  map[string]map[*localSub]struct{} // topic -> in-process subscribers
	relays  []Relay
	logger  zerolog.Logger
}

// NewHub creates a new Hub ready to manage clients and subscribers.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		locals:  make(map[string]map[*localSub]struct{}),
		logger:  logger,
	}
}

// AddRelay registers r to receive every envelope published on this hub.
// Envelopes injected with Deliver are not relayed.
func (h *Hub) AddRelay(r Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relays = append(h.relays, r)
}

// Register adds a client to the hub and subscribes it to its initial topics.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}

	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

// Unregister removes a client from the hub, all topic subscriptions, and
// closes the client's Send channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}

	for _, topic := range client.Topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	delete(h.all, client)
	close(client.Send)
}

// Join adds topics to an already-registered client.
func (h *Hub) Join(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, topic := range topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		if _, ok := h.clients[topic][client]; ok {
			continue
		}
		h.clients[topic][client] = struct{}{}
		client.Topics = append(client.Topics, topic)
	}
}

// Leave removes topics from an already-registered client.
func (h *Hub) Leave(client *Client, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	removeSet := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		removeSet[t] = struct{}{}
	}

	for _, topic := range topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}

	remaining := make([]string, 0, len(client.Topics))
	for _, t := range client.Topics {
		if _, rm := removeSet[t]; !rm {
			remaining = append(remaining, t)
		}
	}
	client.Topics = remaining
}

// Subscribe implements broadcast.Subscriber for in-process consumers. fn runs
// on the publishing goroutine and must return quickly.
func (h *Hub) Subscribe(topic string, fn func(broadcast.Envelope)) func() {
	sub := &localSub{fn: fn}

	h.mu.Lock()
	if h.locals[topic] == nil {
		h.locals[topic] = make(map[*localSub]struct{})
	}
	h.locals[topic][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if subs, ok := h.locals[topic]; ok {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.locals, topic)
				}
			}
		})
	}
}

// Publish implements broadcast.Publisher: it delivers env to every local
// subscriber of env.Topic and hands it to the registered relays.
func (h *Hub) Publish(ctx context.Context, env broadcast.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return h.publishFrom(ctx, nil, env)
}

// Deliver fans env out to local subscribers only. Relays use it to inject
// envelopes that arrived from elsewhere so they are not forwarded again.
func (h *Hub) Deliver(env broadcast.Envelope) error {
	return h.deliver(nil, env)
}

func (h *Hub) publishFrom(ctx context.Context, sender *Client, env broadcast.Envelope) error {
	if err := h.deliver(sender, env); err != nil {
		return err
	}

	h.mu.RLock()
	relays := append([]Relay(nil), h.relays...)
	h.mu.RUnlock()

	for _, r := range relays {
		r.Forward(ctx, env)
	}
	return nil
}

// deliver sends env to every subscriber of its topic except sender; a client
// never receives its own broadcast.
func (h *Hub) deliver(sender *Client, env broadcast.Envelope) error {
	if env.Topic == "" {
		return ErrMissingTopic
	}
	if env.Type == "" {
		env.Type = broadcast.EnvelopeType
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	h.mu.RLock()
	for client := range h.clients[env.Topic] {
		if client == sender {
			continue
		}
		select {
		case client.Send <- data:
		default:
			h.logger.Debug().Str("client_id", client.ID).Str("topic", env.Topic).Msg("client buffer full, dropping envelope")
		}
	}
	locals := make([]*localSub, 0, len(h.locals[env.Topic]))
	for sub := range h.locals[env.Topic] {
		locals = append(locals, sub)
	}
	h.mu.RUnlock()

	for _, sub := range locals {
		sub.fn(env)
	}
	return nil
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

// TopicCount returns the number of clients subscribed to a specific topic.
func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// SubscriberCount returns the number of in-process subscribers on topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.locals[topic])
}
