// Package ws pushes session snapshots to browser pages over websockets.
// Each session is a group; a page joins the group of its session and
// receives a message after every render and live quote.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Hub tracks connected pages and the session groups they follow.
type Hub struct {
	name       string
	validGroup func(group string) bool
	encoder    *Encoder
	logger     *zap.Logger

	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]bool
	groups  map[string]map[*Client]bool // session -> followers
}

// NewHub creates a hub. validGroup decides which groups clients may join;
// nil accepts any non-empty name.
func NewHub(name string, validGroup func(group string) bool, logger *zap.Logger) (*Hub, error) {
	enc, err := NewEncoder()
	if err != nil {
		return nil, err
	}
	if validGroup == nil {
		validGroup = func(group string) bool { return group != "" }
	}
	return &Hub{
		name:       name,
		validGroup: validGroup,
		encoder:    enc,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		groups:     make(map[string]map[*Client]bool),
	}, nil
}

// Run serializes connection bookkeeping until ctx is cancelled, then
// closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub shutting down", zap.String("hub", h.name), zap.Int("clients", h.Clients()))
			h.shutdown()
			return
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.logger.Debug("page connected", zap.String("hub", h.name), zap.String("connID", c.connID))
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	delete(h.clients, c)
	for group := range c.groups {
		h.forgetLocked(c, group)
	}
	c.closeSend()
	h.logger.Debug("page disconnected", zap.String("hub", h.name), zap.String("connID", c.connID))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		c.closeSend()
	}
	h.clients = make(map[*Client]bool)
	h.groups = make(map[string]map[*Client]bool)
	close(h.done)
	h.encoder.Close()
}

// drop asks Run to unregister c unless the hub has already shut down.
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// JoinGroup subscribes c to a session's updates. It reports false for
// sessions the hub does not know and for connections already closed.
func (h *Hub) JoinGroup(c *Client, group string) bool {
	if !h.validGroup(group) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if c.closed {
		return false
	}
	if h.groups[group] == nil {
		h.groups[group] = make(map[*Client]bool)
	}
	h.groups[group][c] = true
	c.groups[group] = true

	h.logger.Debug("page following session", zap.String("connID", c.connID), zap.String("session", group))
	return true
}

func (h *Hub) LeaveGroup(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forgetLocked(c, group)
	delete(c.groups, group)
}

func (h *Hub) forgetLocked(c *Client, group string) {
	followers, ok := h.groups[group]
	if !ok {
		return
	}
	delete(followers, c)
	if len(followers) == 0 {
		delete(h.groups, group)
	}
}

// GetActiveGroups returns the sessions with at least one follower.
func (h *Hub) GetActiveGroups() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	groups := make([]string, 0, len(h.groups))
	for group := range h.groups {
		groups = append(groups, group)
	}
	return groups
}

// Followers returns how many connections follow group.
func (h *Hub) Followers(group string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[group])
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish marshals v once and hands it to every follower of group, zstd
// followers getting one shared compressed frame. It never blocks: a
// follower whose buffer is full is disconnected.
func (h *Hub) Publish(group string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := sessionFrame(group, raw)

	// Sends happen under the read lock so shutdown cannot close a channel
	// mid-send. They never block.
	h.mu.RLock()
	defer h.mu.RUnlock()

	var compressed []byte
	for c := range h.groups[group] {
		frame := msg
		if c.protocol == ProtocolZstd {
			if compressed == nil {
				compressed = h.encoder.Compress(msg)
			}
			frame = compressed
		}
		select {
		case c.send <- frame:
		default:
			h.logger.Warn("page too slow, disconnecting", zap.String("connID", c.connID), zap.String("session", group))
			go h.drop(c)
		}
	}
	return nil
}
