// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package websocket

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/status"
)

// ErrHubStopped is returned when registering with a hub that is not running.
var ErrHubStopped = errors.New("websocket hub stopped")

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for kiosk frames.
const (
	MessageTypeSummaries = "summaries"
	MessageTypeStatus    = "status"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// Message is one websocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// SummariesData is the payload of a summaries frame.
type SummariesData struct {
	Tenant       models.TenantID                  `json:"tenant_id"`
	CustomerID   string                           `json:"customer_id,omitempty"`
	Reason       string                           `json:"reason"`
	Revalidating bool                             `json:"revalidating"`
	Summaries    []*models.CustomerPackingSummary `json:"summaries"`
}

// StatusData is the payload of a status frame.
type StatusData struct {
	Tenant models.TenantID `json:"tenant_id"`
	Status status.State    `json:"status"`
}

// Config tunes client connections.
type Config struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	MaxMessageSize int64
}

// DefaultConfig matches the server defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     16,
		MaxMessageSize: 4096,
	}
}

// Hub tracks connected kiosk clients.
type Hub struct {
	cfg          Config
	clients      map[*Client]bool
	register     chan *Client
	unregisterCh chan *Client
	stopped      chan struct{}
	stopOnce     sync.Once
	mu           sync.RWMutex
}

// NewHub creates a hub. It must be run with RunWithContext before clients
// can register.
func NewHub(cfg Config) *Hub {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultConfig().PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultConfig().MaxMessageSize
	}
	return &Hub{
		cfg:          cfg,
		clients:      make(map[*Client]bool),
		register:     make(chan *Client),
		unregisterCh: make(chan *Client),
		stopped:      make(chan struct{}),
	}
}

// pongWait is how long a client may stay silent before it is dropped.
func (h *Hub) pongWait() time.Duration {
	return h.cfg.PingInterval * 10 / 9
}

// Register hands a client to the hub, which starts it. If the hub is not
// running the client is released and ErrHubStopped returned.
func (h *Hub) Register(ctx context.Context, c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.stopped:
	case <-ctx.Done():
	}
	c.close()
	if c.conn != nil {
		_ = c.conn.Close()
	}
	return ErrHubStopped
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-h.stopped:
	}
}

// RunWithContext runs the hub until ctx is canceled, then closes every
// client. Lifecycle events are handled in priority order: shutdown first,
// then unregistrations, then registrations.
func (h *Hub) RunWithContext(ctx context.Context) error {
	defer h.stopOnce.Do(func() { close(h.stopped) })

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.unregisterCh:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.unregisterCh:
			h.remove(client)
		case client := <-h.register:
			h.add(client)
		}
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	c.start()
	logging.Info().
		Str("tenant", string(c.Tenant())).
		Str("customer_id", c.binding.CustomerID).
		Int("total_clients", total).
		Msg("kiosk client connected")
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}

	metrics.WSConnections.Dec()
	c.close()
	logging.Info().
		Str("tenant", string(c.Tenant())).
		Int("total_clients", total).
		Msg("kiosk client disconnected")
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	count := h.closeAllClients()
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}

// closeAllClients closes clients in id order and returns how many there were.
func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	for _, client := range clients {
		metrics.WSConnections.Dec()
		client.close()
	}
	return len(clients)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ClientsByTenant counts connected clients per tenant.
func (h *Hub) ClientsByTenant() map[models.TenantID]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[models.TenantID]int)
	for c := range h.clients {
		out[c.Tenant()]++
	}
	return out
}

// MarshalMessage converts a message to JSON.
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
