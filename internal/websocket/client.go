// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/packline/internal/display"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/status"
)

// clientIDCounter orders clients for deterministic shutdown.
var clientIDCounter atomic.Uint64

// Feed is the part of a display session a client observes.
type Feed interface {
	Observe(fn display.Observer) func()
}

// Binding ties a client to a tenant's display session.
type Binding struct {
	Tenant models.TenantID
	// CustomerID narrows summaries frames to one customer. Empty means all.
	CustomerID string
	Feed       Feed
	// Release is called once when the client goes away.
	Release func()
}

// Client is a middleman between the websocket connection and a display session.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	binding Binding

	mu         sync.Mutex
	send       chan Message
	closed     bool
	lastStatus status.State

	unobserve func()
	closeOnce sync.Once
}

// NewClient creates a client. It does nothing until registered with the hub.
func NewClient(hub *Hub, conn *websocket.Conn, binding Binding) *Client {
	size := hub.cfg.SendBuffer
	if size < 1 {
		size = 1
	}
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		binding: binding,
		send:    make(chan Message, size),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Tenant returns the tenant the client watches.
func (c *Client) Tenant() models.TenantID {
	return c.binding.Tenant
}

// deliver runs on the session goroutine and must not block.
func (c *Client) deliver(u display.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if u.Reason == display.ReasonInitial || u.Status != c.lastStatus {
		c.lastStatus = u.Status
		c.enqueueLocked(Message{Type: MessageTypeStatus, Data: StatusData{Tenant: u.Tenant, Status: u.Status}})
	}
	if u.Reason == display.ReasonStatus {
		return
	}
	c.enqueueLocked(Message{Type: MessageTypeSummaries, Data: c.summaries(u)})
}

func (c *Client) summaries(u display.Update) SummariesData {
	data := SummariesData{
		Tenant:       u.Tenant,
		CustomerID:   c.binding.CustomerID,
		Reason:       string(u.Reason),
		Revalidating: u.Revalidating,
		Summaries:    []*models.CustomerPackingSummary{},
	}
	if u.Summaries == nil {
		return data
	}
	if c.binding.CustomerID == "" {
		data.Summaries = u.Summaries.Summaries()
		return data
	}
	if sum, ok := u.Summaries.Get(c.binding.CustomerID); ok {
		data.Summaries = append(data.Summaries, sum)
	}
	return data
}

// enqueue queues msg, evicting the oldest queued frame when the buffer is full.
func (c *Client) enqueue(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.enqueueLocked(msg)
}

func (c *Client) enqueueLocked(msg Message) {
	for {
		select {
		case c.send <- msg:
			return
		default:
		}
		select {
		case <-c.send:
			metrics.WSFramesDropped.Inc()
		default:
		}
	}
}

// start attaches the observer and launches the pumps.
func (c *Client) start() {
	c.unobserve = c.binding.Feed.Observe(c.deliver)
	if c.conn == nil {
		return
	}
	go c.writePump()
	go c.readPump()
}

// close stops observing, releases the session and ends the write pump.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.unobserve != nil {
			c.unobserve()
		}
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		if c.binding.Release != nil {
			c.binding.Release()
		}
	})
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	pongWait := c.hub.pongWait()
	c.conn.SetReadLimit(c.hub.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("tenant", string(c.binding.Tenant)).Msg("unexpected websocket close")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logging.Debug().Err(err).Msg("ignoring malformed websocket frame")
			continue
		}
		if msg.Type == MessageTypePing {
			c.enqueue(Message{Type: MessageTypePong})
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("type", message.Type).Msg("failed to marshal websocket frame")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logging.Debug().Err(err).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
