// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package broadcast

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
	"github.com/tomtom215/packline/internal/models"
)

// SenderConfig limits how fast one tenant may broadcast.
type SenderConfig struct {
	// RatePerSecond of zero disables throttling.
	RatePerSecond float64
	Burst         int
	SendTimeout   time.Duration
}

// DefaultSenderConfig allows 50 broadcasts a second per tenant with bursts of 100.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{RatePerSecond: 50, Burst: 100, SendTimeout: 5 * time.Second}
}

// Sender fires broadcasts without waiting for them. Each send connects a
// fresh handle, publishes, and disconnects it again.
//
// Limiters are kept per tenant and dropped once they have been idle long
// enough to refill their whole burst, so the map is bounded by the tenants
// active within that window.
type Sender struct {
	channel *Channel
	cfg     SenderConfig
	now     func() time.Time

	mu        sync.Mutex
	limiters  map[models.TenantID]*tenantLimiter
	lastSweep time.Time

	wg sync.WaitGroup
}

type tenantLimiter struct {
	*rate.Limiter
	lastSeen time.Time
}

// NewSender returns a Sender over channel.
func NewSender(channel *Channel, cfg SenderConfig) *Sender {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	return &Sender{
		channel:  channel,
		cfg:      cfg,
		now:      time.Now,
		limiters: map[models.TenantID]*tenantLimiter{},
	}
}

// refill is how long an unused limiter takes to get its whole burst back.
// After that it behaves exactly like a new one.
func (s *Sender) refill() time.Duration {
	return time.Duration(float64(s.cfg.Burst) / s.cfg.RatePerSecond * float64(time.Second))
}

func (s *Sender) allow(tenant models.TenantID) bool {
	if s.cfg.RatePerSecond <= 0 {
		return true
	}
	now := s.now()
	idle := s.refill()

	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastSweep) >= idle {
		for t, l := range s.limiters {
			if now.Sub(l.lastSeen) >= idle {
				delete(s.limiters, t)
			}
		}
		s.lastSweep = now
	}

	l, ok := s.limiters[tenant]
	if !ok {
		l = &tenantLimiter{Limiter: rate.NewLimiter(rate.Limit(s.cfg.RatePerSecond), s.cfg.Burst)}
		s.limiters[tenant] = l
	}
	l.lastSeen = now
	return l.AllowN(now, 1)
}

// Send schedules msg and returns at once. It returns false when the tenant
// is over its rate, in which case the message is dropped; displays still
// converge from the change feed.
func (s *Sender) Send(msg events.BroadcastMessage) bool {
	kind := string(msg.Type())
	if !s.allow(msg.Tenant()) {
		metrics.RecordBroadcastSend(kind, "throttled")
		logging.Debug().Str("tenant", string(msg.Tenant())).Str("type", kind).Msg("Broadcast throttled")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx := context.Background()
		if s.cfg.SendTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.SendTimeout)
			defer cancel()
		}

		h := s.channel.Connect(ctx, events.TopicFor(msg.Tenant(), msg.Type()))
		defer h.Disconnect()

		if err := h.Send(ctx, msg); err != nil {
			metrics.RecordBroadcastSend(kind, "error")
			logging.Warn().Err(err).Str("tenant", string(msg.Tenant())).Str("type", kind).Msg("Broadcast send failed")
			return
		}
		metrics.RecordBroadcastSend(kind, "sent")
	}()
	return true
}

// Wait blocks until every scheduled send has finished.
func (s *Sender) Wait() {
	s.wg.Wait()
}
