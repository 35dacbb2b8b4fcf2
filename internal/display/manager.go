// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package display

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/status"
)

// ErrManagerClosed is returned by Acquire after Close.
var ErrManagerClosed = errors.New("display manager closed")

type entry struct {
	session *Session
	refs    int
	// detached is set when the last holder releases the session and closed
	// once its Detach has returned. The tenant stays reserved until then.
	detached chan struct{}
}

// Manager shares one session per tenant among everything that displays it.
// The session is attached on first Acquire and detached when the last
// holder releases it.
type Manager struct {
	deps Deps
	cfg  Config

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[models.TenantID]*entry
	closed   bool
}

// NewManager returns a Manager. deps.Store is shared by every session.
func NewManager(deps Deps, cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:     deps,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: map[models.TenantID]*entry{},
	}
}

// Acquire returns the tenant's session and a release function. Each
// Acquire must be paired with exactly one release; extra calls are ignored.
//
// If the tenant's previous session is still detaching, Acquire waits for it
// so the old teardown cannot drop cached summaries the new session owns.
func (m *Manager) Acquire(tenant models.TenantID) (*Session, func(), error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, nil, ErrManagerClosed
		}

		e, ok := m.sessions[tenant]
		if ok && e.detached != nil {
			wait := e.detached
			m.mu.Unlock()
			<-wait
			continue
		}
		if !ok {
			s, err := Attach(m.ctx, tenant, m.deps, m.cfg)
			if err != nil {
				m.mu.Unlock()
				return nil, nil, err
			}
			e = &entry{session: s}
			m.sessions[tenant] = e
		}
		e.refs++
		m.mu.Unlock()

		var once sync.Once
		return e.session, func() { once.Do(func() { m.release(tenant, e) }) }, nil
	}
}

func (m *Manager) release(tenant models.TenantID, e *entry) {
	m.mu.Lock()
	e.refs--
	last := e.refs <= 0 && e.detached == nil && m.sessions[tenant] == e
	if last {
		e.detached = make(chan struct{})
	}
	m.mu.Unlock()

	if !last {
		return
	}
	e.session.Detach()

	m.mu.Lock()
	if m.sessions[tenant] == e {
		delete(m.sessions, tenant)
	}
	m.mu.Unlock()
	close(e.detached)
}

// Lookup returns the tenant's session if one is attached.
func (m *Manager) Lookup(tenant models.TenantID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[tenant]
	if !ok || e.detached != nil {
		return nil, false
	}
	return e.session, true
}

// SessionInfo describes an attached session for health reporting.
type SessionInfo struct {
	Tenant        models.TenantID       `json:"tenant"`
	Holders       int                   `json:"holders"`
	Status        status.State          `json:"status"`
	Revalidating  bool                  `json:"revalidating"`
	Customers     int                   `json:"customers"`
	Breaker       string                `json:"breaker"`
	Subscriptions []status.Subscription `json:"subscriptions"`
}

// Sessions lists attached sessions ordered by tenant.
func (m *Manager) Sessions() []SessionInfo {
	m.mu.Lock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for tenant, e := range m.sessions {
		if e.detached != nil {
			continue
		}
		s := e.session
		out = append(out, SessionInfo{
			Tenant:        tenant,
			Holders:       e.refs,
			Status:        s.Status(),
			Revalidating:  s.Revalidating(),
			Customers:     s.Snapshot().Len(),
			Breaker:       s.BreakerState(),
			Subscriptions: s.Subscriptions(),
		})
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Tenant < out[j].Tenant })
	return out
}

// Close detaches every session. Later Acquire calls fail.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		sessions = append(sessions, e.session)
	}
	m.sessions = map[models.TenantID]*entry{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Detach()
	}
	m.cancel()
}

// Serve runs until ctx ends and then detaches every session.
func (m *Manager) Serve(ctx context.Context) error {
	logging.Info().Msg("Display manager started")
	<-ctx.Done()
	m.Close()
	logging.Info().Msg("Display manager stopped")
	return ctx.Err()
}

// String names the service in supervisor logs.
func (m *Manager) String() string { return "display-manager" }
