// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tomtom215/packline/internal/broadcast"
	"github.com/tomtom215/packline/internal/cache"
	"github.com/tomtom215/packline/internal/changefeed"
	"github.com/tomtom215/packline/internal/clock"
	"github.com/tomtom215/packline/internal/engine"
	"github.com/tomtom215/packline/internal/events"
	"github.com/tomtom215/packline/internal/lifecycle"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
	"github.com/tomtom215/packline/internal/models"
	"github.com/tomtom215/packline/internal/reconciler"
	"github.com/tomtom215/packline/internal/status"
)

// ErrDetached is returned by Sync on a detached session.
var ErrDetached = errors.New("display session detached")

// SnapshotStore keeps the last reconciled summaries of each tenant.
type SnapshotStore interface {
	Load(tenant models.TenantID) ([]*models.CustomerPackingSummary, bool, error)
	Save(tenant models.TenantID, summaries []*models.CustomerPackingSummary) error
}

// Deps are the collaborators a session needs. Snapshots and Clock are optional.
type Deps struct {
	Channel   *broadcast.Channel
	Changes   *changefeed.Source
	Fetcher   reconciler.Fetcher
	Store     *cache.Store
	Snapshots SnapshotStore
	Clock     clock.Clock
}

// Config tunes a session.
type Config struct {
	Reconcile reconciler.Config
	InboxSize int
}

// DefaultConfig returns the reconciler defaults and a 256 slot inbox.
func DefaultConfig() Config {
	return Config{Reconcile: reconciler.DefaultConfig(), InboxSize: 256}
}

// Reason says what produced an Update.
type Reason string

const (
	ReasonInitial   Reason = "initial"
	ReasonWarmStart Reason = "warm_start"
	ReasonBroadcast Reason = "broadcast"
	ReasonChange    Reason = "change"
	ReasonReconcile Reason = "reconcile"
	ReasonStatus    Reason = "status"
)

// Update is what observers see after every visible change.
type Update struct {
	Tenant    models.TenantID
	Reason    Reason
	Summaries *cache.Snapshot
	Status    status.State
	// Revalidating is true while a forced fetch is outstanding. The previous
	// summaries stay in Summaries the whole time.
	Revalidating bool
}

// Observer receives updates on the session goroutine. It must not block
// and must not call Detach.
type Observer func(Update)

const (
	subPacking   = "broadcast:packing"
	subSelection = "broadcast:selection"
)

// Session is one attached display.
type Session struct {
	tenant models.TenantID
	deps   Deps
	cfg    Config

	guard  *lifecycle.Guard
	inbox  chan func()
	done   chan struct{}
	status *status.Aggregator
	rec    *reconciler.Reconciler

	// Owned by the loop goroutine.
	lastStatus   status.State
	everSynced   bool
	revalidating atomic.Bool

	detachOnce sync.Once

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
}

// Attach starts a session for tenant. Subscription failures are reported
// through status and do not fail Attach; the session keeps serving its
// last known summaries.
func Attach(ctx context.Context, tenant models.TenantID, deps Deps, cfg Config) (*Session, error) {
	if err := tenant.Validate(); err != nil {
		return nil, err
	}
	if deps.Store == nil || deps.Fetcher == nil || deps.Channel == nil || deps.Changes == nil {
		return nil, fmt.Errorf("display session for %s: missing dependency", tenant)
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}

	s := &Session{
		tenant:     tenant,
		deps:       deps,
		cfg:        cfg,
		guard:      lifecycle.NewGuard(ctx),
		inbox:      make(chan func(), cfg.InboxSize),
		done:       make(chan struct{}),
		lastStatus: status.Connecting,
		observers:  map[int]Observer{},
	}
	s.status = status.NewAggregator(func(status.State) {
		s.post(s.handleStatus)
	})
	s.status.Track(subPacking)
	s.status.Track(subSelection)
	for _, table := range events.WatchedTables {
		s.status.Track(changeSubID(table))
	}

	tok := s.guard.Token()
	s.rec = reconciler.New(cfg.Reconcile, tenant, deps.Fetcher, deps.Clock, tok, func(r reconciler.Result) {
		s.post(func() { s.handleResult(r) })
	})
	s.guard.OnDetach(s.rec.Close)

	s.warmStart()
	go s.run()

	s.connectBroadcast(tok.Context(), subPacking, events.PackingTopic(tenant))
	s.connectBroadcast(tok.Context(), subSelection, events.SelectionTopic(tenant))
	for _, table := range events.WatchedTables {
		s.subscribeChanges(tok.Context(), table)
	}
	s.rec.Start()

	// Cold or warm, the first fetch is forced so observers know it is pending.
	s.post(func() { s.requestRevalidation(engine.ForcedRevalidation) })

	metrics.ActiveSessions.Inc()
	logging.Info().Str("tenant", string(tenant)).Msg("Display session attached")
	return s, nil
}

func (s *Session) warmStart() {
	if s.deps.Snapshots == nil || s.deps.Store.Snapshot(s.tenant).Len() > 0 {
		return
	}
	summaries, ok, err := s.deps.Snapshots.Load(s.tenant)
	if err != nil {
		logging.Warn().Err(err).Str("tenant", string(s.tenant)).Msg("Could not load summary snapshot; starting cold")
		return
	}
	if !ok {
		return
	}
	s.deps.Store.Replace(s.tenant, summaries, nil)
	logging.Debug().Str("tenant", string(s.tenant)).Int("customers", len(summaries)).Msg("Warm started from snapshot")
}

func changeSubID(table string) string { return "changes:" + table }

func (s *Session) connectBroadcast(ctx context.Context, id, topic string) {
	h := s.deps.Channel.Connect(ctx, topic)
	s.guard.OnDetach(h.Disconnect)
	err := h.Subscribe(
		func(msg events.BroadcastMessage) {
			s.post(func() { s.handleBroadcast(h, msg) })
		},
		func(st status.State, err error) {
			s.onSubscriptionStatus(id, st, err)
		},
	)
	if err != nil {
		logging.Warn().Err(err).Str("tenant", string(s.tenant)).Str("topic", topic).Msg("Broadcast subscription failed")
	}
}

func (s *Session) subscribeChanges(ctx context.Context, table string) {
	id := changeSubID(table)
	sub, err := s.deps.Changes.Subscribe(ctx, s.tenant, table, events.Filter{}, changefeed.Callbacks{
		OnEvent: func(ev events.ChangeEvent) {
			s.post(func() { s.handleChange(&ev) })
		},
		OnStatus: func(st status.State, err error) {
			s.onSubscriptionStatus(id, st, err)
		},
	})
	if err != nil {
		logging.Warn().Err(err).Str("tenant", string(s.tenant)).Str("table", table).Msg("Change subscription failed")
		return
	}
	s.guard.OnDetach(sub.Unsubscribe)
}

func (s *Session) onSubscriptionStatus(id string, st status.State, err error) {
	if !s.guard.Mounted() {
		return
	}
	if err != nil {
		logging.Warn().Err(err).Str("tenant", string(s.tenant)).Str("subscription", id).Str("state", string(st)).Msg("Subscription status changed")
	}
	s.status.Set(id, st)
}

// post queues fn for the loop. It gives up once the session detaches.
func (s *Session) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.guard.Token().Done():
	}
}

func (s *Session) run() {
	defer close(s.done)
	stop := s.guard.Token().Done()
	for {
		select {
		case fn := <-s.inbox:
			if s.guard.Mounted() {
				fn()
			}
		case <-stop:
			return
		}
	}
}

func (s *Session) handleBroadcast(h *broadcast.Handle, msg events.BroadcastMessage) {
	if !s.guard.Mounted() {
		return
	}
	kind := string(msg.Type())
	if msg.Tenant() != s.tenant {
		metrics.RecordEventDropped("broadcast", "tenant")
		return
	}
	if !h.Lifecycle().Admit(msg.Stamp()) {
		metrics.RecordEventDropped("broadcast", "stale")
		return
	}
	var outcome engine.Outcome
	s.deps.Store.ApplyDelta(s.tenant, func(snap *cache.Snapshot) *cache.Snapshot {
		next, o := engine.ApplyBroadcast(snap, msg)
		outcome = o
		return next
	})
	metrics.RecordEventApplied("broadcast", kind)
	s.afterApply(outcome, ReasonBroadcast)
}

func (s *Session) handleChange(ev *events.ChangeEvent) {
	if !s.guard.Mounted() {
		return
	}
	var outcome engine.Outcome
	s.deps.Store.ApplyDelta(s.tenant, func(snap *cache.Snapshot) *cache.Snapshot {
		next, o := engine.ApplyChange(snap, ev)
		outcome = o
		return next
	})
	metrics.RecordEventApplied("change", ev.Table)
	s.afterApply(outcome, ReasonChange)
}

func (s *Session) afterApply(o engine.Outcome, reason Reason) {
	if o.Changed {
		s.notify(reason)
	}
	s.requestRevalidation(o.Revalidate)
}

func (s *Session) requestRevalidation(r engine.Revalidation) {
	switch r {
	case engine.ForcedRevalidation:
		if !s.revalidating.Swap(true) {
			s.notify(ReasonStatus)
		}
		s.rec.Trigger(reconciler.Forced)
	case engine.SoftRevalidation:
		s.rec.Trigger(reconciler.Soft)
	}
}

func (s *Session) handleResult(r reconciler.Result) {
	if !s.guard.Mounted() {
		return
	}
	wasRevalidating := s.revalidating.Load()
	if !r.Pending {
		s.revalidating.Store(false)
	}
	if r.Err != nil {
		// Last known good stays visible.
		if wasRevalidating && !s.revalidating.Load() {
			s.notify(ReasonStatus)
		}
		return
	}

	before := s.deps.Store.Snapshot(s.tenant)
	s.deps.Store.Replace(s.tenant, r.Summaries, nil)
	s.everSynced = true
	if s.deps.Snapshots != nil {
		if err := s.deps.Snapshots.Save(s.tenant, r.Summaries); err != nil {
			logging.Warn().Err(err).Str("tenant", string(s.tenant)).Msg("Could not save summary snapshot")
		}
	}

	if !before.Equal(s.deps.Store.Snapshot(s.tenant)) || wasRevalidating != s.revalidating.Load() {
		s.notify(ReasonReconcile)
	}
}

// handleStatus reads the aggregate when it runs, so out of order
// notifications from different subscriptions settle on the latest state.
func (s *Session) handleStatus() {
	if !s.guard.Mounted() {
		return
	}
	st := s.status.Status()
	prev := s.lastStatus
	if st == prev {
		return
	}
	s.lastStatus = st
	metrics.SetConnectionStatus(string(s.tenant), string(st))
	switch {
	case st == status.Disconnected:
		logging.Warn().Str("tenant", string(s.tenant)).Msg("Display lost its event sources; showing last known summaries")
	case st == status.Connected && prev != status.Connected && s.everSynced:
		// Events may have been missed while the sources were down.
		s.rec.Trigger(reconciler.Soft)
	}
	s.notify(ReasonStatus)
}

func (s *Session) current(reason Reason) Update {
	return Update{
		Tenant:       s.tenant,
		Reason:       reason,
		Summaries:    s.deps.Store.Snapshot(s.tenant),
		Status:       s.lastStatus,
		Revalidating: s.revalidating.Load(),
	}
}

func (s *Session) notify(reason Reason) {
	u := s.current(reason)
	s.obsMu.Lock()
	obs := make([]Observer, 0, len(s.observers))
	for _, fn := range s.observers {
		obs = append(obs, fn)
	}
	s.obsMu.Unlock()
	for _, fn := range obs {
		fn(u)
	}
}

// Observe registers fn and queues an initial update for it. The returned
// function unregisters it.
func (s *Session) Observe(fn Observer) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	s.post(func() { fn(s.current(ReasonInitial)) })
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// Tenant returns the session's tenant.
func (s *Session) Tenant() models.TenantID { return s.tenant }

// Snapshot returns the tenant's current summaries.
func (s *Session) Snapshot() *cache.Snapshot { return s.deps.Store.Snapshot(s.tenant) }

// Status returns the aggregate connection status.
func (s *Session) Status() status.State { return s.status.Status() }

// Subscriptions lists each underlying subscription's state.
func (s *Session) Subscriptions() []status.Subscription { return s.status.Subscriptions() }

// Revalidating reports whether a forced fetch is outstanding.
func (s *Session) Revalidating() bool { return s.revalidating.Load() }

// BreakerState reports the reconcile circuit breaker state.
func (s *Session) BreakerState() string { return s.rec.BreakerState() }

// Mounted reports whether the session is still attached.
func (s *Session) Mounted() bool { return s.guard.Mounted() }

// Revalidate asks for a fetch outside the normal triggers.
func (s *Session) Revalidate(forced bool) {
	mode := engine.SoftRevalidation
	if forced {
		mode = engine.ForcedRevalidation
	}
	s.post(func() { s.requestRevalidation(mode) })
}

// Sync returns once every event queued before the call has been handled.
func (s *Session) Sync(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case s.inbox <- func() { close(barrier) }:
	case <-s.done:
		return ErrDetached
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-barrier:
		return nil
	case <-s.done:
		return ErrDetached
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detach tears the session down: the guard drops first, then every
// subscription is released, then the loop exits. Fetches still in flight
// finish in the background and are discarded. Safe to call twice.
func (s *Session) Detach() {
	s.detachOnce.Do(func() {
		s.guard.Detach()
		<-s.done
		s.deps.Store.Drop(s.tenant)
		metrics.ClearConnectionStatus(string(s.tenant))
		metrics.ActiveSessions.Dec()
		logging.Info().Str("tenant", string(s.tenant)).Msg("Display session detached")
	})
	<-s.done
}

// Done is closed once the session loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }
