// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package reconciler

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/packline/internal/clock"
	"github.com/tomtom215/packline/internal/lifecycle"
	"github.com/tomtom215/packline/internal/logging"
	"github.com/tomtom215/packline/internal/metrics"
	"github.com/tomtom215/packline/internal/models"
)

// Mode distinguishes background fetches from ones observers are told about.
type Mode int

const (
	// Soft fetches update the cache without any visible loading state.
	Soft Mode = iota
	// Forced fetches are reported to observers as revalidating.
	Forced
)

func (m Mode) String() string {
	if m == Forced {
		return "forced"
	}
	return "soft"
}

// Fetcher loads canonical summaries for a tenant.
type Fetcher interface {
	FetchSummaries(ctx context.Context, tenant models.TenantID) ([]*models.CustomerPackingSummary, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, tenant models.TenantID) ([]*models.CustomerPackingSummary, error)

// FetchSummaries implements Fetcher.
func (f FetcherFunc) FetchSummaries(ctx context.Context, tenant models.TenantID) ([]*models.CustomerPackingSummary, error) {
	return f(ctx, tenant)
}

// Result is the outcome of one fetch.
type Result struct {
	Tenant    models.TenantID
	Mode      Mode
	Summaries []*models.CustomerPackingSummary
	Err       error
	Duration  time.Duration
	// Pending is true when another fetch was queued behind this one.
	Pending bool
}

// Config controls trigger timing.
type Config struct {
	Debounce     time.Duration
	Interval     time.Duration
	FetchTimeout time.Duration
	Breaker      BreakerConfig
}

// DefaultConfig debounces for 50ms and revalidates every 30s.
func DefaultConfig() Config {
	return Config{
		Debounce:     50 * time.Millisecond,
		Interval:     30 * time.Second,
		FetchTimeout: 10 * time.Second,
		Breaker:      DefaultBreakerConfig(),
	}
}

// Reconciler schedules fetches for one tenant and delivers their results.
type Reconciler struct {
	tenant    models.TenantID
	fetcher   Fetcher
	clock     clock.Clock
	token     lifecycle.Token
	deliver   func(Result)
	cfg       Config
	breaker   *gobreaker.CircuitBreaker[[]*models.CustomerPackingSummary]
	debouncer *Debouncer

	mu         sync.Mutex
	inFlight   bool
	queued     bool
	queuedMode Mode
	periodic   clock.Timer
	closed     bool

	wg sync.WaitGroup
}

// New creates a Reconciler. deliver is called from the fetching goroutine
// for every fetch that finishes while token is active, failures included.
func New(cfg Config, tenant models.TenantID, fetcher Fetcher, clk clock.Clock, token lifecycle.Token, deliver func(Result)) *Reconciler {
	if clk == nil {
		clk = clock.Real()
	}
	r := &Reconciler{
		tenant:  tenant,
		fetcher: fetcher,
		clock:   clk,
		token:   token,
		deliver: deliver,
		cfg:     cfg,
		breaker: newBreaker("reconcile-"+string(tenant), cfg.Breaker),
	}
	r.debouncer = NewDebouncer(clk, cfg.Debounce, func() { r.start(Soft) })
	return r
}

// Trigger requests a fetch. Soft requests wait for the debounce window;
// forced requests start immediately. Never blocks.
func (r *Reconciler) Trigger(mode Mode) {
	if !r.token.Active() {
		return
	}
	if mode == Forced {
		r.start(Forced)
		return
	}
	if !r.debouncer.Trigger() {
		metrics.ReconcileCoalesced.Inc()
	}
}

// Start arms the periodic soft revalidation. An Interval of zero disables it.
func (r *Reconciler) Start() {
	if r.cfg.Interval <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.periodic != nil {
		return
	}
	r.periodic = r.clock.AfterFunc(r.cfg.Interval, r.tick)
}

func (r *Reconciler) tick() {
	if !r.token.Active() {
		return
	}
	r.start(Soft)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.periodic = r.clock.AfterFunc(r.cfg.Interval, r.tick)
	}
}

func (r *Reconciler) start(mode Mode) {
	if !r.token.Active() {
		return
	}
	r.mu.Lock()
	if r.inFlight {
		if !r.queued || mode > r.queuedMode {
			r.queuedMode = mode
		}
		r.queued = true
		r.mu.Unlock()
		metrics.ReconcileCoalesced.Inc()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	r.wg.Add(1)
	go r.fetch(mode)
}

func (r *Reconciler) fetch(mode Mode) {
	defer r.wg.Done()

	// Detaching does not abort a fetch already under way.
	ctx := context.WithoutCancel(r.token.Context())
	if r.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.FetchTimeout)
		defer cancel()
	}

	begin := time.Now()
	summaries, err := r.breaker.Execute(func() ([]*models.CustomerPackingSummary, error) {
		return r.fetcher.FetchSummaries(ctx, r.tenant)
	})
	elapsed := time.Since(begin)

	r.mu.Lock()
	r.inFlight = false
	queued, queuedMode := r.queued, r.queuedMode
	r.queued = false
	r.mu.Unlock()

	// Resumption point: the display may have detached while we waited.
	active := r.token.Active()
	metrics.RecordReconcile(mode.String(), elapsed, err, !active)
	if !active {
		logging.Debug().Str("tenant", string(r.tenant)).Str("mode", mode.String()).Msg("Discarding reconcile result for detached display")
		return
	}
	if err != nil {
		logging.Warn().Err(err).Str("tenant", string(r.tenant)).Str("mode", mode.String()).Msg("Reconcile fetch failed; keeping last known good summaries")
	}

	r.deliver(Result{
		Tenant:    r.tenant,
		Mode:      mode,
		Summaries: summaries,
		Err:       err,
		Duration:  elapsed,
		Pending:   queued,
	})

	if queued {
		r.start(queuedMode)
	}
}

// BreakerState reports the fetch circuit breaker state.
func (r *Reconciler) BreakerState() string {
	return r.breaker.State().String()
}

// Close stops the debounce and periodic timers. In-flight fetches finish on
// their own; use Wait to block until they have.
func (r *Reconciler) Close() {
	r.debouncer.Stop()
	r.mu.Lock()
	r.closed = true
	if r.periodic != nil {
		r.periodic.Stop()
		r.periodic = nil
	}
	r.mu.Unlock()
}

// Wait blocks until no fetch is running.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}
