// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package reconciler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/packline/internal/clock"
	"github.com/tomtom215/packline/internal/lifecycle"
	"github.com/tomtom215/packline/internal/models"
)

type fakeFetcher struct {
	calls atomic.Int32
	gate  chan struct{} // when non-nil, each fetch waits for a value
	err   error
	ctxOK atomic.Bool
}

func (f *fakeFetcher) FetchSummaries(ctx context.Context, tenant models.TenantID) ([]*models.CustomerPackingSummary, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.ctxOK.Store(ctx.Err() == nil)
	if f.err != nil {
		return nil, f.err
	}
	s := &models.CustomerPackingSummary{TenantID: tenant, CustomerID: "c1", TotalLineItems: 1}
	s.Recalculate()
	return []*models.CustomerPackingSummary{s}, nil
}

func newTestReconciler(t *testing.T, f Fetcher, cfg Config) (*Reconciler, *clock.Manual, *lifecycle.Guard, chan Result) {
	t.Helper()
	clk := clock.NewManual(time.Unix(0, 0))
	guard := lifecycle.NewGuard(context.Background())
	results := make(chan Result, 16)
	r := New(cfg, "t1", f, clk, guard.Token(), func(res Result) { results <- res })
	t.Cleanup(func() {
		r.Close()
		r.Wait()
	})
	return r, clk, guard, results
}

func waitResult(t *testing.T, ch chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconcile result")
		return Result{}
	}
}

func TestSoftTriggersAreDebounced(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	cfg := DefaultConfig()
	r, clk, _, results := newTestReconciler(t, f, cfg)

	for i := 0; i < 5; i++ {
		r.Trigger(Soft)
		clk.Advance(5 * time.Millisecond)
	}
	// 25ms into a 50ms window: nothing fetched yet.
	r.Wait()
	if n := f.calls.Load(); n != 0 {
		t.Fatalf("fetched %d times before the window closed", n)
	}

	clk.Advance(25 * time.Millisecond)
	res := waitResult(t, results)
	r.Wait()
	if n := f.calls.Load(); n != 1 {
		t.Errorf("burst caused %d fetches, want 1", n)
	}
	if res.Mode != Soft || res.Err != nil || len(res.Summaries) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestWindowIsFixedNotSliding(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	r, clk, _, results := newTestReconciler(t, f, DefaultConfig())

	r.Trigger(Soft)
	clk.Advance(40 * time.Millisecond)
	r.Trigger(Soft)
	clk.Advance(10 * time.Millisecond)

	waitResult(t, results)
	r.Wait()
	if n := f.calls.Load(); n != 1 {
		t.Errorf("fetches = %d, want 1 at the end of the first window", n)
	}
}

func TestForcedStartsImmediately(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	r, _, _, results := newTestReconciler(t, f, DefaultConfig())

	r.Trigger(Forced)
	res := waitResult(t, results)
	if res.Mode != Forced {
		t.Errorf("mode = %s, want forced", res.Mode)
	}
}

func TestTriggersDuringFetchQueueOneFollowUp(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{gate: make(chan struct{})}
	r, _, _, results := newTestReconciler(t, f, DefaultConfig())

	r.Trigger(Forced)
	// Wait for the first fetch to be running before queueing more.
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	r.Trigger(Forced)
	r.Trigger(Forced)

	f.gate <- struct{}{}
	first := waitResult(t, results)
	if !first.Pending {
		t.Error("first result should report a queued follow-up")
	}
	f.gate <- struct{}{}
	second := waitResult(t, results)
	if second.Pending || second.Mode != Forced {
		t.Errorf("second result = %+v", second)
	}
	r.Wait()
	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetches = %d, want 2", n)
	}
}

func TestResultDiscardedAfterDetach(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{gate: make(chan struct{})}
	r, _, guard, results := newTestReconciler(t, f, DefaultConfig())

	r.Trigger(Forced)
	for f.calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	guard.Detach()
	close(f.gate)
	r.Wait()

	if !f.ctxOK.Load() {
		t.Error("fetch context was cancelled by detach")
	}
	select {
	case res := <-results:
		t.Fatalf("result delivered after detach: %+v", res)
	default:
	}

	r.Trigger(Forced)
	r.Wait()
	if n := f.calls.Load(); n != 1 {
		t.Errorf("detached reconciler started another fetch (%d calls)", n)
	}
}

func TestFetchFailureIsDelivered(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{err: errors.New("storage unavailable")}
	r, _, _, results := newTestReconciler(t, f, DefaultConfig())

	r.Trigger(Forced)
	res := waitResult(t, results)
	if res.Err == nil || res.Summaries != nil {
		t.Errorf("result = %+v, want error and no summaries", res)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{err: errors.New("boom")}
	cfg := DefaultConfig()
	cfg.Breaker.FailureThreshold = 2
	cfg.Breaker.Timeout = time.Hour
	r, _, _, results := newTestReconciler(t, f, cfg)

	for i := 0; i < 3; i++ {
		r.Trigger(Forced)
		res := waitResult(t, results)
		r.Wait()
		if i == 2 && !errors.Is(res.Err, gobreaker.ErrOpenState) {
			t.Errorf("third fetch err = %v, want open breaker", res.Err)
		}
	}
	if n := f.calls.Load(); n != 2 {
		t.Errorf("fetcher called %d times, want 2", n)
	}
	if r.BreakerState() != gobreaker.StateOpen.String() {
		t.Errorf("breaker state = %s", r.BreakerState())
	}
}

func TestPeriodicRevalidation(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	cfg := DefaultConfig()
	cfg.Interval = time.Second
	r, clk, _, results := newTestReconciler(t, f, cfg)
	r.Start()

	for i := 0; i < 3; i++ {
		clk.Advance(time.Second)
		res := waitResult(t, results)
		r.Wait()
		if res.Mode != Soft {
			t.Errorf("periodic fetch mode = %s", res.Mode)
		}
	}
	r.Close()
	clk.Advance(5 * time.Second)
	r.Wait()
	if n := f.calls.Load(); n != 3 {
		t.Errorf("fetches = %d, want 3", n)
	}
}

func TestDebouncerStop(t *testing.T) {
	t.Parallel()

	clk := clock.NewManual(time.Unix(0, 0))
	fired := 0
	d := NewDebouncer(clk, 10*time.Millisecond, func() { fired++ })

	if !d.Trigger() || d.Trigger() {
		t.Fatal("first trigger opens the window, second is absorbed")
	}
	if !d.Pending() {
		t.Error("window should be pending")
	}
	d.Stop()
	clk.Advance(time.Second)
	if fired != 0 || d.Trigger() {
		t.Error("stopped debouncer fired or accepted a trigger")
	}
}
