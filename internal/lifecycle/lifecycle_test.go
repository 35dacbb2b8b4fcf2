// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package lifecycle

import (
	"context"
	"testing"
)

func TestGuardDetachOrder(t *testing.T) {
	t.Parallel()

	g := NewGuard(context.Background())
	tok := g.Token()
	if !g.Mounted() || !tok.Active() {
		t.Fatal("new guard should be mounted and active")
	}

	var seen []string
	g.OnDetach(func() {
		// The flag and token are both down before any release runs.
		if g.Mounted() {
			seen = append(seen, "still mounted")
		}
		if tok.Active() {
			seen = append(seen, "still active")
		}
		seen = append(seen, "first")
	})
	g.OnDetach(func() { seen = append(seen, "second") })

	g.Detach()
	want := []string{"second", "first"}
	if len(seen) != len(want) || seen[0] != want[0] || seen[1] != want[1] {
		t.Fatalf("release order = %v, want %v", seen, want)
	}

	g.Detach()
	if len(seen) != 2 {
		t.Error("second Detach ran releasers again")
	}
	select {
	case <-tok.Done():
	default:
		t.Error("token not cancelled")
	}
}

func TestGuardOnDetachAfterDetachRunsImmediately(t *testing.T) {
	t.Parallel()

	g := NewGuard(context.Background())
	g.Detach()
	ran := false
	g.OnDetach(func() { ran = true })
	if !ran {
		t.Error("late releaser should run immediately")
	}
}

func TestGuardFollowsParent(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	g := NewGuard(parent)
	cancel()
	if g.Token().Active() {
		t.Error("token should be inactive once the parent is cancelled")
	}
}

func TestHandleAdmit(t *testing.T) {
	t.Parallel()

	h := NewHandle(context.Background(), "packing-updates-t1")
	steps := []struct {
		ts   int64
		want bool
	}{
		{10, true},
		{10, true},
		{9, false},
		{11, true},
		{5, false},
	}
	for i, s := range steps {
		if got := h.Admit(s.ts); got != s.want {
			t.Errorf("step %d Admit(%d) = %v, want %v", i, s.ts, got, s.want)
		}
	}
	if h.LastApplied() != 11 {
		t.Errorf("LastApplied = %d, want 11", h.LastApplied())
	}

	h.Close()
	if h.Admit(100) {
		t.Error("closed handle admitted a message")
	}
	if h.LastApplied() != 11 {
		t.Error("refused message moved LastApplied")
	}
}
