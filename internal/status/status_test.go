// Packline - Real-time Packing Progress for Bakery Kiosk Displays
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/packline

package status

import "testing"

func TestAggregate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   []State
		want State
	}{
		{"empty", nil, Connecting},
		{"all connected", []State{Connected, Connected}, Connected},
		{"one connecting", []State{Connected, Connecting}, Connecting},
		{"any disconnected", []State{Connected, Connecting, Disconnected}, Disconnected},
		{"single", []State{Connected}, Connected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Aggregate(tt.in...); got != tt.want {
				t.Errorf("Aggregate(%v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestAggregatorNotifiesOnlyOnChange(t *testing.T) {
	t.Parallel()

	var seen []State
	a := NewAggregator(func(s State) { seen = append(seen, s) })

	a.Track("packing")
	a.Track("changes")
	a.Set("packing", Connected)
	a.Set("changes", Connected)
	a.Set("changes", Connected)
	a.Set("packing", Disconnected)
	a.Set("packing", Connecting)
	a.Set("packing", Connected)
	a.Remove("packing")

	want := []State{Connected, Disconnected, Connecting, Connected}
	if len(seen) != len(want) {
		t.Fatalf("notifications = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("notifications = %v, want %v", seen, want)
		}
	}
	if a.Status() != Connected {
		t.Errorf("Status = %s", a.Status())
	}
	if subs := a.Subscriptions(); len(subs) != 1 || subs[0].ID != "changes" {
		t.Errorf("Subscriptions = %v", subs)
	}
}
