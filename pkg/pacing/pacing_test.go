package pacing

import (
	"testing"
	"time"
)

func TestPacerDue(t *testing.T) {
	p := NewPacer(NewPolicy(200 * time.Millisecond))
	t0 := time.Unix(1000, 0)

	if !p.Due(t0) {
		t.Fatal("First frame must be due")
	}
	p.Mark(t0)

	testCases := []struct {
		after time.Duration
		due   bool
	}{
		{0, false},
		{100 * time.Millisecond, false},
		{200 * time.Millisecond, false},
		{201 * time.Millisecond, true},
		{time.Second, true},
	}
	for _, tc := range testCases {
		if got := p.Due(t0.Add(tc.after)); got != tc.due {
			t.Errorf("Due after %v = %v, want %v", tc.after, got, tc.due)
		}
	}

	p.Reset()
	if !p.Due(t0) {
		t.Error("Reset must make the next frame due")
	}
}

func TestPolicyStall(t *testing.T) {
	pol := NewPolicy(100 * time.Millisecond)
	if pol.TickTimeout() != 100*time.Millisecond {
		t.Errorf("Tick timeout %v", pol.TickTimeout())
	}
	if pol.StallAfter() != 300*time.Millisecond {
		t.Errorf("Stall threshold %v, want 300ms", pol.StallAfter())
	}
	t0 := time.Unix(0, 0)
	if pol.Stalled(t0, t0.Add(300*time.Millisecond)) {
		t.Error("Exactly three intervals is not a stall yet")
	}
	if !pol.Stalled(t0, t0.Add(301*time.Millisecond)) {
		t.Error("Beyond three intervals must count as stall")
	}

	zero := Policy{Interval: 10 * time.Millisecond}
	if zero.StallAfter() != 30*time.Millisecond {
		t.Errorf("Zero factor must fall back to default, got %v", zero.StallAfter())
	}
}
