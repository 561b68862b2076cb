// Package pacing holds the frame-rate policy shared by the movie recorder and
// the motion player: a controller self-ticks through its mailbox receive
// timeout and only processes a frame once the interval has elapsed.
package pacing

import "time"

// DefaultStallFactor is how many intervals may pass without a frame-ready
// signal before the recorder forces one.
const DefaultStallFactor = 3

// Policy is a target frame interval plus the stall threshold.
type Policy struct {
	Interval    time.Duration
	StallFactor int
}

// NewPolicy returns a policy with the default stall factor.
func NewPolicy(interval time.Duration) Policy {
	return Policy{Interval: interval, StallFactor: DefaultStallFactor}
}

// TickTimeout is the receive timeout a controller uses while a frame session
// is running.
func (p Policy) TickTimeout() time.Duration { return p.Interval }

// StallAfter is the time without frame-ready after which readiness is forced.
func (p Policy) StallAfter() time.Duration {
	f := p.StallFactor
	if f < 1 {
		f = DefaultStallFactor
	}
	return time.Duration(f) * p.Interval
}

// Stalled reports whether since lies further back than StallAfter.
func (p Policy) Stalled(since, now time.Time) bool {
	return now.Sub(since) > p.StallAfter()
}

// Pacer decides whether a tick may start a frame.
type Pacer struct {
	policy Policy
	last   time.Time
}

func NewPacer(p Policy) *Pacer { return &Pacer{policy: p} }

func (p *Pacer) Policy() Policy { return p.policy }

// SetInterval changes the target interval; the last frame time is kept.
func (p *Pacer) SetInterval(d time.Duration) { p.policy.Interval = d }

// Due reports whether more than one interval has passed since the last frame
// start. The first frame after Reset is always due.
func (p *Pacer) Due(now time.Time) bool {
	return p.last.IsZero() || now.Sub(p.last) > p.policy.Interval
}

// Mark records now as the start of a frame.
func (p *Pacer) Mark(now time.Time) { p.last = now }

// Reset forgets the last frame so the next tick is due.
func (p *Pacer) Reset() { p.last = time.Time{} }

// Last returns the start of the last frame.
func (p *Pacer) Last() time.Time { return p.last }
