// Package timebase paces the control loop on absolute deadlines.
//
// Deadlines are computed by adding a fixed period to the previous deadline
// rather than sleeping relative durations, so scheduling jitter and early
// wakeups do not accumulate into long-run drift.
package timebase

import (
	"context"
	"time"
)

// DefaultPeriod is the nominal sampling cadence.
const DefaultPeriod = 50 * time.Millisecond

// Ticker produces absolute wake-up deadlines at a fixed period and converts
// absolute times into monotonic millisecond stamps.
type Ticker struct {
	period time.Duration
	epoch  time.Time
	next   time.Time
}

// New creates a Ticker with the given period. The start time is both the
// first deadline base and the stamp epoch, so the first deadline's stamp is
// one full period and never collides with the zero "never observed" sentinel.
func New(period time.Duration, start time.Time) *Ticker {
	return &Ticker{period: period, epoch: start, next: start}
}

// Next advances to and returns the next absolute deadline.
func (t *Ticker) Next() time.Time {
	t.next = t.next.Add(t.period)
	return t.next
}

// SleepUntil blocks until the absolute deadline is reached, retrying if the
// underlying timer fires early. It returns the context error if the context
// is cancelled first; that is the only failure mode.
func (t *Ticker) SleepUntil(ctx context.Context, deadline time.Time) error {
	for {
		d := time.Until(deadline)
		if d <= 0 {
			return nil
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Postpone shifts the deadline chain forward by d. Used for the idle-grace
// policy: while the pump is idle the loop may dwell longer per cycle, and
// shifting the chain keeps that a cadence change instead of a growing
// backlog of already-expired deadlines.
func (t *Ticker) Postpone(d time.Duration) {
	t.next = t.next.Add(d)
}

// Stamp converts an absolute time into monotonic milliseconds since the
// epoch. Times at or before the epoch map to zero.
func (t *Ticker) Stamp(at time.Time) uint64 {
	d := at.Sub(t.epoch)
	if d <= 0 {
		return 0
	}
	return uint64(d.Milliseconds())
}
