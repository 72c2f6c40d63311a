// Package throttle decides whether a rate-limited job runs on a given tick.
package throttle

import "time"

// CatchUpLimit is how many whole intervals a catch-up job may still owe
// after it runs. A job further behind skips the surplus, so a long stall
// buys at most CatchUpLimit back-to-back catch-up runs.
const CatchUpLimit = 1

// Policy is a job's rate limit. A zero FPS means unlimited.
//
// Drop selects frame-dropping: missed intervals are forgotten. Without Drop
// the job keeps a fixed rhythm, advancing its last-run mark in whole
// intervals so cumulative work (fixed-step integration) stays on the grid.
type Policy struct {
	FPS  float64
	Drop bool
}

// Interval returns the minimum time between runs, or 0 when unlimited.
func (p Policy) Interval() time.Duration {
	if p.FPS <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / p.FPS)
}

// Timing is the per-job bookkeeping the policy updates.
type Timing struct {
	last time.Duration
	ran  bool
}

// LastRun returns the last-run mark and whether one is set.
func (t Timing) LastRun() (time.Duration, bool) {
	return t.last, t.ran
}

// Reset clears the last-run mark. A job resumed after being disabled is then
// treated as never having run instead of overdue.
func (t *Timing) Reset() {
	*t = Timing{}
}

// ShouldRun reports whether a job under p may run at now, updating t when
// it does. A job that has never run always runs.
func (p Policy) ShouldRun(t *Timing, now time.Duration) bool {
	interval := p.Interval()
	if interval == 0 {
		t.last, t.ran = now, true
		return true
	}
	if !t.ran {
		t.last, t.ran = now, true
		return true
	}

	elapsed := now - t.last
	if elapsed < interval {
		return false
	}

	if p.Drop {
		t.last = now
		return true
	}

	t.last = catchUp(t.last, now, interval, CatchUpLimit)
	return true
}

// catchUp advances last across the whole intervals up to now, leaving at
// most limit of them owed. last stays on its interval grid.
func catchUp(last, now, interval time.Duration, limit int) time.Duration {
	steps := int64((now - last) / interval)
	if owed := int64(max(limit, 0)); steps > owed+1 {
		return last + time.Duration(steps-owed)*interval
	}
	return last + interval
}
