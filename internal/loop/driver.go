package loop

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultInterval is roughly one display refresh at 60Hz.
const DefaultInterval = 16 * time.Millisecond

// Clock reports the current time as an offset from a fixed origin.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock measures from the moment it was created using the
// runtime's monotonic clock.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock creates a clock whose origin is now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.origin)
}

// TickFunc is called once per tick with the tick's timestamp.
type TickFunc func(now time.Duration)

// Driver delivers ticks while started.
//
// Start on a started driver is a no-op. Stop must be safe to call from inside
// the TickFunc and must not wait for the current tick to return.
type Driver interface {
	Start(fn TickFunc)
	Stop()
}

// Ticker drives ticks from a time.Ticker on its own goroutine.
//
// Stop followed by Start from inside the TickFunc launches a new goroutine
// while the old one is still in fn, so fn can be entered twice at once.
// Callers that need one tick at a time serialise inside fn.
type Ticker struct {
	interval time.Duration
	clock    Clock
	logger   *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewTicker creates a stopped ticker driver.
func NewTicker(interval time.Duration, clock Clock, logger *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = NewMonotonicClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{
		interval: interval,
		clock:    clock,
		logger:   logger.With("component", "loop"),
	}
}

// Start begins delivering ticks to fn.
func (t *Ticker) Start(fn TickFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.logger.Debug("ticker started", "interval", t.interval)
	go t.run(fn, t.stop, t.done)
}

func (t *Ticker) run(fn TickFunc, stop, done chan struct{}) {
	defer close(done)

	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tk.C:
			// A tick may race with Stop; prefer the stop.
			select {
			case <-stop:
				return
			default:
			}
			fn(t.clock.Now())
		}
	}
}

// Stop halts tick delivery. It does not wait for an in-flight tick.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return
	}
	close(t.stop)
	t.stop = nil
	t.logger.Debug("ticker stopped")
}

// Wait blocks until the most recently started goroutine has exited.
// Calling Wait from inside the TickFunc deadlocks.
func (t *Ticker) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Interval returns the tick period. A non-positive interval passed to
// NewTicker reads back as DefaultInterval.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// Manual is a Driver that only ticks when Fire is called.
//
// Thread-safety: Manual is safe for concurrent use; Fire calls fn without
// holding the lock so fn may call Stop.
type Manual struct {
	mu      sync.Mutex
	fn      TickFunc
	running bool
	starts  int
	stops   int
}

// NewManual creates a stopped manual driver.
func NewManual() *Manual {
	return &Manual{}
}

// Start records fn and marks the driver running.
func (m *Manual) Start(fn TickFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.fn = fn
	m.running = true
	m.starts++
}

// Stop marks the driver stopped.
func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return
	}
	m.running = false
	m.stops++
}

// Fire delivers one tick if the driver is running. Returns false otherwise.
func (m *Manual) Fire(now time.Duration) bool {
	m.mu.Lock()
	fn, running := m.fn, m.running
	m.mu.Unlock()

	if !running {
		return false
	}
	fn(now)
	return true
}

// Running reports whether the driver is started.
func (m *Manual) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts returns how many times the driver transitioned to running.
func (m *Manual) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// Stops returns how many times the driver transitioned to stopped.
func (m *Manual) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
