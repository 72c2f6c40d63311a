// Package loop drives the scheduler's tick.
//
// A Driver delivers tick timestamps to a TickFunc while started. Ticker is
// the production driver: one goroutine, one time.Ticker, stopped by closing
// a channel so Stop is safe from inside the tick callback. Manual is the
// test driver: nothing happens until the test calls Fire.
//
// Timestamps come from a Clock as offsets from the clock's origin, so the
// scheduler and its throttle policy never read wall-clock time directly.
package loop
