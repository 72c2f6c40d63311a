// Package store provides SQLite-backed storage for frame traces.
//
// A trace is an append-only log of executed frames and the job runs inside
// each frame:
//   - frames: one row per executed tick (number, time, delta, elapsed,
//     throttled count)
//   - job_runs: one row per job invocation, keyed by frame and ordinal
//
// # Ordering
//
// Frame numbers restart after a timing reset, so every frame also gets a
// logical sequence number (seq) at write time. All queries order by seq and
// then by ordinal, never by timestamps, so reading a trace back yields the
// exact execution order.
//
// Store.Recorder adapts a Store to scheduler.FrameObserver.
package store
