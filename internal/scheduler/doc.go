// Package scheduler implements the per-process frame scheduler.
//
// The scheduler drives a repeating tick and, on every tick, runs the jobs
// registered against each root in a deterministic order.
//
// ARCHITECTURE:
//
// Roots and jobs:
// A root is an independent consumer with its own job table and a snapshot
// provider. Jobs belong to exactly one root; callers that omit a root get the
// first root registered.
//
// Tick execution (one Frame):
//  1. Timing is advanced once: delta, frame number, accumulated elapsed time
//  2. Legacy pre-tick hooks run
//  3. Each root, in registration order, rebuilds its sorted job list if its
//     job set changed, takes a snapshot and runs its jobs in order, skipping
//     jobs the throttle policy holds back
//  4. Legacy post-tick hooks run
//  5. Frame observers receive a FrameRecord
//
// Every callback runs inside its own error boundary. A returned error or a
// panic is logged and, for root jobs, forwarded to the snapshot's SetError;
// the tick always continues.
//
// Tick-driving modes:
//   - ModeContinuous: the driver runs while at least one root is registered
//   - ModeOnDemand: the driver runs only while Invalidate has left a frame budget
//   - ModeManual: the driver never runs; callers use Step and StepJob
//
// ORDERING:
// Phase order, then priority (descending), then registration sequence, then
// topological resolution of same-phase before/after constraints. Cycles are
// logged and the unresolved jobs run in priority order.
//
// CONCURRENCY:
// All registries are guarded by one mutex. Callbacks never run with the lock
// held, so a job may register, unregister, pause or add phases mid-tick. Such
// changes take effect at the next rebuild; the tick in progress keeps the
// order it started with, minus any job removed before its turn.
package scheduler
