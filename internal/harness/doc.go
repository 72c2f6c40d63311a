// Package harness runs frame loop scenarios against a real Scheduler and
// checks the resulting trace.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: priority_order
//	description: "Higher priority jobs run first"
//	plan:                    # inline plan, or plan_file: relative/path.yaml
//	  mode: manual
//	  roots: [world]
//	  jobs:
//	    - id: move
//	    - id: input
//	      priority: 10
//	failing: [draw]          # jobs whose callback returns an error
//	panicking: [boom]        # jobs whose callback panics
//	steps:
//	  - step: 2              # run two frames
//	    every: 16ms          # clock advance per frame, default 16ms
//	  - pause: move
//	  - resume: move
//	  - add_phase: {name: collide, before: update}
//	  - invalidate: {frames: 3, stack: false}
//	  - reset_timing: true
//	assertions:
//	  - type: frame_order
//	    frame: 1
//	    jobs: [input, move]
//	  - type: run_count
//	    job: move
//	    count: 2
//
// Each step sets exactly one action. invalidate only makes sense in an
// on-demand plan; the harness fires the loop until the budget is spent.
//
// # Assertion Types
//
//   - frame_order: the jobs of one frame, optionally limited to a root, ran
//     in exactly this order
//   - run_count: a job ran exactly count times
//   - never_ran: a job never ran
//   - failed: a job failed exactly count times
//   - frame_count: exactly count frames were executed
//   - logged: a log message appeared exactly count times
//
// Frames in assertions are numbered from 1 in execution order across the
// whole scenario, so they stay stable across reset_timing.
//
// # Determinism
//
// Every scenario runs on a fresh in-memory store with a fake clock, a
// manual loop driver and sequential job ids. The trace is read back from
// the store, so identical scenarios produce byte-identical golden files.
package harness
