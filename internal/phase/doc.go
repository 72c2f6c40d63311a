// Package phase implements the frame pipeline's phase graph.
//
// A phase is a named stage of a tick. Phases have one global order shared by
// every root: jobs in an earlier phase always run before jobs in a later one,
// whatever their priority or constraints.
//
// The graph starts with DefaultPhases. Callers insert phases next to existing
// ones with Add, and the scheduler creates anchor phases on demand when a job
// only says "before X" or "after X". Anchors are named "before:<target>" and
// "after:<target>" and are flagged AutoGenerated.
//
// Phases are never removed. Once placed, a phase keeps its position relative
// to its neighbours; later insertions only shift absolute indices.
package phase
