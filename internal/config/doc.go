// Package config loads plans: declarative descriptions of a scheduler's mode,
// tick interval, extra phases, roots and jobs.
//
// Plans are written in YAML (.yaml, .yml) or CUE (.cue). YAML is decoded
// strictly so misspelled keys are rejected. CUE plans are unified with an
// embedded closed schema before decoding, which gives the same guarantee and
// lets authors use CUE defaults and comprehensions.
//
// A loaded plan is checked with Validate and then bound to a live Scheduler
// with Apply. Job callbacks are not part of the plan; the caller supplies
// them through a JobFactory.
package config
