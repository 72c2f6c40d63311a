// Package order computes the execution order of a root's jobs.
//
// Jobs are bucketed by phase in phase-graph order, each bucket is sorted by
// priority (descending) then sequence (ascending), and buckets whose members
// reference each other through before/after are resolved with a
// topological sort that tolerates cycles.
//
// The result depends only on the inputs: map iteration order never leaks into
// the output.
package order

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Entry is the ordering-relevant view of one job.
type Entry struct {
	ID       string
	Phase    string
	Priority int
	Seq      int64 // registration sequence, the final tie-break
	Enabled  bool
	Before   []string // ids or phase names this entry must precede
	After    []string // ids or phase names this entry must follow
}

// CycleWarning reports a bucket whose constraints could not all be honoured.
//
// Cycles are warnings, not errors: the unresolved jobs still run, appended in
// priority order after everything the sort could place.
type CycleWarning struct {
	Phase   string   `json:"phase"`
	Jobs    []string `json:"jobs"` // unresolved ids in their fallback order
	Message string   `json:"message"`
}

// Result is the ordered job list plus any warnings raised while building it.
type Result struct {
	// Order holds indices into the entries slice given to Sort.
	Order    []int
	Warnings []CycleWarning
}

// Sort orders the enabled entries.
//
// Buckets follow phases. Entries whose phase is not listed form trailing
// buckets in the order their phase names were first seen.
func Sort(phases []string, entries []Entry) Result {
	buckets := make(map[string][]int)
	var unknown []string
	known := make(map[string]bool, len(phases))
	for _, p := range phases {
		known[p] = true
	}

	for i, e := range entries {
		if !e.Enabled {
			continue
		}
		if !known[e.Phase] {
			if _, seen := buckets[e.Phase]; !seen {
				unknown = append(unknown, e.Phase)
			}
		}
		buckets[e.Phase] = append(buckets[e.Phase], i)
	}

	var res Result
	for _, p := range append(slices.Clone(phases), unknown...) {
		bucket := buckets[p]
		if len(bucket) == 0 {
			continue
		}
		sortByPriority(entries, bucket)
		if hasInternalEdges(entries, bucket) {
			var w *CycleWarning
			bucket, w = topoSort(entries, bucket)
			if w != nil {
				w.Phase = p
				res.Warnings = append(res.Warnings, *w)
			}
		}
		res.Order = append(res.Order, bucket...)
	}
	return res
}

// compare orders by priority descending, then sequence ascending.
func compare(entries []Entry, a, b int) int {
	if c := cmp.Compare(entries[b].Priority, entries[a].Priority); c != 0 {
		return c
	}
	return cmp.Compare(entries[a].Seq, entries[b].Seq)
}

func sortByPriority(entries []Entry, bucket []int) {
	slices.SortStableFunc(bucket, func(a, b int) int { return compare(entries, a, b) })
}

// hasInternalEdges reports whether any entry references another member of
// the same bucket. References to anything outside the bucket are ignored.
func hasInternalEdges(entries []Entry, bucket []int) bool {
	ids := bucketIDs(entries, bucket)
	for _, i := range bucket {
		e := entries[i]
		for _, ref := range e.Before {
			if _, ok := ids[ref]; ok && ref != e.ID {
				return true
			}
		}
		for _, ref := range e.After {
			if _, ok := ids[ref]; ok && ref != e.ID {
				return true
			}
		}
	}
	return false
}

func bucketIDs(entries []Entry, bucket []int) map[string]int {
	ids := make(map[string]int, len(bucket))
	for _, i := range bucket {
		ids[entries[i].ID] = i
	}
	return ids
}

// topoSort runs Kahn's algorithm over a priority-sorted bucket.
//
// "a before b" is an edge a→b; "a after b" is an edge b→a. The ready queue is
// kept in priority order so independent jobs keep their priority ranking.
// Entries left over because of a cycle are appended in priority order and
// reported.
func topoSort(entries []Entry, bucket []int) ([]int, *CycleWarning) {
	ids := bucketIDs(entries, bucket)
	edges := make(map[int][]int, len(bucket))
	inDegree := make(map[int]int, len(bucket))
	seen := make(map[[2]int]bool)

	addEdge := func(from, to int) {
		if from == to || seen[[2]int{from, to}] {
			return
		}
		seen[[2]int{from, to}] = true
		edges[from] = append(edges[from], to)
		inDegree[to]++
	}

	for _, i := range bucket {
		for _, ref := range entries[i].Before {
			if j, ok := ids[ref]; ok {
				addEdge(i, j)
			}
		}
		for _, ref := range entries[i].After {
			if j, ok := ids[ref]; ok {
				addEdge(j, i)
			}
		}
	}

	less := func(a, b int) int { return compare(entries, a, b) }

	var ready []int
	for _, i := range bucket {
		if inDegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	out := make([]int, 0, len(bucket))
	emitted := make(map[int]bool, len(bucket))
	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		emitted[next] = true

		for _, to := range edges[next] {
			inDegree[to]--
			if inDegree[to] == 0 {
				pos, _ := slices.BinarySearchFunc(ready, to, less)
				ready = slices.Insert(ready, pos, to)
			}
		}
	}

	if len(out) == len(bucket) {
		return out, nil
	}

	var stuck []string
	for _, i := range bucket {
		if !emitted[i] {
			out = append(out, i)
			stuck = append(stuck, entries[i].ID)
		}
	}
	return out, &CycleWarning{
		Jobs:    stuck,
		Message: fmt.Sprintf("cyclic before/after constraints between jobs: %s", strings.Join(stuck, ", ")),
	}
}
