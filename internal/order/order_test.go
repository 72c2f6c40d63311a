package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPhases = []string{"start", "physics", "update", "render"}

// ids maps a Result back to job ids.
func ids(entries []Entry, res Result) []string {
	out := make([]string, len(res.Order))
	for i, idx := range res.Order {
		out[i] = entries[idx].ID
	}
	return out
}

func entry(id, phase string, priority int, seq int64) Entry {
	return Entry{ID: id, Phase: phase, Priority: priority, Seq: seq, Enabled: true}
}

func TestSort_Empty(t *testing.T) {
	res := Sort(testPhases, nil)
	assert.Empty(t, res.Order)
	assert.Empty(t, res.Warnings)
}

func TestSort_PhaseOrderDominates(t *testing.T) {
	entries := []Entry{
		entry("draw", "render", 100, 1),
		entry("move", "update", 0, 2),
		entry("step", "physics", -5, 3),
		entry("init", "start", 0, 4),
	}

	res := Sort(testPhases, entries)
	assert.Equal(t, []string{"init", "step", "move", "draw"}, ids(entries, res))
}

func TestSort_PriorityThenRegistrationOrder(t *testing.T) {
	entries := []Entry{
		entry("a", "update", 0, 1),
		entry("b", "update", 5, 2),
		entry("c", "update", 0, 3),
		entry("d", "update", 5, 4),
		entry("e", "update", -1, 5),
	}

	res := Sort(testPhases, entries)
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, ids(entries, res))
}

func TestSort_SeqBreaksTiesRegardlessOfSliceOrder(t *testing.T) {
	entries := []Entry{
		entry("late", "update", 0, 9),
		entry("early", "update", 0, 2),
	}

	res := Sort(testPhases, entries)
	assert.Equal(t, []string{"early", "late"}, ids(entries, res))
}

func TestSort_DisabledDiscarded(t *testing.T) {
	off := entry("off", "update", 10, 1)
	off.Enabled = false
	entries := []Entry{off, entry("on", "update", 0, 2)}

	res := Sort(testPhases, entries)
	assert.Equal(t, []string{"on"}, ids(entries, res))
}

func TestSort_UnknownPhasesTrailInFirstSeenOrder(t *testing.T) {
	entries := []Entry{
		entry("z1", "zeta", 0, 1),
		entry("u", "update", 0, 2),
		entry("a1", "alpha", 0, 3),
		entry("z2", "zeta", 0, 4),
	}

	res := Sort(testPhases, entries)
	assert.Equal(t, []string{"u", "z1", "z2", "a1"}, ids(entries, res))
}

func TestSort_BeforeAfterWithinBucket(t *testing.T) {
	mid := entry("mid", "update", 0, 1)
	mid.Before = []string{"B"}
	mid.After = []string{"A"}
	entries := []Entry{
		mid,
		entry("B", "update", 10, 2),
		entry("A", "update", -10, 3),
	}

	res := Sort(testPhases, entries)
	require.Empty(t, res.Warnings)
	assert.Equal(t, []string{"A", "mid", "B"}, ids(entries, res))
}

func TestSort_TopologicalKeepsPriorityForIndependentJobs(t *testing.T) {
	x := entry("x", "update", 0, 1)
	x.After = []string{"y"}
	entries := []Entry{
		x,
		entry("y", "update", 0, 2),
		entry("hi", "update", 50, 3),
		entry("lo", "update", -50, 4),
	}

	res := Sort(testPhases, entries)
	assert.Equal(t, []string{"hi", "y", "x", "lo"}, ids(entries, res))
}

func TestSort_CrossPhaseReferenceIsNoop(t *testing.T) {
	a := entry("a", "update", 0, 1)
	a.Before = []string{"draw"}
	b := entry("b", "update", 5, 2)
	entries := []Entry{a, b, entry("draw", "render", 0, 3)}

	res := Sort(testPhases, entries)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"b", "a", "draw"}, ids(entries, res), "priority order stands inside update")
}

func TestSort_PhaseNameReferenceIsNoop(t *testing.T) {
	a := entry("a", "update", 0, 1)
	a.After = []string{"render"}
	entries := []Entry{a, entry("b", "update", 1, 2)}

	res := Sort(testPhases, entries)
	assert.Equal(t, []string{"b", "a"}, ids(entries, res))
}

func TestSort_Cycle(t *testing.T) {
	x := entry("x", "update", 0, 1)
	x.Before = []string{"y"}
	y := entry("y", "update", 0, 2)
	y.Before = []string{"x"}
	free := entry("free", "update", -1, 3)
	entries := []Entry{x, y, free}

	res := Sort(testPhases, entries)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "update", res.Warnings[0].Phase)
	assert.Equal(t, []string{"x", "y"}, res.Warnings[0].Jobs)
	assert.Contains(t, res.Warnings[0].Message, "cyclic")

	// Free job resolves first, cyclic pair follows in priority/seq order.
	assert.Equal(t, []string{"free", "x", "y"}, ids(entries, res))
}

func TestSort_CycleIsRepeatable(t *testing.T) {
	build := func() []Entry {
		a := entry("a", "update", 1, 1)
		a.After = []string{"c"}
		b := entry("b", "update", 2, 2)
		b.After = []string{"a"}
		c := entry("c", "update", 3, 3)
		c.After = []string{"b"}
		return []Entry{a, b, c}
	}

	first := build()
	want := ids(first, Sort(testPhases, first))
	for i := 0; i < 20; i++ {
		e := build()
		assert.Equal(t, want, ids(e, Sort(testPhases, e)))
	}
	assert.Equal(t, []string{"c", "b", "a"}, want)
}

func TestSort_SelfReferenceIgnored(t *testing.T) {
	a := entry("a", "update", 0, 1)
	a.Before = []string{"a"}
	entries := []Entry{a, entry("b", "update", 1, 2)}

	res := Sort(testPhases, entries)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"b", "a"}, ids(entries, res))
}

func TestSort_ChainAcrossPriorities(t *testing.T) {
	// Constraint chain forces low-priority jobs ahead of high-priority ones.
	first := entry("first", "physics", -100, 3)
	first.Before = []string{"second"}
	second := entry("second", "physics", 0, 2)
	second.Before = []string{"third"}
	entries := []Entry{entry("third", "physics", 100, 1), second, first}

	res := Sort(testPhases, entries)
	assert.Equal(t, []string{"first", "second", "third"}, ids(entries, res))
}
