package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/frameloop/internal/loop"
	"github.com/roach88/frameloop/internal/phase"
	"github.com/roach88/frameloop/internal/testutil"
)

type fixture struct {
	s      *Scheduler
	driver *loop.Manual
	clock  *testutil.FakeClock
	logs   *testutil.LogBuffer
}

func newFixture(t *testing.T, mode Mode, opts ...Option) *fixture {
	t.Helper()
	logger, logs := testutil.NewLogger()
	f := &fixture{
		driver: loop.NewManual(),
		clock:  testutil.NewFakeClock(0),
		logs:   logs,
	}
	base := []Option{
		WithLogger(logger),
		WithClock(f.clock),
		WithDriver(f.driver),
		WithMode(mode),
		WithIDGenerator(NewSequentialGenerator("")),
	}
	f.s = New(append(base, opts...)...)
	return f
}

// recorder collects job invocations in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) job(name string) JobFunc {
	return func(Frame, time.Duration) error {
		r.add(name)
		return nil
	}
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
}

// take returns the calls so far and clears them.
func (r *recorder) take() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.calls
	r.calls = nil
	return out
}

func TestScheduler_PriorityOrdering(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)

	f.s.Register(rec.job("a"), WithID("a"))
	f.s.Register(rec.job("b"), WithID("b"), WithPriority(10))
	f.s.Register(rec.job("c"), WithID("c"), WithPriority(5))

	assert.Equal(t, []string{"b", "c", "a"}, f.s.Jobs("r"))

	f.s.Step()
	assert.Equal(t, []string{"b", "c", "a"}, rec.take())
}

func TestScheduler_EqualPriorityKeepsRegistrationOrder(t *testing.T) {
	f := newFixture(t, ModeManual)
	f.s.RegisterRoot("r", nil)

	for _, id := range []string{"x", "y", "z"} {
		f.s.Register(nil, WithID(id))
	}
	assert.Equal(t, []string{"x", "y", "z"}, f.s.Jobs("r"))
}

func TestScheduler_PhaseOrderBeatsPriority(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)

	f.s.Register(rec.job("draw"), WithID("draw"), InPhase(phase.Render), WithPriority(100))
	f.s.Register(rec.job("move"), WithID("move"), InPhase(phase.Update))
	f.s.Register(rec.job("read"), WithID("read"), InPhase(phase.Input))

	f.s.Step()
	assert.Equal(t, []string{"read", "move", "draw"}, rec.take())
}

func TestScheduler_BeforeConstraintWithinPhase(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)

	f.s.Register(rec.job("a"), WithID("a"), WithPriority(10))
	f.s.Register(rec.job("b"), WithID("b"), Before("a"))

	f.s.Step()
	assert.Equal(t, []string{"b", "a"}, rec.take())
}

func TestScheduler_AfterConstraintWithinPhase(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)

	f.s.Register(rec.job("a"), WithID("a"), After("b"), InPhase(phase.Update))
	f.s.Register(rec.job("b"), WithID("b"))

	f.s.Step()
	assert.Equal(t, []string{"b", "a"}, rec.take())
}

func TestScheduler_ConstraintTargetJobSharesPhase(t *testing.T) {
	var seen []JobRun
	f := newFixture(t, ModeManual, WithObserver(FrameObserverFunc(func(rec FrameRecord) { seen = rec.Runs })))
	f.s.RegisterRoot("r", nil)

	f.s.Register(nil, WithID("a"), InPhase(phase.Render))
	f.s.Register(nil, WithID("b"), Before("a"))

	f.s.Step()
	require.Len(t, seen, 2)
	assert.Equal(t, "b", seen[0].Job)
	assert.Equal(t, phase.Render, seen[0].Phase)
	assert.Equal(t, "a", seen[1].Job)
}

func TestScheduler_ConstraintOnPhaseCreatesAnchor(t *testing.T) {
	f := newFixture(t, ModeManual)
	f.s.RegisterRoot("r", nil)

	f.s.Register(nil, WithID("pre-draw"), Before(phase.Render))

	assert.True(t, f.s.HasPhase("before:render"))
	phases := f.s.Phases()
	assert.Equal(t, []string{"start", "input", "physics", "update", "before:render", "render", "finish"}, phases)
}

func TestScheduler_PhaseInfoFlagsAnchors(t *testing.T) {
	f := newFixture(t, ModeManual)
	f.s.RegisterRoot("r", nil)
	f.s.Register(nil, WithID("late"), After(phase.Physics))
	require.True(t, f.s.AddPhase("network", phase.Placement{Before: phase.Update}))

	var auto []string
	for _, ph := range f.s.PhaseInfo() {
		if ph.AutoGenerated {
			auto = append(auto, ph.Name)
		}
	}
	assert.Equal(t, []string{"after:physics"}, auto)
	assert.Len(t, f.s.PhaseInfo(), len(f.s.Phases()))
}

func TestScheduler_CrossPhaseConstraintIsIgnored(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)

	f.s.Register(rec.job("move"), WithID("move"), InPhase(phase.Update))
	f.s.Register(rec.job("draw"), WithID("draw"), InPhase(phase.Render), Before("move"))

	f.s.Step()
	assert.Equal(t, []string{"move", "draw"}, rec.take())
}

func TestScheduler_CycleRunsAllJobsAndWarnsOnce(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)

	f.s.Register(rec.job("a"), WithID("a"), InPhase(phase.Update), Before("b"))
	f.s.Register(rec.job("b"), WithID("b"), InPhase(phase.Update), Before("a"), WithPriority(1))

	f.s.Step()
	f.s.Step()

	assert.ElementsMatch(t, []string{"a", "b", "a", "b"}, rec.take())
	assert.Equal(t, 1, f.logs.Count("job constraint cycle"))
}

func TestScheduler_AddPhaseReordersNextTick(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)

	f.s.Register(rec.job("u"), WithID("u"), InPhase(phase.Update))
	f.s.Register(rec.job("c"), WithID("c"), InPhase("collide"))

	f.s.Step()
	assert.Equal(t, []string{"u", "c"}, rec.take())

	require.True(t, f.s.AddPhase("collide", phase.Placement{Before: phase.Update}))
	f.s.Step()
	assert.Equal(t, []string{"c", "u"}, rec.take())
}

func TestScheduler_AddPhaseDuplicate(t *testing.T) {
	f := newFixture(t, ModeManual)
	assert.False(t, f.s.AddPhase(phase.Physics, phase.Placement{Before: phase.Update}))
	assert.Equal(t, 1, f.logs.Count("phase already exists"))
}

func TestScheduler_RegisterWithoutRoot(t *testing.T) {
	f := newFixture(t, ModeManual)

	h := f.s.Register(nil, WithID("orphan"))
	assert.False(t, h.Unregister())
	assert.Equal(t, 1, f.logs.Count("job registered with no root"))

	f.s.RegisterRoot("r", nil)
	h = f.s.Register(nil, WithID("lost"), OnRoot("missing"))
	assert.False(t, h.Unregister())
	assert.Equal(t, 1, f.logs.Count("job registered against unknown root"))
}

func TestScheduler_DefaultRootIsFirstRegistered(t *testing.T) {
	f := newFixture(t, ModeManual)
	f.s.RegisterRoot("first", nil)
	f.s.RegisterRoot("second", nil)

	f.s.Register(nil, WithID("a"))
	f.s.Register(nil, WithID("b"), OnRoot("second"))

	assert.Equal(t, []string{"a"}, f.s.Jobs("first"))
	assert.Equal(t, []string{"b"}, f.s.Jobs("second"))
	assert.Equal(t, []string{"first", "second"}, f.s.Roots())
	assert.Nil(t, f.s.Jobs("nope"))
}

func TestScheduler_DuplicateRootRejected(t *testing.T) {
	f := newFixture(t, ModeManual)
	first := f.s.RegisterRoot("r", nil)

	dup := f.s.RegisterRoot("r", nil)
	assert.False(t, dup.Unregister())
	assert.Equal(t, []string{"r"}, f.s.Roots())
	assert.True(t, first.Unregister())
	assert.Empty(t, f.s.Roots())
}

func TestScheduler_HandleUnregisterOnce(t *testing.T) {
	f := newFixture(t, ModeManual)
	f.s.RegisterRoot("r", nil)

	h := f.s.Register(nil, WithID("a"))
	assert.True(t, h.Unregister())
	assert.False(t, h.Unregister())
	assert.Empty(t, f.s.Jobs("r"))
}

func TestScheduler_DuplicateJobIDReplaces(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)

	old := f.s.Register(rec.job("old"), WithID("a"))
	f.s.Register(rec.job("new"), WithID("a"))

	f.s.Step()
	assert.Equal(t, []string{"new"}, rec.take())
	assert.False(t, old.Unregister(), "replaced handle must not remove the replacement")
	assert.Equal(t, []string{"a"}, f.s.Jobs("r"))
	assert.Equal(t, 1, f.logs.Count("replacing"))
}

func TestScheduler_UnregisterByID(t *testing.T) {
	f := newFixture(t, ModeManual)
	f.s.RegisterRoot("r", nil)
	f.s.RegisterRoot("q", nil)
	f.s.Register(nil, WithID("a"), OnRoot("q"))

	assert.False(t, f.s.Unregister("a", "r"))
	assert.True(t, f.s.Unregister("a", ""))
	assert.False(t, f.s.Unregister("a", ""))
}

func TestScheduler_IDsAreNormalized(t *testing.T) {
	f := newFixture(t, ModeManual)
	f.s.RegisterRoot("r", nil)

	f.s.Register(nil, WithID("cafe\u0301"))
	assert.Equal(t, []string{"caf\u00e9"}, f.s.Jobs("r"))
	assert.True(t, f.s.Unregister("caf\u00e9", ""))
}

func TestScheduler_GeneratedIDs(t *testing.T) {
	f := newFixture(t, ModeManual)
	f.s.RegisterRoot("r", nil)

	f.s.Register(nil)
	f.s.Register(nil)
	assert.Equal(t, []string{"job-1", "job-2"}, f.s.Jobs("r"))
}

func TestUUIDv7Generator_Generate(t *testing.T) {
	id := UUIDv7Generator{}.Generate()
	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestScheduler_UpdateJob(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)
	f.s.Register(rec.job("a"), WithID("a"))
	f.s.Register(rec.job("b"), WithID("b"))

	prio := 5
	require.True(t, f.s.UpdateJob("b", JobUpdate{Priority: &prio}))
	f.s.Step()
	assert.Equal(t, []string{"b", "a"}, rec.take())

	render := phase.Render
	require.True(t, f.s.UpdateJob("b", JobUpdate{Phase: &render}))
	f.s.Step()
	assert.Equal(t, []string{"a", "b"}, rec.take())

	assert.False(t, f.s.UpdateJob("missing", JobUpdate{Priority: &prio}))
}

func TestScheduler_UpdateJobClearsConstraints(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)
	f.s.Register(rec.job("a"), WithID("a"), WithPriority(1))
	f.s.Register(rec.job("b"), WithID("b"), Before("a"))

	f.s.Step()
	assert.Equal(t, []string{"b", "a"}, rec.take())

	require.True(t, f.s.UpdateJob("b", JobUpdate{Before: []string{}}))
	f.s.Step()
	assert.Equal(t, []string{"a", "b"}, rec.take())
}

func TestScheduler_DisabledJobsSkipped(t *testing.T) {
	f := newFixture(t, ModeManual)
	rec := &recorder{}
	f.s.RegisterRoot("r", nil)
	f.s.Register(rec.job("a"), WithID("a"), Disabled())

	f.s.Step()
	assert.Empty(t, rec.take())
	assert.Empty(t, f.s.Jobs("r"))

	on := true
	f.s.UpdateJob("a", JobUpdate{Enabled: &on})
	f.s.Step()
	assert.Equal(t, []string{"a"}, rec.take())
}

func TestScheduler_UnregisterRootStopsWhenEmpty(t *testing.T) {
	f := newFixture(t, ModeContinuous)

	f.s.RegisterRoot("a", nil)
	f.s.RegisterRoot("b", nil)
	assert.True(t, f.driver.Running())
	assert.Equal(t, 1, f.driver.Starts())

	assert.True(t, f.s.UnregisterRoot("a"))
	assert.True(t, f.driver.Running())
	assert.True(t, f.s.UnregisterRoot("b"))
	assert.False(t, f.driver.Running())
	assert.False(t, f.s.UnregisterRoot("b"))
}

func TestScheduler_Reset(t *testing.T) {
	f := newFixture(t, ModeContinuous)
	root := f.s.RegisterRoot("r", nil)
	job := f.s.Register(nil, WithID("a"))
	f.s.AddPhase("extra", phase.Placement{})

	f.s.Reset()

	assert.False(t, f.driver.Running())
	assert.Empty(t, f.s.Roots())
	assert.Equal(t, phase.DefaultPhases, f.s.Phases())
	assert.False(t, job.Unregister())
	assert.False(t, root.Unregister())
	assert.Equal(t, int64(0), f.s.Stats().Frame)
}

func TestScheduler_ConcurrentRegistration(t *testing.T) {
	logger, _ := testutil.NewLogger()
	s := New(WithLogger(logger), WithInterval(time.Millisecond))
	s.RegisterRoot("r", nil)
	defer s.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 50; n++ {
				h := s.Register(func(Frame, time.Duration) error { return nil }, WithPriority(n))
				s.Jobs("r")
				h.Unregister()
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, s.Jobs("r"))
}
