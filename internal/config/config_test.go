package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/frameloop/internal/loop"
	"github.com/roach88/frameloop/internal/scheduler"
	"github.com/roach88/frameloop/internal/testutil"
)

const yamlPlan = `
mode: manual
interval: 10ms
phases:
  - name: collide
    before: update
roots:
  - world
  - hud
jobs:
  - id: move
    priority: 5
  - id: hit
    phase: collide
  - id: blink
    root: hud
    fps: 2
    drop: false
  - id: idle
    enabled: false
`

const cuePlan = `
mode:     "on-demand"
interval: "20ms"
roots: ["world"]
jobs: [
	{id: "move", priority: 1},
	{id: "draw", phase: "render", fps: 30.0},
]
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseYAML(t *testing.T) {
	p, err := ParseYAML([]byte(yamlPlan))
	require.NoError(t, err)

	assert.Equal(t, scheduler.ModeManual, p.SchedulerMode())
	assert.Equal(t, 10*time.Millisecond, p.TickInterval())
	assert.Equal(t, []PhaseSpec{{Name: "collide", Before: "update"}}, p.Phases)
	assert.Equal(t, []string{"world", "hud"}, p.Roots)
	require.Len(t, p.Jobs, 4)
	assert.Equal(t, 2.0, p.Jobs[2].FPS)
	require.NotNil(t, p.Jobs[2].Drop)
	assert.False(t, *p.Jobs[2].Drop)
	require.NotNil(t, p.Jobs[3].Enabled)
	assert.False(t, *p.Jobs[3].Enabled)
	assert.NoError(t, p.Validate())
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("roots: [a]\njob:\n  - id: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseCUE(t *testing.T) {
	p, err := ParseCUE([]byte(cuePlan), "plan.cue")
	require.NoError(t, err)

	assert.Equal(t, scheduler.ModeOnDemand, p.SchedulerMode())
	assert.Equal(t, 20*time.Millisecond, p.TickInterval())
	require.Len(t, p.Jobs, 2)
	assert.Equal(t, "draw", p.Jobs[1].ID)
	assert.Equal(t, "render", p.Jobs[1].Phase)
	assert.Equal(t, 30.0, p.Jobs[1].FPS)
	assert.NoError(t, p.Validate())
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `roots: ["a"], colour: "red"`},
		{"bad mode", `mode: "sometimes"`},
		{"job without id", `roots: ["a"], jobs: [{priority: 1}]`},
		{"negative fps", `roots: ["a"], jobs: [{id: "x", fps: -1.0}]`},
		{"syntax", `roots: [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCUE([]byte(tt.src), "bad.cue")
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr string
	}{
		{"empty plan is valid", Plan{}, ""},
		{"bad mode", Plan{Mode: "turbo"}, `mode "turbo"`},
		{"bad interval", Plan{Interval: "fast"}, `interval "fast"`},
		{"zero interval", Plan{Interval: "0s"}, "must be positive"},
		{"unnamed phase", Plan{Phases: []PhaseSpec{{Before: "update"}}}, "phases[0]: name is required"},
		{"duplicate root", Plan{Roots: []string{"a", "a"}}, `duplicate root "a"`},
		{"jobs without roots", Plan{Jobs: []JobSpec{{ID: "x"}}}, "no roots"},
		{"job without id", Plan{Roots: []string{"a"}, Jobs: []JobSpec{{}}}, "jobs[0]: id is required"},
		{"unknown root", Plan{Roots: []string{"a"}, Jobs: []JobSpec{{ID: "x", Root: "b"}}}, `unknown root "b"`},
		{"duplicate job on default root", Plan{Roots: []string{"a"}, Jobs: []JobSpec{{ID: "x"}, {ID: "x", Root: "a"}}}, `duplicate job "x"`},
		{"same id on two roots", Plan{Roots: []string{"a", "b"}, Jobs: []JobSpec{{ID: "x"}, {ID: "x", Root: "b"}}}, ""},
		{"negative fps", Plan{Roots: []string{"a"}, Jobs: []JobSpec{{ID: "x", FPS: -1}}}, "fps must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	p := Plan{Mode: "turbo", Interval: "-1s", Roots: []string{""}}
	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
	assert.Contains(t, err.Error(), "interval")
	assert.Contains(t, err.Error(), "roots[0]")
}

func TestLoad_ByExtension(t *testing.T) {
	p, err := Load(writeFile(t, "plan.yaml", yamlPlan))
	require.NoError(t, err)
	assert.Len(t, p.Jobs, 4)

	p, err = Load(writeFile(t, "plan.cue", cuePlan))
	require.NoError(t, err)
	assert.Len(t, p.Jobs, 2)

	_, err = Load(writeFile(t, "plan.toml", "mode = 'manual'"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported plan format")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsInvalidPlan(t *testing.T) {
	_, err := Load(writeFile(t, "plan.yml", "jobs:\n  - id: x\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid plan")
}

func TestApply(t *testing.T) {
	p, err := ParseYAML([]byte(yamlPlan))
	require.NoError(t, err)

	logger, _ := testutil.NewLogger()
	s := scheduler.New(append(p.Options(),
		scheduler.WithLogger(logger),
		scheduler.WithDriver(loop.NewManual()),
		scheduler.WithClock(testutil.NewFakeClock(0)),
	)...)

	var ran []string
	factory := func(spec JobSpec) scheduler.JobFunc {
		return func(scheduler.Frame, time.Duration) error {
			ran = append(ran, spec.ID)
			return nil
		}
	}
	snapshots := func(root string) scheduler.SnapshotFunc {
		return func() any { return root }
	}

	handles := p.Apply(s, factory, snapshots)
	assert.Len(t, handles, 6)

	assert.Equal(t, []string{"world", "hud"}, s.Roots())
	assert.True(t, s.HasPhase("collide"))
	assert.Equal(t, []string{"hit", "move"}, s.Jobs("world"))
	assert.Equal(t, []string{"blink"}, s.Jobs("hud"))

	s.Step()
	assert.Equal(t, []string{"hit", "move", "blink"}, ran)
}

func TestPlan_Defaults(t *testing.T) {
	var p Plan
	assert.Equal(t, scheduler.ModeContinuous, p.SchedulerMode())
	assert.Equal(t, loop.DefaultInterval, p.TickInterval())
}
