package scheduler

// Mode selects how ticks are driven.
type Mode string

const (
	// ModeContinuous ticks while at least one root is registered.
	ModeContinuous Mode = "continuous"
	// ModeOnDemand ticks only while an Invalidate budget remains.
	ModeOnDemand Mode = "on-demand"
	// ModeManual never ticks on its own; use Step and StepJob.
	ModeManual Mode = "manual"
)

// MaxPendingFrames caps the on-demand frame budget.
const MaxPendingFrames = 60

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeContinuous, ModeOnDemand, ModeManual:
		return true
	}
	return false
}

// ParseMode converts a string to a Mode.
func ParseMode(s string) (Mode, bool) {
	m := Mode(s)
	return m, m.Valid()
}
