package sysid

import (
	"fmt"
	"time"
)

type testKind int

const (
	quasistatic testKind = iota
	dynamic
)

func (k testKind) String() string {
	if k == dynamic {
		return "dynamic"
	}
	return "quasistatic"
}

// Test is one runnable identification test. Every factory call returns an
// independent instance, bound to its routine at creation time.
//
// A Test moves through Idle -> Running -> Completed or Cancelled. The
// scheduler drives it: Init once when the test starts, Execute once per
// control tick, End exactly once when it finishes or is interrupted. End
// always zeroes the mechanism output, so a cancelled test leaves the
// actuators in a safe state.
type Test struct {
	routine *Routine
	kind    testKind
	dir     Direction

	start   time.Time
	started bool
	ended   bool
}

// Name identifies the test in logs and status output.
func (t *Test) Name() string {
	return fmt.Sprintf("%s-%s-%s", t.routine.mech.Name, t.kind, t.dir)
}

// Resource is the mutual-exclusion handle the test owns while running.
func (t *Test) Resource() any { return t.routine.mech.Resource }

// Init marks the transition out of Idle and records the active state label.
func (t *Test) Init(now time.Time) {
	t.start = now
	t.started = true
	t.routine.recordState(t.state())
}

// Execute emits one control value for this tick. Quasistatic output grows
// linearly with elapsed time; dynamic output holds the step magnitude.
func (t *Test) Execute(now time.Time) {
	if !t.started || t.ended {
		return
	}
	var value float64
	switch t.kind {
	case quasistatic:
		elapsed := now.Sub(t.start)
		if elapsed < 0 {
			elapsed = 0
		}
		value = t.routine.conf.RampRate * elapsed.Seconds()
	case dynamic:
		value = t.routine.conf.StepMagnitude
	}
	t.routine.mech.Drive(t.dir.sign() * value)
}

// IsFinished reports whether the routine timeout has elapsed.
func (t *Test) IsFinished(now time.Time) bool {
	return t.started && now.Sub(t.start) >= t.routine.conf.Timeout
}

// End zeroes the mechanism output and records the terminal state label.
// It is idempotent; the scheduler calls it once on completion or cancel.
func (t *Test) End(interrupted bool) {
	if t.ended {
		return
	}
	t.ended = true
	t.routine.mech.Drive(0)
	t.routine.recordState(StateNone)
}

func (t *Test) state() State {
	switch {
	case t.kind == quasistatic && t.dir == Forward:
		return StateQuasistaticForward
	case t.kind == quasistatic && t.dir == Reverse:
		return StateQuasistaticReverse
	case t.kind == dynamic && t.dir == Forward:
		return StateDynamicForward
	default:
		return StateDynamicReverse
	}
}
