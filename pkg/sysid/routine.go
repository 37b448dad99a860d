// Package sysid implements quasistatic-ramp and dynamic-step system
// identification tests for a single mechanism.
//
// A Routine pairs a test configuration (ramp rate, step magnitude, timeout)
// with a mechanism (a drive function and the resource it owns). Its
// Quasistatic and Dynamic methods produce tick-driven tests meant to be run
// by a command scheduler that enforces resource exclusivity.
package sysid

import (
	"errors"
	"time"
)

// Defaults applied when the corresponding Config field is left zero.
const (
	DefaultRampRate      = 1.0              // units per second
	DefaultStepMagnitude = 7.0              // units
	DefaultTimeout       = 10 * time.Second // per-test safety timeout
)

// State labels a phase of a running test. It is recorded on every phase
// transition so the captured log can be sliced per test afterwards.
type State string

const (
	StateQuasistaticForward State = "quasistatic-forward"
	StateQuasistaticReverse State = "quasistatic-reverse"
	StateDynamicForward     State = "dynamic-forward"
	StateDynamicReverse     State = "dynamic-reverse"
	StateNone               State = "none"
)

// Direction selects which way a test drives the mechanism.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

func (d Direction) sign() float64 {
	if d == Reverse {
		return -1
	}
	return 1
}

// Config holds the tunable parameters of a routine. Zero values select the
// package defaults.
type Config struct {
	// RampRate is the quasistatic ramp slope in units per second.
	RampRate float64
	// StepMagnitude is the dynamic step amplitude in units.
	StepMagnitude float64
	// Timeout bounds every test produced by the routine.
	Timeout time.Duration
	// RecordState, if non-nil, is invoked on every phase transition of a
	// running test.
	RecordState func(State)
}

// Mechanism is the physical side of a routine: how to drive it and which
// resource a test must own exclusively while driving it.
type Mechanism struct {
	// Drive applies a signed scalar control value for the current tick.
	Drive func(value float64)
	// Resource identifies the mutual-exclusion domain of the mechanism. It
	// must be comparable; the scheduler uses equality to detect conflicts.
	Resource any
	// Name tags tests produced by the routine, for logs and status output.
	Name string
}

// Routine is one fixed identification procedure. It is immutable after
// construction; every produced Test references it.
type Routine struct {
	conf Config
	mech Mechanism
}

// NewRoutine validates the configuration and mechanism and returns an
// immutable routine. Explicitly negative ramp rates or step magnitudes are
// rejected; zeros select defaults.
func NewRoutine(conf Config, mech Mechanism) (*Routine, error) {
	if mech.Drive == nil {
		return nil, errors.New("sysid: mechanism drive function is nil")
	}
	if mech.Resource == nil {
		return nil, errors.New("sysid: mechanism resource is nil")
	}
	if conf.RampRate < 0 {
		return nil, errors.New("sysid: ramp rate must be positive")
	}
	if conf.StepMagnitude < 0 {
		return nil, errors.New("sysid: step magnitude must be positive")
	}
	if conf.Timeout < 0 {
		return nil, errors.New("sysid: timeout must be positive")
	}
	if conf.RampRate == 0 {
		conf.RampRate = DefaultRampRate
	}
	if conf.StepMagnitude == 0 {
		conf.StepMagnitude = DefaultStepMagnitude
	}
	if conf.Timeout == 0 {
		conf.Timeout = DefaultTimeout
	}
	return &Routine{conf: conf, mech: mech}, nil
}

// RampRate returns the effective quasistatic ramp slope.
func (r *Routine) RampRate() float64 { return r.conf.RampRate }

// StepMagnitude returns the effective dynamic step amplitude.
func (r *Routine) StepMagnitude() float64 { return r.conf.StepMagnitude }

// Timeout returns the effective per-test timeout.
func (r *Routine) Timeout() time.Duration { return r.conf.Timeout }

// Name returns the mechanism name.
func (r *Routine) Name() string { return r.mech.Name }

// Quasistatic produces a fresh test that ramps the control value linearly
// from zero in the given direction until the timeout elapses or the test is
// cancelled.
func (r *Routine) Quasistatic(dir Direction) *Test {
	return &Test{routine: r, kind: quasistatic, dir: dir}
}

// Dynamic produces a fresh test that snaps the control value to the
// configured step magnitude, signed by direction, and holds it until the
// timeout elapses or the test is cancelled.
func (r *Routine) Dynamic(dir Direction) *Test {
	return &Test{routine: r, kind: dynamic, dir: dir}
}

func (r *Routine) recordState(s State) {
	if r.conf.RecordState != nil {
		r.conf.RecordState(s)
	}
}
