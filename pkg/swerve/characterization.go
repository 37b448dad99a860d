package swerve

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/robostack/swervechar/pkg/sysid"
	"github.com/robostack/swervechar/pkg/telemetry"
)

// RoutineKind identifies which physical quantity a characterization routine
// excites.
type RoutineKind string

const (
	RoutineTranslation RoutineKind = "translation"
	RoutineSteer       RoutineKind = "steer"
	RoutineRotation    RoutineKind = "rotation"
)

// RoutineKinds lists the fixed set of routines in presentation order.
func RoutineKinds() []RoutineKind {
	return []RoutineKind{RoutineTranslation, RoutineSteer, RoutineRotation}
}

// ParseRoutineKind converts user input into a RoutineKind.
func ParseRoutineKind(s string) (RoutineKind, error) {
	switch RoutineKind(s) {
	case RoutineTranslation, RoutineSteer, RoutineRotation:
		return RoutineKind(s), nil
	}
	return "", fmt.Errorf("unknown routine %q (want translation, steer, or rotation)", s)
}

// Step ceilings. Exceeding them risks collapsing the battery voltage
// mid-test, so overrides are clamped, never raised.
const (
	// TranslationStepVolts is the dynamic step for the drive motors. All
	// eight motors step at once, hence the low ceiling.
	TranslationStepVolts = 4.0
	// SteerStepVolts is the dynamic step for the steer motors.
	SteerStepVolts = 7.0
	// RotationStepRadPerSec is the dynamic step for the rotation routine,
	// expressed as an angular rate.
	RotationStepRadPerSec = math.Pi
	// RotationRampRadPerSecSq is the quasistatic ramp for the rotation
	// routine. The voltage-domain default makes no sense for an angular
	// quantity, so it is always explicit.
	RotationRampRadPerSecSq = math.Pi / 6
)

// Telemetry keys for the per-routine state labels and the rotation routine's
// raw output mirror.
const (
	translationStateKey = "SysIdTranslation_State"
	steerStateKey       = "SysIdSteer_State"
	rotationStateKey    = "SysIdRotation_State"
	rotationalRateKey   = "Rotational_Rate"
)

// Options tune the characterization routines. The zero value selects the
// stock configuration.
type Options struct {
	// TranslationStepVolts overrides the translation dynamic step. Zero
	// selects the default; values are clamped to TranslationStepVolts.
	TranslationStepVolts float64
	// SteerStepVolts overrides the steer dynamic step. Zero selects the
	// default; values are clamped to SteerStepVolts.
	SteerStepVolts float64
	// Sink receives state transitions and the rotation output mirror. Nil
	// discards them.
	Sink telemetry.Sink
}

// Characterization manages the three fixed identification routines for a
// swerve drivetrain and dispenses test commands against whichever routine is
// active. The zero value is not usable; call NewCharacterization.
type Characterization struct {
	routines map[RoutineKind]*sysid.Routine

	mu     sync.RWMutex
	active RoutineKind
}

// NewCharacterization wires the three routines to the given
// control-application function and exclusive-access resource. It emits no
// control output; output only happens when a produced test runs.
//
// apply and resource must be non-nil: there is no meaningful way to
// construct the component without its collaborators, so this fails fast.
func NewCharacterization(apply ApplyFunc, resource any, opts Options) (*Characterization, error) {
	if apply == nil {
		return nil, errors.New("swerve: apply function is nil")
	}
	if resource == nil {
		return nil, errors.New("swerve: resource is nil")
	}
	sink := opts.Sink
	if sink == nil {
		sink = telemetry.NopSink{}
	}

	translationStep := clampStep(opts.TranslationStepVolts, TranslationStepVolts)
	steerStep := clampStep(opts.SteerStepVolts, SteerStepVolts)

	translation, err := sysid.NewRoutine(
		sysid.Config{
			StepMagnitude: translationStep,
			RecordState:   recordTo(sink, translationStateKey),
		},
		sysid.Mechanism{
			Drive:    func(v float64) { apply(TranslationCharacterization{Volts: v}) },
			Resource: resource,
			Name:     string(RoutineTranslation),
		},
	)
	if err != nil {
		return nil, err
	}

	steer, err := sysid.NewRoutine(
		sysid.Config{
			StepMagnitude: steerStep,
			RecordState:   recordTo(sink, steerStateKey),
		},
		sysid.Mechanism{
			Drive:    func(v float64) { apply(SteerCharacterization{Volts: v}) },
			Resource: resource,
			Name:     string(RoutineSteer),
		},
	)
	if err != nil {
		return nil, err
	}

	// The rotation routine reinterprets the sequencer's voltage-domain
	// scalar as an angular rate: the underlying ramp/step machinery only
	// understands one scalar domain. The raw value is mirrored to the sink
	// under its own key so the captured log carries the real unit.
	rotation, err := sysid.NewRoutine(
		sysid.Config{
			RampRate:      RotationRampRadPerSecSq,
			StepMagnitude: RotationStepRadPerSec,
			RecordState:   recordTo(sink, rotationStateKey),
		},
		sysid.Mechanism{
			Drive: func(v float64) {
				apply(RotationCharacterization{RadPerSec: v})
				sink.WriteDouble(rotationalRateKey, v)
			},
			Resource: resource,
			Name:     string(RoutineRotation),
		},
	)
	if err != nil {
		return nil, err
	}

	return &Characterization{
		routines: map[RoutineKind]*sysid.Routine{
			RoutineTranslation: translation,
			RoutineSteer:       steer,
			RoutineRotation:    rotation,
		},
		active: RoutineTranslation,
	}, nil
}

// SetActiveRoutine selects which routine subsequent Quasistatic and Dynamic
// calls are dispatched against. It is idempotent and emits no control
// output. Tests already produced keep their original routine.
func (c *Characterization) SetActiveRoutine(kind RoutineKind) error {
	if _, ok := c.routines[kind]; !ok {
		return fmt.Errorf("swerve: unknown routine %q", kind)
	}
	c.mu.Lock()
	c.active = kind
	c.mu.Unlock()
	return nil
}

// ActiveRoutine reports the kind last set, Translation if never set.
func (c *Characterization) ActiveRoutine() RoutineKind {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// Routine returns the fixed routine for a kind, nil for unknown kinds.
func (c *Characterization) Routine(kind RoutineKind) *sysid.Routine {
	return c.routines[kind]
}

// Quasistatic produces a fresh slow-ramp test bound to the routine active at
// this instant.
func (c *Characterization) Quasistatic(dir sysid.Direction) *sysid.Test {
	return c.activeRoutine().Quasistatic(dir)
}

// Dynamic produces a fresh step test bound to the routine active at this
// instant.
func (c *Characterization) Dynamic(dir sysid.Direction) *sysid.Test {
	return c.activeRoutine().Dynamic(dir)
}

func (c *Characterization) activeRoutine() *sysid.Routine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.routines[c.active]
}

func clampStep(v, ceiling float64) float64 {
	if v <= 0 {
		return ceiling
	}
	return math.Min(v, ceiling)
}

func recordTo(sink telemetry.Sink, key string) func(sysid.State) {
	return func(s sysid.State) {
		sink.WriteString(key, string(s))
	}
}
