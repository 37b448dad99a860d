// Package swerve defines the drivetrain control boundary and the
// characterization-routine manager built on top of it.
package swerve

// Request is a single-tick control request for the drivetrain. The concrete
// request types form a closed set; whichever control-application function
// receives a request reduces it to low-level module commands on that tick.
type Request interface {
	isRequest()
}

// TranslationCharacterization drives every module straight ahead at a raw
// voltage. Used to find drive-motor gains.
type TranslationCharacterization struct {
	Volts float64
}

// SteerCharacterization applies a raw voltage to the steer motors.
type SteerCharacterization struct {
	Volts float64
}

// RotationCharacterization spins the chassis at a fixed angular rate. Used
// to find gains for the heading controller.
type RotationCharacterization struct {
	RadPerSec float64
}

// Idle commands zero output on every module.
type Idle struct{}

func (TranslationCharacterization) isRequest() {}
func (SteerCharacterization) isRequest()       {}
func (RotationCharacterization) isRequest()    {}
func (Idle) isRequest()                        {}

// ApplyFunc reduces a Request to actuator commands for the current control
// tick. It is called at most once per tick per running test, must complete
// within the tick budget, and must not retain the request.
type ApplyFunc func(Request)
