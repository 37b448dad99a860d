package swerve

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// SimDrivetrain is a stand-in for real swerve hardware. It accepts control
// requests, remembers the most recent one, and integrates a crude chassis
// velocity so the daemon can run end to end without a robot attached.
type SimDrivetrain struct {
	mu   sync.Mutex
	last Request

	// Crude first-order model: velocity chases volts with a fixed gain.
	velocity float64 // meters per second
	yawRate  float64 // radians per second
}

// voltsPerMeterPerSecond is the simulated drive-motor kV.
const voltsPerMeterPerSecond = 2.5

// NewSimDrivetrain returns an idle simulated drivetrain.
func NewSimDrivetrain() *SimDrivetrain {
	return &SimDrivetrain{last: Idle{}}
}

// Apply is the drivetrain's control-application function. It reduces the
// request to simulated state for this tick.
func (d *SimDrivetrain) Apply(req Request) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.last = req

	switch r := req.(type) {
	case TranslationCharacterization:
		d.velocity = r.Volts / voltsPerMeterPerSecond
		d.yawRate = 0
	case SteerCharacterization:
		// Steering in place; chassis does not translate.
		d.velocity = 0
		d.yawRate = 0
	case RotationCharacterization:
		d.velocity = 0
		d.yawRate = r.RadPerSec
	case Idle:
		d.velocity = 0
		d.yawRate = 0
	}

	logrus.WithField("request", describeRequest(req)).Trace("sim drivetrain apply")
}

// LastRequest returns the most recently applied request, Idle{} before any
// request was applied.
func (d *SimDrivetrain) LastRequest() Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Speeds returns the simulated chassis velocity and yaw rate.
func (d *SimDrivetrain) Speeds() (velocityMPS, yawRateRadPerSec float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.velocity, d.yawRate
}

// Describe renders the current simulated state for status output.
func (d *SimDrivetrain) Describe() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return describeRequest(d.last)
}

func describeRequest(req Request) string {
	switch r := req.(type) {
	case TranslationCharacterization:
		return fmt.Sprintf("translation %.3f V", r.Volts)
	case SteerCharacterization:
		return fmt.Sprintf("steer %.3f V", r.Volts)
	case RotationCharacterization:
		return fmt.Sprintf("rotation %.3f rad/s", r.RadPerSec)
	case Idle:
		return "idle"
	default:
		return fmt.Sprintf("%T", req)
	}
}
