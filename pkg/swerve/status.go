package swerve

import "time"

// Status is the view model exposed via the daemon API and CLI polling. It
// combines the selector state with live scheduler and drivetrain readings.
type Status struct {
	ActiveRoutine    RoutineKind `json:"activeRoutine"`
	Running          []string    `json:"running"`
	LastRequest      string      `json:"lastRequest"`
	VelocityMPS      float64     `json:"velocityMps"`
	YawRateRadPerSec float64     `json:"yawRateRadPerSec"`
	ControlPeriodMS  int         `json:"controlPeriodMs"`
	// ScheduledAt is the next automatic characterization pass, zero if no
	// schedule is active.
	ScheduledAt time.Time `json:"scheduledAt"`
	Cron        string    `json:"cron,omitempty"`
}
