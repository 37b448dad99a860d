// Package config holds the daemon configuration, persisted as a JSON file.
package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Config is the daemon configuration surface. Accessors fall back to
// defaults for unset fields; setters only change the in-memory value until
// Save is called.
type Config interface {
	// ControlPeriod is the control loop tick period.
	ControlPeriod() time.Duration
	// DefaultRoutine is the routine selected at daemon startup.
	DefaultRoutine() string
	// Cron is the schedule for automatic characterization passes, empty if
	// disabled.
	Cron() string
	// MQTTBroker is the telemetry broker URL, empty if MQTT is disabled.
	MQTTBroker() string
	// MQTTTopicPrefix is the topic prefix for telemetry publishes.
	MQTTTopicPrefix() string
	// TranslationStepVolts is the translation dynamic step, clamped to the
	// brownout-safety ceiling.
	TranslationStepVolts() float64
	// SteerStepVolts is the steer dynamic step, clamped to the
	// brownout-safety ceiling.
	SteerStepVolts() float64

	SetDefaultRoutine(string)
	SetCron(string)

	LogrusFields() logrus.Fields

	Load() error
	Save() error
}
