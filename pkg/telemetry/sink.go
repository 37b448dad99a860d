// Package telemetry provides fire-and-forget sinks for characterization
// data: state-transition labels and raw requested outputs. Sink failures are
// never surfaced to the caller.
package telemetry

import (
	"github.com/sirupsen/logrus"
)

// Sink records keyed characterization values. Implementations must be safe
// to call from the control tick and return promptly.
type Sink interface {
	WriteString(key, value string)
	WriteDouble(key string, value float64)
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) WriteString(string, string)  {}
func (NopSink) WriteDouble(string, float64) {}

// LogrusSink writes every value as a structured log entry.
type LogrusSink struct {
	Logger logrus.FieldLogger
}

// NewLogrusSink returns a sink backed by the given logger, or the standard
// logger if nil.
func NewLogrusSink(logger logrus.FieldLogger) *LogrusSink {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogrusSink{Logger: logger}
}

func (s *LogrusSink) WriteString(key, value string) {
	s.Logger.WithFields(logrus.Fields{
		"key":   key,
		"value": value,
	}).Info("telemetry")
}

func (s *LogrusSink) WriteDouble(key string, value float64) {
	s.Logger.WithFields(logrus.Fields{
		"key":   key,
		"value": value,
	}).Debug("telemetry")
}

// MultiSink fans every write out to all member sinks in order.
type MultiSink []Sink

func (m MultiSink) WriteString(key, value string) {
	for _, s := range m {
		s.WriteString(key, value)
	}
}

func (m MultiSink) WriteDouble(key string, value float64) {
	for _, s := range m {
		s.WriteDouble(key, value)
	}
}
