package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robostack/swervechar/pkg/utils/ptr"
)

func TestDefaults(t *testing.T) {
	f := NewFileFromConfig(&RawFileConfig{}, "")

	if got := f.ControlPeriod(); got != 20*time.Millisecond {
		t.Fatalf("expected default control period 20ms, got %v", got)
	}
	if got := f.DefaultRoutine(); got != "translation" {
		t.Fatalf("expected default routine translation, got %q", got)
	}
	if got := f.Cron(); got != "" {
		t.Fatalf("expected empty default cron, got %q", got)
	}
	if got := f.MQTTBroker(); got != "" {
		t.Fatalf("expected empty default MQTT broker, got %q", got)
	}
	if got := f.MQTTTopicPrefix(); got != "swervechar" {
		t.Fatalf("expected default topic prefix swervechar, got %q", got)
	}
	if got := f.TranslationStepVolts(); got != 4.0 {
		t.Fatalf("expected default translation step 4.0, got %v", got)
	}
	if got := f.SteerStepVolts(); got != 7.0 {
		t.Fatalf("expected default steer step 7.0, got %v", got)
	}
}

func TestStepVoltsClamping(t *testing.T) {
	f := NewFileFromConfig(&RawFileConfig{
		TranslationStepVolts: ptr.To(100.0),
		SteerStepVolts:       ptr.To(-1.0),
	}, "")

	if got := f.TranslationStepVolts(); got != 4.0 {
		t.Fatalf("expected translation step clamped to 4.0, got %v", got)
	}
	if got := f.SteerStepVolts(); got != 7.0 {
		t.Fatalf("expected nonsense steer step replaced by 7.0, got %v", got)
	}

	f = NewFileFromConfig(&RawFileConfig{
		TranslationStepVolts: ptr.To(2.0),
		SteerStepVolts:       ptr.To(5.0),
	}, "")
	if got := f.TranslationStepVolts(); got != 2.0 {
		t.Fatalf("expected translation step 2.0, got %v", got)
	}
	if got := f.SteerStepVolts(); got != 5.0 {
		t.Fatalf("expected steer step 5.0, got %v", got)
	}
}

func TestControlPeriodFloor(t *testing.T) {
	f := NewFileFromConfig(&RawFileConfig{ControlPeriodMS: ptr.To(0)}, "")
	if got := f.ControlPeriod(); got != time.Millisecond {
		t.Fatalf("expected control period floored to 1ms, got %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}
	if got := f.DefaultRoutine(); got != "translation" {
		t.Fatalf("expected defaults for missing file, got routine %q", got)
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if _, err := NewFile(path); err == nil {
		t.Fatalf("expected error for malformed config file")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	f, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}

	f.SetDefaultRoutine("rotation")
	f.SetCron("0 3 * * 6")
	if err := f.Save(); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	g, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile returned error: %v", err)
	}
	if got := g.DefaultRoutine(); got != "rotation" {
		t.Fatalf("expected routine rotation after reload, got %q", got)
	}
	if got := g.Cron(); got != "0 3 * * 6" {
		t.Fatalf("expected cron preserved after reload, got %q", got)
	}
	// Untouched fields still fall back to defaults.
	if got := g.ControlPeriod(); got != 20*time.Millisecond {
		t.Fatalf("expected default control period after reload, got %v", got)
	}
}
