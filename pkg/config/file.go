package config

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/robostack/swervechar/pkg/utils/ptr"
)

// Hard ceilings for the dynamic step amplitudes. Config values above them
// are clamped, never honored: stepping every motor at once above these
// collapses the battery voltage.
const (
	maxTranslationStepVolts = 4.0
	maxSteerStepVolts       = 7.0
)

var defaultFileConfig = &RawFileConfig{
	ControlPeriodMS:      ptr.To(20),
	DefaultRoutine:       ptr.To("translation"),
	Cron:                 ptr.To(""),
	MQTTBroker:           ptr.To(""),
	MQTTTopicPrefix:      ptr.To("swervechar"),
	TranslationStepVolts: ptr.To(maxTranslationStepVolts),
	SteerStepVolts:       ptr.To(maxSteerStepVolts),
}

var _ Config = &File{}

// File is a Config backed by a JSON file.
type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

// NewFile loads the config at configPath, creating defaults in memory if the
// file does not exist yet.
func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	if err := f.Load(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFileFromConfig wraps an in-memory raw config, mainly for tests.
func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = defaultFileConfig
	}
	return &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}
}

// RawFileConfig is the JSON shape of the config file. Pointer fields
// distinguish "unset, use default" from explicit zero values.
type RawFileConfig struct {
	ControlPeriodMS      *int     `json:"controlPeriodMs,omitempty"`
	DefaultRoutine       *string  `json:"defaultRoutine,omitempty"`
	Cron                 *string  `json:"cron,omitempty"`
	MQTTBroker           *string  `json:"mqttBroker,omitempty"`
	MQTTTopicPrefix      *string  `json:"mqttTopicPrefix,omitempty"`
	TranslationStepVolts *float64 `json:"translationStepVolts,omitempty"`
	SteerStepVolts       *float64 `json:"steerStepVolts,omitempty"`
}

func (f *File) ControlPeriod() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ms := *defaultFileConfig.ControlPeriodMS
	if f.c.ControlPeriodMS != nil {
		ms = *f.c.ControlPeriodMS
	}
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

func (f *File) DefaultRoutine() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.DefaultRoutine != nil {
		return *f.c.DefaultRoutine
	}
	return *defaultFileConfig.DefaultRoutine
}

func (f *File) Cron() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Cron != nil {
		return *f.c.Cron
	}
	return *defaultFileConfig.Cron
}

func (f *File) MQTTBroker() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.MQTTBroker != nil {
		return *f.c.MQTTBroker
	}
	return *defaultFileConfig.MQTTBroker
}

func (f *File) MQTTTopicPrefix() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.MQTTTopicPrefix != nil {
		return *f.c.MQTTTopicPrefix
	}
	return *defaultFileConfig.MQTTTopicPrefix
}

func (f *File) TranslationStepVolts() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v := *defaultFileConfig.TranslationStepVolts
	if f.c.TranslationStepVolts != nil {
		v = *f.c.TranslationStepVolts
	}
	if v <= 0 || v > maxTranslationStepVolts {
		return maxTranslationStepVolts
	}
	return v
}

func (f *File) SteerStepVolts() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v := *defaultFileConfig.SteerStepVolts
	if f.c.SteerStepVolts != nil {
		v = *f.c.SteerStepVolts
	}
	if v <= 0 || v > maxSteerStepVolts {
		return maxSteerStepVolts
	}
	return v
}

func (f *File) SetDefaultRoutine(routine string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.DefaultRoutine = ptr.To(routine)
}

func (f *File) SetCron(cron string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.c.Cron = ptr.To(cron)
}

// LogrusFields renders the effective config for the startup log line.
func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"controlPeriod":        f.ControlPeriod().String(),
		"defaultRoutine":       f.DefaultRoutine(),
		"cron":                 f.Cron(),
		"mqttBroker":           f.MQTTBroker(),
		"mqttTopicPrefix":      f.MQTTTopicPrefix(),
		"translationStepVolts": f.TranslationStepVolts(),
		"steerStepVolts":       f.SteerStepVolts(),
	}
}

// Load reads the config file. A missing file leaves the defaults in place.
func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			logrus.WithField("path", f.filepath).Debug("config file does not exist, using defaults")
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open config file %s", f.filepath)
	}
	defer file.Close()

	b, err := io.ReadAll(file)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read config file %s", f.filepath)
	}

	c := &RawFileConfig{}
	if err := json.Unmarshal(b, c); err != nil {
		return pkgerrors.Wrapf(err, "failed to parse config file %s", f.filepath)
	}
	f.c = c
	return nil
}

// Save writes the config file with indentation so it stays hand-editable.
func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	b, err := json.MarshalIndent(f.c, "", "  ")
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal config")
	}
	if err := os.WriteFile(f.filepath, b, 0644); err != nil {
		return pkgerrors.Wrapf(err, "failed to write config file %s", f.filepath)
	}
	return nil
}
