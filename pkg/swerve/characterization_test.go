package swerve

import (
	"math"
	"testing"
	"time"

	"github.com/robostack/swervechar/pkg/sysid"
)

// captureSink records telemetry writes in order.
type captureSink struct {
	strings map[string][]string
	doubles map[string][]float64
}

func newCaptureSink() *captureSink {
	return &captureSink{
		strings: make(map[string][]string),
		doubles: make(map[string][]float64),
	}
}

func (s *captureSink) WriteString(key, value string) {
	s.strings[key] = append(s.strings[key], value)
}

func (s *captureSink) WriteDouble(key string, value float64) {
	s.doubles[key] = append(s.doubles[key], value)
}

// captureApply records drivetrain requests in order.
type captureApply struct {
	requests []Request
}

func (a *captureApply) apply(r Request) {
	a.requests = append(a.requests, r)
}

func newTestCharacterization(t *testing.T, opts Options) (*Characterization, *captureApply) {
	t.Helper()
	ca := &captureApply{}
	char, err := NewCharacterization(ca.apply, "drivetrain", opts)
	if err != nil {
		t.Fatalf("NewCharacterization returned error: %v", err)
	}
	return char, ca
}

func TestNewCharacterizationValidation(t *testing.T) {
	if _, err := NewCharacterization(nil, "drivetrain", Options{}); err == nil {
		t.Fatalf("expected error for nil apply function")
	}
	if _, err := NewCharacterization(func(Request) {}, nil, Options{}); err == nil {
		t.Fatalf("expected error for nil resource")
	}
}

func TestDefaultActiveRoutineIsTranslation(t *testing.T) {
	char, _ := newTestCharacterization(t, Options{})
	if got := char.ActiveRoutine(); got != RoutineTranslation {
		t.Fatalf("expected default active routine %q, got %q", RoutineTranslation, got)
	}
}

func TestSetActiveRoutine(t *testing.T) {
	char, _ := newTestCharacterization(t, Options{})

	for _, kind := range RoutineKinds() {
		if err := char.SetActiveRoutine(kind); err != nil {
			t.Fatalf("SetActiveRoutine(%q) returned error: %v", kind, err)
		}
		if got := char.ActiveRoutine(); got != kind {
			t.Fatalf("expected active routine %q, got %q", kind, got)
		}
	}

	if err := char.SetActiveRoutine("heave"); err == nil {
		t.Fatalf("expected error for unknown routine kind")
	}
	// A failed set must not change the selection.
	if got := char.ActiveRoutine(); got != RoutineRotation {
		t.Fatalf("expected active routine unchanged after failed set, got %q", got)
	}
}

func TestParseRoutineKind(t *testing.T) {
	for _, kind := range RoutineKinds() {
		got, err := ParseRoutineKind(string(kind))
		if err != nil {
			t.Fatalf("ParseRoutineKind(%q) returned error: %v", kind, err)
		}
		if got != kind {
			t.Fatalf("expected %q, got %q", kind, got)
		}
	}
	if _, err := ParseRoutineKind("Translation"); err == nil {
		t.Fatalf("expected error for wrong-case input")
	}
	if _, err := ParseRoutineKind(""); err == nil {
		t.Fatalf("expected error for empty input")
	}
}

func TestFactoriesBindRoutineAtCallTime(t *testing.T) {
	char, ca := newTestCharacterization(t, Options{})

	if err := char.SetActiveRoutine(RoutineSteer); err != nil {
		t.Fatalf("SetActiveRoutine returned error: %v", err)
	}
	test := char.Dynamic(sysid.Forward)

	// Changing the selection afterwards must not re-bind the produced test.
	if err := char.SetActiveRoutine(RoutineRotation); err != nil {
		t.Fatalf("SetActiveRoutine returned error: %v", err)
	}

	start := time.Now()
	test.Init(start)
	test.Execute(start)

	if len(ca.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ca.requests))
	}
	req, ok := ca.requests[0].(SteerCharacterization)
	if !ok {
		t.Fatalf("expected SteerCharacterization request, got %T", ca.requests[0])
	}
	if req.Volts != SteerStepVolts {
		t.Fatalf("expected steer step %v V, got %v", SteerStepVolts, req.Volts)
	}
}

func TestFactoriesReturnFreshInstances(t *testing.T) {
	char, _ := newTestCharacterization(t, Options{})

	if char.Quasistatic(sysid.Forward) == char.Quasistatic(sysid.Forward) {
		t.Fatalf("expected distinct quasistatic test instances")
	}
	if char.Dynamic(sysid.Reverse) == char.Dynamic(sysid.Reverse) {
		t.Fatalf("expected distinct dynamic test instances")
	}
}

func TestTestsDeclareSharedResource(t *testing.T) {
	char, _ := newTestCharacterization(t, Options{})

	for _, kind := range RoutineKinds() {
		if err := char.SetActiveRoutine(kind); err != nil {
			t.Fatalf("SetActiveRoutine returned error: %v", err)
		}
		if got := char.Quasistatic(sysid.Forward).Resource(); got != "drivetrain" {
			t.Fatalf("%s: expected resource %q, got %v", kind, "drivetrain", got)
		}
	}
}

func TestTranslationQuasistaticRampsMonotonically(t *testing.T) {
	char, ca := newTestCharacterization(t, Options{})

	test := char.Quasistatic(sysid.Forward)
	start := time.Now()
	test.Init(start)
	for i := 1; i <= 10; i++ {
		test.Execute(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}
	test.End(false)

	// The trailing request is the End safety zero; everything before it
	// must be a strictly increasing translation voltage.
	if len(ca.requests) != 11 {
		t.Fatalf("expected 11 requests, got %d", len(ca.requests))
	}
	prev := 0.0
	for i, r := range ca.requests[:10] {
		req, ok := r.(TranslationCharacterization)
		if !ok {
			t.Fatalf("request %d: expected TranslationCharacterization, got %T", i, r)
		}
		if req.Volts <= prev {
			t.Fatalf("request %d: expected voltage above %v, got %v", i, prev, req.Volts)
		}
		prev = req.Volts
	}
	last, ok := ca.requests[10].(TranslationCharacterization)
	if !ok || last.Volts != 0 {
		t.Fatalf("expected trailing zero-volt request, got %#v", ca.requests[10])
	}
}

func TestRotationDynamicStepAndRateMirror(t *testing.T) {
	sink := newCaptureSink()
	char, ca := newTestCharacterization(t, Options{Sink: sink})

	if err := char.SetActiveRoutine(RoutineRotation); err != nil {
		t.Fatalf("SetActiveRoutine returned error: %v", err)
	}

	test := char.Dynamic(sysid.Forward)
	start := time.Now()
	test.Init(start)
	test.Execute(start)
	test.End(false)

	if len(ca.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(ca.requests))
	}
	req, ok := ca.requests[0].(RotationCharacterization)
	if !ok {
		t.Fatalf("expected RotationCharacterization request, got %T", ca.requests[0])
	}
	if math.Abs(req.RadPerSec-math.Pi) > 1e-9 {
		t.Fatalf("expected rotation step %v rad/s, got %v", math.Pi, req.RadPerSec)
	}

	rates := sink.doubles["Rotational_Rate"]
	if len(rates) != 2 || math.Abs(rates[0]-math.Pi) > 1e-9 || rates[1] != 0 {
		t.Fatalf("expected rotational rate mirror [pi, 0], got %v", rates)
	}
}

func TestStateLabelsReachRoutineKeys(t *testing.T) {
	sink := newCaptureSink()
	char, _ := newTestCharacterization(t, Options{Sink: sink})

	cases := []struct {
		kind RoutineKind
		key  string
	}{
		{RoutineTranslation, "SysIdTranslation_State"},
		{RoutineSteer, "SysIdSteer_State"},
		{RoutineRotation, "SysIdRotation_State"},
	}

	for _, c := range cases {
		if err := char.SetActiveRoutine(c.kind); err != nil {
			t.Fatalf("SetActiveRoutine returned error: %v", err)
		}
		test := char.Quasistatic(sysid.Reverse)
		test.Init(time.Now())
		test.End(true)

		got := sink.strings[c.key]
		want := []string{"quasistatic-reverse", "none"}
		if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("%s: expected states %v under key %q, got %v", c.kind, want, c.key, got)
		}
	}
}

func TestStepOverridesAreClamped(t *testing.T) {
	char, ca := newTestCharacterization(t, Options{
		TranslationStepVolts: 99,
		SteerStepVolts:       2.5,
	})

	test := char.Dynamic(sysid.Forward)
	start := time.Now()
	test.Init(start)
	test.Execute(start)

	req, ok := ca.requests[0].(TranslationCharacterization)
	if !ok {
		t.Fatalf("expected TranslationCharacterization request, got %T", ca.requests[0])
	}
	if req.Volts != TranslationStepVolts {
		t.Fatalf("expected translation step clamped to %v V, got %v", TranslationStepVolts, req.Volts)
	}

	if got := char.Routine(RoutineSteer).StepMagnitude(); got != 2.5 {
		t.Fatalf("expected steer step override 2.5 V, got %v", got)
	}
}
