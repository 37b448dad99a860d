package sysid

import (
	"math"
	"testing"
	"time"
)

// recorder captures drive values and state transitions from a test run.
type recorder struct {
	values []float64
	states []State
}

func (r *recorder) mechanism(name string) Mechanism {
	return Mechanism{
		Drive:    func(v float64) { r.values = append(r.values, v) },
		Resource: "drivetrain",
		Name:     name,
	}
}

func (r *recorder) config(conf Config) Config {
	conf.RecordState = func(s State) { r.states = append(r.states, s) }
	return conf
}

func TestNewRoutineValidation(t *testing.T) {
	rec := &recorder{}

	if _, err := NewRoutine(Config{}, Mechanism{Resource: "x", Name: "m"}); err == nil {
		t.Fatalf("expected error for nil drive function")
	}
	if _, err := NewRoutine(Config{}, Mechanism{Drive: func(float64) {}, Name: "m"}); err == nil {
		t.Fatalf("expected error for nil resource")
	}
	if _, err := NewRoutine(Config{RampRate: -1}, rec.mechanism("m")); err == nil {
		t.Fatalf("expected error for negative ramp rate")
	}
	if _, err := NewRoutine(Config{StepMagnitude: -1}, rec.mechanism("m")); err == nil {
		t.Fatalf("expected error for negative step magnitude")
	}
	if _, err := NewRoutine(Config{Timeout: -time.Second}, rec.mechanism("m")); err == nil {
		t.Fatalf("expected error for negative timeout")
	}
}

func TestNewRoutineDefaults(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(Config{}, rec.mechanism("m"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	if r.RampRate() != DefaultRampRate {
		t.Fatalf("expected default ramp rate %v, got %v", DefaultRampRate, r.RampRate())
	}
	if r.StepMagnitude() != DefaultStepMagnitude {
		t.Fatalf("expected default step magnitude %v, got %v", DefaultStepMagnitude, r.StepMagnitude())
	}
	if r.Timeout() != DefaultTimeout {
		t.Fatalf("expected default timeout %v, got %v", DefaultTimeout, r.Timeout())
	}
}

func TestQuasistaticRampMath(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(rec.config(Config{RampRate: 2.0}), rec.mechanism("m"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	test := r.Quasistatic(Forward)
	start := time.Now()
	test.Init(start)

	test.Execute(start)
	test.Execute(start.Add(500 * time.Millisecond))
	test.Execute(start.Add(time.Second))
	test.Execute(start.Add(3 * time.Second))

	want := []float64{0, 1.0, 2.0, 6.0}
	if len(rec.values) != len(want) {
		t.Fatalf("expected %d drive values, got %d: %v", len(want), len(rec.values), rec.values)
	}
	for i, v := range want {
		if math.Abs(rec.values[i]-v) > 1e-9 {
			t.Fatalf("value %d: expected %v, got %v", i, v, rec.values[i])
		}
	}
}

func TestQuasistaticReverseIsNegative(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(rec.config(Config{RampRate: 1.0}), rec.mechanism("m"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	test := r.Quasistatic(Reverse)
	start := time.Now()
	test.Init(start)
	test.Execute(start.Add(2 * time.Second))

	if len(rec.values) != 1 || rec.values[0] != -2.0 {
		t.Fatalf("expected single drive value -2.0, got %v", rec.values)
	}
}

func TestDynamicHoldsStepMagnitude(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(rec.config(Config{StepMagnitude: 4.0}), rec.mechanism("m"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	test := r.Dynamic(Reverse)
	start := time.Now()
	test.Init(start)
	for i := 0; i < 5; i++ {
		test.Execute(start.Add(time.Duration(i) * time.Second))
	}

	if len(rec.values) != 5 {
		t.Fatalf("expected 5 drive values, got %d", len(rec.values))
	}
	for i, v := range rec.values {
		if v != -4.0 {
			t.Fatalf("tick %d: expected -4.0, got %v", i, v)
		}
	}
}

func TestIsFinishedAtTimeout(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(Config{Timeout: 2 * time.Second}, rec.mechanism("m"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	test := r.Quasistatic(Forward)
	start := time.Now()
	test.Init(start)

	if test.IsFinished(start.Add(time.Second)) {
		t.Fatalf("test should not be finished before timeout")
	}
	if !test.IsFinished(start.Add(2 * time.Second)) {
		t.Fatalf("test should be finished at timeout")
	}
}

func TestEndZeroesOutputAndRecordsNone(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(rec.config(Config{}), rec.mechanism("m"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	test := r.Dynamic(Forward)
	start := time.Now()
	test.Init(start)
	test.Execute(start)
	test.End(true)

	if rec.values[len(rec.values)-1] != 0 {
		t.Fatalf("expected final drive value 0, got %v", rec.values[len(rec.values)-1])
	}
	if rec.states[len(rec.states)-1] != StateNone {
		t.Fatalf("expected final state %q, got %q", StateNone, rec.states[len(rec.states)-1])
	}

	// End is idempotent and Execute after End is a no-op.
	n := len(rec.values)
	test.End(false)
	test.Execute(start.Add(time.Second))
	if len(rec.values) != n {
		t.Fatalf("expected no further drive output after End, got %v", rec.values[n:])
	}
}

func TestStateLabels(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(rec.config(Config{}), rec.mechanism("m"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	cases := []struct {
		test *Test
		want State
	}{
		{r.Quasistatic(Forward), StateQuasistaticForward},
		{r.Quasistatic(Reverse), StateQuasistaticReverse},
		{r.Dynamic(Forward), StateDynamicForward},
		{r.Dynamic(Reverse), StateDynamicReverse},
	}

	for _, c := range cases {
		rec.states = nil
		c.test.Init(time.Now())
		if len(rec.states) != 1 || rec.states[0] != c.want {
			t.Fatalf("%s: expected state %q on init, got %v", c.test.Name(), c.want, rec.states)
		}
	}
}

func TestFactoriesReturnFreshTests(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(Config{}, rec.mechanism("m"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	a := r.Quasistatic(Forward)
	b := r.Quasistatic(Forward)
	if a == b {
		t.Fatalf("expected distinct test instances from repeated factory calls")
	}

	// Ending one instance must not affect the other.
	start := time.Now()
	a.Init(start)
	b.Init(start)
	a.End(true)
	if b.IsFinished(start) {
		t.Fatalf("ending one test should not finish another")
	}
}

func TestTestName(t *testing.T) {
	rec := &recorder{}
	r, err := NewRoutine(Config{}, rec.mechanism("steer"))
	if err != nil {
		t.Fatalf("NewRoutine returned error: %v", err)
	}

	if got := r.Quasistatic(Reverse).Name(); got != "steer-quasistatic-reverse" {
		t.Fatalf("unexpected test name: %q", got)
	}
	if got := r.Dynamic(Forward).Name(); got != "steer-dynamic-forward" {
		t.Fatalf("unexpected test name: %q", got)
	}
}
