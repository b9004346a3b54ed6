package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/ephemeris-store/model"
)

// quadratic clock: bias(t) = b0 + d0·t + a0·t²/2
const (
	clkB0 = 1.5e-4
	clkD0 = 2.0e-9
	clkA0 = 4.0e-15
)

func quadClock(withDrift bool, secs []float64) *ClockStore {
	cs := NewClockStore()
	cs.SetInterpolationOrder(6)
	for _, s := range secs {
		rec := model.ClockRecord{
			Bias:    clkB0 + clkD0*s + clkA0*s*s/2,
			SigBias: 1e-11,
		}
		if withDrift {
			rec.Drift = clkD0 + clkA0*s
			rec.SigDrift = 1e-13
		}
		cs.AddRecord(testSat, gpsAt(s), rec, withDrift, false)
	}
	return cs
}

func TestClockBiasLagrange(t *testing.T) {
	cs := quadClock(true, polySecs)

	const at = 2250.0
	v, err := cs.Value(testSat, gpsAt(at))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	want := clkB0 + clkD0*at + clkA0*at*at/2
	if math.Abs(v.Bias-want) > 1e-15 {
		t.Errorf("bias = %v, want %v", v.Bias, want)
	}
	// drift from the stored samples
	if wantDrift := clkD0 + clkA0*at; math.Abs(v.Drift-wantDrift) > 1e-15 {
		t.Errorf("drift = %v, want %v", v.Drift, wantDrift)
	}
}

func TestClockDriftDerivedWhenAbsent(t *testing.T) {
	cs := quadClock(false, polySecs)
	if cs.HasDrift() {
		t.Fatalf("HasDrift = true, want false")
	}

	const at = 2250.0
	v, err := cs.Value(testSat, gpsAt(at))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	want := clkD0 + clkA0*at
	if math.Abs(v.Drift-want) > 1e-12 {
		t.Errorf("derived drift = %v, want %v", v.Drift, want)
	}
}

func TestClockLinearInterpolation(t *testing.T) {
	cs := NewClockStore()
	cs.SetInterpolation(ClockLinear)
	cs.AddRecord(testSat, gpsAt(0), model.ClockRecord{Bias: 1e-4}, false, false)
	cs.AddRecord(testSat, gpsAt(30), model.ClockRecord{Bias: 1.6e-4}, false, false)
	cs.AddRecord(testSat, gpsAt(60), model.ClockRecord{Bias: 1.9e-4}, false, false)

	v, err := cs.Value(testSat, gpsAt(15))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if math.Abs(v.Bias-1.3e-4) > 1e-19 {
		t.Errorf("bias = %v, want 1.3e-4", v.Bias)
	}
	wantSlope := (1.6e-4 - 1e-4) / 30
	if math.Abs(v.Drift-wantSlope) > 1e-19 {
		t.Errorf("drift = %v, want %v", v.Drift, wantSlope)
	}
}

func TestClockLinearIgnoresOrder(t *testing.T) {
	cs := NewClockStore()
	cs.SetInterpolation(ClockLinear)
	cs.SetInterpolationOrder(10)
	// two samples would never satisfy order 10, but linear only needs the
	// bracket
	cs.AddRecord(testSat, gpsAt(0), model.ClockRecord{Bias: 1}, false, false)
	cs.AddRecord(testSat, gpsAt(30), model.ClockRecord{Bias: 2}, false, false)

	if _, err := cs.Value(testSat, gpsAt(15)); err != nil {
		t.Errorf("linear query with 2 samples: %v", err)
	}
}

func TestClockStoredDriftInterpolatedLinearMode(t *testing.T) {
	cs := NewClockStore()
	cs.SetInterpolation(ClockLinear)
	cs.AddRecord(testSat, gpsAt(0), model.ClockRecord{Bias: 1e-4, Drift: 1e-9}, true, false)
	cs.AddRecord(testSat, gpsAt(30), model.ClockRecord{Bias: 1.3e-4, Drift: 3e-9}, true, false)

	v, err := cs.Value(testSat, gpsAt(15))
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if math.Abs(v.Drift-2e-9) > 1e-21 {
		t.Errorf("drift = %v, want 2e-9", v.Drift)
	}
}

func TestClockHasDriftIsMonotone(t *testing.T) {
	cs := NewClockStore()
	cs.AddRecord(testSat, gpsAt(0), model.ClockRecord{Bias: 1, Drift: 1}, true, false)
	if !cs.HasDrift() {
		t.Fatalf("HasDrift after full sample = false")
	}
	cs.AddRecord(testSat, gpsAt(30), model.ClockRecord{Bias: 2}, false, false)
	if cs.HasDrift() {
		t.Fatalf("HasDrift after drift-less sample = true")
	}
	cs.Clear()
	if !cs.HasDrift() {
		t.Errorf("HasDrift not restored by Clear")
	}
}

func TestClockGranularAddMerges(t *testing.T) {
	cs := NewClockStore()
	cs.AddBias(testSat, gpsAt(0), 1e-4, 1e-11)
	cs.AddDrift(testSat, gpsAt(0), 2e-9, 1e-13)
	cs.AddAcceleration(testSat, gpsAt(0), 3e-15, 1e-17)

	rec, ok := cs.Record(testSat, gpsAt(0))
	if !ok {
		t.Fatalf("record missing")
	}
	if rec.Bias != 1e-4 || rec.Drift != 2e-9 || rec.Accel != 3e-15 {
		t.Errorf("merged record = %+v", rec)
	}
	if n := cs.CountFor(testSat); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
