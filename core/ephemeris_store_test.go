package core

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/signalsfoundry/ephemeris-store/model"
)

const (
	orbitRadius = 26560e3            // m, roughly GPS MEO
	orbitRate   = 2 * math.Pi / 86164 // rad/s
	dayStep     = 900.0
	dayFinal    = 85500.0 // 23:45:00
)

func orbitPos(s float64) model.Triple {
	return model.Triple{
		X: orbitRadius * math.Cos(orbitRate*s),
		Y: orbitRadius * math.Sin(orbitRate*s),
		Z: 0.1 * orbitRadius * math.Sin(2*orbitRate*s),
	}
}

func orbitVel(s float64) model.Triple {
	return model.Triple{
		X: -orbitRadius * orbitRate * math.Sin(orbitRate*s),
		Y: orbitRadius * orbitRate * math.Cos(orbitRate*s),
		Z: 0.2 * orbitRadius * orbitRate * math.Cos(2*orbitRate*s),
	}
}

// dayStore fills a store with one satellite sampled every 900 s from
// 00:00:00 through 23:45:00 on a smooth orbit plus a linear clock. skip
// drops the position sample at that many seconds (negative keeps all).
func dayStore(t *testing.T, skip float64) *Store {
	t.Helper()
	s := New()
	for sec := 0.0; sec <= dayFinal; sec += dayStep {
		if sec != skip {
			err := s.AddPositionRecord(testSat, gpsAt(sec), model.PositionRecord{
				Pos:    orbitPos(sec),
				SigPos: model.Triple{X: 0.02, Y: 0.02, Z: 0.02},
				Vel:    orbitVel(sec).Scale(10), // dm/s
			})
			if err != nil {
				t.Fatalf("AddPositionRecord: %v", err)
			}
		}
		err := s.AddClockRecord(testSat, gpsAt(sec), model.ClockRecord{
			Bias: 1e-4 + 2e-9*sec,
		})
		if err != nil {
			t.Fatalf("AddClockRecord: %v", err)
		}
	}
	return s
}

// neville evaluates the interpolating polynomial through (ts, ys) at t; an
// independent check on the production Lagrange path.
func neville(ts, ys []float64, t float64) float64 {
	p := append([]float64(nil), ys...)
	n := len(p)
	for m := 1; m < n; m++ {
		for i := 0; i < n-m; i++ {
			p[i] = ((t-ts[i+m])*p[i] + (ts[i]-t)*p[i+1]) / (ts[i] - ts[i+m])
		}
	}
	return p[0]
}

func TestGetXvtOnSampleInstant(t *testing.T) {
	s := dayStore(t, -1)

	xvt, err := s.GetXvt(testSat, gpsAt(43200)) // 12:00:00
	if err != nil {
		t.Fatalf("GetXvt: %v", err)
	}
	want := orbitPos(43200)
	if math.Abs(xvt.Pos.X-want.X) > 1e-6 || math.Abs(xvt.Pos.Y-want.Y) > 1e-6 || math.Abs(xvt.Pos.Z-want.Z) > 1e-6 {
		t.Errorf("position = %v, want %v", xvt.Pos, want)
	}
	if wantBias := 1e-4 + 2e-9*43200; math.Abs(xvt.ClockBias-wantBias) > 1e-15 {
		t.Errorf("clock bias = %v, want %v", xvt.ClockBias, wantBias)
	}
	if xvt.Health != model.HealthUnused {
		t.Errorf("health = %v, want Unused", xvt.Health)
	}
}

func TestGetXvtBetweenSamples(t *testing.T) {
	s := dayStore(t, -1)

	const at = 42750.0 // 11:52:30, midway between samples
	xvt, err := s.GetXvt(testSat, gpsAt(at))
	if err != nil {
		t.Fatalf("GetXvt: %v", err)
	}

	// reference value: independent interpolation over the same ten samples
	// (five each side of the bracket)
	var ts, xs []float64
	for sec := 38700.0; sec <= 46800; sec += dayStep {
		ts = append(ts, sec)
		xs = append(xs, orbitPos(sec).X)
	}
	if want := neville(ts, xs, at); math.Abs(xvt.Pos.X-want) > 1e-6 {
		t.Errorf("Pos.X = %v, want reference %v", xvt.Pos.X, want)
	}

	// an order-10 fit is not the linear midpoint on a curved orbit
	linear := (orbitPos(42300).X + orbitPos(43200).X) / 2
	if math.Abs(xvt.Pos.X-linear) < 1.0 {
		t.Errorf("Pos.X = %v suspiciously close to linear midpoint %v", xvt.Pos.X, linear)
	}
}

func TestGetXvtOutOfRange(t *testing.T) {
	s := dayStore(t, -1)

	_, err := s.GetXvt(testSat, gpsAt(85800)) // 23:50:00
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("err = %v, want ErrOutOfRange", err)
	}
}

func TestGetXvtDataGapThreshold(t *testing.T) {
	// drop the 12:00:00 sample: queries near 11:52:30 now sit in a 1800 s
	// hole of a 900 s series
	s := dayStore(t, 43200)

	s.SetPositionGapInterval(2.0)
	if _, err := s.GetXvt(testSat, gpsAt(42750)); err != nil {
		t.Errorf("gap ratio exactly 2.0 with threshold 2.0: err = %v, want nil", err)
	}

	s.SetPositionGapInterval(1.5)
	if _, err := s.GetXvt(testSat, gpsAt(42750)); !errors.Is(err, ErrDataGap) {
		t.Errorf("gap ratio 2.0 with threshold 1.5: err = %v, want ErrDataGap", err)
	}
}

func TestWholeSpanIsServable(t *testing.T) {
	s := dayStore(t, -1)

	first, err := s.InitialTime()
	if err != nil {
		t.Fatalf("InitialTime: %v", err)
	}
	last, err := s.FinalTime()
	if err != nil {
		t.Fatalf("FinalTime: %v", err)
	}
	for at := first; !at.After(last); at = at.Add(450) {
		if _, err := s.GetXvt(testSat, at); err != nil {
			t.Fatalf("GetXvt at %s: %v", at, err)
		}
	}
}

func TestComputeXvtFlattensFailures(t *testing.T) {
	s := dayStore(t, -1)

	if xvt := s.ComputeXvt(testSat, gpsAt(43200)); xvt.Health != model.HealthUnused {
		t.Errorf("health on success = %v, want Unused", xvt.Health)
	}
	if xvt := s.ComputeXvt(testSat, gpsAt(90000)); xvt.Health != model.HealthUnavailable {
		t.Errorf("health out of range = %v, want Unavailable", xvt.Health)
	}
	unknown := model.SatelliteID{System: model.SystemGPS, ID: 31}
	if xvt := s.ComputeXvt(unknown, gpsAt(43200)); xvt.Health != model.HealthUnavailable {
		t.Errorf("health for unknown sat = %v, want Unavailable", xvt.Health)
	}
}

func TestUnknownSatellite(t *testing.T) {
	s := dayStore(t, -1)
	// present in the position series only
	other := model.SatelliteID{System: model.SystemGPS, ID: 2}
	if err := s.AddPositionRecord(other, gpsAt(0), model.PositionRecord{Pos: model.Triple{X: 1, Y: 1, Z: 1}}); err != nil {
		t.Fatalf("AddPositionRecord: %v", err)
	}

	_, err := s.GetXvt(other, gpsAt(0))
	if !errors.Is(err, ErrUnknownSatellite) {
		t.Errorf("err = %v, want ErrUnknownSatellite", err)
	}
}

func TestCompositeBoundsAreIntersection(t *testing.T) {
	s := New()
	for sec := 0.0; sec <= 9000; sec += dayStep {
		if err := s.AddPositionRecord(testSat, gpsAt(sec), model.PositionRecord{Pos: orbitPos(sec)}); err != nil {
			t.Fatalf("AddPositionRecord: %v", err)
		}
	}
	for sec := 3600.0; sec <= 12600; sec += dayStep {
		if err := s.AddClockRecord(testSat, gpsAt(sec), model.ClockRecord{Bias: 1e-4}); err != nil {
			t.Fatalf("AddClockRecord: %v", err)
		}
	}

	first, err := s.InitialTime()
	if err != nil || !first.Equal(gpsAt(3600)) {
		t.Errorf("InitialTime = %s, %v; want 3600", first, err)
	}
	last, err := s.FinalTime()
	if err != nil || !last.Equal(gpsAt(9000)) {
		t.Errorf("FinalTime = %s, %v; want 9000", last, err)
	}
}

func TestClockSourceSwitchClearsClockSeries(t *testing.T) {
	s := dayStore(t, -1)
	if n := s.Clock().Count(); n == 0 {
		t.Fatalf("clock series empty before switch")
	}

	s.UseOverrideClock()
	if s.ClockFromPrimary() {
		t.Errorf("ClockFromPrimary = true after switch")
	}
	if n := s.Clock().Count(); n != 0 {
		t.Errorf("clock series has %d samples after switch, want 0", n)
	}
	if n := s.Position().Count(); n == 0 {
		t.Errorf("position series emptied by clock source switch")
	}

	// switching again is a no-op
	s.AddClockRecord(testSat, gpsAt(0), model.ClockRecord{Bias: 1})
	s.UseOverrideClock()
	if n := s.Clock().Count(); n != 1 {
		t.Errorf("no-op switch cleared the clock series")
	}

	s.UsePrimaryClock()
	if !s.ClockFromPrimary() || s.Clock().Count() != 0 {
		t.Errorf("switch back: fromPrimary=%v count=%d", s.ClockFromPrimary(), s.Clock().Count())
	}
}

func TestOverrideClockCoverageLimitsQueries(t *testing.T) {
	s := New()
	for sec := 0.0; sec <= dayFinal; sec += dayStep {
		if err := s.AddPositionRecord(testSat, gpsAt(sec), model.PositionRecord{Pos: orbitPos(sec)}); err != nil {
			t.Fatalf("AddPositionRecord: %v", err)
		}
	}
	s.UseOverrideClock()
	// override clocks cover only the first six hours, at 30 s
	for sec := 0.0; sec <= 21600; sec += 30 {
		if err := s.AddClockRecord(testSat, gpsAt(sec), model.ClockRecord{Bias: 1e-4}); err != nil {
			t.Fatalf("AddClockRecord: %v", err)
		}
	}

	if _, err := s.GetXvt(testSat, gpsAt(10000)); err != nil {
		t.Fatalf("query inside override coverage: %v", err)
	}
	_, err := s.GetXvt(testSat, gpsAt(43200))
	if !errors.Is(err, ErrOutOfRange) {
		t.Errorf("query outside clock coverage: err = %v, want ErrOutOfRange", err)
	}
}

func TestDirectAddsFixTimeSystem(t *testing.T) {
	s := New()
	if s.TimeSystem() != model.TimeAny {
		t.Fatalf("fresh store time system = %v, want Any", s.TimeSystem())
	}
	if err := s.AddPositionRecord(testSat, gpsAt(0), model.PositionRecord{}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if s.TimeSystem() != model.TimeGPS {
		t.Errorf("time system = %v, want GPS", s.TimeSystem())
	}

	utc := model.NewInstant(seriesBase, model.TimeUTC)
	if err := s.AddClockRecord(testSat, utc, model.ClockRecord{}); !errors.Is(err, ErrTimeSystemMismatch) {
		t.Errorf("cross-system add: err = %v, want ErrTimeSystemMismatch", err)
	}
}

func TestClearKeepsConfiguration(t *testing.T) {
	s := dayStore(t, -1)
	s.SetPositionInterpOrder(12)
	s.SetClockInterpolation(ClockLinear)
	s.SetPositionGapInterval(2.5)

	s.Clear()
	if s.Count() != 0 || s.Clock().Count() != 0 {
		t.Fatalf("Clear left data behind")
	}
	if s.TimeSystem() != model.TimeAny {
		t.Errorf("time system after Clear = %v, want Any", s.TimeSystem())
	}
	if s.PositionInterpOrder() != 12 {
		t.Errorf("position order after Clear = %d, want 12", s.PositionInterpOrder())
	}
	if s.ClockInterpolation() != ClockLinear {
		t.Errorf("clock interpolation after Clear = %v, want Linear", s.ClockInterpolation())
	}
	if s.Position().GapInterval() != 2.5 {
		t.Errorf("gap interval after Clear = %v, want 2.5", s.Position().GapInterval())
	}
}

func TestEditTrimsBothSeries(t *testing.T) {
	s := dayStore(t, -1)
	s.Edit(gpsAt(3600), gpsAt(7200))

	first, _ := s.InitialTime()
	last, _ := s.FinalTime()
	if !first.Equal(gpsAt(3600)) || !last.Equal(gpsAt(7200)) {
		t.Errorf("bounds after Edit = %s .. %s", first, last)
	}
}

func TestDumpSummarizesStore(t *testing.T) {
	s := dayStore(t, -1)

	var sb strings.Builder
	s.Dump(&sb, 1)
	out := sb.String()
	for _, want := range []string{"Ephemeris store", "Position store", "Clock store", "G01"} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}

func TestGetVelocityAndAcceleration(t *testing.T) {
	s := dayStore(t, -1)

	const at = 43200.0
	vel, err := s.GetVelocity(testSat, gpsAt(at))
	if err != nil {
		t.Fatalf("GetVelocity: %v", err)
	}
	// stored dm/s velocities come back in m/s: x'(t) = -R w sin(wt)
	wantVx := -orbitRadius * orbitRate * math.Sin(orbitRate*at)
	if math.Abs(vel.X-wantVx) > 1e-3 {
		t.Errorf("Vel.X = %v, want ~%v", vel.X, wantVx)
	}

	acc, err := s.GetAcceleration(testSat, gpsAt(at))
	if err != nil {
		t.Fatalf("GetAcceleration: %v", err)
	}
	wantAx := -orbitRadius * orbitRate * orbitRate * math.Cos(orbitRate*at)
	if math.Abs(acc.X-wantAx) > 1e-3 {
		t.Errorf("Accel.X = %v, want ~%v", acc.X, wantAx)
	}
}
