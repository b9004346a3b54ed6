package synthetic

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/signalsfoundry/ephemeris-store/core"
	"github.com/signalsfoundry/ephemeris-store/model"
)

// ISS TLE; any valid element set will do for generator plumbing.
const (
	issTLE1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issTLE2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

var genSat = model.SatelliteID{System: model.SystemGPS, ID: 7}

func genConfig(count int, step time.Duration) Config {
	return Config{
		Start:        time.Date(2021, 10, 2, 12, 0, 0, 0, time.UTC),
		Step:         step,
		Count:        count,
		System:       model.TimeGPS,
		WithVelocity: true,
		WithDrift:    true,
		Orbits: []Orbit{{
			Sat:        genSat,
			TLE1:       issTLE1,
			TLE2:       issTLE2,
			ClockBias:  2.5e-5,
			ClockDrift: 1.0e-10,
		}},
	}
}

func TestSourceFeedsStoreThroughLoader(t *testing.T) {
	src, err := NewSource(genConfig(12, 900*time.Second))
	if err != nil {
		t.Fatalf("NewSource: %v", err)
	}

	store := core.New()
	sum, err := core.NewLoader(store).Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sum.PositionsAdded != 12 || sum.ClocksAdded != 12 {
		t.Fatalf("summary = %+v, want 12 positions and 12 clocks", sum)
	}
	if store.TimeSystem() != model.TimeGPS {
		t.Errorf("time system = %v, want GPS", store.TimeSystem())
	}
	if !store.HasVelocity() || !store.HasClockDrift() {
		t.Errorf("optional fields lost: hasVel=%v hasDrift=%v", store.HasVelocity(), store.HasClockDrift())
	}

	// every generated position should sit near the ISS orbital radius
	at := model.NewInstant(time.Date(2021, 10, 2, 12, 0, 0, 0, time.UTC), model.TimeGPS)
	rec, ok := store.Position().Record(genSat, at)
	if !ok {
		t.Fatalf("first sample missing")
	}
	r := math.Sqrt(rec.Pos.X*rec.Pos.X + rec.Pos.Y*rec.Pos.Y + rec.Pos.Z*rec.Pos.Z)
	if r < 6.5e6 || r > 7.1e6 {
		t.Errorf("orbital radius = %v m, want ~6.8e6", r)
	}

	// interpolated state mid-span
	mid := at.Add(5 * 900)
	xvt, err := store.GetXvt(genSat, mid)
	if err != nil {
		t.Fatalf("GetXvt: %v", err)
	}
	if wantBias := 2.5e-5 + 1.0e-10*4500; math.Abs(xvt.ClockBias-wantBias) > 1e-13 {
		t.Errorf("clock bias = %v, want %v", xvt.ClockBias, wantBias)
	}
}

func TestClockSourceIsOverrideFormat(t *testing.T) {
	src, err := NewClockSource(genConfig(4, 30*time.Second))
	if err != nil {
		t.Fatalf("NewClockSource: %v", err)
	}
	if src.Format() != core.FormatOverride {
		t.Fatalf("format = %v, want override", src.Format())
	}

	store := core.New()
	sum, err := core.NewLoader(store).Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(sum.Warnings) != 1 {
		t.Errorf("warnings = %v, want the implicit source switch", sum.Warnings)
	}
	if store.ClockFromPrimary() {
		t.Errorf("store still on primary clock source")
	}
	if n := store.Clock().Count(); n != 4 {
		t.Errorf("clock samples = %d, want 4", n)
	}
}

func TestSourceValidatesConfig(t *testing.T) {
	if _, err := NewSource(Config{}); err == nil {
		t.Errorf("empty config accepted")
	}
	cfg := genConfig(4, 900*time.Second)
	cfg.Orbits[0].TLE1 = ""
	if _, err := NewSource(cfg); err == nil {
		t.Errorf("missing TLE accepted")
	}
}
