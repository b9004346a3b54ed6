package core

import (
	"github.com/signalsfoundry/ephemeris-store/model"
)

// velScale converts the tabulated dm/s velocities to m/s.
const velScale = 0.1

// PositionValue is the result of a position-store query: position and sigma
// in metres, velocity and sigma in m/s, acceleration in m/s².
type PositionValue struct {
	Pos    model.Triple
	SigPos model.Triple
	Vel    model.Triple
	SigVel model.Triple
	Accel  model.Triple
}

// PositionStore holds the tabulated ephemeris samples of all satellites and
// interpolates position, velocity and acceleration at arbitrary instants.
type PositionStore struct {
	tab    *table[model.PositionRecord]
	order  int
	hasVel bool
}

// NewPositionStore returns an empty position store with the default
// interpolation order of 10.
func NewPositionStore() *PositionStore {
	return &PositionStore{tab: newTable[model.PositionRecord](), order: 10, hasVel: true}
}

// SetInterpolationOrder sets the Lagrange order; odd values round up to the
// next even value.
func (ps *PositionStore) SetInterpolationOrder(order int) {
	ps.order = evenOrder(order)
}

func (ps *PositionStore) InterpolationOrder() int { return ps.order }

// SetGapInterval enables the data-gap check with the given multiple of the
// nominal step; a non-positive value disables it.
func (ps *PositionStore) SetGapInterval(factor float64) {
	if factor < 0 {
		factor = 0
	}
	ps.tab.gapFactor = factor
}

func (ps *PositionStore) GapInterval() float64 { return ps.tab.gapFactor }

// SetMaxInterval enables the max-interval check with the given multiple of
// the nominal step; a non-positive value disables it.
func (ps *PositionStore) SetMaxInterval(factor float64) {
	if factor < 0 {
		factor = 0
	}
	ps.tab.maxFactor = factor
}

func (ps *PositionStore) MaxInterval() float64 { return ps.tab.maxFactor }

// HasVelocity reports whether every ingested sample carried a velocity. Once
// a velocity-less sample arrives the flag stays false until Clear.
func (ps *PositionStore) HasVelocity() bool { return ps.hasVel }

// AddRecord inserts or replaces the sample at (sat, at). velocityPresent
// tells the store whether the producer supplied a velocity for this sample;
// the record itself is stored as given either way.
func (ps *PositionStore) AddRecord(sat model.SatelliteID, at model.Instant, rec model.PositionRecord, velocityPresent bool) {
	if !velocityPresent {
		ps.hasVel = false
	}
	ps.tab.add(sat, at, rec)
}

// AddPositionData merges position and sigma into the sample at (sat, at),
// creating it when absent. The sample counts as velocity-less.
func (ps *PositionStore) AddPositionData(sat model.SatelliteID, at model.Instant, pos, sig model.Triple) {
	rec, _ := ps.tab.lookup(sat, at)
	rec.Pos, rec.SigPos = pos, sig
	ps.AddRecord(sat, at, rec, false)
}

// AddVelocityData merges velocity (dm/s) and sigma into the sample at
// (sat, at), creating it when absent. It does not restore the has-velocity
// flag: presence is judged per complete sample at ingestion.
func (ps *PositionStore) AddVelocityData(sat model.SatelliteID, at model.Instant, vel, sig model.Triple) {
	rec, _ := ps.tab.lookup(sat, at)
	rec.Vel, rec.SigVel = vel, sig
	ps.tab.add(sat, at, rec)
}

// Value interpolates the store at (sat, at). Position comes from Lagrange
// interpolation of the coordinate series; velocity from the stored samples
// when every sample carries one, otherwise from the analytic derivative of
// the position polynomial; acceleration always from the second derivative.
func (ps *PositionStore) Value(sat model.SatelliteID, at model.Instant) (PositionValue, error) {
	win, err := ps.tab.window(sat, at, ps.order)
	if err != nil {
		return PositionValue{}, err
	}

	n := len(win)
	ts := make([]float64, n)
	for i := range win {
		ts[i] = win[i].at.Sub(win[0].at)
	}
	tt := at.Sub(win[0].at)

	var out PositionValue
	ys := make([]float64, n)
	axes := []struct {
		get func(model.PositionRecord) float64
		pos *float64
		vel *float64
		acc *float64
	}{
		{func(r model.PositionRecord) float64 { return r.Pos.X }, &out.Pos.X, &out.Vel.X, &out.Accel.X},
		{func(r model.PositionRecord) float64 { return r.Pos.Y }, &out.Pos.Y, &out.Vel.Y, &out.Accel.Y},
		{func(r model.PositionRecord) float64 { return r.Pos.Z }, &out.Pos.Z, &out.Vel.Z, &out.Accel.Z},
	}
	for _, ax := range axes {
		for i := range win {
			ys[i] = ax.get(win[i].rec)
		}
		y, dy, d2y := lagrange(ts, ys, tt)
		*ax.pos = y
		*ax.vel = dy
		*ax.acc = d2y
	}

	if ps.hasVel {
		velAxes := []struct {
			get func(model.PositionRecord) float64
			vel *float64
		}{
			{func(r model.PositionRecord) float64 { return r.Vel.X }, &out.Vel.X},
			{func(r model.PositionRecord) float64 { return r.Vel.Y }, &out.Vel.Y},
			{func(r model.PositionRecord) float64 { return r.Vel.Z }, &out.Vel.Z},
		}
		for _, ax := range velAxes {
			for i := range win {
				ys[i] = ax.get(win[i].rec)
			}
			v, _, _ := lagrange(ts, ys, tt)
			*ax.vel = v * velScale
		}
	}

	out.SigPos, out.SigVel = ps.sigmasAt(win, at)
	if ps.hasVel {
		out.SigVel = out.SigVel.Scale(velScale)
	} else {
		out.SigVel = model.Triple{}
	}
	return out, nil
}

// sigmasAt interpolates the position and velocity sigmas linearly between
// the samples bracketing at inside the window.
func (ps *PositionStore) sigmasAt(win []sample[model.PositionRecord], at model.Instant) (sigPos, sigVel model.Triple) {
	lo, hi := bracketInWindowPos(win, at)
	a, b := win[lo].rec, win[hi].rec
	if lo == hi {
		return a.SigPos, a.SigVel
	}
	f := at.Sub(win[lo].at) / win[hi].at.Sub(win[lo].at)
	lerp := func(x, y float64) float64 { return x + f*(y-x) }
	sigPos = model.Triple{
		X: lerp(a.SigPos.X, b.SigPos.X),
		Y: lerp(a.SigPos.Y, b.SigPos.Y),
		Z: lerp(a.SigPos.Z, b.SigPos.Z),
	}
	sigVel = model.Triple{
		X: lerp(a.SigVel.X, b.SigVel.X),
		Y: lerp(a.SigVel.Y, b.SigVel.Y),
		Z: lerp(a.SigVel.Z, b.SigVel.Z),
	}
	return sigPos, sigVel
}

func bracketInWindowPos(win []sample[model.PositionRecord], at model.Instant) (lo, hi int) {
	hi = len(win) - 1
	for i := range win {
		if !win[i].at.Before(at) {
			hi = i
			break
		}
	}
	lo = hi
	if !win[hi].at.Epoch.Equal(at.Epoch) && hi > 0 {
		lo = hi - 1
	}
	// targets past the last window sample cannot happen: the window always
	// covers the bracket
	return lo, hi
}

// Record returns the stored sample at exactly (sat, at).
func (ps *PositionStore) Record(sat model.SatelliteID, at model.Instant) (model.PositionRecord, bool) {
	return ps.tab.lookup(sat, at)
}

func (ps *PositionStore) IsPresent(sat model.SatelliteID) bool { return ps.tab.has(sat) }

func (ps *PositionStore) Count() int                              { return ps.tab.count() }
func (ps *PositionStore) CountFor(sat model.SatelliteID) int      { return ps.tab.countFor(sat) }
func (ps *PositionStore) CountSystem(sys model.GNSS) int          { return ps.tab.countSystem(sys) }
func (ps *PositionStore) Satellites() []model.SatelliteID         { return ps.tab.satellites() }
func (ps *PositionStore) NominalStep(sat model.SatelliteID) float64 {
	return ps.tab.nominalStep(sat)
}

func (ps *PositionStore) InitialTime() (model.Instant, error) { return ps.tab.initialTime() }
func (ps *PositionStore) FinalTime() (model.Instant, error)   { return ps.tab.finalTime() }
func (ps *PositionStore) InitialTimeFor(sat model.SatelliteID) (model.Instant, error) {
	return ps.tab.initialTimeFor(sat)
}
func (ps *PositionStore) FinalTimeFor(sat model.SatelliteID) (model.Instant, error) {
	return ps.tab.finalTimeFor(sat)
}

// Edit drops all samples outside [tmin, tmax].
func (ps *PositionStore) Edit(tmin, tmax model.Instant) { ps.tab.edit(tmin, tmax) }

// Clear drops every satellite and restores the has-velocity flag.
func (ps *PositionStore) Clear() {
	ps.tab.clear()
	ps.hasVel = true
}
