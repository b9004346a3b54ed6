package core

import (
	"github.com/signalsfoundry/ephemeris-store/model"
)

// ClockInterp selects how the clock series is interpolated.
type ClockInterp int

const (
	// ClockLagrange interpolates with an even-order Lagrange polynomial.
	ClockLagrange ClockInterp = iota
	// ClockLinear interpolates between the two bracketing samples; the
	// configured order is ignored.
	ClockLinear
)

func (k ClockInterp) String() string {
	if k == ClockLinear {
		return "Linear"
	}
	return "Lagrange"
}

// ClockValue is the result of a clock-store query: bias in seconds, drift in
// s/s, acceleration in s/s², each with a sigma.
type ClockValue struct {
	Bias     float64
	SigBias  float64
	Drift    float64
	SigDrift float64
	Accel    float64
	SigAccel float64
}

// ClockStore holds the tabulated clock samples of all satellites. The series
// may be fed either by the primary orbit product or by a higher-rate
// clock-only product; the store itself is agnostic, the composite handles
// routing.
type ClockStore struct {
	tab      *table[model.ClockRecord]
	order    int
	kind     ClockInterp
	hasDrift bool
	hasAccel bool
}

// NewClockStore returns an empty clock store defaulting to Lagrange
// interpolation of order 6.
func NewClockStore() *ClockStore {
	return &ClockStore{tab: newTable[model.ClockRecord](), order: 6, hasDrift: true, hasAccel: true}
}

// SetInterpolationOrder sets the Lagrange order; odd values round up to the
// next even value. Ignored while the interpolation kind is linear.
func (cs *ClockStore) SetInterpolationOrder(order int) { cs.order = evenOrder(order) }

func (cs *ClockStore) InterpolationOrder() int { return cs.order }

// SetInterpolation switches between Lagrange and linear interpolation.
func (cs *ClockStore) SetInterpolation(kind ClockInterp) { cs.kind = kind }

func (cs *ClockStore) Interpolation() ClockInterp { return cs.kind }

// SetGapInterval enables the data-gap check with the given multiple of the
// nominal step; a non-positive value disables it.
func (cs *ClockStore) SetGapInterval(factor float64) {
	if factor < 0 {
		factor = 0
	}
	cs.tab.gapFactor = factor
}

func (cs *ClockStore) GapInterval() float64 { return cs.tab.gapFactor }

// SetMaxInterval enables the max-interval check with the given multiple of
// the nominal step; a non-positive value disables it.
func (cs *ClockStore) SetMaxInterval(factor float64) {
	if factor < 0 {
		factor = 0
	}
	cs.tab.maxFactor = factor
}

func (cs *ClockStore) MaxInterval() float64 { return cs.tab.maxFactor }

// HasDrift reports whether every ingested sample carried a drift. Once a
// drift-less sample arrives the flag stays false until Clear.
func (cs *ClockStore) HasDrift() bool { return cs.hasDrift }

// AddRecord inserts or replaces the sample at (sat, at). driftPresent and
// accelPresent tell the store which optional fields the producer supplied.
func (cs *ClockStore) AddRecord(sat model.SatelliteID, at model.Instant, rec model.ClockRecord, driftPresent, accelPresent bool) {
	if !driftPresent {
		cs.hasDrift = false
	}
	if !accelPresent {
		cs.hasAccel = false
	}
	cs.tab.add(sat, at, rec)
}

// AddBias merges a bias into the sample at (sat, at), creating it when
// absent. The sample counts as drift-less.
func (cs *ClockStore) AddBias(sat model.SatelliteID, at model.Instant, bias, sig float64) {
	rec, _ := cs.tab.lookup(sat, at)
	rec.Bias, rec.SigBias = bias, sig
	cs.AddRecord(sat, at, rec, false, false)
}

// AddDrift merges a drift into the sample at (sat, at), creating it when
// absent. It does not restore the has-drift flag: presence is judged per
// complete sample at ingestion.
func (cs *ClockStore) AddDrift(sat model.SatelliteID, at model.Instant, drift, sig float64) {
	rec, _ := cs.tab.lookup(sat, at)
	rec.Drift, rec.SigDrift = drift, sig
	cs.tab.add(sat, at, rec)
}

// AddAcceleration merges an acceleration into the sample at (sat, at),
// creating it when absent.
func (cs *ClockStore) AddAcceleration(sat model.SatelliteID, at model.Instant, accel, sig float64) {
	rec, _ := cs.tab.lookup(sat, at)
	rec.Accel, rec.SigAccel = accel, sig
	cs.tab.add(sat, at, rec)
}

// Value interpolates the store at (sat, at). Bias comes from the configured
// interpolation of the bias series; drift from the stored samples when every
// sample carries one, otherwise from the derivative of the bias
// interpolation. Acceleration is retained for completeness: stored samples
// when present, else the drift derivative, else the second derivative of the
// bias polynomial.
func (cs *ClockStore) Value(sat model.SatelliteID, at model.Instant) (ClockValue, error) {
	if cs.kind == ClockLinear {
		return cs.linearValue(sat, at)
	}
	return cs.lagrangeValue(sat, at)
}

func (cs *ClockStore) lagrangeValue(sat model.SatelliteID, at model.Instant) (ClockValue, error) {
	win, err := cs.tab.window(sat, at, cs.order)
	if err != nil {
		return ClockValue{}, err
	}

	n := len(win)
	ts := make([]float64, n)
	ys := make([]float64, n)
	for i := range win {
		ts[i] = win[i].at.Sub(win[0].at)
	}
	tt := at.Sub(win[0].at)

	var out ClockValue
	for i := range win {
		ys[i] = win[i].rec.Bias
	}
	bias, dBias, d2Bias := lagrange(ts, ys, tt)
	out.Bias = bias
	out.Drift = dBias
	out.Accel = d2Bias

	if cs.hasDrift {
		for i := range win {
			ys[i] = win[i].rec.Drift
		}
		drift, dDrift, _ := lagrange(ts, ys, tt)
		out.Drift = drift
		if !cs.hasAccel {
			out.Accel = dDrift
		}
	}
	if cs.hasAccel {
		for i := range win {
			ys[i] = win[i].rec.Accel
		}
		accel, _, _ := lagrange(ts, ys, tt)
		out.Accel = accel
	}

	out.SigBias, out.SigDrift, out.SigAccel = cs.sigmasAt(win, at)
	return out, nil
}

func (cs *ClockStore) linearValue(sat model.SatelliteID, at model.Instant) (ClockValue, error) {
	win, err := cs.tab.window(sat, at, 2)
	if err != nil {
		return ClockValue{}, err
	}

	t0 := 0.0
	t1 := win[1].at.Sub(win[0].at)
	tt := at.Sub(win[0].at)
	a, b := win[0].rec, win[1].rec

	var out ClockValue
	bias, slope := linearInterp(t0, a.Bias, t1, b.Bias, tt)
	out.Bias = bias
	out.Drift = slope
	if cs.hasDrift {
		drift, dslope := linearInterp(t0, a.Drift, t1, b.Drift, tt)
		out.Drift = drift
		out.Accel = dslope
	}
	if cs.hasAccel {
		out.Accel, _ = linearInterp(t0, a.Accel, t1, b.Accel, tt)
	}

	out.SigBias, out.SigDrift, out.SigAccel = cs.sigmasAt(win, at)
	return out, nil
}

// sigmasAt interpolates the sigmas linearly between the samples bracketing
// at inside the window.
func (cs *ClockStore) sigmasAt(win []sample[model.ClockRecord], at model.Instant) (sigBias, sigDrift, sigAccel float64) {
	hi := len(win) - 1
	for i := range win {
		if !win[i].at.Before(at) {
			hi = i
			break
		}
	}
	lo := hi
	if !win[hi].at.Epoch.Equal(at.Epoch) && hi > 0 {
		lo = hi - 1
	}
	a, b := win[lo].rec, win[hi].rec
	if lo == hi {
		return a.SigBias, a.SigDrift, a.SigAccel
	}
	f := at.Sub(win[lo].at) / win[hi].at.Sub(win[lo].at)
	lerp := func(x, y float64) float64 { return x + f*(y-x) }
	return lerp(a.SigBias, b.SigBias), lerp(a.SigDrift, b.SigDrift), lerp(a.SigAccel, b.SigAccel)
}

// Record returns the stored sample at exactly (sat, at).
func (cs *ClockStore) Record(sat model.SatelliteID, at model.Instant) (model.ClockRecord, bool) {
	return cs.tab.lookup(sat, at)
}

func (cs *ClockStore) IsPresent(sat model.SatelliteID) bool { return cs.tab.has(sat) }

func (cs *ClockStore) Count() int                         { return cs.tab.count() }
func (cs *ClockStore) CountFor(sat model.SatelliteID) int { return cs.tab.countFor(sat) }
func (cs *ClockStore) CountSystem(sys model.GNSS) int     { return cs.tab.countSystem(sys) }
func (cs *ClockStore) Satellites() []model.SatelliteID    { return cs.tab.satellites() }
func (cs *ClockStore) NominalStep(sat model.SatelliteID) float64 {
	return cs.tab.nominalStep(sat)
}

func (cs *ClockStore) InitialTime() (model.Instant, error) { return cs.tab.initialTime() }
func (cs *ClockStore) FinalTime() (model.Instant, error)   { return cs.tab.finalTime() }
func (cs *ClockStore) InitialTimeFor(sat model.SatelliteID) (model.Instant, error) {
	return cs.tab.initialTimeFor(sat)
}
func (cs *ClockStore) FinalTimeFor(sat model.SatelliteID) (model.Instant, error) {
	return cs.tab.finalTimeFor(sat)
}

// Edit drops all samples outside [tmin, tmax].
func (cs *ClockStore) Edit(tmin, tmax model.Instant) { cs.tab.edit(tmin, tmax) }

// Clear drops every satellite and restores the optional-field flags.
func (cs *ClockStore) Clear() {
	cs.tab.clear()
	cs.hasDrift = true
	cs.hasAccel = true
}
