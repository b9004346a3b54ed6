package core

import (
	"fmt"
	"math"
	"sort"

	"github.com/signalsfoundry/ephemeris-store/model"
)

// sample pairs one instant with its record.
type sample[R any] struct {
	at  model.Instant
	rec R
}

// satSeries is the ordered time series of one satellite. Samples are kept
// sorted by instant; the nominal step (modal adjacent spacing) is cached and
// recomputed lazily after mutation.
type satSeries[R any] struct {
	samples []sample[R]
	step    float64
	stepOK  bool
}

// search returns the index of the first sample at or after at.
func (s *satSeries[R]) search(at model.Instant) int {
	return sort.Search(len(s.samples), func(i int) bool {
		return !s.samples[i].at.Before(at)
	})
}

// add inserts a sample, replacing any existing sample at exactly the same
// instant.
func (s *satSeries[R]) add(at model.Instant, rec R) {
	i := s.search(at)
	if i < len(s.samples) && s.samples[i].at.Epoch.Equal(at.Epoch) {
		s.samples[i].rec = rec
		return
	}
	s.samples = append(s.samples, sample[R]{})
	copy(s.samples[i+1:], s.samples[i:])
	s.samples[i] = sample[R]{at: at, rec: rec}
	s.stepOK = false
}

// nominalStep returns the modal spacing between adjacent samples in seconds,
// or 0 when fewer than two samples exist. Ties resolve to the smaller
// spacing so the gap and interval checks stay conservative.
func (s *satSeries[R]) nominalStep() float64 {
	if s.stepOK {
		return s.step
	}
	s.stepOK = true
	s.step = 0
	if len(s.samples) < 2 {
		return s.step
	}
	// spacings keyed at microsecond resolution
	counts := make(map[int64]int)
	for i := 1; i < len(s.samples); i++ {
		d := s.samples[i].at.Sub(s.samples[i-1].at)
		counts[int64(math.Round(d*1e6))]++
	}
	var bestKey int64
	best := 0
	for key, n := range counts {
		if n > best || (n == best && key < bestKey) {
			best, bestKey = n, key
		}
	}
	s.step = float64(bestKey) / 1e6
	return s.step
}

// table maps satellites onto their time series. One instance backs the
// position store and one the clock store; the two policing thresholds are
// multipliers of the per-satellite nominal step and 0 disables a check.
type table[R any] struct {
	sats      map[model.SatelliteID]*satSeries[R]
	gapFactor float64
	maxFactor float64
}

func newTable[R any]() *table[R] {
	return &table[R]{sats: make(map[model.SatelliteID]*satSeries[R])}
}

func (tb *table[R]) add(sat model.SatelliteID, at model.Instant, rec R) {
	ss := tb.sats[sat]
	if ss == nil {
		ss = &satSeries[R]{}
		tb.sats[sat] = ss
	}
	ss.add(at, rec)
}

// lookup returns the stored record at exactly (sat, at).
func (tb *table[R]) lookup(sat model.SatelliteID, at model.Instant) (R, bool) {
	var zero R
	ss := tb.sats[sat]
	if ss == nil {
		return zero, false
	}
	i := ss.search(at)
	if i < len(ss.samples) && ss.samples[i].at.Epoch.Equal(at.Epoch) {
		return ss.samples[i].rec, true
	}
	return zero, false
}

func (tb *table[R]) has(sat model.SatelliteID) bool {
	ss := tb.sats[sat]
	return ss != nil && len(ss.samples) > 0
}

func (tb *table[R]) clear() {
	tb.sats = make(map[model.SatelliteID]*satSeries[R])
}

// edit drops all samples outside [tmin, tmax] for every satellite.
// Satellites left empty are removed entirely.
func (tb *table[R]) edit(tmin, tmax model.Instant) {
	for sat, ss := range tb.sats {
		kept := ss.samples[:0]
		for _, sm := range ss.samples {
			if sm.at.Before(tmin) || sm.at.After(tmax) {
				continue
			}
			kept = append(kept, sm)
		}
		if len(kept) == 0 {
			delete(tb.sats, sat)
			continue
		}
		ss.samples = kept
		ss.stepOK = false
	}
}

func (tb *table[R]) count() int {
	n := 0
	for _, ss := range tb.sats {
		n += len(ss.samples)
	}
	return n
}

func (tb *table[R]) countFor(sat model.SatelliteID) int {
	if ss := tb.sats[sat]; ss != nil {
		return len(ss.samples)
	}
	return 0
}

func (tb *table[R]) countSystem(sys model.GNSS) int {
	n := 0
	for sat, ss := range tb.sats {
		if sat.System == sys {
			n += len(ss.samples)
		}
	}
	return n
}

// satellites returns the satellites present, ordered by (system, id).
func (tb *table[R]) satellites() []model.SatelliteID {
	out := make([]model.SatelliteID, 0, len(tb.sats))
	for sat := range tb.sats {
		out = append(out, sat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (tb *table[R]) nominalStep(sat model.SatelliteID) float64 {
	if ss := tb.sats[sat]; ss != nil {
		return ss.nominalStep()
	}
	return 0
}

func (tb *table[R]) initialTime() (model.Instant, error) {
	var first model.Instant
	for _, ss := range tb.sats {
		if len(ss.samples) == 0 {
			continue
		}
		if t := ss.samples[0].at; first.IsZero() || t.Before(first) {
			first = t
		}
	}
	if first.IsZero() {
		return model.Instant{}, ErrNoData
	}
	return first, nil
}

func (tb *table[R]) finalTime() (model.Instant, error) {
	var last model.Instant
	for _, ss := range tb.sats {
		if len(ss.samples) == 0 {
			continue
		}
		if t := ss.samples[len(ss.samples)-1].at; last.IsZero() || t.After(last) {
			last = t
		}
	}
	if last.IsZero() {
		return model.Instant{}, ErrNoData
	}
	return last, nil
}

func (tb *table[R]) initialTimeFor(sat model.SatelliteID) (model.Instant, error) {
	ss := tb.sats[sat]
	if ss == nil || len(ss.samples) == 0 {
		return model.Instant{}, fmt.Errorf("%w: %s", ErrUnknownSatellite, sat)
	}
	return ss.samples[0].at, nil
}

func (tb *table[R]) finalTimeFor(sat model.SatelliteID) (model.Instant, error) {
	ss := tb.sats[sat]
	if ss == nil || len(ss.samples) == 0 {
		return model.Instant{}, fmt.Errorf("%w: %s", ErrUnknownSatellite, sat)
	}
	return ss.samples[len(ss.samples)-1].at, nil
}

// bracket locates the samples surrounding at. For a target landing exactly
// on a stored instant both indices name that sample.
func (tb *table[R]) bracket(sat model.SatelliteID, at model.Instant) (lo, hi int, err error) {
	ss := tb.sats[sat]
	if ss == nil || len(ss.samples) == 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownSatellite, sat)
	}
	n := len(ss.samples)
	if at.Before(ss.samples[0].at) || at.After(ss.samples[n-1].at) {
		return 0, 0, fmt.Errorf("%w: %s at %s (table spans %s to %s)",
			ErrOutOfRange, sat, at, ss.samples[0].at, ss.samples[n-1].at)
	}
	hi = ss.search(at)
	lo = hi
	if !ss.samples[hi].at.Epoch.Equal(at.Epoch) {
		lo = hi - 1
	}
	return lo, hi, nil
}

// window selects the order-sized run of samples used to interpolate at `at`,
// centered on the bracketing pair and shifted toward the data when the
// target sits near an edge. It applies the gap and max-interval checks.
func (tb *table[R]) window(sat model.SatelliteID, at model.Instant, order int) ([]sample[R], error) {
	lo, hi, err := tb.bracket(sat, at)
	if err != nil {
		return nil, err
	}
	ss := tb.sats[sat]
	n := len(ss.samples)
	if n < order {
		return nil, fmt.Errorf("%w: %s has %d samples, need %d", ErrInsufficientSamples, sat, n, order)
	}
	step := ss.nominalStep()

	if tb.gapFactor > 0 && lo != hi {
		gap := ss.samples[hi].at.Sub(ss.samples[lo].at)
		if gap > tb.gapFactor*step {
			return nil, fmt.Errorf("%w: %s at %s (gap %.3fs > %.1f x %.3fs)",
				ErrDataGap, sat, at, gap, tb.gapFactor, step)
		}
	}

	start := hi - order/2
	if start < 0 {
		start = 0
	}
	if start+order > n {
		start = n - order
	}
	win := ss.samples[start : start+order]

	if tb.maxFactor > 0 {
		span := win[len(win)-1].at.Sub(win[0].at)
		if span > tb.maxFactor*step {
			return nil, fmt.Errorf("%w: %s at %s (span %.3fs > %.1f x %.3fs)",
				ErrIntervalExceeded, sat, at, span, tb.maxFactor, step)
		}
	}
	return win, nil
}
