package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/signalsfoundry/ephemeris-store/model"
)

// XvtStore is the query surface served by a loaded ephemeris store. Store is
// the production implementer; consumers that only read state should depend
// on this interface.
type XvtStore interface {
	GetXvt(sat model.SatelliteID, at model.Instant) (model.Xvt, error)
	ComputeXvt(sat model.SatelliteID, at model.Instant) model.Xvt
	GetPosition(sat model.SatelliteID, at model.Instant) (model.Triple, error)
	GetVelocity(sat model.SatelliteID, at model.Instant) (model.Triple, error)
	GetAcceleration(sat model.SatelliteID, at model.Instant) (model.Triple, error)
	InitialTime() (model.Instant, error)
	FinalTime() (model.Instant, error)
	TimeSystem() model.TimeSystem
	IsPresent(sat model.SatelliteID) bool
}

// MetricsRecorder receives store activity for export. The zero dependency is
// a nil recorder, which drops everything; internal/observability provides a
// Prometheus-backed implementation.
type MetricsRecorder interface {
	ObserveQuery(outcome string, seconds float64)
	AddIngested(kind string, n int)
	AddRejected(kind, reason string, n int)
	SetStoreCounts(satellites, positionSamples, clockSamples int)
}

// Store keeps a position series and a clock series for many satellites,
// ingested from precise orbit/clock products, and interpolates satellite
// state at arbitrary instants. The two series are tied to one time system,
// fixed by the first successful ingestion.
//
// A Store is not safe for concurrent mutation; the intended use is a load
// phase followed by a read-only query phase, during which concurrent readers
// are fine.
type Store struct {
	timeSystem model.TimeSystem

	pos *PositionStore
	clk *ClockStore

	// clockFromPrimary is true while the clock series is fed by the same
	// product as the position series.
	clockFromPrimary bool

	rejectBadPositions       bool
	rejectBadClocks          bool
	rejectPredictedPositions bool
	rejectPredictedClocks    bool

	sources []SourceInfo

	log     *slog.Logger
	metrics MetricsRecorder
}

var _ XvtStore = (*Store)(nil)

// New returns an empty store: time system Any, clock fed from the primary
// source, bad samples rejected, predicted samples kept.
func New() *Store {
	return &Store{
		timeSystem:         model.TimeAny,
		pos:                NewPositionStore(),
		clk:                NewClockStore(),
		clockFromPrimary:   true,
		rejectBadPositions: true,
		rejectBadClocks:    true,
	}
}

// SetLogger attaches a structured logger; nil silences the store.
func (s *Store) SetLogger(log *slog.Logger) { s.log = log }

func (s *Store) logger() *slog.Logger {
	if s.log != nil {
		return s.log
	}
	return slog.New(slog.DiscardHandler)
}

// SetMetrics attaches a metrics recorder; nil disables recording.
func (s *Store) SetMetrics(m MetricsRecorder) { s.metrics = m }

// ---------- configuration ----------

// SetPositionInterpOrder sets the position Lagrange order (even; odd values
// round up). Default 10.
func (s *Store) SetPositionInterpOrder(order int) { s.pos.SetInterpolationOrder(order) }

func (s *Store) PositionInterpOrder() int { return s.pos.InterpolationOrder() }

// SetClockInterpOrder sets the clock Lagrange order (even; odd values round
// up). Ignored while the clock interpolation is linear. Default 6.
func (s *Store) SetClockInterpOrder(order int) { s.clk.SetInterpolationOrder(order) }

func (s *Store) ClockInterpOrder() int { return s.clk.InterpolationOrder() }

// SetClockInterpolation switches the clock series between Lagrange (the
// default) and linear interpolation.
func (s *Store) SetClockInterpolation(kind ClockInterp) { s.clk.SetInterpolation(kind) }

func (s *Store) ClockInterpolation() ClockInterp { return s.clk.Interpolation() }

// RejectBadPositions controls whether bad position samples are dropped at
// ingestion. Default true.
func (s *Store) RejectBadPositions(flag bool) { s.rejectBadPositions = flag }

// RejectBadClocks controls whether bad clock samples are dropped at
// ingestion. Inert while the clock series is fed from the override source.
// Default true.
func (s *Store) RejectBadClocks(flag bool) { s.rejectBadClocks = flag }

// RejectPredictedPositions controls whether predicted position samples are
// dropped at ingestion. Default false.
func (s *Store) RejectPredictedPositions(flag bool) { s.rejectPredictedPositions = flag }

// RejectPredictedClocks controls whether predicted clock samples are dropped
// at ingestion. Inert while the clock series is fed from the override
// source. Default false.
func (s *Store) RejectPredictedClocks(flag bool) { s.rejectPredictedClocks = flag }

// SetPositionGapInterval enables the position data-gap check; the threshold
// is a multiple of the per-satellite nominal step. Non-positive disables.
func (s *Store) SetPositionGapInterval(factor float64) { s.pos.SetGapInterval(factor) }

// SetClockGapInterval enables the clock data-gap check.
func (s *Store) SetClockGapInterval(factor float64) { s.clk.SetGapInterval(factor) }

// SetPositionMaxInterval enables the position max-interval check.
func (s *Store) SetPositionMaxInterval(factor float64) { s.pos.SetMaxInterval(factor) }

// SetClockMaxInterval enables the clock max-interval check.
func (s *Store) SetClockMaxInterval(factor float64) { s.clk.SetMaxInterval(factor) }

// ---------- clock source routing ----------

// ClockFromPrimary reports whether the clock series is fed by the primary
// orbit product (true) or by an override clock product (false).
func (s *Store) ClockFromPrimary() bool { return s.clockFromPrimary }

// UseOverrideClock routes the clock series to the override clock product.
// The clock series is cleared on an actual change: the two sources have
// incompatible sample densities. No-op when already on override.
func (s *Store) UseOverrideClock() {
	if !s.clockFromPrimary {
		return
	}
	s.clockFromPrimary = false
	s.clk.Clear()
	s.logger().Info("clock source set to override; clock series cleared")
	s.updateCountMetrics()
}

// UsePrimaryClock routes the clock series back to the primary product,
// clearing it on an actual change. No-op when already on primary.
func (s *Store) UsePrimaryClock() {
	if s.clockFromPrimary {
		return
	}
	s.clockFromPrimary = true
	s.clk.Clear()
	s.logger().Info("clock source set to primary; clock series cleared")
	s.updateCountMetrics()
}

// ---------- queries ----------

// GetXvt returns the interpolated position, velocity, clock bias and clock
// drift of sat at the given instant. The health field is always
// HealthUnused: the source formats carry no health information.
func (s *Store) GetXvt(sat model.SatelliteID, at model.Instant) (model.Xvt, error) {
	start := time.Now()
	xvt, err := s.getXvt(sat, at)
	s.observeQuery(err, start)
	return xvt, err
}

func (s *Store) getXvt(sat model.SatelliteID, at model.Instant) (model.Xvt, error) {
	if err := s.checkQueryTime(at); err != nil {
		return model.Xvt{}, err
	}
	if !s.IsPresent(sat) {
		return model.Xvt{}, fmt.Errorf("%w: %s", ErrUnknownSatellite, sat)
	}
	pv, err := s.pos.Value(sat, at)
	if err != nil {
		return model.Xvt{}, fmt.Errorf("position query: %w", err)
	}
	cv, err := s.clk.Value(sat, at)
	if err != nil {
		return model.Xvt{}, fmt.Errorf("clock query: %w", err)
	}
	return model.Xvt{
		Pos:        pv.Pos,
		Vel:        pv.Vel,
		ClockBias:  cv.Bias,
		ClockDrift: cv.Drift,
		Health:     model.HealthUnused,
	}, nil
}

// ComputeXvt is the non-failing sibling of GetXvt: any failure flattens into
// a zero Xvt with health HealthUnavailable.
func (s *Store) ComputeXvt(sat model.SatelliteID, at model.Instant) model.Xvt {
	start := time.Now()
	xvt, err := s.getXvt(sat, at)
	s.observeQuery(err, start)
	if err != nil {
		return model.Xvt{Health: model.HealthUnavailable}
	}
	return xvt
}

// GetPosition returns the interpolated ECEF position in metres.
func (s *Store) GetPosition(sat model.SatelliteID, at model.Instant) (model.Triple, error) {
	if err := s.checkQueryTime(at); err != nil {
		return model.Triple{}, err
	}
	pv, err := s.pos.Value(sat, at)
	if err != nil {
		return model.Triple{}, err
	}
	return pv.Pos, nil
}

// GetVelocity returns the interpolated ECEF velocity in m/s.
func (s *Store) GetVelocity(sat model.SatelliteID, at model.Instant) (model.Triple, error) {
	if err := s.checkQueryTime(at); err != nil {
		return model.Triple{}, err
	}
	pv, err := s.pos.Value(sat, at)
	if err != nil {
		return model.Triple{}, err
	}
	return pv.Vel, nil
}

// GetAcceleration returns the ECEF acceleration in m/s², always derived from
// the second derivative of the position polynomial.
func (s *Store) GetAcceleration(sat model.SatelliteID, at model.Instant) (model.Triple, error) {
	if err := s.checkQueryTime(at); err != nil {
		return model.Triple{}, err
	}
	pv, err := s.pos.Value(sat, at)
	if err != nil {
		return model.Triple{}, err
	}
	return pv.Accel, nil
}

// GetClock returns the interpolated clock bias and drift.
func (s *Store) GetClock(sat model.SatelliteID, at model.Instant) (ClockValue, error) {
	if err := s.checkQueryTime(at); err != nil {
		return ClockValue{}, err
	}
	return s.clk.Value(sat, at)
}

func (s *Store) checkQueryTime(at model.Instant) error {
	if !at.System.CompatibleWith(s.timeSystem) {
		return fmt.Errorf("%w: query in %s against a %s store", ErrTimeSystemMismatch, at.System, s.timeSystem)
	}
	return nil
}

// ---------- direct insertion ----------

// AddPositionRecord inserts or replaces a complete position sample. The
// record is taken at face value: rejection policies apply only to product
// ingestion through the Loader.
func (s *Store) AddPositionRecord(sat model.SatelliteID, at model.Instant, rec model.PositionRecord) error {
	if err := s.adoptTimeSystem(at.System); err != nil {
		return err
	}
	s.pos.AddRecord(sat, at, rec, true)
	s.updateCountMetrics()
	return nil
}

// AddClockRecord inserts or replaces a complete clock sample.
func (s *Store) AddClockRecord(sat model.SatelliteID, at model.Instant, rec model.ClockRecord) error {
	if err := s.adoptTimeSystem(at.System); err != nil {
		return err
	}
	s.clk.AddRecord(sat, at, rec, true, true)
	s.updateCountMetrics()
	return nil
}

// AddPositionData merges position-only data into the sample at (sat, at).
func (s *Store) AddPositionData(sat model.SatelliteID, at model.Instant, pos, sig model.Triple) error {
	if err := s.adoptTimeSystem(at.System); err != nil {
		return err
	}
	s.pos.AddPositionData(sat, at, pos, sig)
	s.updateCountMetrics()
	return nil
}

// AddVelocityData merges velocity-only data (dm/s) into the sample at
// (sat, at).
func (s *Store) AddVelocityData(sat model.SatelliteID, at model.Instant, vel, sig model.Triple) error {
	if err := s.adoptTimeSystem(at.System); err != nil {
		return err
	}
	s.pos.AddVelocityData(sat, at, vel, sig)
	s.updateCountMetrics()
	return nil
}

// AddClockBias merges a bias into the clock sample at (sat, at).
func (s *Store) AddClockBias(sat model.SatelliteID, at model.Instant, bias, sig float64) error {
	if err := s.adoptTimeSystem(at.System); err != nil {
		return err
	}
	s.clk.AddBias(sat, at, bias, sig)
	s.updateCountMetrics()
	return nil
}

// AddClockDrift merges a drift into the clock sample at (sat, at).
func (s *Store) AddClockDrift(sat model.SatelliteID, at model.Instant, drift, sig float64) error {
	if err := s.adoptTimeSystem(at.System); err != nil {
		return err
	}
	s.clk.AddDrift(sat, at, drift, sig)
	s.updateCountMetrics()
	return nil
}

// AddClockAcceleration merges an acceleration into the clock sample at
// (sat, at).
func (s *Store) AddClockAcceleration(sat model.SatelliteID, at model.Instant, accel, sig float64) error {
	if err := s.adoptTimeSystem(at.System); err != nil {
		return err
	}
	s.clk.AddAcceleration(sat, at, accel, sig)
	s.updateCountMetrics()
	return nil
}

// adoptTimeSystem fixes the store's time system on first use and rejects
// incompatible systems afterwards. Any-tagged inputs never change it.
func (s *Store) adoptTimeSystem(sys model.TimeSystem) error {
	if sys == model.TimeAny {
		return nil
	}
	if s.timeSystem == model.TimeAny {
		s.timeSystem = sys
		return nil
	}
	if s.timeSystem != sys {
		return fmt.Errorf("%w: store is %s, input is %s", ErrTimeSystemMismatch, s.timeSystem, sys)
	}
	return nil
}

// ---------- bounds, presence, bookkeeping ----------

// TimeSystem returns the store's fixed time system, Any while empty.
func (s *Store) TimeSystem() model.TimeSystem { return s.timeSystem }

// IsPresent reports whether sat exists in both series.
func (s *Store) IsPresent(sat model.SatelliteID) bool {
	return s.pos.IsPresent(sat) && s.clk.IsPresent(sat)
}

// HasVelocity reports whether every position sample carried a velocity.
func (s *Store) HasVelocity() bool { return s.pos.HasVelocity() }

// HasClockDrift reports whether every clock sample carried a drift.
func (s *Store) HasClockDrift() bool { return s.clk.HasDrift() }

// InitialTime returns the earliest instant at which both series can serve,
// i.e. the later of the two series' initial times.
func (s *Store) InitialTime() (model.Instant, error) {
	p, err := s.pos.InitialTime()
	if err != nil {
		return model.Instant{}, err
	}
	c, err := s.clk.InitialTime()
	if err != nil {
		return model.Instant{}, err
	}
	if c.After(p) {
		return c, nil
	}
	return p, nil
}

// FinalTime returns the latest instant at which both series can serve, i.e.
// the earlier of the two series' final times.
func (s *Store) FinalTime() (model.Instant, error) {
	p, err := s.pos.FinalTime()
	if err != nil {
		return model.Instant{}, err
	}
	c, err := s.clk.FinalTime()
	if err != nil {
		return model.Instant{}, err
	}
	if c.Before(p) {
		return c, nil
	}
	return p, nil
}

// InitialTimeFor returns the earliest instant served for sat in both series.
func (s *Store) InitialTimeFor(sat model.SatelliteID) (model.Instant, error) {
	p, err := s.pos.InitialTimeFor(sat)
	if err != nil {
		return model.Instant{}, err
	}
	c, err := s.clk.InitialTimeFor(sat)
	if err != nil {
		return model.Instant{}, err
	}
	if c.After(p) {
		return c, nil
	}
	return p, nil
}

// FinalTimeFor returns the latest instant served for sat in both series.
func (s *Store) FinalTimeFor(sat model.SatelliteID) (model.Instant, error) {
	p, err := s.pos.FinalTimeFor(sat)
	if err != nil {
		return model.Instant{}, err
	}
	c, err := s.clk.FinalTimeFor(sat)
	if err != nil {
		return model.Instant{}, err
	}
	if c.Before(p) {
		return c, nil
	}
	return p, nil
}

// Position and Clock expose the underlying series for callers needing the
// per-series surface (bounds, counts, dump).
func (s *Store) Position() *PositionStore { return s.pos }
func (s *Store) Clock() *ClockStore       { return s.clk }

// Satellites returns the satellites present in both series, ordered.
func (s *Store) Satellites() []model.SatelliteID {
	inClk := make(map[model.SatelliteID]bool)
	for _, sat := range s.clk.Satellites() {
		inClk[sat] = true
	}
	var out []model.SatelliteID
	for _, sat := range s.pos.Satellites() {
		if inClk[sat] {
			out = append(out, sat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Count returns the number of position samples, upstream's size().
func (s *Store) Count() int { return s.pos.Count() }

// ---------- mutation ----------

// Edit drops all samples outside [tmin, tmax] in both series.
func (s *Store) Edit(tmin, tmax model.Instant) {
	s.pos.Edit(tmin, tmax)
	s.clk.Edit(tmin, tmax)
	s.updateCountMetrics()
}

// Clear drops all data from both series and unfixes the time system.
// Configuration (orders, thresholds, rejection flags, clock routing) is
// retained.
func (s *Store) Clear() {
	s.pos.Clear()
	s.clk.Clear()
	s.timeSystem = model.TimeAny
	s.sources = nil
	s.updateCountMetrics()
}

// ClearPosition drops the position series only.
func (s *Store) ClearPosition() {
	s.pos.Clear()
	s.updateCountMetrics()
}

// ClearClock drops the clock series only.
func (s *Store) ClearClock() {
	s.clk.Clear()
	s.updateCountMetrics()
}

// ---------- metrics plumbing ----------

func (s *Store) observeQuery(err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveQuery(errorKind(err), time.Since(start).Seconds())
}

func (s *Store) updateCountMetrics() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetStoreCounts(len(s.Satellites()), s.pos.Count(), s.clk.Count())
}

// errorKind maps a query error onto a stable label for metrics and for the
// loader's span status.
func errorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrUnknownSatellite):
		return "unknown_satellite"
	case errors.Is(err, ErrDataGap):
		return "data_gap"
	case errors.Is(err, ErrIntervalExceeded):
		return "interval_exceeded"
	case errors.Is(err, ErrInsufficientSamples):
		return "insufficient_samples"
	case errors.Is(err, ErrTimeSystemMismatch):
		return "time_system_mismatch"
	case errors.Is(err, ErrNoData):
		return "no_data"
	default:
		return "error"
	}
}
