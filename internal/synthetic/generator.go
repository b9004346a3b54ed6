// Package synthetic produces precise-orbit product records from TLE sets by
// SGP4 propagation. It exists for tests and benchmarks that need realistic
// ephemerides without fixture files: the sources it builds satisfy the
// core.ProductSource contract and feed a store through the regular loader.
package synthetic

import (
	"fmt"
	"io"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/ephemeris-store/core"
	"github.com/signalsfoundry/ephemeris-store/model"
)

// Earth rotation rate, rad/s.
const omegaEarth = 7.2921159e-5

// Orbit describes one synthetic satellite: its identity, TLE, and a linear
// clock model evaluated at each epoch.
type Orbit struct {
	Sat        model.SatelliteID
	TLE1, TLE2 string
	ClockBias  float64 // seconds at the first epoch
	ClockDrift float64 // s/s
}

// Config describes the product to generate.
type Config struct {
	Start  time.Time
	Step   time.Duration
	Count  int // epochs per satellite
	System model.TimeSystem

	// WithVelocity emits the propagated velocity on every position sample.
	WithVelocity bool
	// WithDrift emits the clock drift on every clock sample.
	WithDrift bool

	Orbits []Orbit
}

// Source yields a primary-format product: a header followed by one position
// and one clock sample per orbit per epoch. It implements
// core.ProductSource.
type Source struct {
	cfg  Config
	sats []satellite.Satellite
	next int
}

// NewSource parses the TLEs and returns a generator positioned before the
// header record.
func NewSource(cfg Config) (*Source, error) {
	if cfg.Count <= 0 || cfg.Step <= 0 {
		return nil, fmt.Errorf("synthetic source needs a positive step and count")
	}
	if len(cfg.Orbits) == 0 {
		return nil, fmt.Errorf("synthetic source needs at least one orbit")
	}
	src := &Source{cfg: cfg}
	for _, o := range cfg.Orbits {
		if o.TLE1 == "" || o.TLE2 == "" {
			return nil, fmt.Errorf("orbit %s is missing TLE lines", o.Sat)
		}
		src.sats = append(src.sats, satellite.TLEToSat(o.TLE1, o.TLE2, satellite.GravityWGS72))
	}
	return src, nil
}

// Format implements core.ProductSource.
func (s *Source) Format() core.SourceFormat { return core.FormatPrimary }

// Next implements core.ProductSource.
func (s *Source) Next() (core.ProductRecord, error) {
	if s.next == 0 {
		s.next++
		return core.Header{
			TimeSystem:     s.cfg.System,
			NominalStep:    s.cfg.Step.Seconds(),
			SatelliteCount: len(s.cfg.Orbits),
		}, nil
	}

	// two records (position, clock) per orbit per epoch
	i := s.next - 1
	perEpoch := 2 * len(s.cfg.Orbits)
	epoch := i / perEpoch
	if epoch >= s.cfg.Count {
		return nil, io.EOF
	}
	s.next++

	orbIdx := (i % perEpoch) / 2
	orb := s.cfg.Orbits[orbIdx]
	dt := time.Duration(epoch) * s.cfg.Step
	at := model.NewInstant(s.cfg.Start.Add(dt), s.cfg.System)

	if i%2 == 0 {
		pos, vel := s.propagate(orbIdx, s.cfg.Start.Add(dt))
		sample := core.PositionSample{
			Sat:    orb.Sat,
			At:     at,
			Pos:    pos,
			SigPos: model.Triple{X: 0.01, Y: 0.01, Z: 0.01},
		}
		if s.cfg.WithVelocity {
			// dm/s, the product convention
			v := vel.Scale(10)
			sample.Vel = &v
			sig := model.Triple{X: 0.001, Y: 0.001, Z: 0.001}
			sample.SigVel = &sig
		}
		return sample, nil
	}

	elapsed := dt.Seconds()
	sample := core.ClockSample{
		Sat:     orb.Sat,
		At:      at,
		Bias:    orb.ClockBias + orb.ClockDrift*elapsed,
		SigBias: 1e-11,
	}
	if s.cfg.WithDrift {
		drift := orb.ClockDrift
		sample.Drift = &drift
		sig := 1e-13
		sample.SigDrift = &sig
	}
	return sample, nil
}

// propagate runs SGP4 for the orbit at t and returns ECEF position (m) and
// velocity (m/s). go-satellite works in kilometres.
func (s *Source) propagate(orbIdx int, t time.Time) (model.Triple, model.Triple) {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, velECI := satellite.Propagate(s.sats[orbIdx], year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)
	velRot := satellite.ECIToECEF(velECI, gmst)

	const kmToM = 1000.0
	pos := model.Triple{X: posECEF.X * kmToM, Y: posECEF.Y * kmToM, Z: posECEF.Z * kmToM}
	// v_ecef = R v_eci - omega x r_ecef
	vel := model.Triple{
		X: velRot.X*kmToM + omegaEarth*pos.Y,
		Y: velRot.Y*kmToM - omegaEarth*pos.X,
		Z: velRot.Z * kmToM,
	}
	return pos, vel
}

// ClockSource yields an override-format product: a header followed by one
// clock sample per orbit per epoch, typically at a finer step than the
// primary product. It implements core.ProductSource.
type ClockSource struct {
	cfg  Config
	next int
}

// NewClockSource returns a clock-only generator for the same configuration
// shape as NewSource; orbit TLEs are not needed.
func NewClockSource(cfg Config) (*ClockSource, error) {
	if cfg.Count <= 0 || cfg.Step <= 0 {
		return nil, fmt.Errorf("synthetic clock source needs a positive step and count")
	}
	if len(cfg.Orbits) == 0 {
		return nil, fmt.Errorf("synthetic clock source needs at least one orbit")
	}
	return &ClockSource{cfg: cfg}, nil
}

// Format implements core.ProductSource.
func (s *ClockSource) Format() core.SourceFormat { return core.FormatOverride }

// Next implements core.ProductSource.
func (s *ClockSource) Next() (core.ProductRecord, error) {
	if s.next == 0 {
		s.next++
		return core.Header{
			TimeSystem:     s.cfg.System,
			NominalStep:    s.cfg.Step.Seconds(),
			SatelliteCount: len(s.cfg.Orbits),
		}, nil
	}

	i := s.next - 1
	epoch := i / len(s.cfg.Orbits)
	if epoch >= s.cfg.Count {
		return nil, io.EOF
	}
	s.next++

	orb := s.cfg.Orbits[i%len(s.cfg.Orbits)]
	dt := time.Duration(epoch) * s.cfg.Step
	at := model.NewInstant(s.cfg.Start.Add(dt), s.cfg.System)
	elapsed := dt.Seconds()

	sample := core.ClockSample{
		Sat:     orb.Sat,
		At:      at,
		Bias:    orb.ClockBias + orb.ClockDrift*elapsed,
		SigBias: 1e-12,
	}
	if s.cfg.WithDrift {
		drift := orb.ClockDrift
		sample.Drift = &drift
		sig := 1e-14
		sample.SigDrift = &sig
	}
	return sample, nil
}
