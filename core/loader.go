package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/ephemeris-store/model"
)

// SourceFormat tags a product source with its file family.
type SourceFormat int

const (
	// FormatPrimary is the combined position+clock product (SP3 family).
	FormatPrimary SourceFormat = iota
	// FormatOverride is the clock-only, higher-rate product (RINEX clock
	// family) that can replace the clock portion of the primary product.
	FormatOverride
)

func (f SourceFormat) String() string {
	if f == FormatOverride {
		return "override-clock"
	}
	return "primary-orbit"
}

// ProductRecord is one record yielded by a parser collaborator: a Header, a
// PositionSample or a ClockSample.
type ProductRecord interface {
	productRecord()
}

// Header carries per-file metadata. Parsers emit it before any sample.
type Header struct {
	TimeSystem     model.TimeSystem
	NominalStep    float64 // declared sampling interval in seconds, 0 if absent
	SatelliteCount int
}

// PositionSample is one parsed ephemeris sample. Velocity is optional;
// when present it is in dm/s as the product writes it. Bad and Predicted
// carry the producer's provenance flags.
type PositionSample struct {
	Sat       model.SatelliteID
	At        model.Instant
	Pos       model.Triple
	SigPos    model.Triple
	Vel       *model.Triple
	SigVel    *model.Triple
	Predicted bool
	Bad       bool
}

// ClockSample is one parsed clock sample. Drift and acceleration are
// optional.
type ClockSample struct {
	Sat       model.SatelliteID
	At        model.Instant
	Bias      float64
	SigBias   float64
	Drift     *float64
	SigDrift  *float64
	Accel     *float64
	SigAccel  *float64
	Predicted bool
	Bad       bool
}

func (Header) productRecord()         {}
func (PositionSample) productRecord() {}
func (ClockSample) productRecord()    {}

// ProductSource is the parser collaborator contract: an iteration of tagged
// records from one product file. Next returns io.EOF after the last record;
// any other error aborts the ingestion.
type ProductSource interface {
	Format() SourceFormat
	Next() (ProductRecord, error)
}

// SourceInfo is the loader's lightweight bookkeeping for one ingested
// product, retained for dump output.
type SourceInfo struct {
	Format         SourceFormat
	TimeSystem     model.TimeSystem
	SatelliteCount int
	NominalStep    float64
	Records        int
}

// LoadSummary reports what one ingestion did.
type LoadSummary struct {
	Format            SourceFormat
	TimeSystem        model.TimeSystem
	Records           int
	PositionsAdded    int
	ClocksAdded       int
	PositionsRejected int
	ClocksRejected    int

	// Warnings holds non-fatal conditions, e.g. an implicit clock source
	// switch (ErrSourceModeMismatch).
	Warnings []error
}

// Bad-sample sentinels of the precise orbit/clock products: a zero
// coordinate marks an unusable position, and bias/sigma fields pinned at
// 999999.999999 (microseconds in the product, seconds here) mark an
// unusable clock.
const (
	badPositionSigma = 999999.0
	badClockBias     = 999999.999999e-6
	badClockSigma    = 999999.999999e-6
)

var loadTracer = otel.Tracer("github.com/signalsfoundry/ephemeris-store/core")

// Loader routes parsed product records into a Store, honoring the store's
// rejection policies and clock source routing, and keeping the store's time
// system consistent. A failed ingestion leaves the store untouched: records
// are staged and only committed once the source drains cleanly.
type Loader struct {
	store *Store
	log   *slog.Logger
}

// NewLoader returns a loader feeding the given store.
func NewLoader(store *Store) *Loader {
	return &Loader{store: store}
}

// SetLogger attaches a structured logger; nil silences the loader.
func (l *Loader) SetLogger(log *slog.Logger) { l.log = log }

func (l *Loader) logger() *slog.Logger {
	if l.log != nil {
		return l.log
	}
	return slog.New(slog.DiscardHandler)
}

type stagedPosition struct {
	sat model.SatelliteID
	at  model.Instant
	rec model.PositionRecord
	vel bool
}

type stagedClock struct {
	sat   model.SatelliteID
	at    model.Instant
	rec   model.ClockRecord
	drift bool
	accel bool
}

// Load drains src and commits its records into the store. On any error the
// store is left exactly as it was.
func (l *Loader) Load(ctx context.Context, src ProductSource) (*LoadSummary, error) {
	ctx, span := loadTracer.Start(ctx, "ephemeris.load",
		trace.WithAttributes(attribute.String("product.format", src.Format().String())))
	defer span.End()

	summary, err := l.load(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorKind(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("product.records", summary.Records),
		attribute.Int("product.positions_added", summary.PositionsAdded),
		attribute.Int("product.clocks_added", summary.ClocksAdded),
	)
	return summary, nil
}

func (l *Loader) load(ctx context.Context, src ProductSource) (*LoadSummary, error) {
	store := l.store
	format := src.Format()
	summary := &LoadSummary{Format: format, TimeSystem: model.TimeAny}

	// Stage 1: drain and validate. Nothing touches the store yet.
	var (
		info      = SourceInfo{Format: format, TimeSystem: model.TimeAny}
		positions []stagedPosition
		clocks    []stagedClock
	)
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		summary.Records++

		switch r := rec.(type) {
		case Header:
			if err := l.stageHeader(&info, r); err != nil {
				return nil, err
			}

		case PositionSample:
			if format != FormatPrimary {
				return nil, fmt.Errorf("%w: position sample in %s product", ErrParseFailure, format)
			}
			at, err := stampInstant(r.At, info.TimeSystem)
			if err != nil {
				return nil, err
			}
			if reason := l.rejectPosition(r); reason != "" {
				summary.PositionsRejected++
				l.countRejected("position", reason)
				continue
			}
			sp := stagedPosition{sat: r.Sat, at: at, rec: model.PositionRecord{Pos: r.Pos, SigPos: r.SigPos}}
			if r.Vel != nil {
				sp.rec.Vel = *r.Vel
				sp.vel = true
				if r.SigVel != nil {
					sp.rec.SigVel = *r.SigVel
				}
			}
			positions = append(positions, sp)

		case ClockSample:
			at, err := stampInstant(r.At, info.TimeSystem)
			if err != nil {
				return nil, err
			}
			if format == FormatPrimary {
				if !store.clockFromPrimary {
					// clock series belongs to the override source
					continue
				}
				if reason := l.rejectClock(r); reason != "" {
					summary.ClocksRejected++
					l.countRejected("clock", reason)
					continue
				}
			}
			sc := stagedClock{sat: r.Sat, at: at, rec: model.ClockRecord{Bias: r.Bias, SigBias: r.SigBias}}
			if r.Drift != nil {
				sc.rec.Drift = *r.Drift
				sc.drift = true
				if r.SigDrift != nil {
					sc.rec.SigDrift = *r.SigDrift
				}
			}
			if r.Accel != nil {
				sc.rec.Accel = *r.Accel
				sc.accel = true
				if r.SigAccel != nil {
					sc.rec.SigAccel = *r.SigAccel
				}
			}
			clocks = append(clocks, sc)

		default:
			return nil, fmt.Errorf("%w: unknown record type %T", ErrParseFailure, rec)
		}
	}

	// Reconcile the file's time system against the store before committing.
	if err := checkSystems(store.timeSystem, info.TimeSystem); err != nil {
		return nil, err
	}

	// Stage 2: commit. Nothing below can fail.
	if format == FormatOverride && store.clockFromPrimary {
		warn := fmt.Errorf("%w: store was feeding clocks from the primary source", ErrSourceModeMismatch)
		summary.Warnings = append(summary.Warnings, warn)
		l.logger().Warn("override ingestion while clock source is primary; switching",
			slog.String("format", format.String()))
		store.UseOverrideClock()
	}

	if info.TimeSystem != model.TimeAny && store.timeSystem == model.TimeAny {
		store.timeSystem = info.TimeSystem
	}
	summary.TimeSystem = store.timeSystem

	for _, sp := range positions {
		store.pos.AddRecord(sp.sat, sp.at, sp.rec, sp.vel)
		summary.PositionsAdded++
	}
	for _, sc := range clocks {
		store.clk.AddRecord(sc.sat, sc.at, sc.rec, sc.drift, sc.accel)
		summary.ClocksAdded++
	}
	info.Records = summary.Records
	store.sources = append(store.sources, info)

	if store.metrics != nil {
		store.metrics.AddIngested("position", summary.PositionsAdded)
		store.metrics.AddIngested("clock", summary.ClocksAdded)
	}
	store.updateCountMetrics()

	l.logger().Info("product ingested",
		slog.String("format", format.String()),
		slog.String("time_system", summary.TimeSystem.String()),
		slog.Int("records", summary.Records),
		slog.Int("positions", summary.PositionsAdded),
		slog.Int("clocks", summary.ClocksAdded),
		slog.Int("rejected", summary.PositionsRejected+summary.ClocksRejected),
	)
	return summary, nil
}

func (l *Loader) stageHeader(info *SourceInfo, h Header) error {
	if h.TimeSystem != model.TimeAny {
		if info.TimeSystem != model.TimeAny && info.TimeSystem != h.TimeSystem {
			return fmt.Errorf("%w: product declares both %s and %s", ErrTimeSystemMismatch, info.TimeSystem, h.TimeSystem)
		}
		info.TimeSystem = h.TimeSystem
	}
	if h.NominalStep > 0 {
		info.NominalStep = h.NominalStep
	}
	if h.SatelliteCount > 0 {
		info.SatelliteCount = h.SatelliteCount
	}
	return nil
}

// rejectPosition returns a rejection reason or "" to keep the sample.
func (l *Loader) rejectPosition(r PositionSample) string {
	s := l.store
	if s.rejectBadPositions && positionLooksBad(r) {
		return "bad"
	}
	if s.rejectPredictedPositions && r.Predicted {
		return "predicted"
	}
	return ""
}

// rejectClock returns a rejection reason or "" to keep the sample. Only
// consulted for primary-format clocks; the override format carries neither
// bad nor predicted semantics.
func (l *Loader) rejectClock(r ClockSample) string {
	s := l.store
	if s.rejectBadClocks && clockLooksBad(r) {
		return "bad"
	}
	if s.rejectPredictedClocks && r.Predicted {
		return "predicted"
	}
	return ""
}

func positionLooksBad(r PositionSample) bool {
	if r.Bad {
		return true
	}
	if r.Pos.X == 0 || r.Pos.Y == 0 || r.Pos.Z == 0 {
		return true
	}
	return r.SigPos.X >= badPositionSigma || r.SigPos.Y >= badPositionSigma || r.SigPos.Z >= badPositionSigma
}

func clockLooksBad(r ClockSample) bool {
	return r.Bad || r.Bias >= badClockBias || r.SigBias >= badClockSigma
}

// stampInstant fills an Any-tagged sample instant with the file's declared
// system and rejects instants tagged with a conflicting system.
func stampInstant(at model.Instant, fileSystem model.TimeSystem) (model.Instant, error) {
	if at.System == model.TimeAny {
		at.System = fileSystem
		return at, nil
	}
	if err := checkSystems(fileSystem, at.System); err != nil {
		return model.Instant{}, err
	}
	return at, nil
}

func checkSystems(a, b model.TimeSystem) error {
	if !a.CompatibleWith(b) {
		return fmt.Errorf("%w: %s vs %s", ErrTimeSystemMismatch, a, b)
	}
	return nil
}

func (l *Loader) countRejected(kind, reason string) {
	if l.store.metrics != nil {
		l.store.metrics.AddRejected(kind, reason, 1)
	}
}

// Sources returns the bookkeeping of every ingested product.
func (s *Store) Sources() []SourceInfo {
	out := make([]SourceInfo, len(s.sources))
	copy(out, s.sources)
	return out
}
