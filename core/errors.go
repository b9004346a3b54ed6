package core

import "errors"

// Error kinds surfaced by store queries and ingestion. Callers match with
// errors.Is; the wrapped text carries the satellite, instant and threshold
// details for diagnostics.
var (
	// ErrOutOfRange means the requested instant lies outside the tabulated
	// span for that satellite in the relevant series.
	ErrOutOfRange = errors.New("requested time is outside the data table")

	// ErrUnknownSatellite means the satellite is missing from the position
	// series, the clock series, or both.
	ErrUnknownSatellite = errors.New("no ephemeris for satellite")

	// ErrDataGap means the samples bracketing the requested instant are
	// further apart than the configured gap threshold allows.
	ErrDataGap = errors.New("data gap at requested time")

	// ErrIntervalExceeded means the window selected for interpolation spans
	// more time than the configured maximum interval allows.
	ErrIntervalExceeded = errors.New("interpolation interval exceeded")

	// ErrTimeSystemMismatch means an ingested product declares a timescale
	// incompatible with the one the store is already fixed to.
	ErrTimeSystemMismatch = errors.New("time system mismatch")

	// ErrInsufficientSamples means fewer samples exist for the satellite
	// than the interpolation order requires.
	ErrInsufficientSamples = errors.New("insufficient samples for interpolation")

	// ErrSourceModeMismatch reports an override-format ingestion that
	// arrived while the clock series was fed from the primary source. The
	// loader reconciles by switching implicitly; this is a warning, not a
	// failure.
	ErrSourceModeMismatch = errors.New("clock source switched implicitly by override ingestion")

	// ErrParseFailure wraps errors surfaced verbatim from a parser
	// collaborator.
	ErrParseFailure = errors.New("product parse failure")

	// ErrNoData means the store (or the requested satellite) holds no
	// samples at all.
	ErrNoData = errors.New("store contains no data")
)
