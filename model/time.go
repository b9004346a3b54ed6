package model

import (
	"fmt"
	"strings"
	"time"
)

// TimeSystem identifies the reference timescale an Instant is expressed in.
// Timescales are not implicitly convertible; stores refuse to mix them.
type TimeSystem int

const (
	// TimeAny matches any time system. It is the state of an empty store
	// and the wildcard in compatibility checks.
	TimeAny TimeSystem = iota
	TimeGPS
	TimeUTC
	TimeGLONASS
	TimeGalileo
	TimeBeiDou
	TimeQZSS
	TimeIRNSS
)

var timeSystemNames = map[TimeSystem]string{
	TimeAny:     "Any",
	TimeGPS:     "GPS",
	TimeUTC:     "UTC",
	TimeGLONASS: "GLO",
	TimeGalileo: "GAL",
	TimeBeiDou:  "BDT",
	TimeQZSS:    "QZS",
	TimeIRNSS:   "IRN",
}

func (ts TimeSystem) String() string {
	if name, ok := timeSystemNames[ts]; ok {
		return name
	}
	return fmt.Sprintf("TimeSystem(%d)", int(ts))
}

// ParseTimeSystem maps the common timescale abbreviations onto a TimeSystem.
func ParseTimeSystem(s string) (TimeSystem, error) {
	for ts, name := range timeSystemNames {
		if strings.EqualFold(s, name) {
			return ts, nil
		}
	}
	// long forms seen in product headers
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GLONASS":
		return TimeGLONASS, nil
	case "GALILEO":
		return TimeGalileo, nil
	case "BEIDOU", "BDS":
		return TimeBeiDou, nil
	case "QZSS":
		return TimeQZSS, nil
	case "IRNSS":
		return TimeIRNSS, nil
	}
	return TimeAny, fmt.Errorf("unknown time system %q", s)
}

// CompatibleWith reports whether two timescales may be compared or mixed.
// Any is compatible with everything.
func (ts TimeSystem) CompatibleWith(other TimeSystem) bool {
	return ts == TimeAny || other == TimeAny || ts == other
}

// Instant is a timestamp interpreted in a specific TimeSystem. The embedded
// wall-clock value carries no timezone meaning; it is simply a count of
// seconds on the tagged timescale.
//
// Ordering helpers compare the clock value only; callers are responsible for
// checking CompatibleWith where two systems could legitimately differ (store
// boundaries do this and report a time-system mismatch).
type Instant struct {
	Epoch  time.Time
	System TimeSystem
}

// NewInstant builds an Instant on the given timescale.
func NewInstant(t time.Time, sys TimeSystem) Instant {
	return Instant{Epoch: t, System: sys}
}

// Sub returns i - o in seconds.
func (i Instant) Sub(o Instant) float64 {
	return i.Epoch.Sub(o.Epoch).Seconds()
}

// Add returns the instant sec seconds later on the same timescale.
func (i Instant) Add(sec float64) Instant {
	return Instant{Epoch: i.Epoch.Add(time.Duration(sec * float64(time.Second))), System: i.System}
}

func (i Instant) Before(o Instant) bool { return i.Epoch.Before(o.Epoch) }
func (i Instant) After(o Instant) bool  { return i.Epoch.After(o.Epoch) }

// Equal reports whether the two instants denote the same point on compatible
// timescales. Incompatible systems are never equal.
func (i Instant) Equal(o Instant) bool {
	return i.System.CompatibleWith(o.System) && i.Epoch.Equal(o.Epoch)
}

// CompatibleWith reports whether the instants share a timescale.
func (i Instant) CompatibleWith(o Instant) bool {
	return i.System.CompatibleWith(o.System)
}

func (i Instant) IsZero() bool { return i.Epoch.IsZero() }

func (i Instant) String() string {
	return fmt.Sprintf("%s %s", i.Epoch.Format("2006-01-02 15:04:05.000"), i.System)
}
