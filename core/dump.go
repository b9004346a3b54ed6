package core

import (
	"fmt"
	"io"
)

// Dump writes a human-readable description of the store to w.
// Detail levels: 0 summary, 1 adds flags and per-satellite counts,
// 2 adds the full data tables.
func (s *Store) Dump(w io.Writer, detail int) {
	fmt.Fprintf(w, "Ephemeris store: time system %s, clock source %s\n",
		s.timeSystem, clockSourceName(s.clockFromPrimary))
	if detail >= 1 {
		fmt.Fprintf(w, " %s bad positions, %s bad clocks\n",
			rejectWord(s.rejectBadPositions), rejectWord(s.rejectBadClocks))
		fmt.Fprintf(w, " %s predicted positions, %s predicted clocks\n",
			rejectWord(s.rejectPredictedPositions), rejectWord(s.rejectPredictedClocks))
		for _, src := range s.sources {
			fmt.Fprintf(w, " source %s: %s, %d satellites, %d records, declared step %.1fs\n",
				src.Format, src.TimeSystem, src.SatelliteCount, src.Records, src.NominalStep)
		}
	}
	s.pos.Dump(w, detail)
	s.clk.Dump(w, detail)
}

// Dump describes the position series.
func (ps *PositionStore) Dump(w io.Writer, detail int) {
	sats := ps.tab.satellites()
	fmt.Fprintf(w, "Position store: %d satellites, %d samples, order %d, velocity %v\n",
		len(sats), ps.tab.count(), ps.order, ps.hasVel)
	if detail < 1 {
		return
	}
	fmt.Fprintf(w, " gap interval %s, max interval %s\n",
		factorWord(ps.tab.gapFactor), factorWord(ps.tab.maxFactor))
	for _, sat := range sats {
		ss := ps.tab.sats[sat]
		fmt.Fprintf(w, " %s: %d samples, step %.1fs, %s to %s\n",
			sat, len(ss.samples), ss.nominalStep(),
			ss.samples[0].at, ss.samples[len(ss.samples)-1].at)
		if detail < 2 {
			continue
		}
		for _, sm := range ss.samples {
			fmt.Fprintf(w, "  %s pos %s sig %s vel %s\n", sm.at, sm.rec.Pos, sm.rec.SigPos, sm.rec.Vel)
		}
	}
}

// Dump describes the clock series.
func (cs *ClockStore) Dump(w io.Writer, detail int) {
	sats := cs.tab.satellites()
	fmt.Fprintf(w, "Clock store: %d satellites, %d samples, %s order %d, drift %v\n",
		len(sats), cs.tab.count(), cs.kind, cs.order, cs.hasDrift)
	if detail < 1 {
		return
	}
	fmt.Fprintf(w, " gap interval %s, max interval %s\n",
		factorWord(cs.tab.gapFactor), factorWord(cs.tab.maxFactor))
	for _, sat := range sats {
		ss := cs.tab.sats[sat]
		fmt.Fprintf(w, " %s: %d samples, step %.1fs, %s to %s\n",
			sat, len(ss.samples), ss.nominalStep(),
			ss.samples[0].at, ss.samples[len(ss.samples)-1].at)
		if detail < 2 {
			continue
		}
		for _, sm := range ss.samples {
			fmt.Fprintf(w, "  %s bias %.12f drift %.15f\n", sm.at, sm.rec.Bias, sm.rec.Drift)
		}
	}
}

func clockSourceName(fromPrimary bool) string {
	if fromPrimary {
		return "primary"
	}
	return "override"
}

func rejectWord(flag bool) string {
	if flag {
		return "reject"
	}
	return "keep"
}

func factorWord(factor float64) string {
	if factor <= 0 {
		return "off"
	}
	return fmt.Sprintf("%.1fx step", factor)
}
