package model

import "fmt"

// GNSS identifies a satellite constellation.
type GNSS int

const (
	SystemUnknown GNSS = iota
	SystemGPS
	SystemGLONASS
	SystemGalileo
	SystemBeiDou
	SystemQZSS
	SystemIRNSS
	SystemSBAS
)

var gnssLetters = map[GNSS]byte{
	SystemGPS:     'G',
	SystemGLONASS: 'R',
	SystemGalileo: 'E',
	SystemBeiDou:  'C',
	SystemQZSS:    'J',
	SystemIRNSS:   'I',
	SystemSBAS:    'S',
}

func (g GNSS) String() string {
	switch g {
	case SystemGPS:
		return "GPS"
	case SystemGLONASS:
		return "GLONASS"
	case SystemGalileo:
		return "Galileo"
	case SystemBeiDou:
		return "BeiDou"
	case SystemQZSS:
		return "QZSS"
	case SystemIRNSS:
		return "IRNSS"
	case SystemSBAS:
		return "SBAS"
	}
	return "Unknown"
}

// SatelliteID names one satellite: a constellation plus the integer ID used
// by that constellation (PRN for GPS, slot for GLONASS, ...). The zero value
// is not a valid satellite.
type SatelliteID struct {
	System GNSS
	ID     int
}

// Less orders satellite IDs lexicographically by (System, ID).
func (s SatelliteID) Less(o SatelliteID) bool {
	if s.System != o.System {
		return s.System < o.System
	}
	return s.ID < o.ID
}

// String renders the RINEX-style short form, e.g. "G01" or "R24".
func (s SatelliteID) String() string {
	if letter, ok := gnssLetters[s.System]; ok {
		return fmt.Sprintf("%c%02d", letter, s.ID)
	}
	return fmt.Sprintf("?%02d", s.ID)
}
