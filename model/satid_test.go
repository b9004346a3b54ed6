package model

import "testing"

func TestSatelliteIDString(t *testing.T) {
	cases := []struct {
		sat  SatelliteID
		want string
	}{
		{SatelliteID{System: SystemGPS, ID: 1}, "G01"},
		{SatelliteID{System: SystemGLONASS, ID: 24}, "R24"},
		{SatelliteID{System: SystemGalileo, ID: 5}, "E05"},
		{SatelliteID{System: SystemBeiDou, ID: 14}, "C14"},
	}
	for _, c := range cases {
		if got := c.sat.String(); got != c.want {
			t.Errorf("%v.String() = %q, want %q", c.sat, got, c.want)
		}
	}
}

func TestSatelliteIDOrdering(t *testing.T) {
	g1 := SatelliteID{System: SystemGPS, ID: 1}
	g2 := SatelliteID{System: SystemGPS, ID: 2}
	r1 := SatelliteID{System: SystemGLONASS, ID: 1}

	if !g1.Less(g2) {
		t.Errorf("G01 not < G02")
	}
	if !g2.Less(r1) {
		t.Errorf("G02 not < R01 (system orders first)")
	}
	if g1.Less(g1) {
		t.Errorf("id < itself")
	}
}
