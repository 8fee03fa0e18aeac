package detect

import "testing"

func TestHaversineKM(t *testing.T) {
	// New York to Tokyo, roughly 10,850 km.
	d := haversineKM(40.7128, -74.0060, 35.6762, 139.6503)
	if d < 10000 || d > 11500 {
		t.Errorf("NYC-Tokyo distance = %.0f km, want roughly 10850", d)
	}

	if d := haversineKM(51.5, -0.12, 51.5, -0.12); d != 0 {
		t.Errorf("same-point distance = %f, want 0", d)
	}

	// London to Paris, roughly 344 km.
	d = haversineKM(51.5074, -0.1278, 48.8566, 2.3522)
	if d < 320 || d > 370 {
		t.Errorf("London-Paris distance = %.0f km, want roughly 344", d)
	}
}

func TestValidCoords(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{91, 0, false},
		{0, 181, false},
		{-90.5, 0, false},
	}
	for _, tc := range cases {
		if got := validCoords(tc.lat, tc.lon); got != tc.want {
			t.Errorf("validCoords(%v, %v) = %v, want %v", tc.lat, tc.lon, got, tc.want)
		}
	}
}

func TestZeroCoords(t *testing.T) {
	if !zeroCoords(0, 0) {
		t.Error("(0,0) should read as zero")
	}
	if zeroCoords(0, 1) || zeroCoords(1, 0) {
		t.Error("half-populated coordinates are not zero")
	}
}
