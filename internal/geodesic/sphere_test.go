package geodesic

import (
	"math"
	"testing"
)

const eps = 1e-6

func TestProjectPreservesRadius(t *testing.T) {
	for lat := -90.0; lat <= 90; lat += 7.5 {
		for lon := -180.0; lon <= 180; lon += 11.25 {
			for _, r := range []float64{0.5, 1, 6371} {
				p := Project(lat, lon, r)
				if math.Abs(p.Length()-r) > eps*math.Max(1, r) {
					t.Fatalf("|Project(%.2f,%.2f,%.1f)| = %f", lat, lon, r, p.Length())
				}
			}
		}
	}
}

func TestUnprojectRoundTrip(t *testing.T) {
	for _, tc := range []struct{ lat, lon float64 }{
		{0, 0}, {45, 90}, {-33.9, 151.2}, {51.47, -0.45}, {10, -179.5}, {-60, 179},
	} {
		lat, lon, r := Unproject(Project(tc.lat, tc.lon, 2))
		if math.Abs(lat-tc.lat) > eps || math.Abs(lon-tc.lon) > eps || math.Abs(r-2) > eps {
			t.Errorf("round trip (%f,%f) -> (%f,%f,%f)", tc.lat, tc.lon, lat, lon, r)
		}
	}
}

func TestAngularDistance(t *testing.T) {
	if d := AngularDistance(10, 20, 10, 20); d != 0 {
		t.Errorf("same point: got %f", d)
	}
	if d := AngularDistance(0, 0, 0, 90); math.Abs(d-math.Pi/2) > eps {
		t.Errorf("quarter turn: got %f", d)
	}
	if d := AngularDistance(0, 0, 0, 180); math.Abs(d-math.Pi) > eps {
		t.Errorf("antipodal: got %f", d)
	}
	if d1, d2 := AngularDistance(40, -74, 51, 0), AngularDistance(51, 0, 40, -74); math.Abs(d1-d2) > eps {
		t.Errorf("not symmetric: %f vs %f", d1, d2)
	}
}

func TestArcPointsCountAndEndpoints(t *testing.T) {
	for _, segments := range []int{1, 10, 60} {
		for _, longWay := range []bool{false, true} {
			pts := ArcPoints(40.64, -73.78, 51.47, -0.45, 1, segments, MainArc, longWay)
			if len(pts) != segments+1 {
				t.Fatalf("segments=%d: got %d points", segments, len(pts))
			}
			lat, lon, r := Unproject(pts[0])
			if math.Abs(lat-40.64) > eps || math.Abs(lon+73.78) > eps || math.Abs(r-1) > eps {
				t.Errorf("first point (%f,%f,%f)", lat, lon, r)
			}
			lat, lon, r = Unproject(pts[segments])
			if math.Abs(lat-51.47) > eps || math.Abs(lon+0.45) > eps || math.Abs(r-1) > eps {
				t.Errorf("last point (%f,%f,%f)", lat, lon, r)
			}
		}
	}
}

func TestArcPointsBulge(t *testing.T) {
	pts := ArcPoints(0, 0, 0, 90, 1, 60, MainArc, false)
	mid := pts[30].Length()
	want := 1 + MainArc.Height(0.5)
	if math.Abs(mid-want) > eps {
		t.Errorf("midpoint radius %f, want %f", mid, want)
	}
	for i, p := range pts {
		if p.Length() < 1-eps {
			t.Errorf("point %d below the surface: %f", i, p.Length())
		}
	}
}

func TestArcPointsFollowGreatCircle(t *testing.T) {
	// Along the equator every point should stay at latitude 0 and the
	// short way between lon 0 and lon 90 never leaves [0,90].
	short := ArcPoints(0, 0, 0, 90, 1, 12, MinorArc, false)
	for _, p := range short {
		lat, lon, _ := Unproject(p)
		if math.Abs(lat) > eps || lon < -eps || lon > 90+eps {
			t.Errorf("short arc point off path: (%f,%f)", lat, lon)
		}
	}

	// The long way passes through the opposite side, e.g. lon -135.
	long := ArcPoints(0, 0, 0, 90, 1, 12, MinorArc, true)
	_, lon, _ := Unproject(long[6])
	if math.Abs(lon-(-135)) > 1e-3 {
		t.Errorf("long arc midpoint lon %f, want -135", lon)
	}
}

func TestArcPointsDegenerate(t *testing.T) {
	same := ArcPoints(12, 34, 12, 34, 1, 8, MainArc, false)
	for _, p := range same {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
			t.Fatalf("NaN in degenerate arc")
		}
	}
	anti := ArcPoints(0, 0, 0, 180, 1, 8, MainArc, false)
	for _, p := range anti {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
			t.Fatalf("NaN in antipodal arc")
		}
	}
	if d := anti[8].DistanceTo(Project(0, 180, 1)); d > eps {
		t.Errorf("antipodal arc ends %f away from target", d)
	}
}

func TestValidLatLon(t *testing.T) {
	for _, tc := range []struct {
		lat, lon float64
		ok       bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{90.1, 0, false},
		{0, -180.5, false},
		{math.NaN(), 0, false},
		{0, math.Inf(1), false},
	} {
		if got := ValidLatLon(tc.lat, tc.lon); got != tc.ok {
			t.Errorf("ValidLatLon(%f,%f) = %v", tc.lat, tc.lon, got)
		}
	}
}

func TestVectorConversionKeepsComponents(t *testing.T) {
	v := Vector3{X: 1.5, Y: -2, Z: 0.25}
	if got := FromVec(v.Vec()); got != v {
		t.Errorf("FromVec(Vec()) = %+v", got)
	}
	if n := (Vector3{}).Normalize(); n != (Vector3{}) {
		t.Errorf("zero vector normalised to %+v", n)
	}
	if c := (Vector3{X: 1}).Cross(Vector3{Y: 1}); c.DistanceTo(Vector3{Z: 1}) > eps {
		t.Errorf("x cross y = %+v", c)
	}
}
