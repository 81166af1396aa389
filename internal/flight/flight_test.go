package flight

import (
	"math"
	"testing"

	"github.com/yegors/skylanes/internal/rng"
	"github.com/yegors/skylanes/internal/route"
)

var (
	fra = route.Port{Ident: "EDDF", Name: "Frankfurt", Lat: 50.0379, Lon: 8.5622}
	dxb = route.Port{Ident: "OMDB", Name: "Dubai", Lat: 25.2532, Lon: 55.3657}
	sin = route.Port{Ident: "WSSS", Name: "Changi", Lat: 1.3644, Lon: 103.9915}
)

func buildLegs(t *testing.T, ports ...route.Port) []*route.Leg {
	t.Helper()
	legs, err := route.NewBuilder(route.DefaultParams()).BuildRoute(ports)
	if err != nil {
		t.Fatalf("BuildRoute: %v", err)
	}
	return legs
}

// ticksToArrive is the number of advances needed to cover one leg
func ticksToArrive(speed float64) int {
	return int(math.Ceil(1/speed - 1e-6))
}

func TestSingleLegReachesLanded(t *testing.T) {
	legs := buildLegs(t, fra, dxb)
	f := New("f1", legs, DefaultParams(), rng.New(1))
	if f.Phase != PhaseAscending {
		t.Fatalf("new flight phase %s", f.Phase)
	}

	seen := map[Phase]bool{}
	n := ticksToArrive(legs[0].Speed)
	var landedAt int
	for i := 1; i <= n; i++ {
		step := f.Advance()
		seen[f.Phase] = true
		if f.Progress < 0 || f.Progress > 1 {
			t.Fatalf("tick %d: progress %f out of range", i, f.Progress)
		}
		if step.Landed {
			landedAt = i
		}
	}

	if f.Phase != PhaseLanded {
		t.Fatalf("after %d ticks phase is %s, progress %f", n, f.Phase, f.Progress)
	}
	if f.Progress != 1 {
		t.Errorf("landed progress %f, want exactly 1", f.Progress)
	}
	if landedAt != n {
		t.Errorf("landed on tick %d, want %d", landedAt, n)
	}
	for _, p := range []Phase{PhaseAscending, PhaseCruising, PhaseDescending, PhaseLanded} {
		if !seen[p] {
			t.Errorf("never passed through %s", p)
		}
	}
	if f.FinalDestination != dxb.Name {
		t.Errorf("final destination %q, want %q", f.FinalDestination, dxb.Name)
	}
}

func TestPhaseOrder(t *testing.T) {
	legs := buildLegs(t, fra, sin)
	f := New("f1", legs, DefaultParams(), rng.New(2))
	order := map[Phase]int{PhaseAscending: 0, PhaseCruising: 1, PhaseDescending: 2, PhaseLanded: 3}
	last := 0
	for f.Phase != PhaseLanded {
		f.Advance()
		if order[f.Phase] < last {
			t.Fatalf("phase went backwards to %s at progress %f", f.Phase, f.Progress)
		}
		last = order[f.Phase]
	}
}

func TestLandingTimerRemoval(t *testing.T) {
	params := DefaultParams()
	legs := buildLegs(t, fra, dxb)
	f := New("f1", legs, params, rng.New(3))
	for f.Phase != PhaseLanded {
		if f.Advance().Done {
			t.Fatalf("done before landing")
		}
	}
	for i := 1; i < params.LandingTicks; i++ {
		step := f.Advance()
		if step.Done {
			t.Fatalf("done after %d landed ticks, want %d", i, params.LandingTicks)
		}
		if step.Trail != nil {
			t.Fatalf("landed flight emitted a trail")
		}
		if f.Progress != 1 {
			t.Fatalf("landed progress moved to %f", f.Progress)
		}
	}
	if !f.Advance().Done {
		t.Errorf("not done after %d landed ticks", params.LandingTicks)
	}
}

func TestMultiLegTransition(t *testing.T) {
	legs := buildLegs(t, fra, dxb, sin)
	f := New("f1", legs, DefaultParams(), rng.New(4))
	if f.FinalDestination != sin.Name {
		t.Fatalf("final destination %q, want %q", f.FinalDestination, sin.Name)
	}

	n := ticksToArrive(legs[0].Speed)
	for i := 1; i < n; i++ {
		if f.Advance().LegChanged {
			t.Fatalf("changed leg early at tick %d", i)
		}
	}
	step := f.Advance()
	if !step.LegChanged || step.Landed {
		t.Fatalf("expected a leg change, got %+v", step)
	}
	if f.CurrentLeg != 1 || f.Progress != 0 || f.Phase != PhaseAscending || !f.Transitioning {
		t.Fatalf("after leg change: leg=%d progress=%f phase=%s transitioning=%v",
			f.CurrentLeg, f.Progress, f.Phase, f.Transitioning)
	}

	// The transition flag clears once progress is inside (0.1, 0.9).
	for f.Progress <= transitionLow {
		f.Advance()
		if f.Progress <= transitionLow && !f.Transitioning {
			t.Fatalf("transition cleared early at progress %f", f.Progress)
		}
	}
	if f.Transitioning {
		t.Errorf("transition still set at progress %f", f.Progress)
	}

	for f.Phase != PhaseLanded {
		f.Advance()
	}
	if f.CurrentLeg != 1 || f.Progress != 1 {
		t.Errorf("landed on leg %d with progress %f", f.CurrentLeg, f.Progress)
	}
}

func TestBankingStaysBoundedAndSmooth(t *testing.T) {
	params := DefaultParams()
	legs := buildLegs(t, fra, sin)
	f := New("f1", legs, params, rng.New(5))

	prev := f.BankAngle
	targets := map[float64]bool{}
	for i := 0; i < 600 && f.Phase != PhaseLanded; i++ {
		f.Advance()
		if math.Abs(f.TargetBankAngle) > params.MaxBankAngle {
			t.Fatalf("target bank %f out of range", f.TargetBankAngle)
		}
		if math.Abs(f.BankAngle) > params.MaxBankAngle {
			t.Fatalf("bank %f out of range", f.BankAngle)
		}
		// One step never moves more than the smoothing fraction of the full range.
		if d := math.Abs(f.BankAngle - prev); d > 2*params.MaxBankAngle*params.BankSmoothing+1e-12 {
			t.Fatalf("bank jumped by %f", d)
		}
		prev = f.BankAngle
		targets[f.TargetBankAngle] = true
	}
	if len(targets) < 5 {
		t.Errorf("expected several bank targets over 600 ticks, got %d", len(targets))
	}
}

func TestTrailEmission(t *testing.T) {
	params := DefaultParams()
	params.TrailJitterProbability = 0
	legs := buildLegs(t, fra, dxb)
	f := New("f1", legs, params, rng.New(6))

	emitted := 0
	for i := 1; i <= 20; i++ {
		step := f.Advance()
		if step.Trail == nil {
			continue
		}
		emitted++
		if i%params.TrailIntervalTicks != 0 {
			t.Errorf("trail emitted on tick %d", i)
		}
		if step.Trail.Direction.Dot(step.Pose.Forward) > -0.999 {
			t.Errorf("trail direction is not the reverse of travel")
		}
		if step.Trail.Position != step.Pose.Position {
			t.Errorf("trail position differs from pose")
		}
	}
	if emitted != 20/params.TrailIntervalTicks {
		t.Errorf("emitted %d trail segments, want %d", emitted, 20/params.TrailIntervalTicks)
	}
}

func TestTrailIntervalJitter(t *testing.T) {
	params := DefaultParams()
	params.TrailJitterProbability = 1
	legs := buildLegs(t, fra, sin)
	f := New("f1", legs, params, rng.New(7))
	for i := 0; i < 300; i++ {
		f.Advance()
		if f.TrailInterval < params.TrailIntervalTicks || f.TrailInterval > params.TrailMaxIntervalTicks {
			t.Fatalf("trail interval %d outside [%d,%d]", f.TrailInterval, params.TrailIntervalTicks, params.TrailMaxIntervalTicks)
		}
	}
}

func TestPoseFrameIsOrthonormal(t *testing.T) {
	legs := buildLegs(t, fra, sin)
	f := New("f1", legs, DefaultParams(), rng.New(8))
	for i := 0; i < 400; i++ {
		step := f.Advance()
		p := step.Pose
		for name, v := range map[string]float64{
			"forward": p.Forward.Length(), "up": p.Up.Length(), "right": p.Right.Length(),
		} {
			if math.Abs(v-1) > 1e-6 {
				t.Fatalf("tick %d: %s has length %f", i, name, v)
			}
		}
		if math.Abs(p.Forward.Dot(p.Up)) > 1e-6 || math.Abs(p.Forward.Dot(p.Right)) > 1e-6 || math.Abs(p.Up.Dot(p.Right)) > 1e-6 {
			t.Fatalf("tick %d: frame not orthogonal", i)
		}
		if p.Altitude < -1e-4 {
			t.Fatalf("tick %d: altitude %f below ground", i, p.Altitude)
		}
	}
}

func TestPoseBankRollsAboutForward(t *testing.T) {
	legs := buildLegs(t, fra, sin)
	f := New("f1", legs, DefaultParams(), rng.New(8))
	for i := 0; i < 50; i++ {
		f.Advance()
	}
	f.BankAngle = 0
	level := f.Pose()
	f.BankAngle = 0.12
	banked := f.Pose()

	if d := banked.Forward.DistanceTo(level.Forward); d > 1e-12 {
		t.Errorf("banking moved forward by %g", d)
	}
	if got := math.Acos(math.Min(1, banked.Up.Dot(level.Up))); math.Abs(got-0.12) > 1e-9 {
		t.Errorf("up rolled by %f, want 0.12", got)
	}
	if got := math.Acos(math.Min(1, banked.Right.Dot(level.Right))); math.Abs(got-0.12) > 1e-9 {
		t.Errorf("right rolled by %f, want 0.12", got)
	}
	if math.Abs(banked.Up.Dot(banked.Right)) > 1e-9 {
		t.Errorf("banked frame not orthogonal")
	}
}

func TestSnapshot(t *testing.T) {
	legs := buildLegs(t, fra, dxb, sin)
	f := New("abc", legs, DefaultParams(), rng.New(9))
	f.Callsign = "SKY123"
	for i := 0; i < 100; i++ {
		f.Advance()
	}
	s := f.Snapshot(500000)
	if s.ID != "abc" || s.Callsign != "SKY123" || s.LegCount != 2 {
		t.Errorf("unexpected snapshot identity: %+v", s)
	}
	if len(s.Route) != 3 || s.Route[0] != fra.Name || s.Route[2] != sin.Name {
		t.Errorf("route %v", s.Route)
	}
	if s.AltitudeFt != s.Altitude*500000 {
		t.Errorf("altitude_ft %f for altitude %f", s.AltitudeFt, s.Altitude)
	}
	if s.TrueHeading < 0 || s.TrueHeading >= 360 {
		t.Errorf("heading %f out of range", s.TrueHeading)
	}
	// Frankfurt to Dubai heads roughly south-east.
	if s.TrueHeading < 90 || s.TrueHeading > 180 {
		t.Errorf("heading %f, expected south-easterly", s.TrueHeading)
	}
}
