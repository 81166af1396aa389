package flight

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/yegors/skylanes/internal/geodesic"
	"github.com/yegors/skylanes/internal/rng"
	"github.com/yegors/skylanes/internal/route"
)

// Phase is the stage of flight on the current leg
type Phase string

const (
	PhaseAscending  Phase = "ASCENDING"
	PhaseCruising   Phase = "CRUISING"
	PhaseDescending Phase = "DESCENDING"
	PhaseLanded     Phase = "LANDED"
)

// progressTolerance absorbs floating point drift when summing per-tick
// speeds so that 1/speed ticks always reach the end of a leg.
const progressTolerance = 1e-9

// transitionLow and transitionHigh bound the progress window in which a
// leg change is considered settled.
const (
	transitionLow  = 0.1
	transitionHigh = 0.9
)

// Params controls per-flight timing, all counted in ticks
type Params struct {
	LandingTicks           int     // Ticks spent on the ground before removal
	BankIntervalTicks      int     // Ticks between new bank targets
	MaxBankAngle           float64 // Radians; targets are drawn from [-Max, Max]
	BankSmoothing          float64 // Fraction of the remaining bank error closed per tick
	TrailIntervalTicks     int     // Base ticks between trail segments
	TrailMaxIntervalTicks  int     // Upper bound for a randomised trail interval
	TrailJitterProbability float64 // Chance per emission of randomising the next interval
}

// DefaultParams returns the reference tuning
func DefaultParams() Params {
	return Params{
		LandingTicks:           60,
		BankIntervalTicks:      60,
		MaxBankAngle:           0.15,
		BankSmoothing:          0.05,
		TrailIntervalTicks:     2,
		TrailMaxIntervalTicks:  15,
		TrailJitterProbability: 0.1,
	}
}

// Flight is a single vehicle travelling along one or more legs
type Flight struct {
	ID               string
	Callsign         string
	Legs             []*route.Leg
	CurrentLeg       int
	Progress         float64
	Phase            Phase
	Transitioning    bool
	BankAngle        float64
	TargetBankAngle  float64
	BankTimer        int
	TrailTimer       int
	TrailInterval    int
	LandingTimer     int
	FinalDestination string
	CreatedAt        time.Time

	params Params
	rng    rng.Source
}

// Pose is where a flight is and how it is oriented. Forward, Up and Right
// form an orthonormal frame with the bank already applied.
type Pose struct {
	Position geodesic.Vector3 `json:"position"`
	Forward  geodesic.Vector3 `json:"forward"`
	Up       geodesic.Vector3 `json:"up"`
	Right    geodesic.Vector3 `json:"right"`
	Bank     float64          `json:"bank"`
	Altitude float64          `json:"altitude"`
}

// TrailSegment is emitted periodically so the renderer can draw a trail
// behind the flight. Direction points backwards along the path.
type TrailSegment struct {
	Position  geodesic.Vector3 `json:"position"`
	Direction geodesic.Vector3 `json:"direction"`
}

// Step reports what happened during one Advance
type Step struct {
	Pose       Pose
	Trail      *TrailSegment
	LegChanged bool // Moved on to the next leg of a multi-leg route
	Landed     bool // Touched down at the final destination this step
	Done       bool // Landing timer expired; the flight should be removed
}

// New creates a flight at the start of its first leg. legs must not be
// empty.
func New(id string, legs []*route.Leg, params Params, source rng.Source) *Flight {
	return &Flight{
		ID:               id,
		Legs:             legs,
		Phase:            PhaseAscending,
		TrailInterval:    params.TrailIntervalTicks,
		FinalDestination: legs[len(legs)-1].To.Name,
		CreatedAt:        time.Now().UTC(),
		params:           params,
		rng:              source,
	}
}

// Leg returns the leg currently being flown
func (f *Flight) Leg() *route.Leg {
	return f.Legs[f.CurrentLeg]
}

// IsFinalLeg reports whether the current leg is the last one
func (f *Flight) IsFinalLeg() bool {
	return f.CurrentLeg == len(f.Legs)-1
}

// Advance moves the flight forward by one tick
func (f *Flight) Advance() Step {
	var step Step

	if f.Phase == PhaseLanded {
		f.LandingTimer++
		step.Pose = f.Pose()
		step.Done = f.LandingTimer >= f.params.LandingTicks
		return step
	}

	f.Progress += f.Leg().Speed
	if f.Progress >= 1-progressTolerance {
		if !f.IsFinalLeg() {
			f.CurrentLeg++
			f.Progress = 0
			f.Phase = PhaseAscending
			f.Transitioning = true
			step.LegChanged = true
		} else {
			f.Progress = 1
			f.Phase = PhaseLanded
			f.LandingTimer = 0
			f.BankAngle, f.TargetBankAngle = 0, 0
			step.Landed = true
			step.Pose = f.Pose()
			return step
		}
	}

	f.updatePhase()
	f.updateBank()
	step.Pose = f.Pose()
	step.Trail = f.updateTrail(step.Pose)
	return step
}

func (f *Flight) updatePhase() {
	if f.Transitioning {
		if f.Progress <= transitionLow || f.Progress >= transitionHigh {
			return
		}
		f.Transitioning = false
	}

	leg := f.Leg()
	switch {
	case f.Progress < leg.CruiseStart:
		f.Phase = PhaseAscending
	case f.Progress <= leg.CruiseEnd:
		f.Phase = PhaseCruising
	default:
		f.Phase = PhaseDescending
	}
}

func (f *Flight) updateBank() {
	f.BankTimer++
	if f.BankTimer >= f.params.BankIntervalTicks {
		f.TargetBankAngle = rng.Uniform(f.rng, -f.params.MaxBankAngle, f.params.MaxBankAngle)
		f.BankTimer = 0
	}
	f.BankAngle += (f.TargetBankAngle - f.BankAngle) * f.params.BankSmoothing
}

func (f *Flight) updateTrail(pose Pose) *TrailSegment {
	f.TrailTimer++
	if f.TrailTimer < f.TrailInterval {
		return nil
	}
	f.TrailTimer = 0

	f.TrailInterval = f.params.TrailIntervalTicks
	if spread := f.params.TrailMaxIntervalTicks - f.params.TrailIntervalTicks; spread > 0 &&
		rng.Chance(f.rng, f.params.TrailJitterProbability) {
		f.TrailInterval += f.rng.Intn(spread + 1)
	}

	return &TrailSegment{
		Position:  pose.Position,
		Direction: pose.Forward.Negate(),
	}
}

// Pose computes the flight's current position and banked orientation
func (f *Flight) Pose() Pose {
	leg := f.Leg()
	pos := leg.PointAt(f.Progress)
	forward := leg.TangentAt(f.Progress)
	up := pos.Normalize()

	right := forward.Cross(up).Normalize()
	if right.Length() == 0 {
		right = up.Perpendicular()
	}
	up = right.Cross(forward).Normalize()

	if f.BankAngle != 0 {
		roll := mgl64.QuatRotate(f.BankAngle, forward.Vec())
		right = geodesic.FromVec(roll.Rotate(right.Vec()))
		up = geodesic.FromVec(roll.Rotate(up.Vec()))
	}

	return Pose{
		Position: pos,
		Forward:  forward,
		Up:       up,
		Right:    right,
		Bank:     f.BankAngle,
		Altitude: pos.Length() - leg.Radius(),
	}
}
