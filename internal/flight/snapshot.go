package flight

import (
	"time"

	"github.com/yegors/skylanes/internal/geodesic"
	"github.com/yegors/skylanes/internal/physics"
	"github.com/yegors/skylanes/internal/route"
)

// Snapshot is a read-only copy of a flight's state, safe to hand to other
// goroutines
type Snapshot struct {
	ID               string           `json:"id"`
	Callsign         string           `json:"callsign"`
	Phase            Phase            `json:"phase"`
	Progress         float64          `json:"progress"`
	CurrentLeg       int              `json:"current_leg"`
	LegCount         int              `json:"leg_count"`
	From             route.Port       `json:"from"`
	To               route.Port       `json:"to"`
	Route            []string         `json:"route"`
	FinalDestination string           `json:"final_destination"`
	Transitioning    bool             `json:"transitioning"`
	BankAngle        float64          `json:"bank_angle"`
	CruiseAltitude   float64          `json:"cruise_altitude"`
	Speed            float64          `json:"speed"`
	Position         geodesic.Vector3 `json:"position"`
	Lat              float64          `json:"lat"`
	Lon              float64          `json:"lon"`
	Altitude         float64          `json:"altitude"`
	AltitudeFt       float64          `json:"altitude_ft"`
	TrueHeading      float64          `json:"true_heading"`
	MagneticHeading  *float64         `json:"magnetic_heading,omitempty"`
	LandingTimer     int              `json:"landing_timer"`
	CreatedAt        time.Time        `json:"created_at"`
}

// RoutePorts returns the ordered ports the flight visits
func (f *Flight) RoutePorts() []route.Port {
	ports := make([]route.Port, 0, len(f.Legs)+1)
	for _, leg := range f.Legs {
		ports = append(ports, leg.From)
	}
	return append(ports, f.Legs[len(f.Legs)-1].To)
}

// Snapshot captures the flight's current state. feetPerUnit converts world
// altitude to feet for the AltitudeFt field.
func (f *Flight) Snapshot(feetPerUnit float64) Snapshot {
	leg := f.Leg()
	pose := f.Pose()
	lat, lon, _ := geodesic.Unproject(pose.Position)

	names := make([]string, 0, len(f.Legs)+1)
	for _, p := range f.RoutePorts() {
		names = append(names, p.Name)
	}

	return Snapshot{
		ID:               f.ID,
		Callsign:         f.Callsign,
		Phase:            f.Phase,
		Progress:         f.Progress,
		CurrentLeg:       f.CurrentLeg,
		LegCount:         len(f.Legs),
		From:             leg.From,
		To:               leg.To,
		Route:            names,
		FinalDestination: f.FinalDestination,
		Transitioning:    f.Transitioning,
		BankAngle:        f.BankAngle,
		CruiseAltitude:   leg.CruiseAltitude,
		Speed:            leg.Speed,
		Position:         pose.Position,
		Lat:              lat,
		Lon:              lon,
		Altitude:         pose.Altitude,
		AltitudeFt:       pose.Altitude * feetPerUnit,
		TrueHeading:      physics.TrueHeading(pose.Position, pose.Forward),
		LandingTimer:     f.LandingTimer,
		CreatedAt:        f.CreatedAt,
	}
}
