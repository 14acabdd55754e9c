// Package sim provides the reference physics collaborator: a 2D
// point-mass vessel under two-body gravity with throttle, steering, fuel
// and staging. The virtual machine sees it only through the interfaces in
// package vm.
package sim

import (
	"math"

	"github.com/tliron/commonlog"

	"github.com/ascent-sim/ascent/vm"
)

// stageDryMassRetention is the fraction of dry mass kept after a stage
// separation: dropping a spent stage sheds 40% of the structure.
const stageDryMassRetention = 0.6

// Config describes the vessel and the body it launches from.
type Config struct {
	DryMass         float64 // kg, all stages attached
	FuelCapacity    float64 // kg per stage
	Stages          int
	MaxThrust       float64 // N at full throttle
	ExhaustVelocity float64 // m/s effective

	BodyRadius float64 // m
	GravParam  float64 // m^3/s^2
}

// Vec2 is a plane vector. The simulation runs in the orbital plane.
type Vec2 struct {
	X float64
	Y float64
}

func (v Vec2) Add(o Vec2) Vec2      { return Vec2{v.X + o.X, v.Y + o.Y} }
func (v Vec2) Scale(s float64) Vec2 { return Vec2{v.X * s, v.Y * s} }
func (v Vec2) Len() float64         { return math.Hypot(v.X, v.Y) }
func (v Vec2) Dot(o Vec2) float64   { return v.X*o.X + v.Y*o.Y }

// Cross returns the z component of the plane cross product.
func (v Vec2) Cross(o Vec2) float64 { return v.X*o.Y - v.Y*o.X }

// Vessel is the mutable flight state. Not safe for concurrent use: the
// host must keep Tick, Step and telemetry reads strictly sequential.
type Vessel struct {
	cfg Config
	log commonlog.Logger

	pos Vec2 // from body center
	vel Vec2

	throttle float64
	steering float64 // pitch from local vertical, degrees

	fuel    float64
	dryMass float64
	stages  int

	elapsed float64
}

// NewVessel creates a vessel resting on the surface.
func NewVessel(cfg Config) *Vessel {
	return &Vessel{
		cfg:     cfg,
		log:     commonlog.GetLogger("ascent.sim"),
		pos:     Vec2{X: 0, Y: cfg.BodyRadius},
		fuel:    cfg.FuelCapacity,
		dryMass: cfg.DryMass,
		stages:  cfg.Stages,
	}
}

// Mass is the current total mass.
func (v *Vessel) Mass() float64 {
	return v.dryMass + v.fuel
}

// Fuel returns the remaining fuel mass.
func (v *Vessel) Fuel() float64 { return v.fuel }

// DryMass returns the current dry mass.
func (v *Vessel) DryMass() float64 { return v.dryMass }

// Elapsed returns the simulated mission time.
func (v *Vessel) Elapsed() float64 { return v.elapsed }

func (v *Vessel) Throttle() float64 { return v.throttle }

func (v *Vessel) SetThrottle(t float64) {
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	v.throttle = t
}

func (v *Vessel) Steering() float64 { return v.steering }

func (v *Vessel) SetSteering(angle float64) { v.steering = angle }

func (v *Vessel) FuelFraction() float64 {
	if v.cfg.FuelCapacity <= 0 {
		return 0
	}
	return v.fuel / v.cfg.FuelCapacity
}

func (v *Vessel) RemainingStages() int { return v.stages }

// SeparateStage drops the current stage. Returns false when none remain.
func (v *Vessel) SeparateStage() bool {
	if v.stages <= 0 {
		return false
	}
	v.stages--
	v.fuel = v.cfg.FuelCapacity
	v.dryMass *= stageDryMassRetention
	v.log.Infof("stage separation, %d remaining", v.stages)
	return true
}

// thrustDir is the unit thrust direction: local up pitched by the
// steering angle toward the local horizontal.
func (v *Vessel) thrustDir() Vec2 {
	r := v.pos.Len()
	if r == 0 {
		return Vec2{X: 0, Y: 1}
	}
	up := v.pos.Scale(1 / r)
	east := Vec2{X: up.Y, Y: -up.X}
	rad := v.steering * math.Pi / 180
	return up.Scale(math.Cos(rad)).Add(east.Scale(math.Sin(rad)))
}

// Step advances the simulation by dt seconds using semi-implicit Euler.
func (v *Vessel) Step(dt float64) {
	r := v.pos.Len()
	acc := v.pos.Scale(-v.cfg.GravParam / (r * r * r))

	thrust := v.throttle * v.cfg.MaxThrust
	if v.fuel <= 0 {
		thrust = 0
	}
	if thrust > 0 {
		acc = acc.Add(v.thrustDir().Scale(thrust / v.Mass()))
		burn := thrust / v.cfg.ExhaustVelocity * dt
		v.fuel -= burn
		if v.fuel < 0 {
			v.fuel = 0
		}
	}

	v.vel = v.vel.Add(acc.Scale(dt))
	v.pos = v.pos.Add(v.vel.Scale(dt))
	v.elapsed += dt

	// Ground contact: stay on the surface, kill inward velocity.
	if v.pos.Len() < v.cfg.BodyRadius {
		v.pos = v.pos.Scale(v.cfg.BodyRadius / v.pos.Len())
		up := v.pos.Scale(1 / v.pos.Len())
		radial := v.vel.Dot(up)
		if radial < 0 {
			v.vel = v.vel.Add(up.Scale(-radial))
		}
	}
}

// Telemetry computes the orbital snapshot scripts read.
func (v *Vessel) Telemetry() vm.Telemetry {
	el := elements(v.pos, v.vel, v.cfg.GravParam)
	return vm.Telemetry{
		Altitude:       v.pos.Len() - v.cfg.BodyRadius,
		Apoapsis:       el.apoapsis - v.cfg.BodyRadius,
		Periapsis:      el.periapsis - v.cfg.BodyRadius,
		Velocity:       v.vel.Len(),
		TimeToApoapsis: el.timeToApoapsis,
	}
}

var _ vm.FlightState = (*Vessel)(nil)
