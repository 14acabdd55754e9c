// Package vm implements the tick-driven virtual machine that executes
// compiled autopilot programs.
//
// This package contains:
//   - The collaborator interfaces the machine depends on (flight state,
//     console)
//   - The variable store owned by one machine instance
//   - The cooperative scheduler executing a bounded instruction batch
//     per tick
package vm

// Telemetry is a read-only snapshot of the flight metrics the physics
// collaborator exposes to scripts.
type Telemetry struct {
	Altitude       float64 // meters above the body surface
	Apoapsis       float64 // highest point of the current orbit, altitude
	Periapsis      float64 // lowest point of the current orbit, altitude
	Velocity       float64 // speed, m/s
	TimeToApoapsis float64 // seconds until the next apoapsis passage
}

// FlightState is the physics collaborator: telemetry plus the actuator and
// staging surface a running script may touch. The machine calls it only
// from within Tick; the host must keep Tick and the physics step strictly
// sequential.
type FlightState interface {
	Telemetry() Telemetry

	Throttle() float64
	SetThrottle(v float64)
	SetSteering(angle float64)

	// FuelFraction is remaining fuel over starting fuel, in [0, 1].
	FuelFraction() float64

	RemainingStages() int
	// SeparateStage drops the current stage: decrements the stage count,
	// refills fuel to capacity, and retains 60% of the dry mass. Returns
	// false when no stage remains.
	SeparateStage() bool
}

// PrintPos is an evaluated console position hint.
type PrintPos struct {
	X int
	Y int
}

// Console is the log sink for script output.
type Console interface {
	// Emit writes one line of script output; at is nil when the PRINT
	// statement carried no position hint.
	Emit(text string, at *PrintPos)
	// Clear wipes the console.
	Clear()
}
