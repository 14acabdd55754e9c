package vm

import (
	"math"

	"github.com/ascent-sim/ascent/expr"
)

// flightEnv bridges expression evaluation to live telemetry and the
// machine's variable store. Telemetry symbols shadow script variables of
// the same name; lookups are whole-identifier only.
type flightEnv struct {
	tel   Telemetry
	state FlightState
	vars  *VarStore
}

func (e *flightEnv) Resolve(name string) (float64, bool) {
	switch name {
	case "ALTITUDE":
		return e.tel.Altitude, true
	case "APOAPSIS":
		return e.tel.Apoapsis, true
	case "PERIAPSIS":
		return e.tel.Periapsis, true
	case "VELOCITY":
		return e.tel.Velocity, true
	case "ETA:APOAPSIS":
		return e.tel.TimeToApoapsis, true
	case "FUEL":
		return e.state.FuelFraction(), true
	case "THROTTLE":
		return e.state.Throttle(), true
	}
	return e.vars.Get(name)
}

func (e *flightEnv) Call(name string, args []float64) (float64, bool) {
	switch name {
	case "ROUND":
		if len(args) == 1 {
			return math.Round(args[0]), true
		}
	case "HEADING":
		// HEADING(a, b) reduces to the pitch component b.
		if len(args) == 2 {
			return args[1], true
		}
	}
	return 0, false
}

var _ expr.Env = (*flightEnv)(nil)
