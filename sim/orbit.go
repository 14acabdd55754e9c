package sim

import "math"

// ---------------------------------------------------------------------------
// Orbital elements from state vectors (planar two-body problem)
// ---------------------------------------------------------------------------

// orbit holds the derived quantities telemetry reports. apoapsis and
// periapsis are radii from the body center.
type orbit struct {
	apoapsis       float64
	periapsis      float64
	timeToApoapsis float64
}

// elements computes the osculating orbit for the given state. On an
// escape trajectory the apoapsis is +Inf and time-to-apoapsis is 0.
func elements(pos, vel Vec2, mu float64) orbit {
	r := pos.Len()
	if r == 0 || mu == 0 {
		return orbit{}
	}

	speed := vel.Len()
	energy := speed*speed/2 - mu/r
	h := pos.Cross(vel)

	e2 := 1 + 2*energy*h*h/(mu*mu)
	if e2 < 0 {
		e2 = 0
	}
	ecc := math.Sqrt(e2)

	if energy >= 0 {
		// Parabolic or hyperbolic: no apoapsis ahead.
		periapsis := h * h / mu / (1 + ecc)
		return orbit{apoapsis: math.Inf(1), periapsis: periapsis}
	}

	a := -mu / (2 * energy)
	out := orbit{
		apoapsis:  a * (1 + ecc),
		periapsis: a * (1 - ecc),
	}

	// Time to the next apoapsis passage via eccentric and mean anomaly.
	// A near-circular orbit has no meaningful apoapsis direction.
	if ecc < 1e-9 {
		return out
	}
	cosE := (1 - r/a) / ecc
	if cosE > 1 {
		cosE = 1
	} else if cosE < -1 {
		cosE = -1
	}
	E := math.Acos(cosE)
	if pos.Dot(vel) < 0 {
		E = -E
	}
	M := E - ecc*math.Sin(E)
	n := math.Sqrt(mu / (a * a * a))
	out.timeToApoapsis = (math.Pi - M) / n
	return out
}
