// Public domain.

// Package astro, stuff generally useful in astronomy.
package astro

import (
	"math"

	"github.com/soniakeys/astro"
	"github.com/soniakeys/coord"
)

const (
	K    = astro.K // Gaussian gravitational constant
	InvK = 1 / K
	U    = K * K // GM of the sun, AU^3/day^2

	// speed of light, AU/day
	C = astro.C * 86400. / astro.AU

	// TT-TAI and TAI-UTC, in days.  The leap second count is frozen at
	// its 2017 value; opsim runs are simulated forward from there.
	TTMinusTAI  = 32.184 / 86400
	TAIMinusUTC = 37. / 86400

	// sidereal rotation rate of the earth, radians/day
	EarthRot = 2 * math.Pi * 1.00273781191135448
)

// obliquity of the ecliptic at J2000
var sinObl, cosObl = math.Sincos(23.4392911 * math.Pi / 180)

// Aei solves a, e, i from heliocentric state vectors.
//
// Args:
//   p = position, AU
//   v = velocity, AU/day
//
// Returns semi-major axis in AU (negative for hyperbolic orbits),
// eccentricity, and inclination in degrees, all relative to whatever
// plane p and v are referred to.
func Aei(p, v *coord.Cart) (a, e, i float64) {
	var hv coord.Cart
	hv.Cross(p, v)
	hsq := hv.Square()
	hm := math.Sqrt(hsq)

	d := math.Sqrt(p.Square())
	vsq := v.Square()
	// vis-viva, in units where GM = U
	inva := 2/d - vsq/U
	a = 1 / inva
	e = math.Sqrt(math.Max(0, 1-hsq*inva/U))

	// reliable check for i=0.  handles loss of precision in h computation.
	if hm > 0 && hv.Z < hm {
		i = math.Acos(hv.Z/hm) * 180 / math.Pi
	}
	return
}

// SiteVelocity is the velocity in AU/day of a site vector due to
// the rotation of the earth.
func SiteVelocity(site *coord.Cart) coord.Cart {
	return coord.Cart{X: -EarthRot * site.Y, Y: EarthRot * site.X}
}

// EqToEcl rotates an equatorial J2000 vector to ecliptic J2000.
func EqToEcl(v coord.Cart) coord.Cart {
	return coord.Cart{
		X: v.X,
		Y: cosObl*v.Y + sinObl*v.Z,
		Z: -sinObl*v.Y + cosObl*v.Z,
	}
}

// EclToEq rotates an ecliptic J2000 vector to equatorial J2000.
func EclToEq(v coord.Cart) coord.Cart {
	return coord.Cart{
		X: v.X,
		Y: cosObl*v.Y - sinObl*v.Z,
		Z: sinObl*v.Y + cosObl*v.Z,
	}
}

// Earth returns the heliocentric equatorial J2000 position and velocity
// of the earth, AU and AU/day.  astro.Se2000 gives the geocentric sun;
// velocity is from differencing it.
func Earth(mjd float64) (pos, vel coord.Cart) {
	const h = .01
	s, _, _ := astro.Se2000(mjd)
	pos.MulScalar(&s, -1)
	p1, _, _ := astro.Se2000(mjd + h)
	p0, _, _ := astro.Se2000(mjd - h)
	vel.Sub(&p0, &p1)
	vel.MulScalar(&vel, 1/(2*h))
	return
}
