// Public domain.

package ephem

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/meeus/v3/kepler"
	"github.com/soniakeys/unit"

	"github.com/lsst-sims/makelsstobs/astro"
	"github.com/lsst-sims/makelsstobs/internal/orbits"
)

// parabolic tolerance on eccentricity
const parTol = 1e-8

// Conic is a two-body orbit in cometary form.  Vectors computed from it
// are referred to the same plane as its angles.
type Conic struct {
	Q, E            float64 // AU
	Inc, Node, Peri unit.Angle
	TPeri           float64 // MJD TT

	// perifocal unit vectors
	p, q coord.Cart
}

// NewConic constructs a Conic and its perifocal frame.
func NewConic(q, e float64, inc, node, peri unit.Angle, tPeri float64) *Conic {
	c := &Conic{Q: q, E: e, Inc: inc, Node: node, Peri: peri, TPeri: tPeri}
	sn, cn := math.Sincos(node.Rad())
	sw, cw := math.Sincos(peri.Rad())
	si, ci := math.Sincos(inc.Rad())
	c.p = coord.Cart{
		X: cn*cw - sn*sw*ci,
		Y: sn*cw + cn*sw*ci,
		Z: sw * si,
	}
	c.q = coord.Cart{
		X: -cn*sw - sn*cw*ci,
		Y: -sn*sw + cn*cw*ci,
		Z: cw * si,
	}
	return c
}

// ConicOf returns the two-body orbit of o, ecliptic J2000.
func ConicOf(o *orbits.Orbit) (*Conic, error) {
	el := &o.Elem
	switch o.Format {
	case orbits.COM:
		return NewConic(el[0], el[1], unit.AngleFromDeg(el[2]),
			unit.AngleFromDeg(el[3]), unit.AngleFromDeg(el[4]), el[5]), nil
	case orbits.KEP:
		a, e := el[0], el[1]
		if e == 1 {
			return nil, errors.New("KEP elements cannot describe a parabola")
		}
		n := astro.K / math.Pow(math.Abs(a), 1.5)
		m := unit.AngleFromDeg(el[5]).Rad()
		if e < 1 {
			m = math.Remainder(m, 2*math.Pi)
		}
		return NewConic(a*(1-e), e, unit.AngleFromDeg(el[2]),
			unit.AngleFromDeg(el[3]), unit.AngleFromDeg(el[4]),
			o.Epoch-m/n), nil
	case orbits.CART:
		pos := coord.Cart{X: el[0], Y: el[1], Z: el[2]}
		vel := coord.Cart{X: el[3], Y: el[4], Z: el[5]}
		return FromState(&pos, &vel, o.Epoch)
	}
	return nil, fmt.Errorf("unknown orbit format %v", o.Format)
}

// anomaly returns true anomaly in radians and heliocentric distance in AU.
func (c *Conic) anomaly(mjd float64) (ν, r float64) {
	dt := mjd - c.TPeri
	switch e := c.E; {
	case math.Abs(e-1) < parTol:
		// Barker's equation
		w := 3 * astro.K / math.Sqrt(2*c.Q*c.Q*c.Q) * dt
		y := math.Cbrt(w/2 + math.Sqrt(w*w/4+1))
		s := y - 1/y
		return 2 * math.Atan(s), c.Q * (1 + s*s)
	case e < 1:
		a := c.Q / (1 - e)
		m := math.Remainder(astro.K/(a*math.Sqrt(a))*dt, 2*math.Pi)
		E, err := kepler.Kepler2b(e, unit.Angle(m), 14)
		if err != nil {
			E = kepler.Kepler3(e, unit.Angle(m))
		}
		return kepler.True(E, e).Rad(), kepler.Radius(E, e, a)
	default:
		a := c.Q / (e - 1)
		m := astro.K / (a * math.Sqrt(a)) * dt
		h := hyperbolicAnomaly(e, m)
		return 2 * math.Atan(math.Sqrt((e+1)/(e-1))*math.Tanh(h/2)),
			a * (e*math.Cosh(h) - 1)
	}
}

// hyperbolicAnomaly solves e sinh H - H = M by Newton's method.
func hyperbolicAnomaly(e, m float64) float64 {
	h := math.Asinh(m / e)
	for i := 0; i < 60; i++ {
		f := e*math.Sinh(h) - h - m
		d := f / (e*math.Cosh(h) - 1)
		h -= d
		if math.Abs(d) < 1e-14*math.Max(1, math.Abs(h)) {
			break
		}
	}
	return h
}

// TrueAnomaly returns true anomaly at mjd in degrees, in [0, 360).
func (c *Conic) TrueAnomaly(mjd float64) float64 {
	ν, _ := c.anomaly(mjd)
	d := math.Mod(ν*180/math.Pi, 360)
	if d < 0 {
		d += 360
	}
	return d
}

// State computes position and velocity at mjd.
func (c *Conic) State(mjd float64) (pos, vel coord.Cart) {
	ν, r := c.anomaly(mjd)
	sν, cν := math.Sincos(ν)
	var t coord.Cart
	pos.MulScalar(&c.p, r*cν)
	t.MulScalar(&c.q, r*sν)
	pos.Add(&pos, &t)

	vf := math.Sqrt(astro.U / (c.Q * (1 + c.E)))
	vel.MulScalar(&c.p, -vf*sν)
	t.MulScalar(&c.q, vf*(c.E+cν))
	vel.Add(&vel, &t)
	return
}

// FromState computes the osculating conic of a heliocentric state vector
// at mjd.
func FromState(pos, vel *coord.Cart, mjd float64) (*Conic, error) {
	const eps = 1e-11
	r := math.Sqrt(pos.Square())
	if r == 0 {
		return nil, errors.New("zero position vector")
	}
	var h coord.Cart
	h.Cross(pos, vel)
	hm := math.Sqrt(h.Square())
	if hm == 0 {
		return nil, errors.New("rectilinear orbit")
	}

	// eccentricity vector
	rv := pos.Dot(vel)
	var ev, t coord.Cart
	ev.MulScalar(pos, vel.Square()-astro.U/r)
	t.MulScalar(vel, rv)
	ev.Sub(&ev, &t)
	ev.MulScalar(&ev, 1/astro.U)
	e := math.Sqrt(ev.Square())

	inc := math.Atan2(math.Hypot(h.X, h.Y), h.Z)

	// reference direction in the orbit plane: the ascending node, or the
	// x axis for equatorial orbits.
	nx, ny := -h.Y, h.X
	var node float64
	if math.Hypot(nx, ny) > eps*hm {
		node = math.Atan2(h.X, -h.Y)
	} else {
		nx, ny = 1, 0
	}
	// angle from the reference direction to v, measured around h.
	angle := func(v *coord.Cart) float64 {
		cz := (ny*v.Z*h.X - nx*v.Z*h.Y + (nx*v.Y-ny*v.X)*h.Z) / hm
		return math.Atan2(cz, nx*v.X+ny*v.Y)
	}

	var peri, ν float64
	if e > eps {
		peri = angle(&ev)
		var c coord.Cart
		c.Cross(&ev, pos)
		ν = math.Atan2(c.Dot(&h)/hm, ev.Dot(pos))
	} else {
		// circular: measure from the reference direction
		ν = angle(pos)
	}

	q := hm * hm / astro.U / (1 + e)
	var dt float64 // time since perihelion
	switch {
	case math.Abs(e-1) < parTol:
		s := math.Tan(ν / 2)
		dt = math.Sqrt(2*q*q*q) / astro.K * (s + s*s*s/3)
	case e < 1:
		a := q / (1 - e)
		E := 2 * math.Atan(math.Sqrt((1-e)/(1+e))*math.Tan(ν/2))
		dt = (E - e*math.Sin(E)) * a * math.Sqrt(a) / astro.K
	default:
		a := q / (e - 1)
		H := 2 * math.Atanh(math.Sqrt((e-1)/(e+1))*math.Tan(ν/2))
		dt = (e*math.Sinh(H) - H) * a * math.Sqrt(a) / astro.K
	}
	return NewConic(q, e, unit.Angle(inc), unit.Angle(math.Mod(node+2*math.Pi, 2*math.Pi)),
		unit.Angle(math.Mod(peri+2*math.Pi, 2*math.Pi)), mjd-dt), nil
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
