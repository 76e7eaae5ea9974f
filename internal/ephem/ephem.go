// Public domain.

// Package ephem computes topocentric ephemerides of solar system objects
// from osculating elements.
//
// Orbits are propagated either as two-body conics or by integrating
// with perturbations of the eight planets.  Ephemerides are astrometric,
// J2000, light-time corrected.
package ephem

import (
	"fmt"
	"math"
	"strings"

	"github.com/soniakeys/coord"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/observation"
	sexa "github.com/soniakeys/sexagesimal"
	"github.com/soniakeys/unit"

	"github.com/lsst-sims/makelsstobs/astro"
	"github.com/lsst-sims/makelsstobs/internal/orbits"
)

// Mode selects the propagator.
type Mode int

const (
	TwoBody Mode = iota
	NBody
)

func (m Mode) String() string {
	if m == NBody {
		return "nbody"
	}
	return "2body"
}

// ParseMode parses "2body" or "nbody".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "2body":
		return TwoBody, nil
	case "nbody":
		return NBody, nil
	}
	return 0, fmt.Errorf("ephemeris mode %q not 2body or nbody", s)
}

// Type selects the ephemeris quantities reported.
type Type int

const (
	Basic Type = iota
	Full
)

func (t Type) String() string {
	if t == Full {
		return "full"
	}
	return "basic"
}

// ParseType parses "basic" or "full".
func ParseType(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "basic":
		return Basic, nil
	case "full":
		return Full, nil
	}
	return 0, fmt.Errorf("ephemeris type %q not basic or full", s)
}

// State is a heliocentric state vector, AU and AU/day.
type State struct {
	Pos, Vel coord.Cart
}

// Propagate computes ecliptic J2000 states of o at times given as MJD TT.
func Propagate(o *orbits.Orbit, mode Mode, times []float64) ([]State, error) {
	c, err := ConicOf(o)
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", o.ObjID, err)
	}
	if mode == NBody {
		var pos, vel coord.Cart
		if o.Format == orbits.CART {
			pos = coord.Cart{X: o.Elem[0], Y: o.Elem[1], Z: o.Elem[2]}
			vel = coord.Cart{X: o.Elem[3], Y: o.Elem[4], Z: o.Elem[5]}
		} else {
			pos, vel = c.State(o.Epoch)
		}
		return propagateNBody(pos, vel, o.Epoch, times), nil
	}
	s := make([]State, len(times))
	for i, t := range times {
		s[i].Pos, s[i].Vel = c.State(t)
	}
	return s, nil
}

// Ephemeris holds computed quantities of one object at one time.
//
// Angles are degrees, rates deg/day, distances AU.  Vectors are
// heliocentric ecliptic J2000 and are set only for type Full.
type Ephemeris struct {
	Time        float64 // MJD TAI
	RA, Dec     float64
	DRADt       float64 // includes cos(Dec)
	DDecDt      float64
	Phase       float64
	SolarElong  float64
	HelioDist   float64
	GeoDist     float64
	MagV        float64
	TrueAnomaly float64
	Velocity    float64
	HelioPos    coord.Cart
	HelioVel    coord.Cart
	ObsPos      coord.Cart
	ObsVel      coord.Cart
	EclLon      float64
	EclLat      float64
}

// String formats the position sexagesimally, as in a printed ephemeris.
func (e *Ephemeris) String() string {
	t := julian.JDToTime(e.Time + base.JMod)
	return fmt.Sprintf("%s  %2v  %2v  %5.2f",
		t.Format("2006-01-02 15:04:05"),
		sexa.FmtRA(unit.RAFromDeg(e.RA)),
		sexa.FmtAngle(unit.AngleFromDeg(e.Dec)),
		e.MagV)
}

// Generator computes ephemerides for one observatory.
type Generator struct {
	Site *observation.ParallaxConst // nil for geocentric
	Mode Mode
	Type Type
}

// Ephemerides computes ephemerides of o at times given as MJD TAI.
func (g *Generator) Ephemerides(o *orbits.Orbit, times []float64) ([]Ephemeris, error) {
	tt := make([]float64, len(times))
	for i, t := range times {
		tt[i] = t + astro.TTMinusTAI
	}
	states, err := Propagate(o, g.Mode, tt)
	if err != nil {
		return nil, err
	}
	eph := make([]Ephemeris, len(times))
	for i := range times {
		g.compute(o, times[i], tt[i], &states[i], &eph[i])
	}
	return eph, nil
}

// Observer returns the heliocentric equatorial J2000 position and velocity
// of the observatory at mjd TAI.
func (g *Generator) Observer(mjd float64) (pos, vel coord.Cart) {
	tt := mjd + astro.TTMinusTAI
	pos, vel = astro.Earth(tt)
	if g.Site != nil {
		s := observation.EarthObserverVect(mjd-astro.TAIMinusUTC, g.Site)
		sv := astro.SiteVelocity(&s)
		pos.Add(&pos, &s)
		vel.Add(&vel, &sv)
	}
	return
}

func (g *Generator) compute(o *orbits.Orbit, tai, tt float64, s *State, e *Ephemeris) {
	obsPos, obsVel := g.Observer(tai)
	objPos := astro.EclToEq(s.Pos)
	objVel := astro.EclToEq(s.Vel)

	// light time, two iterations
	var topo, p, dv coord.Cart
	p = objPos
	for i := 0; i < 2; i++ {
		topo.Sub(&p, &obsPos)
		τ := math.Sqrt(topo.Square()) / astro.C
		dv.MulScalar(&objVel, τ)
		p.Sub(&objPos, &dv)
	}
	topo.Sub(&p, &obsPos)
	Δ := math.Sqrt(topo.Square())
	r := math.Sqrt(p.Square())

	α := math.Atan2(topo.Y, topo.X)
	if α < 0 {
		α += 2 * math.Pi
	}
	δ := math.Asin(topo.Z / Δ)
	sα, cα := math.Sincos(α)
	sδ, cδ := math.Sincos(δ)

	var rel coord.Cart
	rel.Sub(&objVel, &obsVel)
	east := coord.Cart{X: -sα, Y: cα}
	north := coord.Cart{X: -sδ * cα, Y: -sδ * sα, Z: cδ}

	e.Time = tai
	e.RA = α * 180 / math.Pi
	e.Dec = δ * 180 / math.Pi
	e.DRADt = rel.Dot(&east) / Δ * 180 / math.Pi
	e.DDecDt = rel.Dot(&north) / Δ * 180 / math.Pi
	e.Velocity = math.Hypot(e.DRADt, e.DDecDt)
	e.HelioDist = r
	e.GeoDist = Δ

	phase := math.Acos(clamp(p.Dot(&topo) / (r * Δ)))
	e.Phase = phase * 180 / math.Pi
	od := math.Sqrt(obsPos.Square())
	e.SolarElong = math.Acos(clamp(-obsPos.Dot(&topo)/(od*Δ))) * 180 / math.Pi
	e.MagV = observation.Vmag(o.H, o.G, unit.Angle(phase), r, Δ)

	if c, err := FromState(&s.Pos, &s.Vel, tt); err == nil {
		e.TrueAnomaly = c.TrueAnomaly(tt)
	}

	if g.Type == Full {
		e.HelioPos = s.Pos
		e.HelioVel = s.Vel
		e.ObsPos = astro.EqToEcl(obsPos)
		e.ObsVel = astro.EqToEcl(obsVel)
		ecl := astro.EqToEcl(topo)
		lon := math.Atan2(ecl.Y, ecl.X) * 180 / math.Pi
		if lon < 0 {
			lon += 360
		}
		e.EclLon = lon
		e.EclLat = math.Asin(ecl.Z/Δ) * 180 / math.Pi
	}
}
