// Public domain.

package ephem

import (
	"math"
	"sort"

	"github.com/ChristopherRabotin/ode"
	"github.com/soniakeys/coord"
	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/elementequinox"
	pe "github.com/soniakeys/meeus/v3/planetelements"
	"github.com/soniakeys/meeus/v3/precess"

	"github.com/lsst-sims/makelsstobs/astro"
)

// reciprocal masses of the planets, Earth-Moon barycenter for Earth.
var planets = []struct {
	id      int
	invMass float64
}{
	{pe.Mercury, 6023600},
	{pe.Venus, 408523.71},
	{pe.Earth, 328900.56},
	{pe.Mars, 3098708},
	{pe.Jupiter, 1047.3486},
	{pe.Saturn, 3497.898},
	{pe.Uranus, 22902.98},
	{pe.Neptune, 19412.24},
}

// MaxStep is the largest integration step in days.  Steps shrink with
// heliocentric distance as r^1.5.
var MaxStep = 1.

// planetPositions computes heliocentric ecliptic J2000 positions of the
// planets.  Mean elements of date are reduced to the J2000 equinox.  Earth
// has no node in the mean element tables and is taken from astro.Earth.
func planetPositions(mjd float64, pos []coord.Cart) {
	jde := mjd + base.JMod
	pr := precess.NewEclipticPrecessor(base.JDEToJulianYear(jde), 2000)
	var el pe.Elements
	for i, p := range planets {
		if p.id == pe.Earth {
			e, _ := astro.Earth(mjd)
			pos[i] = astro.EqToEcl(e)
			continue
		}
		pe.Mean(p.id, jde, &el)
		m := el.Lon - el.Peri
		eq := elementequinox.Elements{
			Inc:  el.Inc,
			Node: el.Node,
			Peri: el.Peri - el.Node,
		}
		pr.ReduceElements(&eq, &eq)
		n := astro.K / (el.Axis * math.Sqrt(el.Axis))
		c := NewConic(el.Axis*(1-el.Ecc), el.Ecc, eq.Inc, eq.Node, eq.Peri,
			mjd-math.Remainder(m.Rad(), 2*math.Pi)/n)
		pos[i], _ = c.State(mjd)
	}
}

// integrable implements ode.Integrable for a heliocentric test particle.
//
// Integration time runs forward from zero while dir sets the direction of
// the corresponding MJD.
type integrable struct {
	t0, dir float64
	state   []float64
	steps   int // steps remaining
	pp      []coord.Cart
}

func (b *integrable) GetState() []float64 { return b.state }

func (b *integrable) SetState(t float64, s []float64) {
	b.state = s
	b.steps--
}

func (b *integrable) Stop(t float64) bool { return b.steps <= 0 }

func (b *integrable) Func(t float64, f []float64) []float64 {
	fDot := make([]float64, 6)
	d := b.dir
	fDot[0], fDot[1], fDot[2] = d*f[3], d*f[4], d*f[5]

	r := coord.Cart{X: f[0], Y: f[1], Z: f[2]}
	acc := accel(&r, b.t0+d*t, b.pp)
	fDot[3], fDot[4], fDot[5] = d*acc.X, d*acc.Y, d*acc.Z
	return fDot
}

// accel is the heliocentric acceleration of a massless body at r.
func accel(r *coord.Cart, mjd float64, pp []coord.Cart) coord.Cart {
	var a coord.Cart
	r2 := r.Square()
	a.MulScalar(r, -astro.U/(r2*math.Sqrt(r2)))
	planetPositions(mjd, pp)
	for i, p := range planets {
		rp := &pp[i]
		var d, t coord.Cart
		d.Sub(rp, r)
		d2 := d.Square()
		rp2 := rp.Square()
		μ := astro.U / p.invMass
		// direct term minus indirect term
		d.MulScalar(&d, μ/(d2*math.Sqrt(d2)))
		t.MulScalar(rp, μ/(rp2*math.Sqrt(rp2)))
		d.Sub(&d, &t)
		a.Add(&a, &d)
	}
	return a
}

// propagateNBody integrates the state at epoch to each of times,
// returning results in the order of times.
func propagateNBody(pos, vel coord.Cart, epoch float64, times []float64) []State {
	out := make([]State, len(times))
	ix := make([]int, len(times))
	for i := range ix {
		ix[i] = i
	}
	sort.Slice(ix, func(i, j int) bool { return times[ix[i]] < times[ix[j]] })
	split := sort.Search(len(ix), func(i int) bool { return times[ix[i]] >= epoch })

	pp := make([]coord.Cart, len(planets))
	start := []float64{pos.X, pos.Y, pos.Z, vel.X, vel.Y, vel.Z}

	// forward from epoch
	s, t := append([]float64{}, start...), epoch
	for _, i := range ix[split:] {
		s = integrate(s, t, times[i], pp)
		t = times[i]
		out[i] = stateOf(s)
	}
	// backward from epoch
	s, t = append([]float64{}, start...), epoch
	for k := split - 1; k >= 0; k-- {
		i := ix[k]
		s = integrate(s, t, times[i], pp)
		t = times[i]
		out[i] = stateOf(s)
	}
	return out
}

func integrate(s []float64, from, to float64, pp []coord.Cart) []float64 {
	span := to - from
	if span == 0 {
		return s
	}
	r := math.Sqrt(s[0]*s[0] + s[1]*s[1] + s[2]*s[2])
	h := MaxStep * math.Min(1, r*math.Sqrt(r))
	n := int(math.Ceil(math.Abs(span) / h))
	b := &integrable{
		t0:    from,
		dir:   math.Copysign(1, span),
		state: s,
		steps: n,
		pp:    pp,
	}
	ode.NewRK4(0, math.Abs(span)/float64(n), b).Solve()
	return b.state
}

func stateOf(s []float64) State {
	return State{
		Pos: coord.Cart{X: s[0], Y: s[1], Z: s[2]},
		Vel: coord.Cart{X: s[3], Y: s[4], Z: s[5]},
	}
}
