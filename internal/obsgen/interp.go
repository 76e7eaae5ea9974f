// Public domain.

package obsgen

import (
	"math"

	"gonum.org/v1/gonum/interp"

	"github.com/lsst-sims/makelsstobs/internal/ephem"
)

// field addresses one interpolated quantity.  Angles that wrap at 360
// degrees are unwrapped before fitting.
type field struct {
	get  func(*ephem.Ephemeris) *float64
	wrap bool
}

// RA and Dec come first so radec can use the first two fits.
var basicFields = []field{
	{func(e *ephem.Ephemeris) *float64 { return &e.RA }, true},
	{func(e *ephem.Ephemeris) *float64 { return &e.Dec }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.DRADt }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.DDecDt }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.Phase }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.SolarElong }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.HelioDist }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.GeoDist }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.MagV }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.TrueAnomaly }, true},
	{func(e *ephem.Ephemeris) *float64 { return &e.Velocity }, false},
}

var fullFields = []field{
	{func(e *ephem.Ephemeris) *float64 { return &e.HelioPos.X }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.HelioPos.Y }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.HelioPos.Z }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.HelioVel.X }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.HelioVel.Y }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.HelioVel.Z }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.ObsPos.X }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.ObsPos.Y }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.ObsPos.Z }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.ObsVel.X }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.ObsVel.Y }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.ObsVel.Z }, false},
	{func(e *ephem.Ephemeris) *float64 { return &e.EclLon }, true},
	{func(e *ephem.Ephemeris) *float64 { return &e.EclLat }, false},
}

// interpolator linearly interpolates ephemerides computed on a time grid.
type interpolator struct {
	fields []field
	fits   []interp.PiecewiseLinear
}

func newInterpolator(t []float64, eph []ephem.Ephemeris, typ ephem.Type) (*interpolator, error) {
	it := &interpolator{fields: basicFields}
	if typ == ephem.Full {
		it.fields = append(append([]field{}, basicFields...), fullFields...)
	}
	it.fits = make([]interp.PiecewiseLinear, len(it.fields))
	y := make([]float64, len(t))
	for i, f := range it.fields {
		for j := range eph {
			y[j] = *f.get(&eph[j])
		}
		if f.wrap {
			unwrap(y)
		}
		// Fit keeps its own copy of y.
		if err := it.fits[i].Fit(t, y); err != nil {
			return nil, err
		}
	}
	return it, nil
}

// radec returns the interpolated position at mjd.
func (it *interpolator) radec(mjd float64) (ra, dec float64) {
	return wrap360(it.fits[0].Predict(mjd)), it.fits[1].Predict(mjd)
}

// at returns the interpolated ephemeris at mjd.
func (it *interpolator) at(mjd float64) (e ephem.Ephemeris) {
	e.Time = mjd
	for i, f := range it.fields {
		v := it.fits[i].Predict(mjd)
		if f.wrap {
			v = wrap360(v)
		}
		*f.get(&e) = v
	}
	return
}

// unwrap removes jumps of more than 180 degrees between successive
// values.
func unwrap(y []float64) {
	off := 0.
	for i := 1; i < len(y); i++ {
		d := y[i] + off - y[i-1]
		switch {
		case d > 180:
			off -= 360
		case d < -180:
			off += 360
		}
		y[i] += off
	}
}

func wrap360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	return a
}
