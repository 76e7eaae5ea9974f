// Public domain.

// Package obsgen matches object ephemerides against telescope visits.
//
// Two strategies are offered.  Linear computes ephemerides on a regular
// time grid spanning the visits and interpolates them to each visit time.
// Direct uses a cheap interpolated ephemeris only to select candidate
// visits near the object, then computes exact ephemerides at the times of
// those candidates.
package obsgen

import (
	"fmt"
	"math"

	"github.com/soniakeys/observation"

	"github.com/lsst-sims/makelsstobs/internal/colors"
	"github.com/lsst-sims/makelsstobs/internal/ephem"
	"github.com/lsst-sims/makelsstobs/internal/footprint"
	"github.com/lsst-sims/makelsstobs/internal/metrics"
	"github.com/lsst-sims/makelsstobs/internal/obsfile"
	"github.com/lsst-sims/makelsstobs/internal/opsim"
	"github.com/lsst-sims/makelsstobs/internal/orbits"
)

// Strategy selects how ephemerides are matched to visits.
type Strategy int

const (
	Direct Strategy = iota
	Linear
)

func (s Strategy) String() string {
	if s == Linear {
		return "linear"
	}
	return "direct"
}

// ParseStrategy parses "direct" or "linear".
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "direct":
		return Direct, nil
	case "linear":
		return Linear, nil
	}
	return 0, fmt.Errorf("must use 'linear' or 'direct' for the obsType, not %q", s)
}

// Config parameterizes a Generator.
type Config struct {
	Strategy      Strategy
	Footprint     footprint.Footprint
	RoughTol      float64 // degrees, Direct only
	EphMode       ephem.Mode
	PrelimEphMode ephem.Mode // Direct only
	EphType       ephem.Type
	Site          *observation.ParallaxConst
	TStep         float64 // days
	Workers       int     // 0 for GOMAXPROCS
	Metrics       *metrics.Run
}

// Generator produces detections.
type Generator struct {
	cfg    Config
	colors colors.Table
}

// New returns a Generator for cfg.
func New(cfg Config) (*Generator, error) {
	if cfg.Footprint == nil {
		return nil, fmt.Errorf("no footprint")
	}
	if !(cfg.TStep > 0) {
		return nil, fmt.Errorf("tStep %g not positive", cfg.TStep)
	}
	if cfg.Strategy == Direct && !(cfg.RoughTol > 0) {
		return nil, fmt.Errorf("roughTol %g not positive", cfg.RoughTol)
	}
	return &Generator{cfg: cfg}, nil
}

// SetupColors computes the color offsets of every sed in every filter
// from table t.  It must be called before Run.
func (g *Generator) SetupColors(t colors.Table, filters, seds []string) (err error) {
	g.colors, err = t.Setup(seds, filters)
	return
}

// Object computes the detections of o in visits, which must be sorted by
// time.  It also returns the number of visits tested against the
// footprint.
func (g *Generator) Object(o *orbits.Orbit, visits []opsim.Visit) ([]obsfile.Record, int, error) {
	if len(visits) == 0 {
		return nil, 0, nil
	}
	if g.cfg.Strategy == Linear {
		return g.linear(o, visits)
	}
	return g.direct(o, visits)
}

func (g *Generator) linear(o *orbits.Orbit, visits []opsim.Visit) ([]obsfile.Record, int, error) {
	grid := g.grid(visits)
	gen := ephem.Generator{Site: g.cfg.Site, Mode: g.cfg.EphMode, Type: g.cfg.EphType}
	eph, err := gen.Ephemerides(o, grid)
	if err != nil {
		return nil, 0, err
	}
	it, err := newInterpolator(grid, eph, g.cfg.EphType)
	if err != nil {
		return nil, 0, err
	}
	var recs []obsfile.Record
	for i := range visits {
		v := &visits[i]
		ra, dec := it.radec(v.MJD)
		if !g.in(v, ra, dec) {
			continue
		}
		e := it.at(v.MJD)
		recs = append(recs, g.record(o, &e, v))
	}
	return recs, len(visits), nil
}

func (g *Generator) direct(o *orbits.Orbit, visits []opsim.Visit) ([]obsfile.Record, int, error) {
	grid := g.grid(visits)
	rough := ephem.Generator{Site: g.cfg.Site, Mode: g.cfg.PrelimEphMode}
	eph, err := rough.Ephemerides(o, grid)
	if err != nil {
		return nil, 0, err
	}
	it, err := newInterpolator(grid, eph, ephem.Basic)
	if err != nil {
		return nil, 0, err
	}
	var cand []*opsim.Visit
	var times []float64
	for i := range visits {
		v := &visits[i]
		ra, dec := it.radec(v.MJD)
		if footprint.Sep(v.RA, v.Dec, ra, dec) <= g.cfg.RoughTol {
			cand = append(cand, v)
			times = append(times, v.MJD)
		}
	}
	if len(cand) == 0 {
		return nil, 0, nil
	}
	exact := ephem.Generator{Site: g.cfg.Site, Mode: g.cfg.EphMode, Type: g.cfg.EphType}
	if eph, err = exact.Ephemerides(o, times); err != nil {
		return nil, 0, err
	}
	var recs []obsfile.Record
	for i, v := range cand {
		if g.in(v, eph[i].RA, eph[i].Dec) {
			recs = append(recs, g.record(o, &eph[i], v))
		}
	}
	return recs, len(cand), nil
}

// grid returns times at TStep spacing covering the visits with one step
// of margin at each end.
func (g *Generator) grid(visits []opsim.Visit) []float64 {
	first := visits[0].MJD
	last := visits[len(visits)-1].MJD
	n := int(math.Ceil((last-first)/g.cfg.TStep)) + 3
	t := make([]float64, n)
	for i := range t {
		t[i] = first + float64(i-1)*g.cfg.TStep
	}
	return t
}

func (g *Generator) in(v *opsim.Visit, ra, dec float64) bool {
	p := footprint.Pointing{RA: v.RA, Dec: v.Dec, RotSkyPos: v.RotSkyPos}
	return g.cfg.Footprint.In(&p, ra, dec)
}

func (g *Generator) record(o *orbits.Orbit, e *ephem.Ephemeris, v *opsim.Visit) obsfile.Record {
	r := obsfile.Record{
		ObjID:     o.ObjID,
		Eph:       e,
		Visit:     v,
		DmagColor: g.colors.Offset(o.SED, v.Filter),
	}
	r.DmagTrail, r.DmagDetect = TrailingLosses(e.Velocity, v.SeeingGeom, v.ExpTime)
	r.MagFilter = e.MagV + r.DmagColor
	return r
}

// TrailingLosses returns the magnitude losses of a moving object relative
// to a point source.  dmagTrail is the loss of flux in a trailed PSF,
// dmagDetect the loss of detection efficiency for a PSF matched filter.
//
// velocity is deg/day, seeing arcsec FWHM, texp seconds.
func TrailingLosses(velocity, seeing, texp float64) (dmagTrail, dmagDetect float64) {
	if !(seeing > 0) {
		return 0, 0
	}
	// trail length in units of seeing
	x := velocity * texp / seeing / 24
	x2 := x * x
	dmagTrail = 1.25 * math.Log10(1+.761*x2/(1+1.162*x))
	dmagDetect = 1.25 * math.Log10(1+.42*x2/(1+.003*x))
	return
}
