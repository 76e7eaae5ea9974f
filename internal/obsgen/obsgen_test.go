package obsgen_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lsst-sims/makelsstobs/internal/colors"
	"github.com/lsst-sims/makelsstobs/internal/ephem"
	"github.com/lsst-sims/makelsstobs/internal/footprint"
	"github.com/lsst-sims/makelsstobs/internal/metrics"
	"github.com/lsst-sims/makelsstobs/internal/obsfile"
	"github.com/lsst-sims/makelsstobs/internal/obsgen"
	"github.com/lsst-sims/makelsstobs/internal/opsim"
	"github.com/lsst-sims/makelsstobs/internal/orbits"
	"github.com/lsst-sims/makelsstobs/mpc"
)

func mainBelt(id string, node float64) orbits.Orbit {
	return orbits.Orbit{
		ObjID:  id,
		Format: orbits.COM,
		Elem:   [6]float64{2.2, .1, 5, node, 70, 59800},
		Epoch:  59800,
		H:      15,
		G:      orbits.DefaultG,
		SED:    orbits.SedS,
	}
}

// pointings returns daily visits alternately centered half a degree from
// o and thirty degrees from it.
func pointings(t *testing.T, o *orbits.Orbit) []opsim.Visit {
	t.Helper()
	times := make([]float64, 11)
	for i := range times {
		times[i] = 59850.1 + float64(i) + .03*float64(i%3)
	}
	g := ephem.Generator{Site: mpc.Builtin["I11"], Mode: ephem.TwoBody}
	eph, err := g.Ephemerides(o, times)
	if err != nil {
		t.Fatal(err)
	}
	v := make([]opsim.Visit, len(times))
	for i, e := range eph {
		off := .5
		if i%2 == 1 {
			off = 30
		}
		v[i] = opsim.Visit{
			MJD:        times[i],
			RA:         e.RA,
			Dec:        e.Dec + off,
			Filter:     "r",
			ExpTime:    30,
			SeeingGeom: .8,
		}
	}
	return v
}

func newGen(t *testing.T, s obsgen.Strategy, m *metrics.Run) *obsgen.Generator {
	t.Helper()
	return genConfig(t, obsgen.Config{
		Strategy:      s,
		Footprint:     &footprint.Circle{Radius: 1.75},
		RoughTol:      20,
		EphMode:       ephem.TwoBody,
		PrelimEphMode: ephem.TwoBody,
		Site:          mpc.Builtin["I11"],
		TStep:         1,
		Workers:       3,
		Metrics:       m,
	})
}

func genConfig(t *testing.T, c obsgen.Config) *obsgen.Generator {
	t.Helper()
	g, err := obsgen.New(c)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.SetupColors(colors.Builtin(), []string{"r"}, []string{orbits.SedS}); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestObject(t *testing.T) {
	o := mainBelt("mb1", 80)
	visits := pointings(t, &o)
	exact := ephem.Generator{Site: mpc.Builtin["I11"], Mode: ephem.TwoBody}
	var tcs = []struct {
		s     obsgen.Strategy
		nCand int
		tol   float64
	}{
		{obsgen.Linear, 11, .01},
		{obsgen.Direct, 6, 1e-9},
	}
	for _, tc := range tcs {
		recs, nCand, err := newGen(t, tc.s, nil).Object(&o, visits)
		if err != nil {
			t.Fatal(err)
		}
		if nCand != tc.nCand {
			t.Errorf("%s: %d candidates, want %d", tc.s, nCand, tc.nCand)
		}
		if len(recs) != 6 {
			t.Fatalf("%s: %d detections, want 6", tc.s, len(recs))
		}
		for i, r := range recs {
			if r.Visit != &visits[2*i] {
				t.Fatalf("%s: detection %d matched wrong visit", tc.s, i)
			}
			want, _ := exact.Ephemerides(&o, []float64{r.Visit.MJD})
			if math.Abs(r.Eph.RA-want[0].RA) > tc.tol ||
				math.Abs(r.Eph.Dec-want[0].Dec) > tc.tol {
				t.Errorf("%s: position %g %g want %g %g", tc.s,
					r.Eph.RA, r.Eph.Dec, want[0].RA, want[0].Dec)
			}
			if r.DmagColor != -.21 || r.MagFilter != r.Eph.MagV-.21 {
				t.Errorf("%s: colors %+v", tc.s, r)
			}
			if r.DmagTrail <= 0 || r.DmagDetect <= 0 {
				t.Errorf("%s: trailing losses %+v", tc.s, r)
			}
		}
	}
}

func TestObjectNBody(t *testing.T) {
	o := mainBelt("mb1", 80)
	visits := pointings(t, &o)
	exact := ephem.Generator{Site: mpc.Builtin["I11"], Mode: ephem.NBody}
	var tcs = []struct {
		s     obsgen.Strategy
		nCand int
		tol   float64
	}{
		{obsgen.Linear, 11, .01},
		{obsgen.Direct, 6, 1e-6},
	}
	for _, tc := range tcs {
		g := genConfig(t, obsgen.Config{
			Strategy:      tc.s,
			Footprint:     &footprint.Circle{Radius: 1.75},
			RoughTol:      20,
			EphMode:       ephem.NBody,
			PrelimEphMode: ephem.NBody,
			Site:          mpc.Builtin["I11"],
			TStep:         1,
		})
		recs, nCand, err := g.Object(&o, visits)
		if err != nil {
			t.Fatal(tc.s, err)
		}
		if nCand != tc.nCand || len(recs) != 6 {
			t.Fatalf("%s: %d candidates, %d detections", tc.s, nCand, len(recs))
		}
		for _, r := range recs {
			want, err := exact.Ephemerides(&o, []float64{r.Visit.MJD})
			if err != nil {
				t.Fatal(err)
			}
			if math.Abs(r.Eph.RA-want[0].RA) > tc.tol ||
				math.Abs(r.Eph.Dec-want[0].Dec) > tc.tol {
				t.Errorf("%s: position %g %g want %g %g", tc.s,
					r.Eph.RA, r.Eph.Dec, want[0].RA, want[0].Dec)
			}
		}
	}
}

func TestObjectNoVisits(t *testing.T) {
	o := mainBelt("mb1", 80)
	recs, n, err := newGen(t, obsgen.Direct, nil).Object(&o, nil)
	if recs != nil || n != 0 || err != nil {
		t.Fatal(recs, n, err)
	}
}

type sliceSink struct {
	recs []obsfile.Record
	err  error
}

func (s *sliceSink) Write(r *obsfile.Record) error {
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, *r)
	return nil
}

func (s *sliceSink) Close() error { return nil }

func TestRun(t *testing.T) {
	cat := orbits.Catalog{mainBelt("mb1", 80), mainBelt("mb2", 260),
		mainBelt("mb3", 80)}
	for i := 4; i < 20; i++ {
		cat = append(cat, mainBelt(fmt.Sprint("far", i), 80+float64(i)*15))
	}
	cat = append(cat, mainBelt("mb4", 80))
	visits := pointings(t, &cat[0])
	m := metrics.New()
	var s1, s2 sliceSink
	n, err := newGen(t, obsgen.Direct, m).Run(context.Background(), cat, visits, &s1, &s2)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(s1.recs) || len(s1.recs) != len(s2.recs) {
		t.Fatal("sinks differ", n, len(s1.recs), len(s2.recs))
	}
	// catalog order is kept
	var ids []string
	for _, r := range s1.recs {
		if len(ids) == 0 || ids[len(ids)-1] != r.ObjID {
			ids = append(ids, r.ObjID)
		}
	}
	if len(ids) < 3 || ids[0] != "mb1" || ids[1] != "mb3" || ids[len(ids)-1] != "mb4" {
		t.Fatal(ids)
	}
}

type brokenFootprint struct{}

func (brokenFootprint) In(*footprint.Pointing, float64, float64) bool {
	panic("broken footprint")
}

func (brokenFootprint) NeedsRotation() bool { return false }

func TestRunPanic(t *testing.T) {
	cat := orbits.Catalog{mainBelt("mb1", 80), mainBelt("mb2", 80),
		mainBelt("mb3", 80)}
	visits := pointings(t, &cat[0])
	m := metrics.New()
	g := genConfig(t, obsgen.Config{
		Strategy:  obsgen.Linear,
		Footprint: brokenFootprint{},
		Site:      mpc.Builtin["I11"],
		TStep:     1,
		Workers:   2,
		Metrics:   m,
	})
	var s sliceSink
	n, err := g.Run(context.Background(), cat, visits, &s)
	if err != nil || n != 0 || len(s.recs) != 0 {
		t.Fatal(n, err)
	}
	if got := testutil.ToFloat64(m.Objects); got != 3 {
		t.Fatal("objects", got)
	}
}

func TestRunErrors(t *testing.T) {
	cat := orbits.Catalog{mainBelt("mb1", 80), mainBelt("mb2", 80)}
	visits := pointings(t, &cat[0])
	g := newGen(t, obsgen.Linear, nil)

	errSink := errors.New("disk full")
	if _, err := g.Run(context.Background(), cat, visits, &sliceSink{err: errSink}); err != errSink {
		t.Fatal("expected sink error, got", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Run(ctx, cat, visits); err != context.Canceled {
		t.Fatal("expected cancellation, got", err)
	}
}

func TestParseStrategy(t *testing.T) {
	if st, err := obsgen.ParseStrategy("linear"); err != nil || st != obsgen.Linear {
		t.Fatal(st, err)
	}
	if st, err := obsgen.ParseStrategy("direct"); err != nil || st != obsgen.Direct {
		t.Fatal(st, err)
	}
	for _, s := range []string{"exact", "Linear", "DIRECT", ""} {
		if _, err := obsgen.ParseStrategy(s); err == nil {
			t.Error("accepted", s)
		}
	}
}

func TestNew(t *testing.T) {
	var tcs = []obsgen.Config{
		{TStep: 1, RoughTol: 1},
		{Footprint: &footprint.Circle{Radius: 1}, TStep: 0, RoughTol: 1},
		{Footprint: &footprint.Circle{Radius: 1}, TStep: 1},
	}
	for i, c := range tcs {
		if _, err := obsgen.New(c); err == nil {
			t.Error("case", i, "accepted")
		}
	}
	c := obsgen.Config{Strategy: obsgen.Linear,
		Footprint: &footprint.Circle{Radius: 1}, TStep: 1}
	if _, err := obsgen.New(c); err != nil {
		t.Error("linear needs no roughTol", err)
	}
}

func TestTrailingLosses(t *testing.T) {
	var tcs = []struct {
		vel, seeing, texp float64
		trail, detect     float64
	}{
		{0, .8, 30, 0, 0},
		{1, 0, 30, 0, 0},
		{.64, .8, 30, .163716, .189880}, // one seeing length
	}
	for _, tc := range tcs {
		tr, de := obsgen.TrailingLosses(tc.vel, tc.seeing, tc.texp)
		if math.Abs(tr-tc.trail) > 1e-6 || math.Abs(de-tc.detect) > 1e-6 {
			t.Errorf("%g %g %g: got %g %g", tc.vel, tc.seeing, tc.texp, tr, de)
		}
	}
}

func ExampleTrailingLosses() {
	tr, de := obsgen.TrailingLosses(1.92, .8, 30)
	fmt.Printf("%.3f %.3f\n", tr, de)
	// Output:
	// 0.503 0.845
}
