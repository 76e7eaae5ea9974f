// Public domain.

// Package orbits reads catalogs of osculating orbital elements.
//
// Files are text tables with one header line naming the columns.  Columns
// are separated by white space or by commas.  Column names follow the
// conventions of oorb and des files, with a number of aliases accepted.
package orbits

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/soniakeys/coord"
	xrand "golang.org/x/exp/rand"

	"github.com/lsst-sims/makelsstobs/astro"
)

// Format identifies the element set of an orbit.
type Format int

const (
	COM  Format = iota // cometary: q e i Ω ω tPeri
	KEP                // keplerian: a e i Ω ω M
	CART               // cartesian: x y z xdot ydot zdot
)

var formatNames = [...]string{"COM", "KEP", "CART"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// ParseFormat parses a FORMAT column value.  Barycentric variants are not
// supported.
func ParseFormat(s string) (Format, error) {
	for i, n := range formatNames {
		if strings.EqualFold(s, n) {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("unsupported orbit format %q", s)
}

// Orbit holds the elements of one object.
//
// Elem depends on Format:
//
//	COM:  q (AU), e, inc, Omega, argPeri (degrees), tPeri (MJD TT)
//	KEP:  a (AU), e, inc, Omega, argPeri, meanAnomaly (degrees)
//	CART: x, y, z (AU), xdot, ydot, zdot (AU/day)
//
// All are heliocentric, referred to the ecliptic and equinox J2000.
type Orbit struct {
	ObjID  string
	Format Format
	Elem   [6]float64
	Epoch  float64 // MJD TT
	H, G   float64
	SED    string
}

// Default values.
const (
	DefaultG = .15
	SedS     = "S.dat"
	SedC     = "C.dat"
)

// Qei returns perihelion distance, e and inclination in degrees, the
// quantities orbit classes are defined by.
func (o *Orbit) Qei() (q, e, i float64) {
	switch o.Format {
	case COM:
		return o.Elem[0], o.Elem[1], o.Elem[2]
	case KEP:
		return o.Elem[0] * (1 - o.Elem[1]), o.Elem[1], o.Elem[2]
	}
	p := coord.Cart{X: o.Elem[0], Y: o.Elem[1], Z: o.Elem[2]}
	v := coord.Cart{X: o.Elem[3], Y: o.Elem[4], Z: o.Elem[5]}
	a, e, i := astro.Aei(&p, &v)
	return a * (1 - e), e, i
}

// A returns the semi-major axis.  It is negative for hyperbolic orbits
// and +Inf for parabolic ones.
func (o *Orbit) A() float64 {
	if o.Format == KEP {
		return o.Elem[0]
	}
	q, e, _ := o.Qei()
	if e == 1 {
		return math.Inf(1)
	}
	return q / (1 - e)
}

// Catalog is an ordered collection of orbits.
type Catalog []Orbit

// SEDs returns the distinct sed names of the catalog, sorted.
func (c Catalog) SEDs() []string {
	m := map[string]bool{}
	for i := range c {
		m[c[i].SED] = true
	}
	s := make([]string, 0, len(m))
	for sed := range m {
		s = append(s, sed)
	}
	sort.Strings(s)
	return s
}

// AssignSEDs sets SED for orbits that lack one.  Objects inside 2.2 AU get
// S.dat, beyond 3.3 AU C.dat, and in between the chance of C.dat rises
// linearly with semi-major axis.  Hyperbolic orbits get C.dat.
func (c Catalog) AssignSEDs(seed uint64) {
	rnd := xrand.New(&xrand.PCGSource{})
	rnd.Seed(seed)
	for i := range c {
		o := &c[i]
		if o.SED != "" {
			continue
		}
		switch a := o.A(); {
		case a < 0 || a > 3.3:
			o.SED = SedC
		case a < 2.2:
			o.SED = SedS
		case rnd.Float64() < (a-2.2)/1.1:
			o.SED = SedC
		default:
			o.SED = SedS
		}
	}
}

// ErrNoOrbits is returned for a file with a header but no data.
var ErrNoOrbits = errors.New("no orbits")

// canonical column names and their accepted spellings, lower case.
var aliasList = [][]string{
	{"objId", "objid", "!!objid", "!!oid", "oid"},
	{"q", "q"},
	{"e", "e"},
	{"inc", "inc", "i"},
	{"Omega", "omega", "node"},
	{"argPeri", "argperi", "peri", "w"},
	{"tPeri", "tperi", "t_p", "timeperi"},
	{"a", "a"},
	{"meanAnomaly", "meananomaly", "m", "ma"},
	{"epoch", "epoch", "t_0"},
	{"H", "h", "magh"},
	{"G", "g"},
	{"sed_filename", "sed_filename"},
	{"FORMAT", "format"},
	{"x", "x"},
	{"y", "y"},
	{"z", "z"},
	{"xdot", "xdot", "vx"},
	{"ydot", "ydot", "vy"},
	{"zdot", "zdot", "vz"},
}

var aliases = func() map[string]string {
	m := map[string]string{}
	for _, a := range aliasList {
		for _, s := range a[1:] {
			m[s] = a[0]
		}
	}
	return m
}()

var elemCols = [...][6]string{
	COM:  {"q", "e", "inc", "Omega", "argPeri", "tPeri"},
	KEP:  {"a", "e", "inc", "Omega", "argPeri", "meanAnomaly"},
	CART: {"x", "y", "z", "xdot", "ydot", "zdot"},
}

// ReadFile reads an orbit file.
func ReadFile(path string) (Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.WithLevel(zerolog.FatalLevel).Str("file", path).
				Msg("Could not find orbit file")
		}
		return nil, err
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Info().Str("file", path).Int("count", len(c)).
		Msg("Read orbit information")
	return c, nil
}

// Read reads orbits from r.  Orbits without sed_filename are left with an
// empty SED; see AssignSEDs.
func Read(r io.Reader) (Catalog, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, 1<<20)
	var (
		cols  map[string]int
		ncols int
		comma bool
		c     Catalog
		line  int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if cols == nil {
			comma = strings.Contains(text, ",")
			var err error
			if cols, ncols, err = parseHeader(splitLine(text, comma)); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			continue
		}
		if text[0] == '#' {
			continue
		}
		f := splitLine(text, comma)
		if len(f) != ncols {
			return nil, fmt.Errorf("line %d: %d fields, header has %d",
				line, len(f), ncols)
		}
		o, err := parseOrbit(cols, f)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		c = append(c, o)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(c) == 0 {
		return nil, ErrNoOrbits
	}
	return c, nil
}

func splitLine(text string, comma bool) []string {
	if !comma {
		return strings.Fields(text)
	}
	f := strings.Split(text, ",")
	for i := range f {
		f[i] = strings.TrimSpace(f[i])
	}
	return f
}

func parseHeader(f []string) (map[string]int, int, error) {
	if len(f) > 0 {
		switch {
		case f[0] == "#" || f[0] == "!!":
			f = f[1:]
		case strings.HasPrefix(f[0], "#"):
			f[0] = strings.TrimSpace(f[0][1:])
		}
	}
	cols := map[string]int{}
	for i, name := range f {
		canon, ok := aliases[strings.ToLower(name)]
		if !ok {
			// unrecognized columns are carried but unused
			continue
		}
		if _, dup := cols[canon]; dup {
			return nil, 0, fmt.Errorf("duplicate column %s", name)
		}
		cols[canon] = i
	}
	if _, ok := cols["objId"]; !ok {
		return nil, 0, errors.New("header has no objId column")
	}
	return cols, len(f), nil
}

func parseOrbit(cols map[string]int, f []string) (o Orbit, err error) {
	o.ObjID = f[cols["objId"]]
	if x, ok := cols["FORMAT"]; ok {
		if o.Format, err = ParseFormat(f[x]); err != nil {
			return
		}
	} else if o.Format, err = inferFormat(cols); err != nil {
		return
	}
	for i, name := range elemCols[o.Format] {
		x, ok := cols[name]
		if !ok {
			err = fmt.Errorf("%s orbit requires column %s", o.Format, name)
			return
		}
		if o.Elem[i], err = parseFloat(name, f[x]); err != nil {
			return
		}
	}
	switch x, ok := cols["epoch"]; {
	case ok:
		if o.Epoch, err = parseFloat("epoch", f[x]); err != nil {
			return
		}
	case o.Format == COM:
		o.Epoch = o.Elem[5]
	default:
		err = fmt.Errorf("%s orbit requires column epoch", o.Format)
		return
	}
	x, ok := cols["H"]
	if !ok {
		err = errors.New("orbit requires column H")
		return
	}
	if o.H, err = parseFloat("H", f[x]); err != nil {
		return
	}
	o.G = DefaultG
	if x, ok := cols["G"]; ok {
		if o.G, err = parseFloat("G", f[x]); err != nil {
			return
		}
	}
	if x, ok := cols["sed_filename"]; ok {
		o.SED = f[x]
	}
	if o.Format != CART {
		if o.Elem[1] < 0 {
			err = fmt.Errorf("negative eccentricity %g", o.Elem[1])
		} else if o.Elem[0] <= 0 && o.Format == COM {
			err = fmt.Errorf("perihelion distance %g not positive", o.Elem[0])
		} else if o.Format == KEP && (o.Elem[1] == 1 || (o.Elem[1] < 1) != (o.Elem[0] > 0)) {
			err = fmt.Errorf("semi-major axis %g inconsistent with e %g",
				o.Elem[0], o.Elem[1])
		}
	}
	return
}

func inferFormat(cols map[string]int) (Format, error) {
	has := func(names ...string) bool {
		for _, n := range names {
			if _, ok := cols[n]; !ok {
				return false
			}
		}
		return true
	}
	switch {
	case has("q", "tPeri"):
		return COM, nil
	case has("a", "meanAnomaly"):
		return KEP, nil
	case has("x", "xdot"):
		return CART, nil
	}
	return 0, errors.New("cannot determine orbit format from columns")
}

func parseFloat(name, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return v, nil
}
