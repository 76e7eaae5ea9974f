// Public domain.

// Package obsfile writes simulated detections.
package obsfile

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lsst-sims/makelsstobs/astro"
	"github.com/lsst-sims/makelsstobs/internal/ephem"
	"github.com/lsst-sims/makelsstobs/internal/opsim"
	"github.com/lsst-sims/makelsstobs/mpc"
)

// Record is one detection: an object ephemeris matched to a visit.
type Record struct {
	ObjID      string
	Eph        *ephem.Ephemeris
	Visit      *opsim.Visit
	DmagColor  float64
	DmagTrail  float64
	DmagDetect float64
	MagFilter  float64
}

// Sink receives records.
type Sink interface {
	Write(r *Record) error
	Close() error
}

var basicCols = []string{"objId", "time", "ra", "dec", "dradt", "ddecdt",
	"phase", "solarelon", "helio_dist", "geo_dist", "magV", "trueAnomaly",
	"velocity"}

var fullCols = []string{
	"helio_x", "helio_y", "helio_z", "helio_vx", "helio_vy", "helio_vz",
	"obs_x", "obs_y", "obs_z", "obs_vx", "obs_vy", "obs_vz",
	"ecl_lon", "ecl_lat"}

var derivedCols = []string{"dmagColor", "dmagTrail", "dmagDetect", "magFilter"}

// Columns returns the column names of a file.
func Columns(typ ephem.Type, opsimCols []string) []string {
	c := append([]string{}, basicCols...)
	if typ == ephem.Full {
		c = append(c, fullCols...)
	}
	c = append(c, opsimCols...)
	return append(c, derivedCols...)
}

// Writer writes space separated text with a commented header.
type Writer struct {
	f   *os.File
	w   *bufio.Writer
	typ ephem.Type
	buf []byte
}

// Create creates the file at path, with any missing directories, and
// writes the header.  metadata may span lines.
func Create(path, metadata string, typ ephem.Type, opsimCols []string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := &Writer{f: f, w: bufio.NewWriter(f), typ: typ}
	if metadata != "" {
		fmt.Fprintf(w.w, "# %s\n", metadata)
	}
	fmt.Fprintln(w.w, strings.Join(Columns(typ, opsimCols), " "))
	return w, nil
}

func (w *Writer) Write(r *Record) error {
	b := append(w.buf[:0], r.ObjID...)
	e := r.Eph
	b = appendFloat(b, e.Time, 8)
	for _, f := range []float64{e.RA, e.Dec, e.DRADt, e.DDecDt, e.Phase,
		e.SolarElong, e.HelioDist, e.GeoDist, e.MagV, e.TrueAnomaly,
		e.Velocity} {
		b = appendFloat(b, f, 6)
	}
	if w.typ == ephem.Full {
		for _, f := range []float64{
			e.HelioPos.X, e.HelioPos.Y, e.HelioPos.Z,
			e.HelioVel.X, e.HelioVel.Y, e.HelioVel.Z,
			e.ObsPos.X, e.ObsPos.Y, e.ObsPos.Z,
			e.ObsVel.X, e.ObsVel.Y, e.ObsVel.Z,
			e.EclLon, e.EclLat} {
			b = appendFloat(b, f, 8)
		}
	}
	for _, v := range r.Visit.Values {
		b = append(b, ' ')
		switch t := v.(type) {
		case float64:
			b = strconv.AppendFloat(b, t, 'f', -1, 64)
		case int64:
			b = strconv.AppendInt(b, t, 10)
		case nil:
			b = append(b, "NULL"...)
		default:
			b = append(b, fmt.Sprint(t)...)
		}
	}
	for _, f := range []float64{r.DmagColor, r.DmagTrail, r.DmagDetect, r.MagFilter} {
		b = appendFloat(b, f, 6)
	}
	b = append(b, '\n')
	w.buf = b
	_, err := w.w.Write(b)
	return err
}

func appendFloat(b []byte, f float64, prec int) []byte {
	b = append(b, ' ')
	if math.IsNaN(f) {
		return append(b, "nan"...)
	}
	return strconv.AppendFloat(b, f, 'f', prec, 64)
}

// Close flushes and closes the file.
func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// MPCWriter writes detections as MPC 80 column observations.
type MPCWriter struct {
	f    *os.File
	w    *bufio.Writer
	code string
}

// CreateMPC creates an 80 column observation file.  code is the
// observatory code written on each line.
func CreateMPC(path, code string) (*MPCWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &MPCWriter{f: f, w: bufio.NewWriter(f), code: code}, nil
}

func (m *MPCWriter) Write(r *Record) error {
	o := mpc.Obs80{
		Desig: r.ObjID,
		MJD:   r.Eph.Time - astro.TAIMinusUTC,
		RA:    r.Eph.RA * math.Pi / 180,
		Dec:   r.Eph.Dec * math.Pi / 180,
		Mag:   r.MagFilter,
		Code:  m.code,
	}
	if f := r.Visit.Filter; f != "" {
		o.Band = f[0]
	}
	_, err := fmt.Fprintln(m.w, o.Format())
	return err
}

func (m *MPCWriter) Close() error {
	if err := m.w.Flush(); err != nil {
		m.f.Close()
		return err
	}
	return m.f.Close()
}
