// Public domain.

package opsim

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Visit is one telescope pointing.  Angles are degrees, times MJD TAI.
type Visit struct {
	MJD            float64
	Night          int
	RA, Dec        float64
	Filter         string
	ExpTime        float64 // seconds
	SeeingGeom     float64 // arcsec
	SeeingEff      float64 // arcsec, 0 if not read
	FiveSigmaDepth float64
	RotSkyPos      float64 // 0 if not read
	SolarElong     float64 // 0 if not read

	// Values holds every column read, in the order of Visits.Cols.
	Values []any
}

// Visits is the result of ReadVisits.
type Visits struct {
	Cols   []string // logical names
	DBCols []string // database names
	Visits []Visit  // sorted by MJD
}

// Filters returns the distinct filters of the visits, in order of first
// appearance.
func (v *Visits) Filters() []string {
	var f []string
	seen := map[string]bool{}
	for i := range v.Visits {
		if fl := v.Visits[i].Filter; !seen[fl] {
			seen[fl] = true
			f = append(f, fl)
		}
	}
	return f
}

// Has reports whether a logical column was read.
func (v *Visits) Has(col string) bool {
	for _, c := range v.Cols {
		if c == col {
			return true
		}
	}
	return false
}

// Required columns.
var minCols = []string{ColMJD, ColNight, ColRA, ColDec, ColFilter,
	ColExpTime, ColSeeingGeom, ColFiveSigmaDepth}

// Columns read when present.
var optCols = []string{ColRotSkyPos, ColSeeingEff, ColSolarElong}

// ReadVisits queries db for the visits selected by constraint, an SQL
// expression placed verbatim after WHERE.  needRotation adds rotSkyPos to
// the required columns.  dbCols names further database columns to carry
// into Values.
func ReadVisits(ctx context.Context, db *DB, cm *ColMap, constraint string,
	needRotation bool, dbCols []string) (*Visits, error) {
	req := append([]string{}, minCols...)
	if needRotation {
		req = append(req, ColRotSkyPos)
	}
	req = append(req, dbCols...)
	req = dedup(cm, req)

	where := ""
	if constraint != "" {
		where = " WHERE " + constraint
	}
	sample := sampleQuery(cm, req, where)
	if err := tryQuery(ctx, db, sample); err != nil {
		return nil, fmt.Errorf("query %q failed: %w", sample, err)
	}

	cols := req
	for _, c := range optCols {
		if contains(dbNames(cm, cols), cm.DB(c)) {
			continue
		}
		q := sampleQuery(cm, []string{c}, where)
		if err := tryQuery(ctx, db, q); err != nil {
			log.Debug().Str("column", c).Err(err).Msg("Optional column unavailable")
			continue
		}
		cols = append(cols, c)
	}

	v := &Visits{Cols: cols, DBCols: dbNames(cm, cols)}
	log.Info().Strs("columns", v.DBCols).Msg("Querying opsim")
	q := "SELECT " + strings.Join(v.DBCols, ", ") + " FROM " + cm.Table + where +
		" ORDER BY " + cm.DB(ColMJD)
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %q failed: %w", q, err)
	}
	defer rows.Close()
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		vis, err := visitOf(cols, vals, cm.RaDecDeg)
		if err != nil {
			return nil, fmt.Errorf("visit %d: %w", len(v.Visits), err)
		}
		v.Visits = append(v.Visits, vis)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	log.Info().Int("count", len(v.Visits)).Msg("Queried data from opsim")
	return v, nil
}

func visitOf(cols []string, vals []any, degrees bool) (v Visit, err error) {
	for i, c := range cols {
		// drivers may return text for any column
		if b, ok := vals[i].([]byte); ok {
			vals[i] = string(b)
		}
		var f float64
		if c != ColFilter && vals[i] != nil {
			if f, err = toFloat(vals[i]); err != nil {
				if contains(minCols, c) || contains(optCols, c) {
					return v, fmt.Errorf("column %s: %w", c, err)
				}
				err = nil // extra columns may be text
			}
		}
		if !degrees && (c == ColRA || c == ColDec || c == ColRotSkyPos) {
			f *= 180 / math.Pi
			vals[i] = f
		}
		switch c {
		case ColMJD:
			v.MJD = f
		case ColNight:
			v.Night = int(f)
		case ColRA:
			v.RA = f
		case ColDec:
			v.Dec = f
		case ColFilter:
			v.Filter = fmt.Sprint(vals[i])
		case ColExpTime:
			v.ExpTime = f
		case ColSeeingGeom:
			v.SeeingGeom = f
		case ColSeeingEff:
			v.SeeingEff = f
		case ColFiveSigmaDepth:
			v.FiveSigmaDepth = f
		case ColRotSkyPos:
			v.RotSkyPos = f
		case ColSolarElong:
			v.SolarElong = f
		}
	}
	v.Values = vals
	return
}

func toFloat(x any) (float64, error) {
	switch t := x.(type) {
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int:
		return float64(t), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(t), 64)
	}
	return 0, fmt.Errorf("unexpected type %T", x)
}

func tryQuery(ctx context.Context, db *DB, q string) error {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	return rows.Close()
}

func dbNames(cm *ColMap, cols []string) []string {
	n := make([]string, len(cols))
	for i, c := range cols {
		n[i] = cm.DB(c)
	}
	return n
}

// dedup drops columns mapping to a database column already present.
func dedup(cm *ColMap, s []string) []string {
	var d []string
	for _, x := range s {
		if !contains(dbNames(cm, d), cm.DB(x)) {
			d = append(d, x)
		}
	}
	return d
}

// sampleQuery selects a single row of cols under the visit constraint.
func sampleQuery(cm *ColMap, cols []string, where string) string {
	return "SELECT " + strings.Join(dbNames(cm, cols), ", ") +
		" FROM " + cm.Table + where + " LIMIT 1"
}

func contains(s []string, x string) bool {
	for _, y := range s {
		if y == x {
			return true
		}
	}
	return false
}
