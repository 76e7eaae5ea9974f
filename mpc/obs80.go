// Public domain.

package mpc

import (
	"fmt"
	"math"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
)

// Obs80 is the content of a single line ground based observation in
// the MPC 80 column format.
type Obs80 struct {
	Desig string
	MJD   float64 // UTC
	RA    float64 // radians
	Dec   float64 // radians
	Mag   float64 // 0 for none
	Band  byte
	Code  string
}

// Format renders o as an 80 column line, note 2 = 'C' (CCD).
func (o *Obs80) Format() string {
	desig := o.Desig
	if len(desig) > 12 {
		desig = desig[len(desig)-12:]
	}
	y, m, d := julian.JDToCalendar(o.MJD + base.JMod)
	// 1e-5 day resolution; carry into the month is not handled, fractions
	// that round up to the next day are truncated instead.
	if d >= math.Floor(d)+.999995 {
		d = math.Floor(d) + .99999
	}

	// RA in units of .01s of time
	ra := int64(math.Round(math.Mod(o.RA*12/math.Pi+24, 24) * 360000))
	if ra == 24*360000 {
		ra = 0
	}
	// Dec in units of .1s of arc
	sign := byte('+')
	dec := o.Dec * 180 / math.Pi
	if dec < 0 {
		sign = '-'
		dec = -dec
	}
	ds := int64(math.Round(dec * 36000))

	mag := "     "
	band := byte(' ')
	if o.Mag != 0 {
		mag = fmt.Sprintf("%4.1f ", o.Mag)
		band = o.Band
	}
	return fmt.Sprintf("%-12s  C%4d %02d %08.5f %02d %02d %05.2f %c%02d %02d %04.1f          %s%c      %-3.3s",
		desig, y, m, d,
		ra/360000, ra/6000%60, float64(ra%6000)/100,
		sign, ds/36000, ds/600%60, float64(ds%600)/10,
		mag, band, o.Code)
}
