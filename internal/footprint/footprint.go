// Public domain.

// Package footprint decides whether a sky position falls within the field
// of view of a telescope pointing.
package footprint

import (
	"fmt"
	"math"
	"strings"

	"github.com/soniakeys/meeus/v3/angle"
	"github.com/soniakeys/unit"
)

// Pointing is the center and orientation of a visit, degrees.
type Pointing struct {
	RA, Dec   float64
	RotSkyPos float64
}

// Footprint is a field of view shape.  RA, Dec are degrees.
type Footprint interface {
	In(p *Pointing, ra, dec float64) bool
	// NeedsRotation reports whether In uses RotSkyPos.
	NeedsRotation() bool
}

// Kinds accepted by New.
const (
	KindCircle    = "circle"
	KindRectangle = "rectangle"
	KindCamera    = "camera"
)

// New returns the footprint named by kind.
func New(kind string, rFov, xTol, yTol float64) (Footprint, error) {
	switch strings.ToLower(kind) {
	case KindCircle:
		return &Circle{Radius: rFov}, nil
	case KindRectangle:
		return &Rectangle{XTol: xTol, YTol: yTol}, nil
	case KindCamera:
		return LSSTCamera(), nil
	}
	return nil, fmt.Errorf("footprint %q not circle, rectangle or camera", kind)
}

// Circle accepts positions within Radius degrees of the pointing.
type Circle struct {
	Radius float64
}

func (c *Circle) In(p *Pointing, ra, dec float64) bool {
	return Sep(p.RA, p.Dec, ra, dec) <= c.Radius
}

func (*Circle) NeedsRotation() bool { return false }

// Rectangle accepts positions within XTol degrees of the pointing in RA,
// scaled by the cosine of pointing declination, and within YTol in Dec.
type Rectangle struct {
	XTol, YTol float64
}

func (r *Rectangle) In(p *Pointing, ra, dec float64) bool {
	dra := DeltaRA(ra, p.RA) * math.Cos(p.Dec*math.Pi/180)
	return math.Abs(dra) <= r.XTol && math.Abs(dec-p.Dec) <= r.YTol
}

func (*Rectangle) NeedsRotation() bool { return false }

// Sep is angular separation in degrees.
func Sep(ra1, dec1, ra2, dec2 float64) float64 {
	return angle.Sep(unit.AngleFromDeg(ra1), unit.AngleFromDeg(dec1),
		unit.AngleFromDeg(ra2), unit.AngleFromDeg(dec2)).Deg()
}

// DeltaRA returns ra1 - ra2 wrapped to [-180, 180).
func DeltaRA(ra1, ra2 float64) float64 {
	d := math.Mod(ra1-ra2+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}

// Gnomonic projects ra, dec onto the tangent plane at p, then rotates by
// p.RotSkyPos.  Results are degrees.  ok is false for positions 90 degrees
// or more from the pointing.
func Gnomonic(p *Pointing, ra, dec float64) (x, y float64, ok bool) {
	const d2r = math.Pi / 180
	sd0, cd0 := math.Sincos(p.Dec * d2r)
	sd, cd := math.Sincos(dec * d2r)
	sa, ca := math.Sincos(DeltaRA(ra, p.RA) * d2r)
	cosc := sd0*sd + cd0*cd*ca
	if cosc <= 0 {
		return 0, 0, false
	}
	ξ := cd * sa / cosc
	η := (cd0*sd - sd0*cd*ca) / cosc
	sr, cr := math.Sincos(p.RotSkyPos * d2r)
	x = (ξ*cr - η*sr) / d2r
	y = (ξ*sr + η*cr) / d2r
	return x, y, true
}
