// Public domain.

package footprint

import "math"

// Camera is a focal plane of square rafts, each a square grid of square
// chips.  Dimensions are degrees on the sky.
type Camera struct {
	Rafts     int     // rafts per side
	RaftPitch float64 // raft center spacing
	Chips     int     // chips per raft side
	ChipSize  float64 // active width of a chip
	NoCorners bool    // corner rafts hold wavefront sensors, not science chips
}

// LSSTCamera returns the science raft layout of the LSST camera.
func LSSTCamera() *Camera {
	return &Camera{
		Rafts:     5,
		RaftPitch: .7,
		Chips:     3,
		ChipSize:  .2275,
		NoCorners: true,
	}
}

func (*Camera) NeedsRotation() bool { return true }

func (c *Camera) In(p *Pointing, ra, dec float64) bool {
	x, y, ok := Gnomonic(p, ra, dec)
	if !ok {
		return false
	}
	rx, cx, ok := c.axis(x)
	if !ok {
		return false
	}
	ry, cy, ok := c.axis(y)
	if !ok {
		return false
	}
	if c.NoCorners && (rx == 0 || rx == c.Rafts-1) && (ry == 0 || ry == c.Rafts-1) {
		return false
	}
	return cx && cy
}

// axis locates a focal plane coordinate along one axis, returning the
// raft index and whether the coordinate lands on a chip rather than in a
// gap.
func (c *Camera) axis(v float64) (raft int, onChip, ok bool) {
	half := float64(c.Rafts) * c.RaftPitch / 2
	u := v + half
	if u < 0 || u >= 2*half {
		return 0, false, false
	}
	raft = int(u / c.RaftPitch)
	chipPitch := c.RaftPitch / float64(c.Chips)
	l := u - float64(raft)*c.RaftPitch
	k := math.Floor(l / chipPitch)
	return raft, math.Abs(l-(k+.5)*chipPitch) <= c.ChipSize/2, true
}
