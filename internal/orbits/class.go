// Public domain.

package orbits

import "math"

// Class is a named region of q, e, i, H space.  Angles are degrees.
type Class struct {
	Abbr, Heading string
	Is            func(q, e, i, h float64) bool
}

// Classes lists the orbit classes detections are tallied by.  An object
// may belong to several; Classify reports the first match.
var Classes = []Class{
	{"N18", "NEO(H <= 18)", func(q, e, i, h float64) bool { return q < 1.3 && h < 18.5 }},
	{"NEO", "NEO(q < 1.3)", func(q, e, i, h float64) bool { return q < 1.3 }},
	{"Hyp", "Hyperbolic", func(q, e, i, h float64) bool { return e >= 1 }},
	{"MC", "Mars Crosser", func(q, e, i, h float64) bool {
		return q >= 1.3 && q < 1.67 && aphelion(q, e) > 1.58
	}},
	{"Hun", "Hungaria gr.", inA(1.78, 2, .18, 16, 34)},
	{"Pho", "Phocaea group", func(q, e, i, h float64) bool {
		return q >= 1.5 && inA(2.2, 2.45, 1, 20, 27)(q, e, i, h)
	}},
	{"MB1", "Inner MB", func(q, e, i, h float64) bool {
		a := semiMajor(q, e)
		return q >= 1.67 && a > 2.1 && a < 2.5 && i < (a-2.1)/.4*10+7
	}},
	{"Pal", "Pallas group", inA(2.5, 2.8, .35, 24, 37)},
	{"Han", "Hansa group", inA(2.55, 2.72, .25, 20, 23.5)},
	{"MB2", "Middle MB", inA(2.5, 2.8, .45, 0, 20)},
	{"MB3", "Outer MB", func(q, e, i, h float64) bool {
		a := semiMajor(q, e)
		return e <= .4 && a > 2.8 && a < 3.25 && i < (a-2.8)/.45*16+20
	}},
	{"Hil", "Hilda group", inA(3.9, 4.02, .4, 0, 18)},
	{"JTr", "Jupiter tr.", inA(5.05, 5.35, .22, 0, 38)},
	{"JFC", "Jupiter Comet", func(q, e, i, h float64) bool {
		if q < 1.3 || e >= 1 {
			return false
		}
		tj := 5.2*(1-e)/q + 2*math.Sqrt(q*(1+e)/5.2)*math.Cos(i*math.Pi/180)
		return tj > 2 && tj < 3
	}},
	{"TNO", "Trans-Neptunian", func(q, e, i, h float64) bool {
		return e < 1 && semiMajor(q, e) > 30.1
	}},
}

// Other is reported for objects in none of Classes.
const Other = "Oth"

// Classify returns the abbreviation of the first class o belongs to.
func (o *Orbit) Classify() string {
	q, e, i := o.Qei()
	for _, c := range Classes {
		if c.Is(q, e, i, o.H) {
			return c.Abbr
		}
	}
	return Other
}

func semiMajor(q, e float64) float64 {
	if e >= 1 {
		return math.Inf(1)
	}
	return q / (1 - e)
}

func aphelion(q, e float64) float64 {
	if e >= 1 {
		return math.Inf(1)
	}
	return q * (1 + e) / (1 - e)
}

// inA returns a class test for a box in a, e, i.
func inA(aMin, aMax, eMax, iMin, iMax float64) func(q, e, i, h float64) bool {
	return func(q, e, i, h float64) bool {
		if e > eMax || i < iMin || i > iMax {
			return false
		}
		a := semiMajor(q, e)
		return a > aMin && a < aMax
	}
}
