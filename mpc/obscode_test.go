package mpc_test

import (
	"math"
	"strings"
	"testing"

	"github.com/soniakeys/mpcformat"

	"github.com/lsst-sims/makelsstobs/mpc"
)

// obscode.dat lines for the built in sites
const ocdText = `<pre>
Code  Long.   cos      sin    Name
500   0.0000 0.00000  0.00000 Geocentric
807 289.193800.863070-0.503790Cerro Tololo Observatory, La Serena
I11 289.263450.865020-0.500901Gemini South Obs., Cerro Pachon
X05 289.250580.864981-0.500958Simonyi Survey Telescope, Rubin Observatory
</pre>
`

func TestBuiltin(t *testing.T) {
	ocd, err := mpcformat.ReadObscodeDat(strings.NewReader(ocdText))
	if err != nil {
		t.Fatal(err)
	}
	if len(ocd) != len(mpc.Builtin) {
		t.Fatal(len(ocd), "codes")
	}
	for code, want := range ocd {
		got, err := mpc.Site(mpc.Builtin, code)
		switch {
		case err != nil:
			t.Fatal(err)
		case want == nil || got == nil:
			if want != got {
				t.Fatal(code, got, want)
			}
		case math.Abs((got.Longitude - want.Longitude).Rad()) > 1e-12,
			math.Abs(got.RhoCosPhi-want.RhoCosPhi) > 1e-15,
			math.Abs(got.RhoSinPhi-want.RhoSinPhi) > 1e-15:
			t.Fatalf("%s: got %+v want %+v", code, got, want)
		}
	}
}

func TestSite(t *testing.T) {
	if p, err := mpc.Site(mpc.Builtin, "500"); err != nil || p != nil {
		t.Fatal(p, err)
	}
	if _, err := mpc.Site(mpc.Builtin, "zzz"); err == nil {
		t.Fatal("expected error for unknown code")
	}
}
