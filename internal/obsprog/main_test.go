package obsprog_test

import (
	"database/sql"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/soniakeys/mpcformat"

	"github.com/lsst-sims/makelsstobs/internal/ephem"
	"github.com/lsst-sims/makelsstobs/internal/obsprog"
	"github.com/lsst-sims/makelsstobs/internal/orbits"
	"github.com/lsst-sims/makelsstobs/mpc"
)

const orbitFile = `!!ObjID FORMAT q e i node argperi t_p H t_0
S1000000a COM 2.0 0.1 5.0 30.0 60.0 59800.5 17.5 59853.0
S1000001a COM 2.4 0.2 25.0 210.0 60.0 59700.5 18.5 59853.0
`

// fixture writes an orbit file and an opsim database with visits on the
// first object, returning their paths.
func fixture(t *testing.T) (orbitFn, dbFn string) {
	t.Helper()
	dir := t.TempDir()
	orbitFn = filepath.Join(dir, "two.des")
	if err := os.WriteFile(orbitFn, []byte(orbitFile), 0o644); err != nil {
		t.Fatal(err)
	}
	cat, err := orbits.ReadFile(orbitFn)
	if err != nil {
		t.Fatal(err)
	}
	times := []float64{59860.1, 59860.12, 59863.2, 59866.05, 59866.3}
	g := ephem.Generator{Site: mpc.Builtin["I11"], Mode: ephem.TwoBody}
	eph, err := g.Ephemerides(&cat[0], times)
	if err != nil {
		t.Fatal(err)
	}

	dbFn = filepath.Join(dir, "tiny_run_sqlite.db")
	db, err := sql.Open("sqlite3", dbFn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE observations (observationId INTEGER,
		observationStartMJD REAL, night INTEGER, fieldRA REAL, fieldDec REAL,
		filter TEXT, visitExposureTime REAL, seeingFwhmGeom REAL,
		seeingFwhmEff REAL, fiveSigmaDepth REAL, rotSkyPos REAL)`)
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range eph {
		_, err := db.Exec(`INSERT INTO observations VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
			i, times[i], int(times[i]-59853), e.RA+.3, e.Dec-.2, "gr"[i%2:i%2+1],
			30., .7, .8, 24.3, 15.)
		if err != nil {
			t.Fatal(err)
		}
	}
	return
}

func TestCommand(t *testing.T) {
	orbitFn, dbFn := fixture(t)
	out := t.TempDir()
	logFn := filepath.Join(out, "run.log")
	// env is overridden by the command line
	t.Setenv("MAKELSSTOBS_OBSTYPE", "bogus")
	for _, obsType := range []string{"linear", "direct"} {
		cmd := obsprog.NewCommand()
		cmd.SetArgs([]string{
			"--opsimDb", dbFn,
			"--orbitFile", orbitFn,
			"--outDir", out,
			"--obsFile", obsType + ".txt",
			"--obsType", obsType,
			"--ephMode", "2body",
			"--obscodeFile", filepath.Join(out, "none", "ObsCodes.html"),
			"--metricsFile", filepath.Join(out, obsType+".prom"),
			"--obs80File", obsType + ".80",
			"--logFile", logFn,
			"--workers", "2",
		})
		if err := cmd.Execute(); err != nil {
			t.Fatal(obsType, err)
		}
		b, err := os.ReadFile(filepath.Join(out, obsType+".txt"))
		if err != nil {
			t.Fatal(err)
		}
		lines := strings.Split(strings.TrimSpace(string(b)), "\n")
		if len(lines) != 2+5 {
			t.Fatalf("%s: %d lines\n%s", obsType, len(lines), b)
		}
		if lines[0] != "# Opsim tiny_run + Orbitfile two" {
			t.Fatal(lines[0])
		}
		head := strings.Fields(lines[1])
		for i, l := range lines[2:] {
			f := strings.Fields(l)
			if len(f) != len(head) || f[0] != "S1000000a" {
				t.Fatalf("%s: row %d %q", obsType, i, l)
			}
		}
		b, err = os.ReadFile(filepath.Join(out, obsType+".80"))
		if err != nil {
			t.Fatal(err)
		}
		if n := strings.Count(string(b), "\n"); n != 5 {
			t.Fatal(obsType, "80 column lines", n)
		}
		b, err = os.ReadFile(filepath.Join(out, obsType+".prom"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(b), "makelsstobs_orbits_total 2") {
			t.Fatal(string(b))
		}
	}
	b, err := os.ReadFile(logFn)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(b), "Completed successfully.") != 2 {
		t.Fatal(string(b))
	}
}

// countRows returns the number of detection rows in an output file.
func countRows(t *testing.T, fn string) int {
	t.Helper()
	b, err := os.ReadFile(fn)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(b), "\nS1000000a ")
}

func TestCommandDefaults(t *testing.T) {
	orbitFn, dbFn := fixture(t)
	out := t.TempDir()
	// n-body ephemerides for both strategies
	for _, obsType := range []string{"direct", "linear"} {
		cmd := obsprog.NewCommand()
		cmd.SetArgs([]string{
			"--opsimDb", dbFn,
			"--orbitFile", orbitFn,
			"--outDir", out,
			"--obsType", obsType,
			"--obscodeFile", filepath.Join(out, "none", "ObsCodes.html"),
			"--logFile", filepath.Join(out, "log"),
		})
		if err := cmd.Execute(); err != nil {
			t.Fatal(obsType, err)
		}
		if n := countRows(t, filepath.Join(out, "tiny_run__two_obs.txt")); n != 5 {
			t.Fatal(obsType, n, "detections")
		}
	}
}

func TestCommandFetchObscodes(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `<pre>
Code  Long.   cos      sin    Name
F51 203.744090.936241+0.351543Pan-STARRS 1, Haleakala
</pre>
`)
		}))
	defer ts.Close()
	defer func(u string) { mpcformat.ObscodeDatURL = u }(mpcformat.ObscodeDatURL)
	mpcformat.ObscodeDatURL = ts.URL

	orbitFn, dbFn := fixture(t)
	out := t.TempDir()
	ocdFn := filepath.Join(out, "cache", "ObsCodes.html")
	cmd := obsprog.NewCommand()
	cmd.SetArgs([]string{
		"--opsimDb", dbFn,
		"--orbitFile", orbitFn,
		"--outDir", out,
		"--ephMode", "2body",
		"--obsCode", "F51",
		"--obscodeFile", ocdFn,
		"--logFile", filepath.Join(out, "log"),
	})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ocdFn); err != nil {
		t.Fatal(err)
	}
	if n := countRows(t, filepath.Join(out, "tiny_run__two_obs.txt")); n != 5 {
		t.Fatal(n, "detections")
	}

	// unknown to the fetched file
	cmd = obsprog.NewCommand()
	cmd.SetArgs([]string{
		"--opsimDb", dbFn,
		"--orbitFile", orbitFn,
		"--outDir", out,
		"--obsCode", "Z99",
		"--obscodeFile", ocdFn,
		"--logFile", filepath.Join(out, "log"),
	})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "Z99") {
		t.Fatal(err)
	}
}

func TestCommandConfigFile(t *testing.T) {
	orbitFn, dbFn := fixture(t)
	out := t.TempDir()
	cfg := filepath.Join(out, "run.toml")
	err := os.WriteFile(cfg, []byte(fmt.Sprintf(`opsimDb = %q
orbitFile = %q
outDir = %q
ephMode = "2body"
footprint = "rectangle"
obscodeFile = %q
logFile = %q
`, dbFn, orbitFn, out, filepath.Join(out, "none"), filepath.Join(out, "log"))), 0o644)
	if err != nil {
		t.Fatal(err)
	}
	cmd := obsprog.NewCommand()
	cmd.SetArgs([]string{"--config", cfg})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(out, "tiny_run__two_obs.txt")); err != nil {
		t.Fatal(err)
	}
}

func TestCommandErrors(t *testing.T) {
	orbitFn, dbFn := fixture(t)
	out := t.TempDir()
	var tcs = []struct {
		args []string
		want string
	}{
		{[]string{"--orbitFile", orbitFn}, "opsim database"},
		{[]string{"--opsimDb", dbFn}, "orbit file"},
		{[]string{"--opsimDb", dbFn, "--orbitFile", orbitFn, "--obsType", "exact"}, "obsType"},
		{[]string{"--opsimDb", dbFn, "--orbitFile", filepath.Join(out, "none.txt"),
			"--logFile", filepath.Join(out, "log")}, "none.txt"},
		{[]string{"--opsimDb", dbFn, "--orbitFile", orbitFn, "--sqlConstraint", "nosuch = 1",
			"--logFile", filepath.Join(out, "log")}, "nosuch"},
		{[]string{"--opsimDb", dbFn, "--orbitFile", orbitFn, "extra"}, "unknown command"},
	}
	for _, tc := range tcs {
		cmd := obsprog.NewCommand()
		cmd.SetArgs(tc.args)
		err := cmd.Execute()
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%v: got %v, want error containing %q", tc.args, err, tc.want)
		}
	}
}
