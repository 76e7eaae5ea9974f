// Public domain.

package obsprog

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/lsst-sims/makelsstobs/internal/ephem"
	"github.com/lsst-sims/makelsstobs/internal/footprint"
	"github.com/lsst-sims/makelsstobs/internal/obsgen"
	"github.com/lsst-sims/makelsstobs/internal/opsim"
)

// Args holds the command line settings, followed by fields derived from
// them by Validate.
type Args struct {
	OpsimDb       string
	OrbitFile     string
	OutDir        string
	ObsFile       string
	SQLConstraint string
	ObsMetadata   string
	Footprint     string
	RFov          float64
	XTol          float64
	YTol          float64
	RoughTol      float64
	ObsType       string
	ObsCode       string
	TStep         float64
	EphMode       string
	PrelimEphMode string
	EphType       string
	LogFile       string

	ConfigFile  string
	ObscodeFile string
	ColorFile   string
	MetricsFile string
	Obs80File   string
	LogLevel    string
	Workers     int
	Seed        uint64

	OrbitBase string
	OpsimRun  string
	strategy  obsgen.Strategy
	ephMode   ephem.Mode
	prelim    ephem.Mode
	ephType   ephem.Type
	footprint footprint.Footprint
}

// Validation errors.
var (
	ErrNoOpsimDb   = errors.New("must specify an opsim database output file")
	ErrNoOrbitFile = errors.New("must specify an orbit file")
)

// envPrefix prefixes environment variables supplying flag values.
const envPrefix = "MAKELSSTOBS"

func setFlags(fs *pflag.FlagSet) {
	fs.String("opsimDb", "", "opsim output db file (example: kraken_2026.db), or mysql://user:pw@tcp(host)/db")
	fs.String("orbitFile", "", "file containing the moving object orbits")
	fs.String("outDir", ".", "output directory for moving object detections")
	fs.String("obsFile", "", "output file name for moving object observations (default <opsimRun>__<orbitFile>_obs.txt)")
	fs.String("sqlConstraint", "", "SQL constraint, without 'where', selecting visits from opsimDb")
	fs.String("obsMetadata", "", "additional metadata to write into the output file")
	fs.String("footprint", footprint.KindCircle, "footprint: circle, rectangle or camera")
	fs.Float64("rFov", 1.75, "radius of a circular footprint, degrees")
	fs.Float64("xTol", 5, "RA tolerance of a rectangular footprint, degrees")
	fs.Float64("yTol", 3, "Dec tolerance of a rectangular footprint, degrees")
	fs.Float64("roughTol", 20, "tolerance of preliminary matches for direct generation, degrees")
	fs.String("obsType", "direct", "method for generating observations: direct or linear")
	fs.String("obsCode", "I11", "observatory code")
	fs.Float64("tStep", 1, "timestep of the rough or interpolation ephemeris grid, days")
	fs.String("ephMode", "nbody", "2body or nbody ephemeris generation")
	fs.String("prelimEphMode", "2body", "2body or nbody for the rough stage of direct generation")
	fs.String("ephType", "basic", "basic or full ephemerides")
	fs.String("logFile", "", "send log output to logFile instead of the console")

	fs.String("config", "", "TOML or YAML file supplying defaults for any flag")
	fs.String("obscodeFile", "", "MPC observatory code file (default in the user cache directory)")
	fs.String("colorFile", "", "TOML file of color offsets added to the built in table")
	fs.String("metricsFile", "", "write run metrics in prometheus text format to this file")
	fs.String("obs80File", "", "also write detections in MPC 80 column format to this file")
	fs.String("logLevel", "info", "log level: debug, info, warn or error")
	fs.Int("workers", runtime.GOMAXPROCS(0), "objects processed concurrently")
	fs.Uint64("seed", 42, "random seed for sed assignment")
}

// argsFrom collects settings from v, which has flags, environment and
// config file bound.
func argsFrom(v *viper.Viper) *Args {
	return &Args{
		OpsimDb:       v.GetString("opsimDb"),
		OrbitFile:     v.GetString("orbitFile"),
		OutDir:        v.GetString("outDir"),
		ObsFile:       v.GetString("obsFile"),
		SQLConstraint: v.GetString("sqlConstraint"),
		ObsMetadata:   v.GetString("obsMetadata"),
		Footprint:     v.GetString("footprint"),
		RFov:          v.GetFloat64("rFov"),
		XTol:          v.GetFloat64("xTol"),
		YTol:          v.GetFloat64("yTol"),
		RoughTol:      v.GetFloat64("roughTol"),
		ObsType:       v.GetString("obsType"),
		ObsCode:       v.GetString("obsCode"),
		TStep:         v.GetFloat64("tStep"),
		EphMode:       v.GetString("ephMode"),
		PrelimEphMode: v.GetString("prelimEphMode"),
		EphType:       v.GetString("ephType"),
		LogFile:       v.GetString("logFile"),
		ConfigFile:    v.GetString("config"),
		ObscodeFile:   v.GetString("obscodeFile"),
		ColorFile:     v.GetString("colorFile"),
		MetricsFile:   v.GetString("metricsFile"),
		Obs80File:     v.GetString("obs80File"),
		LogLevel:      v.GetString("logLevel"),
		Workers:       v.GetInt("workers"),
		Seed:          v.GetUint64("seed"),
	}
}

// Validate checks the settings and fills in derived fields.
func (a *Args) Validate() (err error) {
	if a.OpsimDb == "" {
		return ErrNoOpsimDb
	}
	if a.OrbitFile == "" {
		return ErrNoOrbitFile
	}
	if a.strategy, err = obsgen.ParseStrategy(a.ObsType); err != nil {
		return err
	}
	if a.footprint, err = footprint.New(a.Footprint, a.RFov, a.XTol, a.YTol); err != nil {
		return err
	}
	if a.ephMode, err = ephem.ParseMode(a.EphMode); err != nil {
		return err
	}
	if a.prelim, err = ephem.ParseMode(a.PrelimEphMode); err != nil {
		return fmt.Errorf("prelimEphMode: %w", err)
	}
	if a.ephType, err = ephem.ParseType(a.EphType); err != nil {
		return err
	}
	for _, p := range []struct {
		name string
		v    float64
	}{
		{"tStep", a.TStep},
		{"rFov", a.RFov},
		{"xTol", a.XTol},
		{"yTol", a.YTol},
		{"roughTol", a.RoughTol},
	} {
		if !(p.v > 0) {
			return fmt.Errorf("%s must be positive, got %g", p.name, p.v)
		}
	}

	a.OrbitBase = OrbitBase(a.OrbitFile)
	a.OpsimRun = opsim.RunName(a.OpsimDb)
	if a.ObsFile == "" {
		a.ObsFile = a.OpsimRun + "__" + a.OrbitBase + "_obs.txt"
	}
	a.ObsFile = outPath(a.OutDir, a.ObsFile)
	if a.Obs80File != "" {
		a.Obs80File = outPath(a.OutDir, a.Obs80File)
	}

	md := "Opsim " + a.OpsimRun
	if a.SQLConstraint != "" {
		md += " selected with sqlconstraint " + a.SQLConstraint
	}
	md += " + Orbitfile " + a.OrbitBase
	if a.ObsMetadata != "" {
		md += "\n# " + a.ObsMetadata
	}
	a.ObsMetadata = md
	return nil
}

// OrbitBase returns the base name of an orbit file without its final
// extension.  A name with no dot gives the empty string.
func OrbitBase(orbitFile string) string {
	p := strings.Split(filepath.Base(orbitFile), ".")
	return strings.Join(p[:len(p)-1], ".")
}

func outPath(dir, fn string) string {
	if filepath.IsAbs(fn) {
		return fn
	}
	return filepath.Join(dir, fn)
}
