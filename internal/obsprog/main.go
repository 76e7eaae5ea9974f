// Public domain.

// Package obsprog is the makelsstobs command.
package obsprog

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/soniakeys/exit"
	"github.com/soniakeys/mpcformat"
	"github.com/soniakeys/observation"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/lsst-sims/makelsstobs/internal/colors"
	"github.com/lsst-sims/makelsstobs/internal/metrics"
	"github.com/lsst-sims/makelsstobs/internal/obsfile"
	"github.com/lsst-sims/makelsstobs/internal/obsgen"
	"github.com/lsst-sims/makelsstobs/internal/opsim"
	"github.com/lsst-sims/makelsstobs/internal/orbits"
	"github.com/lsst-sims/makelsstobs/mpc"
)

const versionString = "0.4"

// Main runs the command and exits non-zero on any error.
func Main() {
	defer exit.Handler()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := NewCommand().ExecuteContext(ctx); err != nil {
		exit.Log(err)
	}
}

// NewCommand returns the root command with its flags bound to viper.
func NewCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "makelsstobs",
		Short: "Generate moving object detections.",
		Long: `Makelsstobs generates simulated moving object detections from an opsim
pointing history and a file of orbits.

Flags may also be given as environment variables, MAKELSSTOBS_<FLAG> with
the flag name in upper case, or in a config file named by --config.`,
		Version:       versionString,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if fn := v.GetString("config"); fn != "" {
				v.SetConfigFile(fn)
				if err := v.ReadInConfig(); err != nil {
					return err
				}
			}
			a := argsFrom(v)
			if err := a.Validate(); err != nil {
				return err
			}
			closeLog, err := setupLogging(a.LogLevel, a.LogFile)
			if err != nil {
				return err
			}
			defer closeLog()
			return Run(cmd.Context(), a)
		},
	}
	setFlags(cmd.Flags())
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	// cannot fail, the flag set is not nil.
	_ = v.BindPFlags(cmd.Flags())
	return cmd
}

// setupLogging directs the global logger to the console or to logFile.
func setupLogging(level, logFile string) (func() error, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(lvl)
	if logFile == "" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.TimeOnly,
		}).With().Timestamp().Logger()
		return func() error { return nil }, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f.Close, nil
}

// Run generates detections as configured by a, which must have been
// validated.
func Run(ctx context.Context, a *Args) error {
	log.Info().Msg("# makelsstobs version " + versionString)
	m := metrics.New()

	cat, err := orbits.ReadFile(a.OrbitFile)
	if err != nil {
		return err
	}
	cat.AssignSEDs(a.Seed)
	m.Orbits.Add(float64(len(cat)))

	visits, err := readOpsim(ctx, a)
	if err != nil {
		return err
	}
	m.Visits.Add(float64(len(visits.Visits)))

	site, err := readSite(a)
	if err != nil {
		return err
	}
	tab := colors.Builtin()
	if a.ColorFile != "" {
		if tab, err = colors.ReadFile(a.ColorFile); err != nil {
			return err
		}
	}

	log.Info().Stringer("obsType", a.strategy).Stringer("ephMode", a.ephMode).
		Msg("Generating observations")
	gen, err := obsgen.New(obsgen.Config{
		Strategy:      a.strategy,
		Footprint:     a.footprint,
		RoughTol:      a.RoughTol,
		EphMode:       a.ephMode,
		PrelimEphMode: a.prelim,
		EphType:       a.ephType,
		Site:          site,
		TStep:         a.TStep,
		Workers:       a.Workers,
		Metrics:       m,
	})
	if err != nil {
		return err
	}
	if err := gen.SetupColors(tab, visits.Filters(), cat.SEDs()); err != nil {
		return err
	}

	w, err := obsfile.Create(a.ObsFile, a.ObsMetadata, a.ephType, visits.DBCols)
	if err != nil {
		return err
	}
	sinks := []obsfile.Sink{w}
	if a.Obs80File != "" {
		w80, err := obsfile.CreateMPC(a.Obs80File, a.ObsCode)
		if err != nil {
			w.Close()
			return err
		}
		sinks = append(sinks, w80)
	}
	n, err := gen.Run(ctx, cat, visits.Visits, sinks...)
	for _, s := range sinks {
		if cErr := s.Close(); err == nil {
			err = cErr
		}
	}
	if err != nil {
		return err
	}
	log.Info().Str("file", a.ObsFile).Int("count", n).Msg("Wrote observations")

	if a.MetricsFile != "" {
		if err := m.WriteFile(a.MetricsFile); err != nil {
			return err
		}
	}
	log.Info().Msg("Completed successfully.")
	return nil
}

func readOpsim(ctx context.Context, a *Args) (*opsim.Visits, error) {
	db, err := opsim.Open(a.OpsimDb)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	cm, err := opsim.ColMapFor(ctx, db)
	if err != nil {
		return nil, err
	}
	v, err := opsim.ReadVisits(ctx, db, cm, a.SQLConstraint,
		a.footprint.NeedsRotation(), nil)
	if err != nil {
		return nil, err
	}
	log.Info().Str("file", a.OpsimDb).Int("count", len(v.Visits)).
		Msg("Read opsim visits")
	return v, nil
}

// readSite finds the parallax constants of the observatory code.  The
// obscode file is read if present.  Otherwise built in constants serve
// when they cover the code, and failing that a fresh file is fetched.
func readSite(a *Args) (*observation.ParallaxConst, error) {
	fn := a.ObscodeFile
	if fn == "" {
		dir, err := os.UserCacheDir()
		if err != nil {
			dir = os.TempDir()
		}
		fn = filepath.Join(dir, "makelsstobs", "ObsCodes.html")
	}
	ocd, readErr := mpcformat.ReadObscodeDatFile(fn)
	if readErr == nil {
		return mpc.Site(ocd, a.ObsCode)
	}
	if _, ok := mpc.Builtin[a.ObsCode]; ok && errors.Is(readErr, os.ErrNotExist) {
		log.Debug().Str("obsCode", a.ObsCode).Msg("Using built in site")
		return mpc.Site(mpc.Builtin, a.ObsCode)
	}
	// that didn't work.  try getting a fresh copy.
	log.Info().Str("file", fn).Msg("Fetching observatory codes")
	if err := os.MkdirAll(filepath.Dir(fn), 0o755); err != nil {
		return nil, err
	}
	if err := mpcformat.FetchObscodeDat(fn); err != nil {
		log.Error().Err(readErr).Msg("Reading observatory codes")
		return nil, err
	}
	if ocd, readErr = mpcformat.ReadObscodeDatFile(fn); readErr != nil {
		return nil, readErr
	}
	return mpc.Site(ocd, a.ObsCode)
}
