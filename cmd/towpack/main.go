// towpack imports towed camera survey deployments into the canonical
// archive layout, renders derived imagery, and correlates every visual
// asset with its telemetry record.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/mritc-tools/towpack/internal/archive"
	"github.com/mritc-tools/towpack/internal/config"
	"github.com/mritc-tools/towpack/internal/ifdo"
	"github.com/mritc-tools/towpack/internal/logging"
	"github.com/mritc-tools/towpack/internal/metrics"
	"github.com/mritc-tools/towpack/internal/otel"
	"github.com/mritc-tools/towpack/internal/pipeline"
	"github.com/mritc-tools/towpack/internal/telemetry"
	"github.com/mritc-tools/towpack/internal/util"
)

const version = "1.0.0"

type options struct {
	configDir string
	verbose   bool
	dryRun    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "towpack",
		Short: "Import, process and package towed camera survey deployments",
		Long: "towpack reorganizes raw towed camera survey output (telemetry logs, stills, video)\n" +
			"into a canonical archive layout and correlates each visual asset with the telemetry\n" +
			"sample closest to its capture time.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.Load(opts.configDir)
		},
	}

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config", ".", "directory containing towpack.cfg.json")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&opts.dryRun, "dry-run", "n", false, "log decisions without touching the filesystem")

	rootCmd.AddCommand(newImportCmd(opts))
	rootCmd.AddCommand(newProcessCmd(opts))
	rootCmd.AddCommand(newPackageCmd(opts))
	rootCmd.AddCommand(newRunCmd(opts))

	return rootCmd
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import [source] [destination]",
		Short: "Link one deployment's raw files into the destination layout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			res, err := app.service.Import(args[0], args[1], util.DeploymentID(args[0]))
			if err != nil {
				return err
			}
			cmd.Printf("linked %d, already existed %d, failed %d\n",
				res.Linked, res.AlreadyExisted, res.Failed)
			return nil
		},
	}
}

func newProcessCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "process [destination]",
		Short: "Render thumbnails and the grid overview for a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			return app.service.Process(args[0], util.DeploymentID(args[0]))
		},
	}
}

func newPackageCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "package [destination]",
		Short: "Build the packaging manifest for a deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts, false)
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			man, _, err := app.service.Package(args[0], util.DeploymentID(args[0]))
			if err != nil {
				return err
			}
			if len(man) == 0 {
				cmd.Println("empty manifest, telemetry unavailable")
				return nil
			}

			matched := 0
			for _, entry := range man {
				if entry.Matched() {
					matched++
				}
			}
			cmd.Printf("%d manifest entries, %d correlated\n", len(man), matched)
			return nil
		},
	}
}

func newRunCmd(opts *options) *cobra.Command {
	var destRoot string

	runCmd := &cobra.Command{
		Use:   "run [source]...",
		Short: "Run all phases for one or more deployment directories",
		Long: "Runs import, process and package for each deployment directory and records the\n" +
			"run to the archive database and metrics sinks. A failing deployment is logged\n" +
			"and the remaining deployments still run.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(opts, true)
			if err != nil {
				return err
			}
			defer app.close(cmd.Context())

			failures := 0
			for _, source := range args {
				dest := filepath.Join(destRoot, filepath.Base(filepath.Clean(source)))
				run, err := app.service.Run(cmd.Context(), source, dest)
				if err != nil {
					failures++
					app.logManager.Logger().Error("deployment run failed",
						"source", source, "error", err)
					continue
				}
				cmd.Printf("%s: linked %d, matched %d, unmatched %d\n",
					run.DeploymentID, run.FilesLinked, run.AssetsMatched, run.AssetsUnmatched)
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d deployments failed", failures, len(args))
			}
			return nil
		},
	}

	runCmd.Flags().StringVar(&destRoot, "dest-root", ".", "directory receiving one destination tree per deployment")

	return runCmd
}

// app wires the managers behind a pipeline service for one invocation.
type app struct {
	logManager *logging.Manager
	provider   *otel.Provider
	archiveMgr *archive.Manager
	metricsMgr *metrics.Manager
	service    *pipeline.Service
	logFile    *os.File
	otelFile   *os.File
}

// newApp builds the full dependency stack. The archive and metrics
// sinks are only connected when withSinks is set; the single-phase
// commands skip them.
func newApp(opts *options, withSinks bool) (*app, error) {
	a := &app{logManager: logging.NewManager()}

	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating logs directory: %w", err)
	}

	sessionStart := time.Now()
	logFile, err := os.Create(logging.LogFilePath(logsDir, sessionStart))
	if err != nil {
		return nil, fmt.Errorf("creating session log: %w", err)
	}
	a.logFile = logFile

	level := config.GetString("logLevel")
	if opts.verbose {
		level = "debug"
	}

	otelCfg := config.GetOTelConfig()
	providerCfg := otel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	}
	if otelCfg.Enabled {
		a.otelFile, err = os.Create(filepath.Join(logsDir,
			"towpack.otel."+sessionStart.Format("20060102_150405")+".json"))
		if err != nil {
			return nil, fmt.Errorf("creating otel log: %w", err)
		}
		providerCfg.LogWriter = a.otelFile
	}
	a.provider, err = otel.New(providerCfg)
	if err != nil {
		return nil, err
	}

	a.logManager.Setup(logFile, level, a.provider)
	logger := a.logManager.Logger()
	logger.Info("towpack starting", "version", version, "logsDir", logsDir)

	if withSinks && !opts.dryRun {
		zl := logging.NewZerolog(logFile, level)

		archiveCfg := config.GetArchiveConfig()
		if archiveCfg.Enabled {
			mgr := archive.NewManager(zl, archiveCfg.SqlitePath)
			if err := mgr.Connect(); err != nil {
				logger.Error("archive unavailable, runs will not be recorded", "error", err)
			} else if err := mgr.Setup(); err != nil {
				logger.Error("archive migration failed, runs will not be recorded", "error", err)
			} else {
				a.archiveMgr = mgr
			}
		}

		influxCfg := config.GetInfluxConfig()
		if influxCfg.Enabled {
			mgr := metrics.NewManager(zl, filepath.Join(logsDir, "towpack_metrics.lp.gz"), influxCfg)
			if err := mgr.Connect(); err != nil {
				logger.Error("metrics unavailable", "error", err)
			} else {
				a.metricsMgr = mgr
			}
		}
	}

	telCfg := config.GetTelemetryConfig()
	a.service = pipeline.NewService(pipeline.Dependencies{
		LogManager: a.logManager,
		Archive:    a.archiveMgr,
		Metrics:    a.metricsMgr,
		Provenance: ifdo.DefaultProvenance(version),
		Telemetry: telemetry.Options{
			Tag:             telCfg.Tag,
			TimestampColumn: telCfg.TimestampColumn,
			TimestampFormat: telCfg.TimestampFormat,
		},
		DryRun:          opts.dryRun,
		ThumbnailMaxDim: config.GetInt("imagery.thumbnailMaxDim"),
		OverviewColumns: config.GetInt("imagery.overviewColumns"),
	})

	return a, nil
}

func (a *app) close(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if a.metricsMgr != nil {
		if err := a.metricsMgr.Close(); err != nil {
			a.logManager.Logger().Warn("metrics close failed", "error", err)
		}
	}
	if a.archiveMgr != nil {
		if err := a.archiveMgr.Close(); err != nil {
			a.logManager.Logger().Warn("archive close failed", "error", err)
		}
	}
	if err := a.logManager.Flush(flushCtx); err != nil {
		a.logManager.Logger().Warn("log flush failed", "error", err)
	}
	if err := a.provider.Shutdown(flushCtx); err != nil {
		a.logManager.Logger().Warn("otel shutdown failed", "error", err)
	}
	if a.otelFile != nil {
		_ = a.otelFile.Close()
	}
	_ = a.logFile.Close()
}
