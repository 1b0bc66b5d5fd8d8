package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"supplychain/internal/config"
	"supplychain/internal/infrastructure"
	"supplychain/internal/pipeline"
	"supplychain/internal/store"
)

// flags holds the persistent command line overrides.
type flags struct {
	configFile    string
	inputFile     string
	outputDir     string
	logLevel      string
	sqliteFile    string
	declaredStart string
	declaredEnd   string
}

// app is the state shared by every subcommand for one invocation.
type app struct {
	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	telemetry *infrastructure.Telemetry
	store     *store.Store
	runner    *pipeline.Runner
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:   "supplychain",
		Short: "Clean, score, filter and aggregate supply chain logistics data",
		Long: `supplychain prepares a raw logistics CSV for analysis.

The clean stage validates every field against its declared domain, resolves
missing values and duplicates and scores the data quality. The aggregate
stage restricts records to the declared collection window and rolls them up
into daily and weekly summary tables. The analysis commands read the
filtered dataset and write bottleneck, stress index and compound effects
reports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configFile, "config", "", "path to a YAML config file")
	pf.StringVar(&f.inputFile, "input", "", "raw logistics CSV to clean")
	pf.StringVar(&f.outputDir, "output-dir", "", "directory for every output artifact")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&f.sqliteFile, "sqlite", "", "SQLite database recording runs and summary tables")
	pf.StringVar(&f.declaredStart, "declared-start", "", "first day of the declared collection window (YYYY-MM-DD)")
	pf.StringVar(&f.declaredEnd, "declared-end", "", "last day of the declared collection window (YYYY-MM-DD)")

	root.AddCommand(
		newCleanCmd(f),
		newAggregateCmd(f),
		newRunCmd(f),
		newBottlenecksCmd(f),
		newStressCmd(f),
		newCompoundCmd(f),
	)
	return root
}

// loadConfig reads the configuration and applies the flag overrides.
func loadConfig(f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		value  string
		target *string
	}{
		{f.inputFile, &cfg.Paths.InputFile},
		{f.outputDir, &cfg.Paths.OutputDir},
		{f.logLevel, &cfg.Logging.Level},
		{f.sqliteFile, &cfg.Paths.SQLiteFile},
		{f.declaredStart, &cfg.Pipeline.DeclaredStart},
		{f.declaredEnd, &cfg.Pipeline.DeclaredEnd},
	}
	for _, o := range overrides {
		if o.value != "" {
			*o.target = o.value
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// newApp loads the configuration and starts logging, telemetry and the
// optional store.
func newApp(ctx context.Context, f *flags) (*app, error) {
	cfg, err := loadConfig(f)
	if err != nil {
		return nil, err
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	paths.LogPathResolution(logger)

	telemetry, err := infrastructure.InitializeTelemetry(cfg.Telemetry, paths.TraceFile, logger)
	if err != nil {
		logger.WarnContext(ctx, "Telemetry disabled", slog.String("error", err.Error()))
		telemetry = infrastructure.NoopTelemetry()
	}

	a := &app{
		cfg:       cfg,
		paths:     paths,
		logger:    logger,
		telemetry: telemetry,
	}

	var opts []pipeline.Option
	if paths.SQLiteDB != "" {
		db, err := store.Open(ctx, paths.SQLiteDB, logger)
		if err != nil {
			_ = telemetry.Shutdown(ctx)
			return nil, err
		}
		a.store = db
		opts = append(opts, pipeline.WithStore(db))
	}

	a.runner = pipeline.NewRunner(cfg, paths, telemetry, infrastructure.WithComponent(logger, "pipeline"), opts...)
	return a, nil
}

// close flushes metrics and releases the store and telemetry providers.
func (a *app) close(ctx context.Context) {
	if err := a.telemetry.WriteMetricsTextfile(a.paths.MetricsFile); err != nil {
		a.logger.WarnContext(ctx, "Failed to write metrics", slog.String("error", err.Error()))
	}
	if err := a.telemetry.Shutdown(context.WithoutCancel(ctx)); err != nil {
		a.logger.WarnContext(ctx, "Telemetry shutdown failed", slog.String("error", err.Error()))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.WarnContext(ctx, "Failed to close store", slog.String("error", err.Error()))
		}
	}
	_ = infrastructure.CloseLogFile()
}
