package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"supplychain/internal/infrastructure"
	"supplychain/internal/store"
)

// runWithApp starts the shared state, runs fn and tears the state down.
func runWithApp(cmd *cobra.Command, f *flags, fn func(ctx context.Context, a *app) error) error {
	ctx := infrastructure.WithCommand(infrastructure.EnsureRunID(cmd.Context()), cmd.Name())
	a, err := newApp(ctx, f)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	started := time.Now()
	a.logger.InfoContext(ctx, "Command started",
		slog.String("input", a.paths.InputFile),
		slog.String("output_dir", a.paths.OutputDir))

	if err := fn(ctx, a); err != nil {
		a.logger.ErrorContext(ctx, "Command failed", slog.String("error", err.Error()))
		return err
	}

	a.logger.InfoContext(ctx, "Command complete",
		slog.Duration("duration", time.Since(started)))
	return nil
}

// track records a single-stage command in the run log when a store is open.
func (a *app) track(ctx context.Context, command string, fn func(ctx context.Context) (rowsIn, rowsOut int, err error)) error {
	if a.store == nil {
		_, _, err := fn(ctx)
		return err
	}

	id := infrastructure.GetRunID(ctx)
	if err := a.store.StartRun(ctx, store.Run{
		ID:        id,
		Command:   command,
		Source:    a.paths.InputFile,
		StartedAt: time.Now(),
	}); err != nil {
		return err
	}

	rowsIn, rowsOut, err := fn(ctx)
	if ferr := a.store.FinishRun(ctx, id, time.Now(), rowsIn, rowsOut, err); ferr != nil && err == nil {
		return ferr
	}
	return err
}

func newCleanCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Validate, resolve and score the raw dataset",
		Long: `Validates every field against its declared domain, drops records without a
timestamp or coordinates, imputes remaining gaps, removes exact duplicates and
writes the cleaned CSV together with the data quality report.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, f, func(ctx context.Context, a *app) error {
				return a.track(ctx, "clean", func(ctx context.Context) (int, int, error) {
					res, err := a.runner.Clean(ctx)
					if err != nil {
						return 0, 0, err
					}
					if err := a.runner.WriteQualityReport(ctx, res, nil); err != nil {
						return 0, 0, err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Cleaned %d of %d records, quality score %.2f\n",
						res.Cleaned.Len(), res.Validation.RowsRead, res.Quality.Composite)
					return res.Validation.RowsRead, res.Cleaned.Len(), nil
				})
			})
		},
	}
}

func newAggregateCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Filter the cleaned dataset to the declared window and aggregate it",
		Long: `Reads the cleaned CSV, reports how far the data extends beyond the declared
collection window, keeps only records inside it and writes the filtered,
daily and weekly CSVs and the metrics workbook.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, f, func(ctx context.Context, a *app) error {
				return a.track(ctx, "aggregate", func(ctx context.Context) (int, int, error) {
					res, err := a.runner.Aggregate(ctx, nil, nil)
					if err != nil {
						return 0, 0, err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Kept %d of %d records in %s: %d daily and %d weekly rows\n",
						res.Filtered.Len(), res.Discrepancy.Total, res.Range, res.Daily.Len(), res.Weekly.Len())
					return res.Discrepancy.Total, res.Filtered.Len(), nil
				})
			})
		},
	}
}

func newRunCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Clean and aggregate in one pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, f, func(ctx context.Context, a *app) error {
				res, err := a.runner.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Run %s: %d records read, %d kept, quality score %.2f\n",
					res.RunID, res.Clean.Validation.RowsRead, res.Aggregate.Filtered.Len(), res.Clean.Quality.Composite)
				return nil
			})
		},
	}
}

func newBottlenecksCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "bottlenecks",
		Short: "Analyze lead time, performance and cost bottlenecks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, f, func(ctx context.Context, a *app) error {
				return a.track(ctx, "bottlenecks", func(ctx context.Context) (int, int, error) {
					rep, err := a.runner.Bottlenecks(ctx, nil)
					if err != nil {
						return 0, 0, err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d critical bottlenecks, report at %s\n",
						len(rep.Critical), a.paths.BottleneckReport)
					return rep.Records, rep.Records, nil
				})
			})
		},
	}
}

func newStressCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "stress",
		Short: "Compute the operational stress index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, f, func(ctx context.Context, a *app) error {
				return a.track(ctx, "stress", func(ctx context.Context) (int, int, error) {
					rep, err := a.runner.Stress(ctx, nil)
					if err != nil {
						return 0, 0, err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Average stress index %.2f, report at %s\n",
						rep.AverageIndex, a.paths.StressReport)
					return rep.Records, rep.Records, nil
				})
			})
		},
	}
}

func newCompoundCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "compound",
		Short: "Analyze the compound effect of simultaneous bottlenecks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, f, func(ctx context.Context, a *app) error {
				return a.track(ctx, "compound", func(ctx context.Context) (int, int, error) {
					rep, err := a.runner.Compound(ctx, nil)
					if err != nil {
						return 0, 0, err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Compound correlation %.3f, report at %s\n",
						rep.CompoundCorrelation, a.paths.CompoundReport)
					return rep.Records, rep.Records, nil
				})
			})
		},
	}
}
