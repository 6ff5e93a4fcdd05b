package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/conneroisu/scenepack/internal/build"
	"github.com/conneroisu/scenepack/internal/types"
	"github.com/conneroisu/scenepack/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Re-package the project whenever its sources change",
	Long: `Package the project, then watch the asset directory and the scene shard
directory and package again after every burst of changes. The public
output tree is never watched.

Examples:
  scenepack watch                 # Watch with the configured settings
  scenepack watch -v              # Print every changed path
  scenepack watch -w 2            # Limit asset copies to two at a time`,
	RunE: runWatch,
}

var watchFlags *StandardFlags

func init() {
	rootCmd.AddCommand(watchCmd)

	watchFlags = AddStandardFlags(watchCmd, "pack", "output")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := watchFlags.ValidateFlags(); err != nil {
		return err
	}
	BindPackFlags(cmd)

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	layout := types.LayoutFromConfig(cfg)
	packager := build.NewPackager(cfg, build.WithLogger(logger))
	out := cmd.OutOrStdout()

	fileWatcher, err := watcher.NewFileWatcher(watcher.DefaultDebounce, logger)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fileWatcher.Stop()

	fileWatcher.SkipDir(layout.PublicDir)
	fileWatcher.AddFilter(watcher.NoHiddenFilter)
	fileWatcher.AddFilter(watcher.NoTempFilter)
	fileWatcher.AddHandler(newWatchHandler(packager, out, watchFlags))

	for _, dir := range []string{layout.AssetsDir, layout.ShardRoot} {
		if err := fileWatcher.AddRecursive(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		if !watchFlags.Quiet {
			fmt.Fprintf(out, "Watching: %s\n", dir)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// the first run is reported but never fatal; a broken shard can be fixed
	// while watching
	packOnce(ctx, packager, out, watchFlags)

	if err := fileWatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	if !watchFlags.Quiet {
		fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")
	}

	<-ctx.Done()

	if !watchFlags.Quiet {
		printStopSummary(out, packager.Metrics())
	}
	return nil
}

func printStopSummary(out io.Writer, metrics *build.RunMetrics) {
	snapshot := metrics.GetSnapshot()
	fmt.Fprintf(out, "\nStopped after %d runs (%.0f%% succeeded, average %s)\n",
		snapshot.TotalRuns, metrics.GetSuccessRate(), snapshot.AverageDuration)
}

// newWatchHandler re-runs the packager for each debounced batch.
func newWatchHandler(packager *build.Packager, out io.Writer, flags *StandardFlags) watcher.ChangeHandler {
	return func(ctx context.Context, events []watcher.ChangeEvent) error {
		if !flags.Quiet {
			if flags.Verbose {
				for _, event := range events {
					fmt.Fprintf(out, "%s: %s\n", event.Type, event.Path)
				}
			} else {
				fmt.Fprintf(out, "%d file(s) changed\n", len(events))
			}
		}
		packOnce(ctx, packager, out, flags)
		return nil
	}
}

func packOnce(ctx context.Context, packager *build.Packager, out io.Writer, flags *StandardFlags) {
	report, err := packager.Run(ctx)
	if err != nil {
		fmt.Fprintf(out, "Packaging failed: %v\n", err)
		return
	}
	if flags.Quiet {
		return
	}
	if err := printReport(out, report, flags.OutputFormat, flags.Verbose); err != nil {
		fmt.Fprintf(out, "Failed to print report: %v\n", err)
	}
}
