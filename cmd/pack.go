package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/scenepack/internal/assets"
	"github.com/conneroisu/scenepack/internal/build"
)

var packCmd = &cobra.Command{
	Use:     "pack",
	Aliases: []string{"p"},
	Short:   "Package the project into the public scene tree",
	Long: `Package the project once: copy accepted assets into the public tree,
assemble the scene shards into one document, write it and remove stale files.

Examples:
  scenepack pack                          # Package with the configured settings
  scenepack pack -w 2                     # Limit asset copies to two at a time
  scenepack pack --runtime-version 5.2.0  # Inline morph targets for older runtimes
  scenepack pack -f json                  # Print the run report as JSON`,
	RunE: runPack,
}

var packFlags *StandardFlags

func init() {
	rootCmd.AddCommand(packCmd)

	packFlags = AddStandardFlags(packCmd, "pack", "output")
	packCmd.Long += "\n\nAccepted asset extensions:\n  " + wrapList(assets.SupportedExtensions(), 72)
}

// wrapList joins items with spaces, breaking lines before width.
func wrapList(items []string, width int) string {
	var b strings.Builder
	line := 0
	for i, item := range items {
		if i > 0 {
			if line+1+len(item) > width {
				b.WriteString("\n  ")
				line = 0
			} else {
				b.WriteByte(' ')
				line++
			}
		}
		b.WriteString(item)
		line += len(item)
	}
	return b.String()
}

func runPack(cmd *cobra.Command, args []string) error {
	if err := packFlags.ValidateFlags(); err != nil {
		return err
	}
	BindPackFlags(cmd)

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	packager := build.NewPackager(cfg, build.WithLogger(logger))
	report, err := packager.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("packaging failed: %w", err)
	}

	if packFlags.Quiet {
		return nil
	}
	return printReport(cmd.OutOrStdout(), report, packFlags.OutputFormat, packFlags.Verbose)
}

// reportView is the printable form of a run report.
type reportView struct {
	ScenePath         string         `json:"scene_path" yaml:"scene_path"`
	AssetsCopied      int            `json:"assets_copied" yaml:"assets_copied"`
	AssetsSkipped     int            `json:"assets_skipped" yaml:"assets_skipped"`
	TexturesExtracted int            `json:"textures_extracted" yaml:"textures_extracted"`
	FilesRemoved      int            `json:"files_removed" yaml:"files_removed"`
	Duration          string         `json:"duration" yaml:"duration"`
	WarningCounts     map[string]int `json:"warning_counts,omitempty" yaml:"warning_counts,omitempty"`
	Warnings          []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func newReportView(report *build.Report) reportView {
	view := reportView{
		ScenePath:         report.ScenePath,
		AssetsCopied:      report.AssetsCopied,
		AssetsSkipped:     report.AssetsSkipped,
		TexturesExtracted: report.TexturesExtracted,
		FilesRemoved:      report.FilesRemoved,
		Duration:          report.Duration.String(),
	}
	if len(report.Warnings) > 0 {
		view.WarningCounts = make(map[string]int)
		for kind, n := range report.WarningCounts() {
			view.WarningCounts[string(kind)] = n
		}
		for _, w := range report.Warnings {
			view.Warnings = append(view.Warnings, w.Error())
		}
	}
	return view
}

func printReport(w io.Writer, report *build.Report, format string, verbose bool) error {
	view := newReportView(report)

	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(view)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		return encoder.Encode(view)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Scene\t%s\n", view.ScenePath)
		fmt.Fprintf(tw, "Assets copied\t%d\n", view.AssetsCopied)
		fmt.Fprintf(tw, "Assets skipped\t%d\n", view.AssetsSkipped)
		fmt.Fprintf(tw, "Textures extracted\t%d\n", view.TexturesExtracted)
		fmt.Fprintf(tw, "Files removed\t%d\n", view.FilesRemoved)
		fmt.Fprintf(tw, "Duration\t%s\n", view.Duration)
		for _, kind := range report.WarningKinds() {
			fmt.Fprintf(tw, "Warnings (%s)\t%d\n", kind, view.WarningCounts[string(kind)])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if verbose {
			for _, msg := range view.Warnings {
				fmt.Fprintf(w, "  warning: %s\n", msg)
			}
		}
		return nil
	}
}
