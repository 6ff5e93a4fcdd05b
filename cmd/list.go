package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/scenepack/internal/config"
	"github.com/conneroisu/scenepack/internal/scanner"
	"github.com/conneroisu/scenepack/internal/scene"
	"github.com/conneroisu/scenepack/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the scene shards per entity kind",
	Long: `List the shard files the next packaging run will assemble, grouped by
entity kind in assembly order. Paths are relative to the scene directory.

Examples:
  scenepack list                  # List shards in table format
  scenepack list -f json          # Output as JSON
  scenepack list -f yaml -a       # Include kinds without shards, as YAML`,
	RunE: runList,
}

var (
	listFlags *StandardFlags
	listAll   bool
)

func init() {
	rootCmd.AddCommand(listCmd)

	listFlags = AddStandardFlags(listCmd, "output")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "Include entity kinds without shards")
}

// kindListing is the shard listing of one entity kind.
type kindListing struct {
	Kind   string   `json:"kind" yaml:"kind"`
	Shards []string `json:"shards" yaml:"shards"`
}

func runList(cmd *cobra.Command, args []string) error {
	if err := listFlags.ValidateFlags(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	listings, err := listShards(types.LayoutFromConfig(cfg), listAll)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch listFlags.OutputFormat {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(listings)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		defer encoder.Close()
		return encoder.Encode(listings)
	default:
		return outputTable(out, listings)
	}
}

func listShards(layout types.ProjectLayout, all bool) ([]kindListing, error) {
	catalog := scanner.NewPathCatalog()
	listings := make([]kindListing, 0, len(types.AllKinds))

	for _, kind := range types.AllKinds {
		files, err := scene.ShardFiles(catalog, layout, kind)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", kind, err)
		}
		if len(files) == 0 && !all {
			continue
		}

		listing := kindListing{Kind: string(kind), Shards: make([]string, 0, len(files))}
		for _, f := range files {
			rel, err := filepath.Rel(layout.ShardRoot, f)
			if err != nil {
				rel = f
			}
			listing.Shards = append(listing.Shards, filepath.ToSlash(rel))
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

func outputTable(out io.Writer, listings []kindListing) error {
	if len(listings) == 0 {
		fmt.Fprintln(out, "No shards found.")
		return nil
	}

	title := cases.Title(language.English, cases.NoLower)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	total := 0
	for _, listing := range listings {
		fmt.Fprintf(w, "%s\t%d\n", title.String(listing.Kind), len(listing.Shards))
		for _, shard := range listing.Shards {
			fmt.Fprintf(w, "  %s\t\n", shard)
		}
		total += len(listing.Shards)
	}
	fmt.Fprintf(w, "\nTotal: %d shards\n", total)

	return w.Flush()
}
