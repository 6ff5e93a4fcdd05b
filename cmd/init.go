package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/scenepack/internal/config"
	"github.com/conneroisu/scenepack/internal/types"
)

// ConfigFileName is the configuration file written by init and read by
// default by every other command.
const ConfigFileName = ".scenepack.yml"

var initCmd = &cobra.Command{
	Use:     "init [dir]",
	Aliases: []string{"i"},
	Short:   "Write a default .scenepack.yml and the project directories",
	Long: `Initialize a scenepack project. Writes a default configuration file and
creates the asset directory and one shard directory per entity kind. If no
directory is given the current directory is used. Existing files are kept
unless --force is set.

Examples:
  scenepack init                      # Initialize the current directory
  scenepack init levels/arena         # Initialize another directory
  scenepack init --scene arena.scene  # Name the scene directory`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

var (
	initScene string
	initForce bool
)

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initScene, "scene", "main.scene", "Scene source directory")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	projectDir := "."
	if len(args) == 1 {
		projectDir = args[0]
	}
	out := cmd.OutOrStdout()

	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}
	fmt.Fprintf(out, "Initializing scenepack project in %s\n", projectDir)

	if err := createDirectoryStructure(projectDir, initScene); err != nil {
		return fmt.Errorf("failed to create directory structure: %w", err)
	}
	if err := createConfigFile(out, projectDir, defaultConfig(initScene), initForce); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	fmt.Fprintln(out, "Project initialized.")
	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. cd "+projectDir)
	fmt.Fprintln(out, "  2. scenepack pack")
	return nil
}

func defaultConfig(sceneFile string) config.Config {
	one := 1.0
	return config.Config{
		Project: config.ProjectConfig{
			Root:                 ".",
			SceneFile:            sceneFile,
			PublicDir:            "public/scene",
			ExtractedTexturesDir: "assets/editor-generated",
			SceneExtension:       "babylon",
			Workers:              config.MaxAssetWorkers,
		},
		Scene: config.SceneSettings{
			ClearColor:   []float64{0.2, 0.2, 0.3, 1},
			AmbientColor: []float64{0, 0, 0},
			Gravity:      append([]float64(nil), config.DefaultGravity...),
			Fog: config.FogSettings{
				Color: []float64{0.2, 0.2, 0.3},
				Mode:  config.FogModeNone,
			},
			Environment: config.EnvironmentSettings{Intensity: &one},
		},
		Log: config.LogConfig{Level: "info", Format: "text"},
	}
}

func createDirectoryStructure(projectDir, sceneFile string) error {
	dirs := []string{"assets", sceneFile}
	for _, kind := range types.AllKinds {
		dirs = append(dirs, filepath.Join(sceneFile, string(kind)))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(filepath.Join(projectDir, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func createConfigFile(out io.Writer, projectDir string, cfg config.Config, force bool) error {
	configPath := filepath.Join(projectDir, ConfigFileName)

	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(out, "%s already exists, skipping\n", ConfigFileName)
		return nil
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	content := append([]byte("# scenepack configuration file\n"), data...)

	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", ConfigFileName)
	return nil
}
