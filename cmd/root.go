// Package cmd provides the command-line interface for scenepack with
// configuration drawn from several sources.
//
// Configuration System:
//
//	Values are resolved with the following precedence:
//	1. Command-line flags (--root, --scene, --workers, etc.) - highest priority
//	2. SCENEPACK_CONFIG_FILE environment variable - custom config file path
//	3. Individual environment variables (SCENEPACK_PROJECT_WORKERS, etc.)
//	4. Configuration files (.scenepack.yml) - lowest priority
//
// Environment Variables:
//
//	SCENEPACK_CONFIG_FILE: Path to custom configuration file
//	SCENEPACK_PROJECT_ROOT: Override the project root
//	SCENEPACK_PROJECT_RUNTIME_TOOLS_VERSION: Runtime version used for the morph target gate
//	And the rest following the SCENEPACK_<SECTION>_<OPTION> pattern
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/scenepack/internal/config"
	"github.com/conneroisu/scenepack/internal/logging"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scenepack",
	Short: "Package an editor project into a runtime scene",
	Long: `scenepack turns an editor project into the files a runtime loads: a single
assembled scene document plus the public asset tree it references.

Each run copies accepted assets, assembles the per-entity shards into one
scene, writes it atomically and removes stale files from the public tree.

Quick Start:
  scenepack init                  Write a default .scenepack.yml
  scenepack pack                  Package the project once
  scenepack watch                 Re-package whenever sources change
  scenepack list                  List the scene shards per entity kind

Command Aliases:
  pack (p), watch (w), list (l)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is .scenepack.yml, can also use SCENEPACK_CONFIG_FILE env var)")
	flags.String("root", "", "project root (default is the working directory)")
	flags.StringP("scene", "s", "", "scene source directory, relative to the project root")
	flags.String("public-dir", "", "public output directory (default is <root>/public/scene)")
	flags.StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "text", "log format (text, json)")

	bindFlag(flags.Lookup("root"), "project.root")
	bindFlag(flags.Lookup("scene"), "project.scene_file")
	bindFlag(flags.Lookup("public-dir"), "project.public_dir")
	bindFlag(flags.Lookup("log-level"), "log.level")
	bindFlag(flags.Lookup("log-format"), "log.format")

	AddFlagValidation(rootCmd, "log-level", ValidateLogLevel, true)
	AddFlagValidation(rootCmd, "log-format", func(format string) error {
		return ValidateChoice("log format", format, []string{"text", "json"})
	}, true)
}

// initConfig initializes the configuration system.
//
// Configuration file priority (highest to lowest):
//  1. --config flag
//  2. SCENEPACK_CONFIG_FILE environment variable
//  3. .scenepack.yml in the current directory
//
// All keys can be overridden from the environment with the SCENEPACK_
// prefix, dots replaced by underscores (SCENEPACK_PROJECT_WORKERS=2).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SCENEPACK_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".scenepack")
	}

	viper.SetEnvPrefix("SCENEPACK")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or unreadable file leaves flags, env and defaults in charge.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the configuration and builds the logger it describes.
func loadConfig() (*config.Config, logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(lc config.LogConfig) (logging.Logger, error) {
	level, err := logging.ParseLevel(lc.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: lc.Format,
		Output: os.Stderr,
	}), nil
}
