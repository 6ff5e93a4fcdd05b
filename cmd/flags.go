package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/conneroisu/scenepack/internal/config"
	"github.com/conneroisu/scenepack/internal/logging"
	"github.com/conneroisu/scenepack/internal/version"
)

// Output formats accepted by --format.
var outputFormats = []string{"table", "json", "yaml"}

// StandardFlags provides consistent flag definitions across commands
type StandardFlags struct {
	// Packaging flags
	Workers        int    `flag:"workers,w" desc:"Concurrent asset copies (1-5)" default:"5"`
	RuntimeVersion string `flag:"runtime-version" desc:"Runtime tools version gating the morph target layout" default:""`

	// Output flags
	OutputFormat string `flag:"format,f" desc:"Output format (table|json|yaml)" default:"table"`
	Verbose      bool   `flag:"verbose,v" desc:"Enable verbose output" default:"false"`
	Quiet        bool   `flag:"quiet,q" desc:"Suppress output" default:"false"`
}

// AddStandardFlags adds standard flags to a command
func AddStandardFlags(cmd *cobra.Command, flagTypes ...string) *StandardFlags {
	flags := &StandardFlags{}

	for _, flagType := range flagTypes {
		switch flagType {
		case "pack":
			addPackFlags(cmd, flags)
		case "output":
			addOutputFlags(cmd, flags)
		}
	}

	return flags
}

func addPackFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().IntVarP(&flags.Workers, "workers", "w", config.MaxAssetWorkers, "Concurrent asset copies (1-5)")
	cmd.Flags().StringVar(&flags.RuntimeVersion, "runtime-version", "", "Runtime tools version gating the morph target layout")

	AddFlagValidation(cmd, "workers", ValidateWorkers, false)
	AddFlagValidation(cmd, "runtime-version", ValidateRuntimeVersion, false)
}

func addOutputFlags(cmd *cobra.Command, flags *StandardFlags) {
	cmd.Flags().StringVarP(&flags.OutputFormat, "format", "f", "table", "Output format (table|json|yaml)")
	cmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress output")

	AddFlagValidation(cmd, "format", func(format string) error {
		return ValidateChoice("output format", format, outputFormats)
	}, false)
}

// ValidateFlags validates flag combinations and values
func (f *StandardFlags) ValidateFlags() error {
	if f.OutputFormat != "" {
		if err := ValidateChoice("output format", f.OutputFormat, outputFormats); err != nil {
			return err
		}
	}

	if f.Quiet && f.Verbose {
		return fmt.Errorf("cannot specify both --quiet and --verbose")
	}

	return nil
}

// BindPackFlags binds the packaging flags of the running command to their
// viper keys. It runs per invocation since pack and watch share the keys.
// Unset flags leave file and environment values in place.
func BindPackFlags(cmd *cobra.Command) {
	bindFlag(cmd.Flags().Lookup("workers"), "project.workers")
	bindFlag(cmd.Flags().Lookup("runtime-version"), "project.runtime_tools_version")
}

func bindFlag(flag *pflag.Flag, key string) {
	if flag == nil {
		return
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", flag.Name, err)
	}
}

// AddFlagValidation adds validation for a specific flag
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error, persistent bool) {
	set := cmd.Flags()
	if persistent {
		set = cmd.PersistentFlags()
	}
	flag := set.Lookup(flagName)
	if flag == nil {
		return
	}

	flag.Value = &validatingValue{
		Value:     flag.Value,
		validator: validator,
	}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
}

func (v *validatingValue) Set(val string) error {
	if v.validator != nil {
		if err := v.validator(val); err != nil {
			return err
		}
	}
	return v.Value.Set(val)
}

// ValidateWorkers checks a --workers value.
func ValidateWorkers(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid worker count: %s", s)
	}
	if n < 1 || n > config.MaxAssetWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", config.MaxAssetWorkers, n)
	}
	return nil
}

// ValidateRuntimeVersion checks a --runtime-version value.
func ValidateRuntimeVersion(s string) error {
	if s == "" {
		return nil
	}
	_, err := version.Parse(s)
	return err
}

// ValidateLogLevel checks a --log-level value.
func ValidateLogLevel(s string) error {
	_, err := logging.ParseLevel(s)
	return err
}

// ValidateChoice checks that value is one of choices.
func ValidateChoice(what, value string, choices []string) error {
	for _, c := range choices {
		if value == c {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q, must be one of: %s", what, value, strings.Join(choices, ", "))
}
