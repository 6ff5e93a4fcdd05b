// Package config provides configuration management for scenepack using
// Viper for loading from files, environment variables and command-line flags.
//
// The configuration names the project layout to package (source shard root,
// scene name, public output directory), the runtime version that gates the
// morph-target binary migration, and the scalar scene settings (colors,
// gravity, fog, environment) written into the assembled scene document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/fsx"
	"github.com/conneroisu/scenepack/internal/version"
)

// MaxAssetWorkers caps the number of concurrent asset copies.
const MaxAssetWorkers = 5

type Config struct {
	Project ProjectConfig `mapstructure:"project" yaml:"project"`
	Scene   SceneSettings `mapstructure:"scene" yaml:"scene"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type ProjectConfig struct {
	Root                 string `mapstructure:"root" yaml:"root"`
	SceneFile            string `mapstructure:"scene_file" yaml:"scene_file"`
	SceneName            string `mapstructure:"scene_name" yaml:"scene_name"`
	PublicDir            string `mapstructure:"public_dir" yaml:"public_dir"`
	RuntimeToolsVersion  string `mapstructure:"runtime_tools_version" yaml:"runtime_tools_version"`
	ExtractedTexturesDir string `mapstructure:"extracted_textures_dir" yaml:"extracted_textures_dir"`
	SceneExtension       string `mapstructure:"scene_extension" yaml:"scene_extension"`
	SceneConfig          string `mapstructure:"scene_config" yaml:"scene_config,omitempty"`
	Workers              int    `mapstructure:"workers" yaml:"workers"`
}

type SceneSettings struct {
	ClearColor   []float64              `mapstructure:"clear_color" yaml:"clear_color" json:"clearColor"`
	AmbientColor []float64              `mapstructure:"ambient_color" yaml:"ambient_color" json:"ambientColor"`
	Gravity      []float64              `mapstructure:"gravity" yaml:"gravity" json:"gravity"`
	Fog          FogSettings            `mapstructure:"fog" yaml:"fog" json:"fog"`
	Environment  EnvironmentSettings    `mapstructure:"environment" yaml:"environment" json:"environment"`
	Metadata     map[string]interface{} `mapstructure:"metadata" yaml:"metadata,omitempty" json:"metadata"`
	Animations   []interface{}          `mapstructure:"animations" yaml:"animations,omitempty" json:"animations"`
}

type FogSettings struct {
	Color   []float64 `mapstructure:"color" yaml:"color" json:"color"`
	Start   float64   `mapstructure:"start" yaml:"start" json:"start"`
	End     float64   `mapstructure:"end" yaml:"end" json:"end"`
	Density float64   `mapstructure:"density" yaml:"density" json:"density"`
	Mode    int       `mapstructure:"mode" yaml:"mode" json:"mode"`
}

type EnvironmentSettings struct {
	Intensity *float64 `mapstructure:"intensity" yaml:"intensity" json:"intensity"`
	Texture   string   `mapstructure:"texture" yaml:"texture,omitempty" json:"texture"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// DefaultGravity is used when the project does not set gravity.
var DefaultGravity = []float64{0, -9.81, 0}

// Fog modes understood by the runtime.
const (
	FogModeNone = iota
	FogModeExp
	FogModeExp2
	FogModeLinear
)

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, packerrors.ConfigError("unmarshal", err)
	}

	if err := applyDefaults(&config); err != nil {
		return nil, err
	}

	if config.Project.SceneConfig != "" {
		if err := mergeSceneConfig(&config); err != nil {
			return nil, err
		}
	}
	applySceneDefaults(&config.Scene)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) error {
	p := &config.Project

	if p.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return packerrors.ConfigError("project.root", err)
		}
		p.Root = wd
	}
	root, err := filepath.Abs(p.Root)
	if err != nil {
		return packerrors.ConfigError("project.root", err)
	}
	p.Root = root

	if p.SceneFile != "" {
		p.SceneFile = resolve(root, p.SceneFile)
		if p.SceneName == "" {
			p.SceneName = strings.TrimSuffix(filepath.Base(p.SceneFile), ".scene")
		}
	}
	if p.PublicDir == "" {
		p.PublicDir = filepath.Join(root, "public", "scene")
	} else {
		p.PublicDir = resolve(root, p.PublicDir)
	}
	if p.SceneConfig != "" {
		p.SceneConfig = resolve(root, p.SceneConfig)
	}
	if p.ExtractedTexturesDir == "" {
		p.ExtractedTexturesDir = "assets/editor-generated"
	}
	p.ExtractedTexturesDir = filepath.ToSlash(filepath.Clean(p.ExtractedTexturesDir))
	if p.SceneExtension == "" {
		p.SceneExtension = "babylon"
	}
	p.SceneExtension = strings.TrimPrefix(p.SceneExtension, ".")
	if p.Workers == 0 {
		p.Workers = MaxAssetWorkers
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
	return nil
}

func applySceneDefaults(s *SceneSettings) {
	if len(s.Gravity) == 0 {
		s.Gravity = append([]float64(nil), DefaultGravity...)
	}
	if s.Environment.Intensity == nil {
		one := 1.0
		s.Environment.Intensity = &one
	}
	if s.Metadata == nil {
		s.Metadata = make(map[string]interface{})
	}
	if s.Animations == nil {
		s.Animations = []interface{}{}
	}
}

// mergeSceneConfig overlays the project's JSON scene configuration on top of
// the YAML scene block. Only keys present in the JSON file take effect.
func mergeSceneConfig(config *Config) error {
	data, err := os.ReadFile(config.Project.SceneConfig)
	if err != nil {
		return packerrors.ConfigError("project.scene_config", err)
	}
	if err := json.Unmarshal(data, &config.Scene); err != nil {
		return packerrors.ConfigError("project.scene_config", err)
	}
	return nil
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(root, p)
}

// AssetsDir is the project's asset tree.
func (p ProjectConfig) AssetsDir() string {
	return filepath.Join(p.Root, "assets")
}

// validateConfig validates configuration values
func validateConfig(config *Config) error {
	if err := validateProjectConfig(&config.Project); err != nil {
		return fmt.Errorf("project config: %w", err)
	}

	if err := validateSceneSettings(&config.Scene); err != nil {
		return fmt.Errorf("scene config: %w", err)
	}

	return nil
}

func validateProjectConfig(p *ProjectConfig) error {
	if p.SceneFile == "" {
		return packerrors.ConfigError("project.scene_file", fmt.Errorf("required"))
	}
	if p.SceneName == "" || strings.ContainsAny(p.SceneName, `/\`) || p.SceneName == "." || p.SceneName == ".." {
		return packerrors.ConfigError("project.scene_name", fmt.Errorf("invalid scene name %q", p.SceneName))
	}

	// The sweep deletes everything under public_dir that the run did not
	// write, so it must never cover project sources.
	public := fsx.CanonicalPath(p.PublicDir)
	for key, src := range map[string]string{
		"project.root":       p.Root,
		"project.scene_file": p.SceneFile,
		"project.assets":     p.AssetsDir(),
	} {
		if fsx.IsWithin(public, fsx.CanonicalPath(src)) {
			return packerrors.ConfigError("project.public_dir",
				fmt.Errorf("public_dir %s contains %s (%s)", p.PublicDir, key, src))
		}
	}

	if p.RuntimeToolsVersion != "" {
		if _, err := version.Parse(p.RuntimeToolsVersion); err != nil {
			return packerrors.ConfigError("project.runtime_tools_version", err)
		}
	}

	if p.Workers < 1 || p.Workers > MaxAssetWorkers {
		return packerrors.ConfigError("project.workers",
			fmt.Errorf("workers %d is not in range 1-%d", p.Workers, MaxAssetWorkers))
	}

	dir := filepath.Clean(filepath.FromSlash(p.ExtractedTexturesDir))
	if filepath.IsAbs(dir) || dir == "." || strings.HasPrefix(filepath.ToSlash(dir), "..") {
		return packerrors.ConfigError("project.extracted_textures_dir",
			fmt.Errorf("must be a relative path inside public_dir: %s", p.ExtractedTexturesDir))
	}

	if strings.ContainsAny(p.SceneExtension, `/\ `) {
		return packerrors.ConfigError("project.scene_extension", fmt.Errorf("invalid extension %q", p.SceneExtension))
	}

	return nil
}

func validateSceneSettings(s *SceneSettings) error {
	for key, color := range map[string][]float64{
		"scene.clear_color":   s.ClearColor,
		"scene.ambient_color": s.AmbientColor,
		"scene.fog.color":     s.Fog.Color,
	} {
		if len(color) != 0 && len(color) != 3 && len(color) != 4 {
			return packerrors.ConfigError(key, fmt.Errorf("color needs 3 or 4 components, got %d", len(color)))
		}
	}
	if len(s.Gravity) != 3 {
		return packerrors.ConfigError("scene.gravity", fmt.Errorf("gravity needs 3 components, got %d", len(s.Gravity)))
	}
	if s.Fog.Mode < FogModeNone || s.Fog.Mode > FogModeLinear {
		return packerrors.ConfigError("scene.fog.mode", fmt.Errorf("unknown fog mode %d", s.Fog.Mode))
	}
	return nil
}
