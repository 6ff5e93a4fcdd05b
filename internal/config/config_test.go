package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
)

func setupProject(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := t.TempDir()
	viper.Set("project.root", root)
	viper.Set("project.scene_file", "level.scene")
	return root
}

func TestLoadDefaults(t *testing.T) {
	root := setupProject(t)

	cfg, err := Load()
	require.NoError(t, err)

	p := cfg.Project
	assert.Equal(t, root, p.Root)
	assert.Equal(t, filepath.Join(root, "level.scene"), p.SceneFile)
	assert.Equal(t, "level", p.SceneName)
	assert.Equal(t, filepath.Join(root, "public", "scene"), p.PublicDir)
	assert.Equal(t, "assets/editor-generated", p.ExtractedTexturesDir)
	assert.Equal(t, "babylon", p.SceneExtension)
	assert.Equal(t, MaxAssetWorkers, p.Workers)
	assert.Equal(t, filepath.Join(root, "assets"), p.AssetsDir())

	assert.Equal(t, DefaultGravity, cfg.Scene.Gravity)
	require.NotNil(t, cfg.Scene.Environment.Intensity)
	assert.Equal(t, 1.0, *cfg.Scene.Environment.Intensity)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadOverrides(t *testing.T) {
	root := setupProject(t)
	viper.Set("project.scene_name", "arena")
	viper.Set("project.public_dir", "dist/web")
	viper.Set("project.scene_extension", ".scene.json")
	viper.Set("project.runtime_tools_version", "5.2.0")
	viper.Set("project.workers", 3)
	viper.Set("scene.clear_color", []float64{0.1, 0.2, 0.3, 1})
	viper.Set("scene.gravity", []float64{0, -1, 0})
	viper.Set("scene.fog.mode", FogModeExp2)
	viper.Set("scene.environment.intensity", 0.5)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "arena", cfg.Project.SceneName)
	assert.Equal(t, filepath.Join(root, "dist", "web"), cfg.Project.PublicDir)
	assert.Equal(t, "scene.json", cfg.Project.SceneExtension)
	assert.Equal(t, 3, cfg.Project.Workers)
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 1}, cfg.Scene.ClearColor)
	assert.Equal(t, []float64{0, -1, 0}, cfg.Scene.Gravity)
	assert.Equal(t, FogModeExp2, cfg.Scene.Fog.Mode)
	assert.Equal(t, 0.5, *cfg.Scene.Environment.Intensity)
}

func TestLoadSceneConfigOverlay(t *testing.T) {
	root := setupProject(t)
	viper.Set("scene.clear_color", []float64{1, 1, 1})
	viper.Set("scene.fog.start", 10)

	overlay := `{"clearColor":[0,0,0,1],"fog":{"color":[0.5,0.5,0.5],"mode":3},"metadata":{"author":"level-team"}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "config.json"), []byte(overlay), 0o644))
	viper.Set("project.scene_config", "config.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 0, 1}, cfg.Scene.ClearColor)
	assert.Equal(t, FogModeLinear, cfg.Scene.Fog.Mode)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, cfg.Scene.Fog.Color)
	assert.Equal(t, 10.0, cfg.Scene.Fog.Start)
	assert.Equal(t, "level-team", cfg.Scene.Metadata["author"])
}

func TestLoadSceneConfigMissing(t *testing.T) {
	setupProject(t)
	viper.Set("project.scene_config", "nope.json")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, packerrors.IsKind(err, packerrors.KindConfig))
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		set  func(root string)
	}{
		{
			name: "missing scene file",
			set:  func(string) { viper.Set("project.scene_file", "") },
		},
		{
			name: "scene name with separator",
			set:  func(string) { viper.Set("project.scene_name", "a/b") },
		},
		{
			name: "public dir covering the project",
			set:  func(root string) { viper.Set("project.public_dir", root) },
		},
		{
			name: "unparseable runtime version",
			set:  func(string) { viper.Set("project.runtime_tools_version", "five") },
		},
		{
			name: "too many workers",
			set:  func(string) { viper.Set("project.workers", 6) },
		},
		{
			name: "negative workers",
			set:  func(string) { viper.Set("project.workers", -1) },
		},
		{
			name: "absolute extracted textures dir",
			set:  func(string) { viper.Set("project.extracted_textures_dir", "/tmp/tex") },
		},
		{
			name: "escaping extracted textures dir",
			set:  func(string) { viper.Set("project.extracted_textures_dir", "../tex") },
		},
		{
			name: "two component color",
			set:  func(string) { viper.Set("scene.ambient_color", []float64{1, 1}) },
		},
		{
			name: "short gravity",
			set:  func(string) { viper.Set("scene.gravity", []float64{0, -9.81}) },
		},
		{
			name: "unknown fog mode",
			set:  func(string) { viper.Set("scene.fog.mode", 7) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := setupProject(t)
			tt.set(root)

			_, err := Load()
			require.Error(t, err)
			assert.True(t, packerrors.IsKind(err, packerrors.KindConfig), "got %v", err)
		})
	}
}

func TestLoadUnmarshalError(t *testing.T) {
	setupProject(t)
	viper.Set("project.workers", "many")

	_, err := Load()
	require.Error(t, err)
	assert.True(t, packerrors.IsKind(err, packerrors.KindConfig))
}
