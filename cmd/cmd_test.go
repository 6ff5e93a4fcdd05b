package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/scenepack/internal/build"
	"github.com/conneroisu/scenepack/internal/config"
	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/types"
	"github.com/conneroisu/scenepack/internal/watcher"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// setupProject points viper at a fresh project with one accepted asset.
func setupProject(t *testing.T) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	root := t.TempDir()
	viper.Set("project.root", root)
	viper.Set("project.scene_file", "level.scene")
	writeFile(t, filepath.Join(root, "assets", "wall.png"), "png")
	writeFile(t, filepath.Join(root, "level.scene", "lights", "sun.json"), `{"id":"sun"}`)
	return root
}

func newTestCommand(out *bytes.Buffer) *cobra.Command {
	c := &cobra.Command{}
	c.SetOut(out)
	c.SetContext(context.Background())
	return c
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "arena")
	initScene = "arena.scene"
	initForce = false

	var out bytes.Buffer
	require.NoError(t, runInit(newTestCommand(&out), []string{dir}))

	assert.DirExists(t, filepath.Join(dir, "assets"))
	for _, kind := range types.AllKinds {
		assert.DirExists(t, filepath.Join(dir, "arena.scene", string(kind)))
	}
	assert.Contains(t, out.String(), "Created "+ConfigFileName)

	data, err := os.ReadFile(filepath.Join(dir, ConfigFileName))
	require.NoError(t, err)

	var cfg config.Config
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, "arena.scene", cfg.Project.SceneFile)
	assert.Equal(t, config.MaxAssetWorkers, cfg.Project.Workers)
	assert.Equal(t, config.DefaultGravity, cfg.Scene.Gravity)
	require.NotNil(t, cfg.Scene.Environment.Intensity)
	assert.Equal(t, 1.0, *cfg.Scene.Environment.Intensity)
}

func TestInitConfigLoads(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	initScene = "main.scene"
	initForce = false

	var out bytes.Buffer
	require.NoError(t, runInit(newTestCommand(&out), []string{dir}))

	viper.SetConfigFile(filepath.Join(dir, ConfigFileName))
	require.NoError(t, viper.ReadInConfig())
	viper.Set("project.root", dir)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Project.SceneName)
	assert.Equal(t, filepath.Join(dir, "public", "scene"), cfg.Project.PublicDir)
}

func TestInitKeepsExistingConfig(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, ConfigFileName)
	writeFile(t, existing, "project:\n  scene_file: custom.scene\n")
	initScene = "main.scene"

	var out bytes.Buffer
	initForce = false
	require.NoError(t, runInit(newTestCommand(&out), []string{dir}))
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Contains(t, string(data), "custom.scene")
	assert.Contains(t, out.String(), "already exists")

	initForce = true
	t.Cleanup(func() { initForce = false })
	require.NoError(t, runInit(newTestCommand(&out), []string{dir}))
	data, err = os.ReadFile(existing)
	require.NoError(t, err)
	assert.Contains(t, string(data), "main.scene")
}

func TestListShards(t *testing.T) {
	root := t.TempDir()
	layout := types.ProjectLayout{ProjectRoot: root, ShardRoot: filepath.Join(root, "level.scene")}
	writeFile(t, filepath.Join(layout.ShardRoot, "lights", "sun.json"), `{}`)
	writeFile(t, filepath.Join(layout.ShardRoot, "meshes", "b.json"), `{}`)
	writeFile(t, filepath.Join(layout.ShardRoot, "meshes", "a.json"), `{}`)
	writeFile(t, filepath.Join(layout.ShardRoot, "meshes", "notes.txt"), `x`)

	listings, err := listShards(layout, false)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, kindListing{Kind: "meshes", Shards: []string{"meshes/a.json", "meshes/b.json"}}, listings[0])
	assert.Equal(t, kindListing{Kind: "lights", Shards: []string{"lights/sun.json"}}, listings[1])

	all, err := listShards(layout, true)
	require.NoError(t, err)
	assert.Len(t, all, len(types.AllKinds))
}

func TestOutputTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, outputTable(&out, []kindListing{
		{Kind: "animationGroups", Shards: []string{"animationGroups/walk.json"}},
		{Kind: "meshes", Shards: []string{"meshes/a.json", "meshes/b.json"}},
	}))

	text := out.String()
	assert.Contains(t, text, "AnimationGroups")
	assert.Contains(t, text, "Meshes")
	assert.Contains(t, text, "meshes/b.json")
	assert.Contains(t, text, "Total: 3 shards")

	out.Reset()
	require.NoError(t, outputTable(&out, nil))
	assert.Equal(t, "No shards found.\n", out.String())
}

func sampleReport() *build.Report {
	return &build.Report{
		AssetsCopied:      4,
		AssetsSkipped:     1,
		TexturesExtracted: 2,
		FilesRemoved:      3,
		ScenePath:         "/p/public/scene/level.babylon",
		Duration:          1500 * time.Millisecond,
		Warnings: []error{
			packerrors.AssetCopyError("/p/assets/a.png", errors.New("denied")),
			packerrors.AssetCopyError("/p/assets/b.png", errors.New("denied")),
			packerrors.SweepError("/p/public/scene/old.png", errors.New("busy")),
		},
	}
}

func TestPrintReportFormats(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printReport(&out, sampleReport(), "json", false))

		var view reportView
		require.NoError(t, json.Unmarshal(out.Bytes(), &view))
		assert.Equal(t, 4, view.AssetsCopied)
		assert.Equal(t, 3, view.FilesRemoved)
		assert.Equal(t, "1.5s", view.Duration)
		assert.Equal(t, 2, view.WarningCounts[string(packerrors.KindAssetCopy)])
		assert.Len(t, view.Warnings, 3)
	})

	t.Run("yaml", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printReport(&out, sampleReport(), "yaml", false))

		var view reportView
		require.NoError(t, yaml.Unmarshal(out.Bytes(), &view))
		assert.Equal(t, "/p/public/scene/level.babylon", view.ScenePath)
		assert.Equal(t, 1, view.WarningCounts[string(packerrors.KindSweep)])
	})

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printReport(&out, sampleReport(), "table", true))

		text := out.String()
		assert.Contains(t, text, "Assets copied")
		assert.Contains(t, text, "Warnings (asset_copy)")
		assert.Contains(t, text, "warning: ")
	})

	t.Run("no warnings", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, printReport(&out, &build.Report{ScenePath: "s"}, "json", false))
		assert.NotContains(t, out.String(), "warnings")
	})
}

func TestStandardFlagValidation(t *testing.T) {
	c := &cobra.Command{Use: "test"}
	flags := AddStandardFlags(c, "pack", "output")

	assert.NoError(t, c.Flags().Set("workers", "3"))
	assert.Equal(t, 3, flags.Workers)
	assert.Error(t, c.Flags().Set("workers", "9"))
	assert.Error(t, c.Flags().Set("workers", "many"))
	assert.Equal(t, 3, flags.Workers)

	assert.NoError(t, c.Flags().Set("runtime-version", "5.2.0"))
	assert.Error(t, c.Flags().Set("runtime-version", "five"))

	assert.NoError(t, c.Flags().Set("format", "yaml"))
	assert.Error(t, c.Flags().Set("format", "csv"))
	assert.Equal(t, "yaml", flags.OutputFormat)

	flags.Quiet, flags.Verbose = true, true
	assert.Error(t, flags.ValidateFlags())
}

func TestValidators(t *testing.T) {
	assert.NoError(t, ValidateLogLevel("debug"))
	assert.Error(t, ValidateLogLevel("loud"))
	assert.NoError(t, ValidateRuntimeVersion(""))
	assert.NoError(t, ValidateChoice("log format", "json", []string{"text", "json"}))
	assert.EqualError(t, ValidateChoice("log format", "xml", []string{"text", "json"}),
		`invalid log format "xml", must be one of: text, json`)
}

func TestPackCommand(t *testing.T) {
	root := setupProject(t)
	packFlags = &StandardFlags{OutputFormat: "json"}

	var out bytes.Buffer
	require.NoError(t, runPack(newTestCommand(&out), nil))

	var view reportView
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, 1, view.AssetsCopied)
	assert.Equal(t, filepath.Join(root, "public", "scene", "level.babylon"), view.ScenePath)
	assert.FileExists(t, view.ScenePath)
	assert.FileExists(t, filepath.Join(root, "public", "scene", "assets", "wall.png"))
}

func TestPackCommandQuiet(t *testing.T) {
	setupProject(t)
	packFlags = &StandardFlags{OutputFormat: "table", Quiet: true}

	var out bytes.Buffer
	require.NoError(t, runPack(newTestCommand(&out), nil))
	assert.Empty(t, out.String())
}

func TestPackCommandFatalError(t *testing.T) {
	root := setupProject(t)
	writeFile(t, filepath.Join(root, "level.scene", "meshes", "broken.json"), `{"meshes":`)
	packFlags = &StandardFlags{OutputFormat: "table"}

	var out bytes.Buffer
	err := runPack(newTestCommand(&out), nil)
	require.Error(t, err)
	assert.True(t, packerrors.IsKind(err, packerrors.KindShardRead))
}

func TestWatchHandlerRepackages(t *testing.T) {
	setupProject(t)
	cfg, err := config.Load()
	require.NoError(t, err)
	packager := build.NewPackager(cfg)

	var out bytes.Buffer
	handler := newWatchHandler(packager, &out, &StandardFlags{OutputFormat: "json", Verbose: true})

	events := []watcher.ChangeEvent{{Type: watcher.EventTypeModified, Path: filepath.Join(cfg.Project.AssetsDir(), "wall.png")}}
	require.NoError(t, handler(context.Background(), events))

	assert.Contains(t, out.String(), "modified: ")
	assert.Contains(t, out.String(), `"assets_copied": 1`)
	assert.Equal(t, int64(1), packager.Metrics().GetSnapshot().TotalRuns)
}

func TestWatchHandlerReportsFailures(t *testing.T) {
	root := setupProject(t)
	writeFile(t, filepath.Join(root, "level.scene", "cameras", "cam.json"), `{}`)
	cfg, err := config.Load()
	require.NoError(t, err)
	packager := build.NewPackager(cfg)

	var out bytes.Buffer
	handler := newWatchHandler(packager, &out, &StandardFlags{OutputFormat: "table"})
	require.NoError(t, handler(context.Background(), []watcher.ChangeEvent{{Path: "x"}}))

	assert.Contains(t, out.String(), "1 file(s) changed")
	assert.Contains(t, out.String(), "Packaging failed")
	assert.Equal(t, int64(1), packager.Metrics().GetSnapshot().FailedRuns)
}

func TestWatchStopSummary(t *testing.T) {
	metrics := build.NewRunMetrics()
	metrics.RecordRun(&build.Report{}, 10*time.Millisecond, nil)
	metrics.RecordRun(&build.Report{}, 30*time.Millisecond, nil)
	metrics.RecordRun(nil, 20*time.Millisecond, errors.New("broken shard"))
	metrics.RecordRun(&build.Report{}, 20*time.Millisecond, nil)

	var out bytes.Buffer
	printStopSummary(&out, metrics)
	assert.Equal(t, "\nStopped after 4 runs (75% succeeded, average 20ms)\n", out.String())
}

func TestPackHelpListsExtensions(t *testing.T) {
	assert.Contains(t, packCmd.Long, "Accepted asset extensions:")
	for _, ext := range []string{".png", ".env", ".npss", ".hdr"} {
		assert.Contains(t, packCmd.Long, ext)
	}
	_, list, found := strings.Cut(packCmd.Long, "Accepted asset extensions:\n")
	require.True(t, found)
	for _, line := range strings.Split(list, "\n") {
		assert.LessOrEqual(t, len(line), 74, line)
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	c := newTestCommand(&out)
	c.Flags().Bool("detailed", false, "")

	versionFormat, versionShort = "text", true
	t.Cleanup(func() { versionFormat, versionShort = "text", false })
	require.NoError(t, runVersionCommand(c, nil))
	assert.NotEmpty(t, out.String())

	out.Reset()
	versionFormat, versionShort = "json", false
	require.NoError(t, runVersionCommand(c, nil))
	var info map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Contains(t, info, "version")
	assert.Contains(t, info, "platform")

	versionFormat = "xml"
	assert.Error(t, runVersionCommand(c, nil))
}
