package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/fsx"
)

func makeTree(t *testing.T, files ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(f), 0o644))
	}
	return root
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := fsx.RelSlash(fsx.CanonicalPath(root), p)
		require.NoError(t, err)
		out = append(out, rel)
	}
	return out
}

func TestFilesMatchesPattern(t *testing.T) {
	root := makeTree(t,
		"meshes/b.json",
		"meshes/a.json",
		"meshes/readme.txt",
		"meshes/nested/c.json",
	)
	catalog := NewPathCatalog()

	top, err := Collect(catalog.Files(filepath.Join(root, "meshes"), "*.json", Options{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"meshes/a.json", "meshes/b.json"}, relAll(t, root, top))

	all, err := Collect(catalog.Files(root, "**.json", Options{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"meshes/a.json", "meshes/b.json", "meshes/nested/c.json"}, relAll(t, root, all))
}

func TestFilesExcludesDirectories(t *testing.T) {
	root := makeTree(t,
		"assets/wall.png",
		"assets/level.scene/meshes/m.json",
		"assets/public/copy.png",
		"assets/sub/floor.png",
	)
	catalog := NewPathCatalog()

	exclude := AnyDir(SceneDirFilter, UnderDir(filepath.Join(root, "assets", "public")))
	files, err := Collect(catalog.Files(filepath.Join(root, "assets"), "**", Options{Exclude: exclude}))
	require.NoError(t, err)
	assert.Equal(t, []string{"assets/sub/floor.png", "assets/wall.png"}, relAll(t, root, files))
}

func TestFilesRootIsNeverExcluded(t *testing.T) {
	root := makeTree(t, "level.scene/lights/sun.json")
	catalog := NewPathCatalog()

	files, err := Collect(catalog.Files(filepath.Join(root, "level.scene"), "**", Options{Exclude: SceneDirFilter}))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFilesFollowsSymlinkedRoot(t *testing.T) {
	target := makeTree(t, "a.png", "skip.scene/x.json", "sub/b.png")
	link := filepath.Join(t.TempDir(), "assets")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	catalog := NewPathCatalog()

	var excluded []string
	files, err := Collect(catalog.Files(link, "**", Options{Exclude: func(dir string) bool {
		excluded = append(excluded, dir)
		return SceneDirFilter(dir)
	}}))
	require.NoError(t, err)

	linkRoot := fsx.CanonicalPath(link)
	assert.Equal(t, []string{linkRoot + "/a.png", linkRoot + "/sub/b.png"}, files)
	assert.Equal(t, []string{linkRoot + "/skip.scene", linkRoot + "/sub"}, excluded)
}

func TestFilesMissingRoot(t *testing.T) {
	catalog := NewPathCatalog()
	missing := filepath.Join(t.TempDir(), "nope")

	files, err := Collect(catalog.Files(missing, "*.json", Options{MissingOK: true}))
	require.NoError(t, err)
	assert.Empty(t, files)

	_, err = Collect(catalog.Files(missing, "*.json", Options{}))
	require.Error(t, err)
	assert.True(t, packerrors.IsKind(err, packerrors.KindCatalog))
}

func TestFilesInvalidPattern(t *testing.T) {
	catalog := NewPathCatalog()
	_, err := Collect(catalog.Files(t.TempDir(), "[", Options{}))
	require.Error(t, err)
	assert.True(t, packerrors.IsKind(err, packerrors.KindCatalog))
}

func TestFilesEarlyStop(t *testing.T) {
	root := makeTree(t, "a.png", "b.png", "c.png")
	catalog := NewPathCatalog()

	var seen []string
	for p, err := range catalog.Files(root, "*", Options{}) {
		require.NoError(t, err)
		seen = append(seen, p)
		if len(seen) == 2 {
			break
		}
	}
	assert.Len(t, seen, 2)
}

func TestFilesIsRepeatable(t *testing.T) {
	root := makeTree(t, "x/1.png", "x/2.png", "y/3.png")
	catalog := NewPathCatalog()

	first, err := Collect(catalog.Files(root, "**", Options{}))
	require.NoError(t, err)
	second, err := Collect(catalog.Files(root, "**", Options{}))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDirFilters(t *testing.T) {
	assert.True(t, SceneDirFilter("/p/assets/level.scene"))
	assert.False(t, SceneDirFilter("/p/assets/scenes"))

	under := UnderDir("/p/public")
	assert.True(t, under("/p/public"))
	assert.True(t, under("/p/public/scene"))
	assert.False(t, under("/p/publicity"))

	combined := AnyDir(nil, SceneDirFilter, under)
	assert.True(t, combined("/p/public/x"))
	assert.True(t, combined("/p/a.scene"))
	assert.False(t, combined("/p/assets"))
}
