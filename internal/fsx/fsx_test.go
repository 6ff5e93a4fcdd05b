package fsx

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")

	require.NoError(t, EnsureDir(nested))
	require.NoError(t, EnsureDir(nested), "existing directory is success")

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	err := EnsureDir(file)
	require.Error(t, err)
	assert.True(t, IsPathTypeConflict(err))
}

func TestWriteFileAtomicNoTempLeft(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "sub", "scene.babylon")

	require.NoError(t, WriteFileAtomic(dst, []byte("hello")))
	require.NoError(t, WriteFileAtomic(dst, []byte("hello again")))

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "hello again", string(b))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".scene.babylon.tmp-"), "temp file left: %s", e.Name())
	}
}

func TestWriteFileAtomicRenameFailureCleansTemp(t *testing.T) {
	dir := t.TempDir()

	old := renameFunc
	renameFunc = func(string, string) error { return os.ErrPermission }
	defer func() { renameFunc = old }()

	err := WriteFileAtomic(filepath.Join(dir, "a.txt"), []byte("hello"))
	require.ErrorIs(t, err, os.ErrPermission)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	payload := []byte{0, 1, 2, 3, 255, 254}
	require.NoError(t, os.WriteFile(src, payload, 0o600))

	dst := filepath.Join(dir, "out", "deep", "dst.bin")
	require.NoError(t, CopyFile(src, dst))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	assert.Error(t, CopyFile(filepath.Join(dir, "missing"), dst))
	assert.True(t, IsPathTypeConflict(CopyFile(dir, filepath.Join(dir, "x"))))
}

func TestCanonicalAndWithin(t *testing.T) {
	root := t.TempDir()
	p := CanonicalPath(filepath.Join(root, "a", "..", "b", "c.png"))

	assert.False(t, strings.Contains(p, "\\"))
	assert.True(t, strings.HasSuffix(p, "/b/c.png"))
	assert.Equal(t, p, CanonicalPath(p))

	assert.True(t, IsWithin(CanonicalPath(root), p))
	assert.True(t, IsWithin(root, root))
	assert.False(t, IsWithin(filepath.Join(root, "b"), filepath.Join(root, "bb", "x")))
	assert.False(t, IsWithin(filepath.Join(root, "b"), root))

	rel, err := RelSlash(root, filepath.Join(root, "x", "y.png"))
	require.NoError(t, err)
	assert.Equal(t, "x/y.png", rel)
}
