package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventTypeString(t *testing.T) {
	testCases := []struct {
		eventType EventType
		expected  string
	}{
		{EventTypeCreated, "created"},
		{EventTypeModified, "modified"},
		{EventTypeDeleted, "deleted"},
		{EventTypeRenamed, "renamed"},
		{EventType(42), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.eventType.String())
		})
	}
}

func TestNewFileWatcher(t *testing.T) {
	watcher, err := NewFileWatcher(100*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NotNil(t, watcher.watcher)
	assert.NotNil(t, watcher.debouncer)
	assert.Empty(t, watcher.filters)
	assert.Empty(t, watcher.handlers)
}

func TestAddRecursiveSkipsOutputAndHiddenDirs(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"assets/textures", "public/scene/assets", ".git/objects", "level/meshes"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755))
	}

	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	watcher.SkipDir(filepath.Join(root, "public"))
	require.NoError(t, watcher.AddRecursive(root))

	watched := make(map[string]bool)
	for _, p := range watcher.watcher.WatchList() {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)
		watched[filepath.ToSlash(rel)] = true
	}
	assert.True(t, watched["assets/textures"])
	assert.True(t, watched["level/meshes"])
	assert.False(t, watched["public"])
	assert.False(t, watched["public/scene/assets"])
	assert.False(t, watched[".git"])
}

func TestAddRecursiveMissingRoot(t *testing.T) {
	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	assert.NoError(t, watcher.AddRecursive(filepath.Join(t.TempDir(), "missing")))
}

func TestFileWatcherDeliversDebouncedBatch(t *testing.T) {
	root := t.TempDir()
	watcher, err := NewFileWatcher(50*time.Millisecond, nil)
	require.NoError(t, err)
	defer watcher.Stop()

	require.NoError(t, watcher.AddRecursive(root))
	watcher.AddFilter(NoTempFilter)

	var (
		mu      sync.Mutex
		batches [][]ChangeEvent
	)
	watcher.AddHandler(func(ctx context.Context, events []ChangeEvent) error {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, events)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, watcher.Start(ctx))

	target := filepath.Join(root, "wall.png")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(target, []byte{byte(i)}, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "wall.png.tmp-123"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) > 0
	}, 2*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches[0], 1)
	assert.Equal(t, target, batches[0][0].Path)
}

func TestDebouncerFlushDeduplicates(t *testing.T) {
	d := newDebouncer(time.Hour)
	d.pending = []ChangeEvent{
		{Path: "b.png", Type: EventTypeCreated},
		{Path: "a.png", Type: EventTypeCreated},
		{Path: "b.png", Type: EventTypeModified},
	}
	d.flush()

	batch := <-d.output
	require.Len(t, batch, 2)
	assert.Equal(t, "a.png", batch[0].Path)
	assert.Equal(t, "b.png", batch[1].Path)
	assert.Equal(t, EventTypeModified, batch[1].Type)
	assert.Empty(t, d.pending)
}

func TestNoHiddenFilter(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{"/project/assets/wall.png", true},
		{"/project/assets/.DS_Store", false},
		{"/home/u/.config/project/assets/a.png", true},
		{".git", false},
		{".", true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, NoHiddenFilter(tc.path))
		})
	}
}

func TestNoTempFilter(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{"assets/wall.png", true},
		{"assets/wall.png~", false},
		{"assets/.wall.png.swp", false},
		{"public/.level.babylon.tmp-8812", false},
		{"assets/cache.tmp", false},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, NoTempFilter(tc.path))
		})
	}
}
