// Package ledger records every file a packaging run writes to the public
// tree. The recorded set is the live set for the garbage-collection sweep.
package ledger

import (
	"sync"

	"github.com/conneroisu/scenepack/internal/fsx"
)

// ExportLedger is an append-only, concurrency-safe set of canonical output
// paths. Paths are canonicalised on the way in and on lookup, so callers
// may pass OS-native or relative paths.
type ExportLedger struct {
	mu    sync.RWMutex
	paths map[string]struct{}
}

// New creates an empty ledger.
func New() *ExportLedger {
	return &ExportLedger{paths: make(map[string]struct{})}
}

// Add records path and reports whether it was newly added.
func (l *ExportLedger) Add(path string) bool {
	key := fsx.CanonicalPath(path)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.paths[key]; ok {
		return false
	}
	l.paths[key] = struct{}{}
	return true
}

// Contains reports whether path has been recorded.
func (l *ExportLedger) Contains(path string) bool {
	key := fsx.CanonicalPath(path)

	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.paths[key]
	return ok
}

// Len returns the number of recorded paths.
func (l *ExportLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.paths)
}

// Snapshot returns a copy of the recorded set.
func (l *ExportLedger) Snapshot() map[string]struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]struct{}, len(l.paths))
	for p := range l.paths {
		out[p] = struct{}{}
	}
	return out
}
