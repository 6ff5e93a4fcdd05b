// Package scanner enumerates the source files of a project.
//
// A PathCatalog walks a root directory and yields the absolute, forward-slash
// paths of regular files whose root-relative path matches a glob pattern.
// Directories can be pruned before they are descended into, which is how
// scene shard folders nested under the asset tree are kept out of the asset
// batch. Enumeration is lexical, so two scans of an unchanged tree yield the
// same sequence.
package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gobwas/glob"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/fsx"
)

// DirFilter reports whether a directory (absolute, slash form) should be
// skipped together with everything below it.
type DirFilter func(dir string) bool

// Options tunes one enumeration.
type Options struct {
	// Exclude prunes directories before descending. The root itself is
	// never excluded.
	Exclude DirFilter
	// MissingOK turns a missing root into an empty sequence instead of a
	// CatalogError.
	MissingOK bool
}

// PathCatalog enumerates files under a root using compiled glob patterns.
type PathCatalog struct {
	mu       sync.Mutex
	compiled map[string]glob.Glob
}

// NewPathCatalog creates a catalog with an empty pattern cache.
func NewPathCatalog() *PathCatalog {
	return &PathCatalog{compiled: make(map[string]glob.Glob)}
}

func (c *PathCatalog) pattern(p string) (glob.Glob, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if g, ok := c.compiled[p]; ok {
		return g, nil
	}
	g, err := glob.Compile(p, '/')
	if err != nil {
		return nil, fmt.Errorf("invalid glob pattern %q: %w", p, err)
	}
	c.compiled[p] = g
	return g, nil
}

// Files returns a lazy sequence of (path, error) pairs. A non-nil error is
// always the last element: the first unreadable directory ends the scan with
// a CatalogError. Each call rescans the tree.
func (c *PathCatalog) Files(root, pattern string, opts Options) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		g, err := c.pattern(pattern)
		if err != nil {
			yield("", packerrors.CatalogError(root, err))
			return
		}

		absRoot := fsx.CanonicalPath(root)
		osRoot := filepath.FromSlash(absRoot)

		if _, err := os.Stat(osRoot); err != nil {
			if opts.MissingOK && errors.Is(err, fs.ErrNotExist) {
				return
			}
			yield("", packerrors.CatalogError(absRoot, err))
			return
		}

		// WalkDir does not descend into a symlinked root, so walk its target
		// and report paths under the root as given
		walkRoot := osRoot
		if resolved, err := filepath.EvalSymlinks(osRoot); err == nil {
			walkRoot = resolved
		}

		stopped := false
		walkErr := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
			slash := absRoot
			if relOS, relErr := filepath.Rel(walkRoot, path); relErr == nil && relOS != "." {
				slash = absRoot + "/" + filepath.ToSlash(relOS)
			}
			if err != nil {
				return packerrors.CatalogError(slash, err)
			}

			if d.IsDir() {
				if slash != absRoot && opts.Exclude != nil && opts.Exclude(slash) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}

			rel := strings.TrimPrefix(strings.TrimPrefix(slash, absRoot), "/")
			if !g.Match(rel) {
				return nil
			}
			if !yield(slash, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if walkErr != nil && !stopped {
			yield("", walkErr)
		}
	}
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[string, error]) ([]string, error) {
	var out []string
	for p, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SceneDirFilter skips scene shard folders, which are named "<scene>.scene".
func SceneDirFilter(dir string) bool {
	return strings.HasSuffix(dir, ".scene")
}

// AnyDir combines filters; a directory is skipped when any filter says so.
func AnyDir(filters ...DirFilter) DirFilter {
	return func(dir string) bool {
		for _, f := range filters {
			if f != nil && f(dir) {
				return true
			}
		}
		return false
	}
}

// UnderDir returns a filter that skips root and everything below it.
func UnderDir(root string) DirFilter {
	canonical := fsx.CanonicalPath(root)
	return func(dir string) bool {
		return fsx.IsWithin(canonical, dir)
	}
}
