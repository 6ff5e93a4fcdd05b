package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a packaging failure. The kind decides whether the run
// aborts (fatal) or the error is collected as a warning.
type Kind string

const (
	KindCatalog     Kind = "catalog"
	KindShardRead   Kind = "shard_read"
	KindShardSchema Kind = "shard_schema"
	KindAssetCopy   Kind = "asset_copy"
	KindExtraction  Kind = "extraction_skipped"
	KindSweep       Kind = "sweep"
	KindWrite       Kind = "write"
	KindConfig      Kind = "config"
)

// Fatal reports whether errors of this kind abort a packaging run.
func (k Kind) Fatal() bool {
	switch k {
	case KindAssetCopy, KindExtraction, KindSweep:
		return false
	default:
		return true
	}
}

// PackError is a structured error carrying the failing operation and path.
type PackError struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *PackError) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("[%s]", e.Kind))
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}

	result := strings.Join(parts, " ")
	if e.Err != nil {
		result += ": " + e.Err.Error()
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PackError) Unwrap() error {
	return e.Err
}

// Is matches another *PackError of the same kind, so sentinel values such as
// ErrShardRead can be used with errors.Is.
func (e *PackError) Is(target error) bool {
	var t *PackError
	if errors.As(target, &t) {
		return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
	}

	return false
}

// Sentinels for errors.Is comparisons.
var (
	ErrCatalog     = &PackError{Kind: KindCatalog}
	ErrShardRead   = &PackError{Kind: KindShardRead}
	ErrShardSchema = &PackError{Kind: KindShardSchema}
	ErrAssetCopy   = &PackError{Kind: KindAssetCopy}
	ErrExtraction  = &PackError{Kind: KindExtraction}
	ErrSweep       = &PackError{Kind: KindSweep}
	ErrWrite       = &PackError{Kind: KindWrite}
	ErrConfig      = &PackError{Kind: KindConfig}
)

// CatalogError reports a directory that could not be enumerated.
func CatalogError(path string, err error) *PackError {
	return &PackError{Kind: KindCatalog, Op: "enumerate", Path: path, Err: err}
}

// ShardReadError reports a shard (or a payload it references) that is
// missing, unreadable or not valid JSON.
func ShardReadError(path string, err error) *PackError {
	return &PackError{Kind: KindShardRead, Op: "read shard", Path: path, Err: err}
}

// ShardSchemaError reports a shard lacking a required field.
func ShardSchemaError(path, field string) *PackError {
	return &PackError{
		Kind: KindShardSchema,
		Op:   "validate shard",
		Path: path,
		Err:  fmt.Errorf("missing required field %q", field),
	}
}

// AssetCopyError reports one asset that failed to reach the public tree.
func AssetCopyError(path string, err error) *PackError {
	return &PackError{Kind: KindAssetCopy, Op: "copy asset", Path: path, Err: err}
}

// ExtractionSkipped records a texture reference that could not be located.
func ExtractionSkipped(graph, ref string) *PackError {
	return &PackError{
		Kind: KindExtraction,
		Op:   "extract texture",
		Path: ref,
		Err:  fmt.Errorf("unresolved in graph %q", graph),
	}
}

// SweepError reports a stale file that could not be removed.
func SweepError(path string, err error) *PackError {
	return &PackError{Kind: KindSweep, Op: "remove", Path: path, Err: err}
}

// WriteError reports a failure writing the scene document.
func WriteError(path string, err error) *PackError {
	return &PackError{Kind: KindWrite, Op: "write scene", Path: path, Err: err}
}

// ConfigError reports an invalid configuration value.
func ConfigError(key string, err error) *PackError {
	return &PackError{Kind: KindConfig, Op: "config", Path: key, Err: err}
}

// KindOf returns the kind of the first PackError in err's chain.
func KindOf(err error) (Kind, bool) {
	var pe *PackError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a PackError of the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsFatal reports whether err must abort the packaging run. Errors that are
// not PackErrors are treated as fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k, ok := KindOf(err)
	if !ok {
		return true
	}
	return k.Fatal()
}
