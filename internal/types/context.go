package types

import (
	"context"
	"path/filepath"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/ledger"
	"github.com/conneroisu/scenepack/internal/logging"
)

// PackagingContext is passed by reference to every phase of one run. It owns
// the export ledger and the warning collector; nothing in the pipeline keeps
// run state in package-level variables.
type PackagingContext struct {
	Layout   ProjectLayout
	Ledger   *ledger.ExportLedger
	Warnings *packerrors.ErrorCollector
	Logger   logging.Logger
}

// NewPackagingContext creates a context with an empty ledger.
func NewPackagingContext(layout ProjectLayout, logger logging.Logger) *PackagingContext {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &PackagingContext{
		Layout:   layout,
		Ledger:   ledger.New(),
		Warnings: packerrors.NewErrorCollector(),
		Logger:   logger,
	}
}

// Register records an absolute output path in the ledger.
func (pc *PackagingContext) Register(path string) {
	pc.Ledger.Add(path)
}

// RegisterPublic records a path given relative to the public root.
func (pc *PackagingContext) RegisterPublic(rel string) string {
	abs := filepath.Join(pc.Layout.PublicDir, filepath.FromSlash(rel))
	pc.Ledger.Add(abs)
	return abs
}

// Warn collects a non-fatal error and logs it.
func (pc *PackagingContext) Warn(ctx context.Context, err error, msg string, fields ...interface{}) {
	if err == nil {
		return
	}
	pc.Warnings.AddError(err)
	pc.Logger.Warn(ctx, err, msg, fields...)
}
