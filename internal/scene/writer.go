package scene

import (
	"encoding/json"
	"path/filepath"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/fsx"
	"github.com/conneroisu/scenepack/internal/types"
)

// Write serializes doc to outputPath and registers the file in the run's
// ledger. Every failure is a WriteError, which aborts the run.
func Write(pc *types.PackagingContext, doc *Document, outputPath string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return packerrors.WriteError(outputPath, err)
	}
	if err := fsx.EnsureDir(filepath.Dir(outputPath)); err != nil {
		return packerrors.WriteError(outputPath, err)
	}
	if err := fsx.WriteFileAtomic(outputPath, data); err != nil {
		return packerrors.WriteError(outputPath, err)
	}
	pc.Register(outputPath)
	return nil
}
