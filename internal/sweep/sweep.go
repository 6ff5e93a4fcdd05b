// Package sweep removes stale files from the public tree.
//
// After every copy, extraction and write of a run has been recorded in the
// export ledger, Sweep deletes each regular file under the public root that
// the ledger does not contain. Directories are never removed.
package sweep

import (
	"context"
	"os"
	"path/filepath"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/ledger"
	"github.com/conneroisu/scenepack/internal/logging"
	"github.com/conneroisu/scenepack/internal/scanner"
)

// removeFunc is swapped in tests to simulate locked files.
var removeFunc = os.Remove

// Result summarizes one sweep.
type Result struct {
	Removed []string
	// Failures holds one SweepError per file that could not be deleted.
	Failures []error
}

// Collector sweeps a public root against a ledger.
type Collector struct {
	catalog *scanner.PathCatalog
	logger  logging.Logger
}

// NewCollector creates a collector.
func NewCollector(catalog *scanner.PathCatalog, logger logging.Logger) *Collector {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Collector{catalog: catalog, logger: logger.WithComponent("sweep")}
}

// Sweep deletes every file under publicRoot that is not in the ledger. A
// failed delete is recorded and the sweep continues. Only an enumeration
// failure is returned as an error.
func (c *Collector) Sweep(ctx context.Context, publicRoot string, live *ledger.ExportLedger) (Result, error) {
	var res Result
	keep := live.Snapshot()

	for file, err := range c.catalog.Files(publicRoot, "**", scanner.Options{MissingOK: true}) {
		if err != nil {
			return res, err
		}
		if _, ok := keep[file]; ok {
			continue
		}
		if err := removeFunc(filepath.FromSlash(file)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			sweepErr := packerrors.SweepError(file, err)
			res.Failures = append(res.Failures, sweepErr)
			c.logger.Warn(ctx, sweepErr, "Failed to remove stale file", "path", file)
			continue
		}
		res.Removed = append(res.Removed, file)
		c.logger.Debug(ctx, "Removed stale file", "path", file)
	}

	c.logger.Info(ctx, "Sweep finished",
		"removed", len(res.Removed),
		"failed", len(res.Failures),
		"kept", len(keep))
	return res, nil
}
