// Package assets mirrors the project's asset tree into the public tree.
//
// Each file passes the extension policy, has its parent directories created
// under the public root and is copied byte for byte. Node-graph payloads
// (.material, .npss) additionally get their inline textures extracted, and
// the rewritten graph is published instead of the raw file. Every written
// path is registered in the run's export ledger.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/fsx"
	"github.com/conneroisu/scenepack/internal/texture"
	"github.com/conneroisu/scenepack/internal/types"
)

// Outcome reports what happened to one asset.
type Outcome struct {
	Source   string
	Output   string
	Decision Decision
	// Extracted lists textures produced from an embedded node graph,
	// relative to the public root.
	Extracted []string
}

// Copied reports whether the asset reached the public tree.
func (o Outcome) Copied() bool {
	return o.Decision == Accept && o.Output != ""
}

// Processor handles a single asset file. The build driver calls it from a
// bounded worker pool.
type Processor interface {
	Process(ctx context.Context, file string) (Outcome, error)
}

// AssetProcessor is the production Processor.
type AssetProcessor struct {
	pc        *types.PackagingContext
	extractor *texture.Extractor
}

// NewAssetProcessor creates a processor bound to one packaging run.
func NewAssetProcessor(pc *types.PackagingContext, extractor *texture.Extractor) *AssetProcessor {
	return &AssetProcessor{pc: pc, extractor: extractor}
}

// Process copies file into the public tree. Rejected files return a
// non-accepting Outcome and no error. Failures are AssetCopyErrors.
func (p *AssetProcessor) Process(ctx context.Context, file string) (Outcome, error) {
	out := Outcome{Source: file, Decision: Classify(file)}
	if out.Decision != Accept {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}

	osFile := filepath.FromSlash(file)
	fi, err := os.Stat(osFile)
	if err != nil {
		return out, packerrors.AssetCopyError(file, err)
	}
	if !fi.Mode().IsRegular() {
		return out, packerrors.AssetCopyError(file, fmt.Errorf("not a regular file"))
	}

	dst, err := p.pc.Layout.PublicPathFor(osFile)
	if err != nil {
		return out, packerrors.AssetCopyError(file, err)
	}
	if err := fsx.EnsureDir(filepath.Dir(dst)); err != nil {
		return out, packerrors.AssetCopyError(file, err)
	}

	published := false
	if isGraphPayload(osFile) && p.extractor != nil {
		published, err = p.publishGraph(ctx, osFile, dst, &out)
		if err != nil {
			return out, packerrors.AssetCopyError(file, err)
		}
	}
	if !published {
		if err := fsx.CopyFile(osFile, dst); err != nil {
			return out, packerrors.AssetCopyError(file, err)
		}
	}

	p.pc.Register(dst)
	out.Output = fsx.CanonicalPath(dst)
	return out, nil
}

// publishGraph extracts inline textures from a node-graph payload and writes
// the rewritten JSON to dst. It returns false when the file is not a node
// graph, in which case the caller copies it verbatim.
func (p *AssetProcessor) publishGraph(ctx context.Context, src, dst string, out *Outcome) (bool, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return false, err
	}

	var graph texture.Graph
	if err := json.Unmarshal(data, &graph); err != nil || !texture.IsNodeGraph(graph) {
		return false, nil
	}

	res, err := p.extractor.Extract(graph)
	if err != nil {
		return false, err
	}
	for _, skipped := range res.Skipped {
		p.pc.Warn(ctx, skipped, "texture reference not found", "asset", src)
	}
	if len(res.Paths) == 0 {
		return false, nil
	}
	for _, rel := range res.Paths {
		p.pc.RegisterPublic(rel)
	}
	out.Extracted = res.Paths

	rewritten, err := json.Marshal(graph)
	if err != nil {
		return false, err
	}
	if err := fsx.WriteFileAtomic(dst, rewritten); err != nil {
		return false, err
	}
	return true, nil
}
