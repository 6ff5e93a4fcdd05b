// Package build drives a packaging run: it mirrors the asset tree through a
// bounded worker pool, assembles and writes the scene document, then sweeps
// the public tree against the run's export ledger.
package build

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conneroisu/scenepack/internal/assets"
	"github.com/conneroisu/scenepack/internal/config"
	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/logging"
	"github.com/conneroisu/scenepack/internal/scanner"
	"github.com/conneroisu/scenepack/internal/scene"
	"github.com/conneroisu/scenepack/internal/sweep"
	"github.com/conneroisu/scenepack/internal/texture"
	"github.com/conneroisu/scenepack/internal/types"
)

// ProcessorFactory creates the asset processor of one run.
type ProcessorFactory func(pc *types.PackagingContext, ex *texture.Extractor) assets.Processor

// Option configures a Packager.
type Option func(*Packager)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Packager) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithProcessor replaces the asset processor.
func WithProcessor(factory ProcessorFactory) Option {
	return func(p *Packager) {
		p.newProcessor = factory
	}
}

// Packager runs the packaging pipeline for one configured project. Runs do
// not share state except the metrics; each Run gets a fresh
// PackagingContext.
type Packager struct {
	cfg          *config.Config
	logger       logging.Logger
	catalog      *scanner.PathCatalog
	newProcessor ProcessorFactory
	metrics      *RunMetrics

	// serializes runs triggered by the watcher
	mu sync.Mutex
}

// NewPackager creates a packager.
func NewPackager(cfg *config.Config, opts ...Option) *Packager {
	p := &Packager{
		cfg:     cfg,
		logger:  logging.NewNopLogger(),
		catalog: scanner.NewPathCatalog(),
		newProcessor: func(pc *types.PackagingContext, ex *texture.Extractor) assets.Processor {
			return assets.NewAssetProcessor(pc, ex)
		},
		metrics: NewRunMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Metrics returns the run metrics.
func (p *Packager) Metrics() *RunMetrics {
	return p.metrics
}

// Workers returns the width of the asset pool.
func (p *Packager) Workers() int {
	w := p.cfg.Project.Workers
	if w <= 0 || w > config.MaxAssetWorkers {
		return config.MaxAssetWorkers
	}
	return w
}

// Run performs one full packaging run. Fatal errors abort the run and leave
// the public tree as it is; the next successful run reconciles it.
func (p *Packager) Run(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	report, err := p.run(ctx)
	duration := time.Since(start)
	if report != nil {
		report.Duration = duration
	}
	p.metrics.RecordRun(report, duration, err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (p *Packager) run(ctx context.Context) (*Report, error) {
	layout := types.LayoutFromConfig(p.cfg)
	pc := types.NewPackagingContext(layout, p.logger)
	ex := texture.NewExtractor(layout.ProjectRoot, layout.PublicDir, layout.ExtractedTexturesDir)
	report := &Report{ScenePath: layout.ScenePath()}
	textures := newPathSet()

	p.logger.Info(ctx, "Packaging scene",
		"scene", layout.SceneName,
		"project", layout.ProjectRoot,
		"public", layout.PublicDir,
		"workers", p.Workers())

	op := logging.StartOperation(p.logger, "copy_assets")
	if err := p.copyAssets(ctx, pc, ex, report, textures); err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	op.End(ctx)

	op = logging.StartOperation(p.logger, "assemble_scene")
	assembler := scene.NewAssembler(pc, p.catalog, ex, scene.Options{
		Settings:            p.cfg.Scene,
		RuntimeToolsVersion: p.cfg.Project.RuntimeToolsVersion,
		ReadLimit:           p.Workers(),
	})
	doc, err := assembler.Assemble(ctx)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	textures.add(assembler.ExtractedTextures()...)
	op.End(ctx)

	op = logging.StartOperation(p.logger, "write_scene")
	if err := scene.Write(pc, doc, report.ScenePath); err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	op.End(ctx)

	op = logging.StartOperation(p.logger, "sweep")
	swept, err := sweep.NewCollector(p.catalog, p.logger).Sweep(ctx, layout.PublicDir, pc.Ledger)
	if err != nil {
		op.EndWithError(ctx, err)
		return nil, err
	}
	for _, f := range swept.Failures {
		pc.Warnings.AddError(f)
	}
	op.End(ctx)

	report.FilesRemoved = len(swept.Removed)
	report.TexturesExtracted = textures.count()
	report.Warnings = pc.Warnings.Sorted()

	p.logger.Info(ctx, "Packaging finished",
		"scene_path", report.ScenePath,
		"assets_copied", report.AssetsCopied,
		"assets_skipped", report.AssetsSkipped,
		"textures_extracted", report.TexturesExtracted,
		"files_removed", report.FilesRemoved,
		"warnings", len(report.Warnings))
	return report, nil
}

// copyAssets streams the asset catalog into a pool of at most Workers()
// concurrent processor calls. A new call is admitted as soon as a slot
// frees. Non-fatal failures become warnings.
func (p *Packager) copyAssets(ctx context.Context, pc *types.PackagingContext, ex *texture.Extractor, report *Report, textures *pathSet) error {
	layout := pc.Layout
	proc := p.newProcessor(pc, ex)
	exclude := scanner.AnyDir(
		scanner.SceneDirFilter,
		scanner.UnderDir(layout.PublicDir),
		scanner.UnderDir(layout.ShardRoot),
	)

	var (
		mu              sync.Mutex
		copied, skipped int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers())

	var catalogErr error
	for file, err := range p.catalog.Files(layout.AssetsDir, "**", scanner.Options{Exclude: exclude, MissingOK: true}) {
		if err != nil {
			catalogErr = err
			break
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out, err := proc.Process(gctx, file)
			if err != nil {
				if packerrors.IsFatal(err) {
					return err
				}
				pc.Warn(gctx, err, "Asset copy failed", "path", file)
				return nil
			}
			textures.add(out.Extracted...)

			mu.Lock()
			defer mu.Unlock()
			if out.Copied() {
				copied++
			} else {
				skipped++
			}
			return nil
		})
	}

	waitErr := g.Wait()
	if catalogErr != nil {
		return catalogErr
	}
	if waitErr != nil {
		return waitErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	report.AssetsCopied = copied
	report.AssetsSkipped = skipped
	return nil
}

type pathSet struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func newPathSet() *pathSet {
	return &pathSet{paths: make(map[string]struct{})}
}

func (s *pathSet) add(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		s.paths[p] = struct{}{}
	}
}

func (s *pathSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}
