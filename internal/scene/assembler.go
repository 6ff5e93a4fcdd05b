// Package scene reassembles a project's per-entity shards into the single
// scene document a runtime loads.
//
// Shards are parsed per kind into their own types, normalized (parent
// overrides, delay-load payload staging, legacy morph-target migration,
// embedded texture extraction) and folded into a Document in a fixed kind
// order. Within a kind, shards are folded in lexical file order, so material
// deduplication is deterministic.
package scene

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/scenepack/internal/config"
	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/fsx"
	"github.com/conneroisu/scenepack/internal/logging"
	"github.com/conneroisu/scenepack/internal/scanner"
	"github.com/conneroisu/scenepack/internal/texture"
	"github.com/conneroisu/scenepack/internal/types"
	"github.com/conneroisu/scenepack/internal/version"
)

// Options configures an Assembler.
type Options struct {
	Settings            config.SceneSettings
	RuntimeToolsVersion string
	// ReadLimit bounds concurrent shard reads within one kind. Zero means
	// unbounded.
	ReadLimit int
}

// Assembler builds a Document from the shard tree of one packaging run.
// It is not safe for concurrent use.
type Assembler struct {
	pc        *types.PackagingContext
	catalog   *scanner.PathCatalog
	extractor *texture.Extractor
	opts      Options
	logger    logging.Logger

	staged       map[string]string // canonical source -> scene reference
	payloadNames map[string]string // lowercased output name -> canonical source
	textures     map[string]struct{}
}

// NewAssembler creates an assembler. extractor may be nil, in which case
// embedded textures are left inline.
func NewAssembler(pc *types.PackagingContext, catalog *scanner.PathCatalog, extractor *texture.Extractor, opts Options) *Assembler {
	return &Assembler{
		pc:           pc,
		catalog:      catalog,
		extractor:    extractor,
		opts:         opts,
		logger:       pc.Logger.WithComponent("assembler"),
		staged:       make(map[string]string),
		payloadNames: make(map[string]string),
		textures:     make(map[string]struct{}),
	}
}

// Assemble reads every shard kind and returns the assembled document.
// Missing or unparsable shards fail with a ShardReadError; shards without
// their identity field fail with a ShardSchemaError.
func (a *Assembler) Assemble(ctx context.Context) (*Document, error) {
	external, err := version.UsesExternalMorphTargets(a.opts.RuntimeToolsVersion)
	if err != nil {
		return nil, packerrors.ConfigError("project.runtime_tools_version", err)
	}

	doc := NewDocument(a.opts.Settings)
	steps := []struct {
		kind types.EntityKind
		fold func(context.Context, *Document) error
	}{
		{types.KindMeshes, a.foldMeshes},
		{types.KindMorphTargetManagers, func(ctx context.Context, doc *Document) error {
			return a.foldMorphTargetManagers(ctx, doc, external)
		}},
		{types.KindNodes, a.foldNodes},
		{types.KindSpriteManagers, a.foldSpriteManagers},
		{types.KindSpriteMaps, a.foldSpriteMaps},
		{types.KindNodeParticleSystemSets, a.foldNodeParticleSystemSets},
		{types.KindCameras, a.foldCameras},
		{types.KindLights, a.foldLights},
		{types.KindParticleSystems, a.foldParticleSystems},
		{types.KindAnimationGroups, a.foldAnimationGroups},
		{types.KindSkeletons, a.foldSkeletons},
		{types.KindShadowGenerators, a.foldShadowGenerators},
		{types.KindSounds, a.foldSounds},
	}

	for _, step := range steps {
		if err := step.fold(ctx, doc); err != nil {
			return nil, err
		}
		a.logger.Debug(ctx, "Folded shards", "kind", string(step.kind))
	}

	a.detachDangling(ctx, doc)

	a.logger.Info(ctx, "Scene assembled",
		"meshes", len(doc.Meshes),
		"materials", len(doc.Materials),
		"transform_nodes", len(doc.TransformNodes),
		"legacy_morph_targets", !external)
	return doc, nil
}

// ExtractedTextures lists the textures materialized during assembly,
// relative to the public root.
func (a *Assembler) ExtractedTextures() []string {
	out := make([]string, 0, len(a.textures))
	for p := range a.textures {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (a *Assembler) foldMeshes(ctx context.Context, doc *Document) error {
	shards, err := loadShards[MeshShard](ctx, a.catalog, a.pc.Layout, types.KindMeshes, a.opts.ReadLimit)
	if err != nil {
		return err
	}

	for _, l := range shards {
		mesh := l.Shard.Mesh()
		if l.Shard.BasePoseMatrix != nil {
			mesh["basePoseMatrix"] = l.Shard.BasePoseMatrix
		}
		if err := a.stageMeshPayload(mesh, l.Path); err != nil {
			return err
		}

		mesh.ApplyParentOverride()
		for _, instance := range mesh.Instances() {
			instance.ApplyParentOverride()
		}
		doc.Meshes = append(doc.Meshes, mesh)

		for _, m := range l.Shard.Materials {
			if !doc.AddMaterial(m) {
				a.logger.Debug(ctx, "Dropped duplicate material", "id", m.ID(), "shard", l.Path)
				continue
			}
			if texture.IsNodeGraph(texture.Graph(m)) {
				a.extract(ctx, m, l.Path)
			}
		}
		for _, mm := range l.Shard.MultiMaterials {
			doc.AddMultiMaterial(mm)
		}
	}
	return nil
}

func (a *Assembler) foldMorphTargetManagers(ctx context.Context, doc *Document, external bool) error {
	shards, err := loadShards[MorphTargetManagerShard](ctx, a.catalog, a.pc.Layout, types.KindMorphTargetManagers, a.opts.ReadLimit)
	if err != nil {
		return err
	}

	for _, l := range shards {
		manager := l.Shard.Entity
		targets := l.Shard.Targets()

		if external {
			if err := a.stageMorphPayloads(manager, targets, l.Path); err != nil {
				return err
			}
		} else if err := a.inlineLegacyMorphTargets(ctx, manager, targets, l.Path); err != nil {
			return err
		}
		doc.MorphTargetManagers = append(doc.MorphTargetManagers, manager)
	}
	return nil
}

// inlineLegacyMorphTargets decodes the manager's binary payload into the
// target records.
func (a *Assembler) inlineLegacyMorphTargets(ctx context.Context, manager Entity, targets []Entity, shardPath string) error {
	name := legacyPayloadName(manager, targets)
	if name == "" {
		for _, t := range targets {
			delete(t, "delayLoadingFile")
		}
		return nil
	}

	binPath := filepath.Join(a.pc.Layout.MorphTargetsDir(), name)
	payload, err := os.ReadFile(binPath)
	if err != nil {
		return packerrors.ShardReadError(filepath.ToSlash(binPath), err)
	}
	for _, t := range targets {
		if err := inlineMorphTarget(t, payload); err != nil {
			return packerrors.ShardReadError(shardPath, err)
		}
	}
	delete(manager, "delayLoadingFile")

	a.logger.Debug(ctx, "Decoded legacy morph targets",
		"manager", manager.ID(), "targets", len(targets), "payload_bytes", len(payload))
	return nil
}

func (a *Assembler) stageMorphPayloads(manager Entity, targets []Entity, shardPath string) error {
	holders := append([]Entity{manager}, targets...)
	for _, h := range holders {
		ref := h.String("delayLoadingFile")
		if ref == "" {
			continue
		}
		staged, err := a.stage(ref, []string{
			filepath.Join(a.pc.Layout.MorphTargetsDir(), path.Base(toSlash(ref))),
			filepath.Join(a.pc.Layout.ShardRoot, filepath.FromSlash(toSlash(ref))),
		}, shardPath)
		if err != nil {
			return err
		}
		h["delayLoadingFile"] = staged
	}
	return nil
}

func (a *Assembler) stageMeshPayload(mesh Entity, shardPath string) error {
	ref := mesh.String("delayLoadingFile")
	if ref == "" {
		return nil
	}
	staged, err := a.stage(ref, []string{
		filepath.Join(a.pc.Layout.ShardRoot, filepath.FromSlash(toSlash(ref))),
		filepath.Join(a.pc.Layout.GeometriesDir(), path.Base(toSlash(ref))),
	}, shardPath)
	if err != nil {
		return err
	}
	mesh["delayLoadingFile"] = staged
	return nil
}

// stage copies a delay-loaded payload into the scene's payload directory and
// returns the scene-relative reference to it. Each source file is staged once
// per run; distinct sources sharing a base name get distinct output names.
func (a *Assembler) stage(ref string, candidates []string, shardPath string) (string, error) {
	src := ""
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && fi.Mode().IsRegular() {
			src = fsx.CanonicalPath(c)
			break
		}
	}
	if src == "" {
		return "", packerrors.ShardReadError(shardPath, fmt.Errorf("delay-loaded payload %q not found", ref))
	}
	if staged, ok := a.staged[src]; ok {
		return staged, nil
	}

	name := a.payloadName(path.Base(src), src)
	dst := filepath.Join(a.pc.Layout.PayloadDir(), name)
	if err := fsx.EnsureDir(a.pc.Layout.PayloadDir()); err != nil {
		return "", packerrors.WriteError(dst, err)
	}
	if err := fsx.CopyFile(filepath.FromSlash(src), dst); err != nil {
		return "", packerrors.WriteError(dst, err)
	}
	a.pc.Register(dst)

	staged := a.pc.Layout.PayloadRef(name)
	a.staged[src] = staged
	return staged, nil
}

// payloadName claims an output name for src, suffixing the base name with a
// counter when another source already holds it.
func (a *Assembler) payloadName(base, src string) string {
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	name := base
	for n := 1; ; n++ {
		owner, taken := a.payloadNames[strings.ToLower(name)]
		if !taken || owner == src {
			break
		}
		name = fmt.Sprintf("%s-%d%s", stem, n, ext)
	}
	a.payloadNames[strings.ToLower(name)] = src
	return name
}

func (a *Assembler) foldNodes(ctx context.Context, doc *Document) error {
	nodes, err := loadEntities[NodeShard](ctx, a, types.KindNodes)
	if err != nil {
		return err
	}
	doc.TransformNodes = append(doc.TransformNodes, withParentOverride(nodes)...)
	return nil
}

func (a *Assembler) foldSpriteManagers(ctx context.Context, doc *Document) error {
	managers, err := loadEntities[SpriteManagerShard](ctx, a, types.KindSpriteManagers)
	if err != nil {
		return err
	}
	doc.TransformNodes = append(doc.TransformNodes, withParentOverride(managers)...)
	return nil
}

func (a *Assembler) foldSpriteMaps(ctx context.Context, doc *Document) error {
	maps, err := loadEntities[SpriteMapShard](ctx, a, types.KindSpriteMaps)
	if err != nil {
		return err
	}
	doc.TransformNodes = append(doc.TransformNodes, withParentOverride(maps)...)
	return nil
}

// foldNodeParticleSystemSets embeds each set into its host node and folds
// the node into the mesh collection.
func (a *Assembler) foldNodeParticleSystemSets(ctx context.Context, doc *Document) error {
	shards, err := loadShards[NodeParticleSystemSetShard](ctx, a.catalog, a.pc.Layout, types.KindNodeParticleSystemSets, a.opts.ReadLimit)
	if err != nil {
		return err
	}

	for _, l := range shards {
		node, set := l.Shard.Node, l.Shard.Set
		a.extract(ctx, set, l.Path)

		node.ApplyParentOverride()
		meta := node.Metadata()
		if meta == nil {
			meta = make(map[string]interface{})
			node["metadata"] = meta
		}
		meta["nodeParticleSystemSet"] = map[string]interface{}(set)
		doc.Meshes = append(doc.Meshes, node)
	}
	return nil
}

func (a *Assembler) foldCameras(ctx context.Context, doc *Document) error {
	cameras, err := loadEntities[CameraShard](ctx, a, types.KindCameras)
	if err != nil {
		return err
	}
	doc.Cameras = append(doc.Cameras, withParentOverride(cameras)...)
	return nil
}

func (a *Assembler) foldLights(ctx context.Context, doc *Document) error {
	lights, err := loadEntities[LightShard](ctx, a, types.KindLights)
	if err != nil {
		return err
	}
	doc.Lights = append(doc.Lights, withParentOverride(lights)...)
	return nil
}

func (a *Assembler) foldParticleSystems(ctx context.Context, doc *Document) error {
	shards, err := loadShards[ParticleSystemShard](ctx, a.catalog, a.pc.Layout, types.KindParticleSystems, a.opts.ReadLimit)
	if err != nil {
		return err
	}
	for _, l := range shards {
		a.extract(ctx, l.Shard.Entity, l.Path)
		doc.ParticleSystems = append(doc.ParticleSystems, l.Shard.Entity)
	}
	return nil
}

func (a *Assembler) foldAnimationGroups(ctx context.Context, doc *Document) error {
	groups, err := loadEntities[AnimationGroupShard](ctx, a, types.KindAnimationGroups)
	if err != nil {
		return err
	}
	doc.AnimationGroups = append(doc.AnimationGroups, groups...)
	return nil
}

func (a *Assembler) foldSkeletons(ctx context.Context, doc *Document) error {
	skeletons, err := loadEntities[SkeletonShard](ctx, a, types.KindSkeletons)
	if err != nil {
		return err
	}
	doc.Skeletons = append(doc.Skeletons, skeletons...)
	return nil
}

func (a *Assembler) foldShadowGenerators(ctx context.Context, doc *Document) error {
	generators, err := loadEntities[ShadowGeneratorShard](ctx, a, types.KindShadowGenerators)
	if err != nil {
		return err
	}
	doc.ShadowGenerators = append(doc.ShadowGenerators, generators...)
	return nil
}

func (a *Assembler) foldSounds(ctx context.Context, doc *Document) error {
	sounds, err := loadEntities[SoundShard](ctx, a, types.KindSounds)
	if err != nil {
		return err
	}
	doc.Sounds = append(doc.Sounds, sounds...)
	return nil
}

// extract lifts embedded textures out of g and registers them. Failures are
// collected as warnings; the graph keeps its inline payload in that case.
func (a *Assembler) extract(ctx context.Context, g Entity, source string) {
	if a.extractor == nil || g == nil {
		return
	}
	res, err := a.extractor.Extract(texture.Graph(g))
	for _, skipped := range res.Skipped {
		a.pc.Warn(ctx, skipped, "texture reference not found", "shard", source)
	}
	for _, rel := range res.Paths {
		a.pc.RegisterPublic(rel)
		a.textures[rel] = struct{}{}
	}
	if err != nil {
		a.pc.Warn(ctx, err, "texture extraction failed", "shard", source)
	}
}

// detachDangling moves entities whose parent is not part of the document to
// the root.
func (a *Assembler) detachDangling(ctx context.Context, doc *Document) {
	known := make(map[string]struct{})
	for _, list := range doc.parented() {
		for _, e := range list {
			for _, id := range e.identities() {
				known[id] = struct{}{}
			}
			for _, instance := range e.Instances() {
				for _, id := range instance.identities() {
					known[id] = struct{}{}
				}
			}
		}
	}

	check := func(e Entity) {
		parent, ok := e.ParentID()
		if !ok {
			delete(e, "parentId")
			return
		}
		if _, found := known[parent]; found {
			return
		}
		delete(e, "parentId")
		a.pc.Warn(ctx, fmt.Errorf("entity %q references missing parent %q", e.ID(), parent),
			"Detached entity to scene root")
	}
	for _, list := range doc.parented() {
		for _, e := range list {
			check(e)
			for _, instance := range e.Instances() {
				check(instance)
			}
		}
	}
}

type entityShard[T any] interface {
	shardPtr[T]
	entity() Entity
}

func (r *record) entity() Entity { return r.Entity }

func loadEntities[T any, PT entityShard[T]](ctx context.Context, a *Assembler, kind types.EntityKind) ([]Entity, error) {
	loaded, err := loadShards[T, PT](ctx, a.catalog, a.pc.Layout, kind, a.opts.ReadLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Entity, len(loaded))
	for i, l := range loaded {
		out[i] = PT(l.Shard).entity()
	}
	return out, nil
}

func withParentOverride(entities []Entity) []Entity {
	for _, e := range entities {
		e.ApplyParentOverride()
	}
	return entities
}

func toSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
