// Package types holds the values shared by every packaging phase: the
// project layout and the run-scoped PackagingContext. It exists to avoid
// circular dependencies between the phase packages.
package types

import (
	"path/filepath"

	"github.com/conneroisu/scenepack/internal/config"
)

// EntityKind names one shard directory of a scene.
type EntityKind string

const (
	KindMeshes                 EntityKind = "meshes"
	KindNodes                  EntityKind = "nodes"
	KindCameras                EntityKind = "cameras"
	KindLights                 EntityKind = "lights"
	KindSkeletons              EntityKind = "skeletons"
	KindAnimationGroups        EntityKind = "animationGroups"
	KindShadowGenerators       EntityKind = "shadowGenerators"
	KindSounds                 EntityKind = "sounds"
	KindSpriteManagers         EntityKind = "sprite-managers"
	KindSpriteMaps             EntityKind = "sprite-maps"
	KindParticleSystems        EntityKind = "particleSystems"
	KindNodeParticleSystemSets EntityKind = "nodeParticleSystemSets"
	KindMorphTargetManagers    EntityKind = "morphTargetManagers"
)

// AllKinds lists every shard kind in assembly order.
var AllKinds = []EntityKind{
	KindMeshes,
	KindMorphTargetManagers,
	KindNodes,
	KindSpriteManagers,
	KindSpriteMaps,
	KindNodeParticleSystemSets,
	KindCameras,
	KindLights,
	KindParticleSystems,
	KindAnimationGroups,
	KindSkeletons,
	KindShadowGenerators,
	KindSounds,
}

// ProjectLayout is the immutable set of paths a packaging run works on.
type ProjectLayout struct {
	// ProjectRoot is the editor project directory.
	ProjectRoot string
	// AssetsDir is ProjectRoot/assets.
	AssetsDir string
	// ShardRoot holds one subdirectory per EntityKind.
	ShardRoot string
	// SceneName names the output document and its payload directory.
	SceneName string
	// PublicDir is the root of the deployable output tree.
	PublicDir string
	// ExtractedTexturesDir is relative to PublicDir, slash separated.
	ExtractedTexturesDir string
	// SceneExtension is the output document extension without the dot.
	SceneExtension string
}

// LayoutFromConfig derives the layout from a loaded configuration.
func LayoutFromConfig(cfg *config.Config) ProjectLayout {
	p := cfg.Project
	return ProjectLayout{
		ProjectRoot:          p.Root,
		AssetsDir:            p.AssetsDir(),
		ShardRoot:            p.SceneFile,
		SceneName:            p.SceneName,
		PublicDir:            p.PublicDir,
		ExtractedTexturesDir: p.ExtractedTexturesDir,
		SceneExtension:       p.SceneExtension,
	}
}

// KindDir returns the shard directory of one entity kind.
func (l ProjectLayout) KindDir(kind EntityKind) string {
	return filepath.Join(l.ShardRoot, string(kind))
}

// MorphTargetsDir holds legacy morph-target binaries.
func (l ProjectLayout) MorphTargetsDir() string {
	return filepath.Join(l.ShardRoot, "morphTargets")
}

// GeometriesDir holds delay-loaded mesh geometry binaries.
func (l ProjectLayout) GeometriesDir() string {
	return filepath.Join(l.ShardRoot, "geometries")
}

// ScenePath is the output scene document.
func (l ProjectLayout) ScenePath() string {
	return filepath.Join(l.PublicDir, l.SceneName+"."+l.SceneExtension)
}

// PayloadDir is where delay-loaded binaries are staged in the public tree.
func (l ProjectLayout) PayloadDir() string {
	return filepath.Join(l.PublicDir, l.SceneName)
}

// PayloadRef is the scene-relative reference to a staged payload.
func (l ProjectLayout) PayloadRef(base string) string {
	return l.SceneName + "/" + base
}

// PublicPathFor maps a project file to its mirrored location.
func (l ProjectLayout) PublicPathFor(projectFile string) (string, error) {
	rel, err := filepath.Rel(l.ProjectRoot, projectFile)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.PublicDir, rel), nil
}
