package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
	"github.com/conneroisu/scenepack/internal/scanner"
	"github.com/conneroisu/scenepack/internal/types"
)

// shardPattern matches shard documents directly inside a kind directory.
const shardPattern = "*.json"

// Each entity kind is parsed into its own shard type. Single-entity kinds
// embed a record; they differ in which identity field they require.

type record struct {
	Entity Entity
}

func (r *record) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &r.Entity)
}

func (r *record) require(path, field string) error {
	if r.Entity == nil {
		return packerrors.ShardSchemaError(path, field)
	}
	if scalarString(r.Entity[field]) == "" {
		return packerrors.ShardSchemaError(path, field)
	}
	return nil
}

// MeshShard bundles one primary mesh with its locally scoped materials.
type MeshShard struct {
	Meshes         []Entity  `json:"meshes"`
	Materials      []Entity  `json:"materials"`
	MultiMaterials []Entity  `json:"multiMaterials"`
	BasePoseMatrix []float64 `json:"basePoseMatrix"`
}

// Mesh returns the primary mesh.
func (s *MeshShard) Mesh() Entity {
	return s.Meshes[0]
}

func (s *MeshShard) validate(path string) error {
	if len(s.Meshes) == 0 || s.Meshes[0] == nil {
		return packerrors.ShardSchemaError(path, "meshes")
	}
	if s.Meshes[0].ID() == "" {
		return packerrors.ShardSchemaError(path, "meshes[0].id")
	}
	for i, m := range s.Materials {
		if m.ID() == "" {
			return packerrors.ShardSchemaError(path, fmt.Sprintf("materials[%d].id", i))
		}
	}
	for i, m := range s.MultiMaterials {
		if m.ID() == "" {
			return packerrors.ShardSchemaError(path, fmt.Sprintf("multiMaterials[%d].id", i))
		}
	}
	return nil
}

// MorphTargetManagerShard describes one manager and its targets.
type MorphTargetManagerShard struct{ record }

// Targets returns the target records of the manager.
func (s *MorphTargetManagerShard) Targets() []Entity {
	return s.Entity.Children("targets")
}

func (s *MorphTargetManagerShard) validate(path string) error {
	if err := s.require(path, "id"); err != nil {
		return err
	}
	if _, ok := s.Entity["targets"].([]interface{}); !ok {
		return packerrors.ShardSchemaError(path, "targets")
	}
	return nil
}

type NodeShard struct{ record }

func (s *NodeShard) validate(path string) error { return s.require(path, "id") }

type SpriteManagerShard struct{ record }

func (s *SpriteManagerShard) validate(path string) error { return s.require(path, "id") }

type SpriteMapShard struct{ record }

func (s *SpriteMapShard) validate(path string) error { return s.require(path, "id") }

type CameraShard struct{ record }

func (s *CameraShard) validate(path string) error { return s.require(path, "id") }

type LightShard struct{ record }

func (s *LightShard) validate(path string) error { return s.require(path, "id") }

type SkeletonShard struct{ record }

func (s *SkeletonShard) validate(path string) error { return s.require(path, "id") }

type ParticleSystemShard struct{ record }

func (s *ParticleSystemShard) validate(path string) error { return s.require(path, "id") }

type AnimationGroupShard struct{ record }

func (s *AnimationGroupShard) validate(path string) error { return s.require(path, "name") }

// ShadowGeneratorShard is keyed by the light casting the shadows.
type ShadowGeneratorShard struct{ record }

func (s *ShadowGeneratorShard) validate(path string) error { return s.require(path, "lightId") }

type SoundShard struct{ record }

func (s *SoundShard) validate(path string) error { return s.require(path, "name") }

// NodeParticleSystemSetShard pairs the scene node hosting a node particle
// system set with the serialized set itself.
type NodeParticleSystemSetShard struct {
	Node Entity `json:"node"`
	Set  Entity `json:"nodeParticleSystemSet"`
}

func (s *NodeParticleSystemSetShard) validate(path string) error {
	if s.Node == nil || s.Node.ID() == "" {
		return packerrors.ShardSchemaError(path, "node.id")
	}
	if s.Set == nil {
		return packerrors.ShardSchemaError(path, "nodeParticleSystemSet")
	}
	return nil
}

type shardPtr[T any] interface {
	*T
	validate(path string) error
}

// Loaded is one parsed shard and the file it came from.
type Loaded[T any] struct {
	Path  string
	Shard *T
}

// ShardFiles lists the shard documents of one kind in lexical order. A
// missing kind directory yields no files.
func ShardFiles(catalog *scanner.PathCatalog, layout types.ProjectLayout, kind types.EntityKind) ([]string, error) {
	return scanner.Collect(catalog.Files(layout.KindDir(kind), shardPattern, scanner.Options{MissingOK: true}))
}

// loadShards reads and validates every shard of one kind. Files are read
// concurrently, at most limit at a time; results keep the file order.
func loadShards[T any, PT shardPtr[T]](ctx context.Context, catalog *scanner.PathCatalog, layout types.ProjectLayout, kind types.EntityKind, limit int) ([]Loaded[T], error) {
	files, err := ShardFiles(catalog, layout, kind)
	if err != nil {
		return nil, err
	}

	out := make([]Loaded[T], len(files))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			shard, err := readShard[T, PT](file)
			if err != nil {
				return err
			}
			out[i] = Loaded[T]{Path: file, Shard: shard}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func readShard[T any, PT shardPtr[T]](file string) (*T, error) {
	data, err := os.ReadFile(filepath.FromSlash(file))
	if err != nil {
		return nil, packerrors.ShardReadError(file, err)
	}
	var shard T
	if err := json.Unmarshal(data, &shard); err != nil {
		return nil, packerrors.ShardReadError(file, err)
	}
	if err := PT(&shard).validate(file); err != nil {
		return nil, err
	}
	return &shard, nil
}
