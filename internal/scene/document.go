package scene

import (
	"github.com/conneroisu/scenepack/internal/config"
)

// Document is the assembled scene. Field order is the serialization order.
type Document struct {
	ClearColor           []float64              `json:"clearColor"`
	AmbientColor         []float64              `json:"ambientColor"`
	Gravity              []float64              `json:"gravity"`
	FogMode              int                    `json:"fogMode"`
	FogColor             []float64              `json:"fogColor,omitempty"`
	FogStart             float64                `json:"fogStart"`
	FogEnd               float64                `json:"fogEnd"`
	FogDensity           float64                `json:"fogDensity"`
	EnvironmentIntensity float64                `json:"environmentIntensity"`
	EnvironmentTexture   string                 `json:"environmentTexture,omitempty"`
	Metadata             map[string]interface{} `json:"metadata,omitempty"`
	Animations           []interface{}          `json:"animations"`

	Meshes              []Entity `json:"meshes"`
	Materials           []Entity `json:"materials"`
	MultiMaterials      []Entity `json:"multiMaterials"`
	TransformNodes      []Entity `json:"transformNodes"`
	MorphTargetManagers []Entity `json:"morphTargetManagers"`
	ParticleSystems     []Entity `json:"particleSystems"`
	AnimationGroups     []Entity `json:"animationGroups"`
	Skeletons           []Entity `json:"skeletons"`
	Cameras             []Entity `json:"cameras"`
	Lights              []Entity `json:"lights"`
	ShadowGenerators    []Entity `json:"shadowGenerators"`
	Sounds              []Entity `json:"sounds"`

	materialIDs      map[string]struct{}
	multiMaterialIDs map[string]struct{}
}

// NewDocument creates an empty document carrying the scalar scene settings.
func NewDocument(s config.SceneSettings) *Document {
	d := &Document{
		ClearColor:   s.ClearColor,
		AmbientColor: s.AmbientColor,
		Gravity:      s.Gravity,
		FogMode:      s.Fog.Mode,
		FogColor:     s.Fog.Color,
		FogStart:     s.Fog.Start,
		FogEnd:       s.Fog.End,
		FogDensity:   s.Fog.Density,
		Metadata:     s.Metadata,
		Animations:   s.Animations,

		EnvironmentTexture: s.Environment.Texture,

		Meshes:              []Entity{},
		Materials:           []Entity{},
		MultiMaterials:      []Entity{},
		TransformNodes:      []Entity{},
		MorphTargetManagers: []Entity{},
		ParticleSystems:     []Entity{},
		AnimationGroups:     []Entity{},
		Skeletons:           []Entity{},
		Cameras:             []Entity{},
		Lights:              []Entity{},
		ShadowGenerators:    []Entity{},
		Sounds:              []Entity{},

		materialIDs:      make(map[string]struct{}),
		multiMaterialIDs: make(map[string]struct{}),
	}
	if len(d.Gravity) == 0 {
		d.Gravity = append([]float64(nil), config.DefaultGravity...)
	}
	if d.ClearColor == nil {
		d.ClearColor = []float64{}
	}
	if d.AmbientColor == nil {
		d.AmbientColor = []float64{}
	}
	if d.Animations == nil {
		d.Animations = []interface{}{}
	}
	d.EnvironmentIntensity = 1
	if s.Environment.Intensity != nil {
		d.EnvironmentIntensity = *s.Environment.Intensity
	}
	return d
}

// AddMaterial appends m unless a material with the same id is present.
// The first material seen for an id wins.
func (d *Document) AddMaterial(m Entity) bool {
	return addUnique(&d.Materials, d.materialIDs, m)
}

// AddMultiMaterial deduplicates multi-materials the same way as materials.
func (d *Document) AddMultiMaterial(m Entity) bool {
	return addUnique(&d.MultiMaterials, d.multiMaterialIDs, m)
}

func addUnique(list *[]Entity, seen map[string]struct{}, m Entity) bool {
	id := m.ID()
	if _, dup := seen[id]; dup {
		return false
	}
	seen[id] = struct{}{}
	*list = append(*list, m)
	return true
}

// parented lists the collections whose entities may carry a parentId.
func (d *Document) parented() [][]Entity {
	return [][]Entity{d.Meshes, d.TransformNodes, d.Cameras, d.Lights}
}

// MeshByID returns the first mesh with the given id.
func (d *Document) MeshByID(id string) Entity {
	for _, m := range d.Meshes {
		if m.ID() == id {
			return m
		}
	}
	return nil
}
