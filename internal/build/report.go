package build

import (
	"sort"
	"time"

	packerrors "github.com/conneroisu/scenepack/internal/errors"
)

// Report summarizes a successful packaging run. Non-fatal problems are in
// Warnings; a fatal problem is returned as the run's error instead.
type Report struct {
	AssetsCopied      int           `json:"assets_copied" yaml:"assets_copied"`
	AssetsSkipped     int           `json:"assets_skipped" yaml:"assets_skipped"`
	TexturesExtracted int           `json:"textures_extracted" yaml:"textures_extracted"`
	FilesRemoved      int           `json:"files_removed" yaml:"files_removed"`
	ScenePath         string        `json:"scene_path" yaml:"scene_path"`
	Warnings          []error       `json:"-" yaml:"-"`
	Duration          time.Duration `json:"duration" yaml:"duration"`
}

// WarningCounts groups the warnings by error kind.
func (r *Report) WarningCounts() map[packerrors.Kind]int {
	out := make(map[packerrors.Kind]int)
	for _, w := range r.Warnings {
		kind, ok := packerrors.KindOf(w)
		if !ok {
			kind = "other"
		}
		out[kind]++
	}
	return out
}

// WarningKinds returns the kinds present in Warnings in lexical order.
func (r *Report) WarningKinds() []packerrors.Kind {
	counts := r.WarningCounts()
	kinds := make([]packerrors.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
