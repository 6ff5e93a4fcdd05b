package assets

import (
	"path/filepath"
	"sort"
	"strings"
)

// Decision is the outcome of the extension policy for one file.
type Decision int

const (
	Accept Decision = iota
	RejectExtension
	RejectPreview
)

func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case RejectExtension:
		return "unsupported extension"
	case RejectPreview:
		return "editor preview"
	default:
		return "unknown"
	}
}

const (
	// NavMeshMarker admits a file regardless of its extension.
	NavMeshMarker = ".navmesh"
	// PreviewPrefix marks editor-only thumbnails that never ship.
	PreviewPrefix = "editor_preview"
)

var supportedExtensions = map[string]struct{}{
	// images
	".jpg": {}, ".jpeg": {}, ".webp": {}, ".png": {}, ".bmp": {},
	// cube textures
	".env": {}, ".dds": {},
	// audio
	".mp3": {}, ".wav": {}, ".wave": {}, ".ogg": {},
	// structured payloads
	".material": {}, ".gui": {}, ".cinematic": {}, ".npss": {}, ".json": {},
	// misc
	".3dl": {}, ".exr": {}, ".hdr": {},
}

// Classify applies the public-tree admission policy to a file name.
func Classify(name string) Decision {
	base := filepath.Base(filepath.FromSlash(name))

	if strings.HasPrefix(base, PreviewPrefix) {
		return RejectPreview
	}
	if strings.Contains(base, NavMeshMarker) {
		return Accept
	}
	if _, ok := supportedExtensions[strings.ToLower(filepath.Ext(base))]; ok {
		return Accept
	}
	return RejectExtension
}

// SupportedExtensions lists the admitted extensions in lexical order.
func SupportedExtensions() []string {
	out := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// isGraphPayload reports whether a file may hold a node graph whose inline
// textures must be extracted before it is published.
func isGraphPayload(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".material", ".npss":
		return true
	default:
		return false
	}
}
