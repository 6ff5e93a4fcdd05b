package scene

import (
	"encoding/binary"
	"fmt"
	"math"
	"path"
)

// morphBuffers are the Float32 arrays a legacy morph target stores in the
// manager's binary payload. Each has an <name>Offset (bytes) and an
// <name>Count (elements) field on the target record.
var morphBuffers = []string{"positions", "normals", "tangents", "uvs", "uv2s"}

// legacyPayloadName returns the base name of the binary shared by the
// targets of a legacy manager.
func legacyPayloadName(manager Entity, targets []Entity) string {
	if f := manager.String("delayLoadingFile"); f != "" {
		return path.Base(toSlash(f))
	}
	for _, t := range targets {
		if f := t.String("delayLoadingFile"); f != "" {
			return path.Base(toSlash(f))
		}
	}
	return ""
}

// inlineMorphTarget slices the target's buffers out of payload, stores them
// as float arrays on the target and strips the offset, count and
// delay-load fields.
func inlineMorphTarget(target Entity, payload []byte) error {
	for _, name := range morphBuffers {
		offsetKey, countKey := name+"Offset", name+"Count"
		_, hasOffset := target[offsetKey]
		_, hasCount := target[countKey]
		if !hasOffset && !hasCount {
			continue
		}

		offset, okOffset := nonNegativeInt(target[offsetKey])
		count, okCount := nonNegativeInt(target[countKey])
		if !okOffset || !okCount {
			return fmt.Errorf("target %q: invalid %s/%s", target.ID(), offsetKey, countKey)
		}

		values, err := decodeFloat32s(payload, offset, count)
		if err != nil {
			return fmt.Errorf("target %q: %s: %w", target.ID(), name, err)
		}
		target[name] = values
		delete(target, offsetKey)
		delete(target, countKey)
	}
	delete(target, "delayLoadingFile")
	return nil
}

// decodeFloat32s reads count little-endian float32 values starting at the
// byte offset.
func decodeFloat32s(payload []byte, offset, count int) ([]float32, error) {
	end := offset + count*4
	if offset > len(payload) || end > len(payload) || end < offset {
		return nil, fmt.Errorf("range [%d,%d) outside payload of %d bytes", offset, end, len(payload))
	}
	out := make([]float32, count)
	for i := range out {
		bits := binary.LittleEndian.Uint32(payload[offset+i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out, nil
}

func nonNegativeInt(v interface{}) (int, bool) {
	f, ok := v.(float64)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}
