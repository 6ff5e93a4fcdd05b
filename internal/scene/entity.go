package scene

import (
	"strconv"
)

// Entity is the mutable, normalized form of one serialized scene entity.
// Kind-specific fields are kept as decoded JSON so the document round-trips
// everything the editor wrote.
type Entity map[string]interface{}

// ID returns the entity id in string form, or "" when absent.
func (e Entity) ID() string {
	return scalarString(e["id"])
}

// String returns a string field, or "" when absent or not a string.
func (e Entity) String(key string) string {
	s, _ := e[key].(string)
	return s
}

// Metadata returns the metadata object, or nil.
func (e Entity) Metadata() map[string]interface{} {
	m, _ := e["metadata"].(map[string]interface{})
	return m
}

// ParentID returns the structural parent reference in string form.
func (e Entity) ParentID() (string, bool) {
	v, ok := e["parentId"]
	if !ok || v == nil {
		return "", false
	}
	s := scalarString(v)
	return s, s != ""
}

// ApplyParentOverride copies metadata.parentId over parentId when the
// metadata carries one. The value is copied as is. It reports whether the
// entity was changed.
func (e Entity) ApplyParentOverride() bool {
	meta := e.Metadata()
	if meta == nil {
		return false
	}
	v, ok := meta["parentId"]
	if !ok || v == nil {
		return false
	}
	e["parentId"] = v
	return true
}

// Instances returns the instance records nested under a mesh.
func (e Entity) Instances() []Entity {
	raw, _ := e["instances"].([]interface{})
	out := make([]Entity, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]interface{}); ok {
			out = append(out, Entity(m))
		}
	}
	return out
}

// Children returns the records stored in a list field.
func (e Entity) Children(key string) []Entity {
	raw, _ := e[key].([]interface{})
	out := make([]Entity, 0, len(raw))
	for _, r := range raw {
		if m, ok := r.(map[string]interface{}); ok {
			out = append(out, Entity(m))
		}
	}
	return out
}

// identities returns every value another entity may use to reference e.
func (e Entity) identities() []string {
	var ids []string
	for _, key := range []string{"id", "uniqueId"} {
		if s := scalarString(e[key]); s != "" {
			ids = append(ids, s)
		}
	}
	return ids
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}
