package expconf

import (
	"reflect"
	"strings"
)

// deepCopyStructure deep-copies a nested plain-data structure.
func deepCopyStructure(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

// deepCopy copies plain-data values so node state never aliases caller
// data. Maps and slices are copied element-wise; scalars pass through.
// Nested nodes are not copied here; ToStructure and FromStructure handle
// them explicitly.
func deepCopy(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case map[string]any:
		return deepCopyStructure(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = deepCopy(e)
		}
		return out
	case *Node:
		return v
	}

	// Typed maps and slices (e.g. []string defaults from DeclareStruct)
	// still need a fresh backing store.
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return value
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(out, rv)
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return value
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), iter.Value())
		}
		return out.Interface()
	}

	return value
}

// lookupPath resolves a dot-notation path against the node's live state,
// descending through nested nodes and plain maps.
func (n *Node) lookupPath(path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	segments := strings.Split(path, ".")
	var current any = n

	for _, segment := range segments {
		switch holder := current.(type) {
		case *Node:
			v, ok := holder.fields[segment]
			if !ok {
				return nil, false
			}
			current = v
		case map[string]any:
			v, ok := holder[segment]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}

	return current, true
}

// setNestedValue sets a value in a nested map using a dot-notation path,
// creating intermediate maps as needed. A non-map segment in the way is
// replaced by a new map.
func setNestedValue(nested map[string]any, path string, value any) {
	segments := strings.Split(path, ".")
	current := nested

	for i := 0; i < len(segments)-1; i++ {
		segment := segments[i]

		next, exists := current[segment]
		if !exists {
			newMap := make(map[string]any)
			current[segment] = newMap
			current = newMap
			continue
		}

		if nextMap, isMap := next.(map[string]any); isMap {
			current = nextMap
		} else {
			newMap := make(map[string]any)
			current[segment] = newMap
			current = newMap
		}
	}

	current[segments[len(segments)-1]] = value
}

// isValidKeySegment checks if a single field name or path segment is a
// valid bare key: ASCII letters, digits, underscores and dashes.
func isValidKeySegment(s string) bool {
	if len(s) == 0 {
		return false
	}
	if strings.ContainsRune(s, '.') {
		return false
	}

	for _, r := range s {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'

		if !(isLetter || isDigit || r == '_' || r == '-') {
			return false
		}
	}
	return true
}
