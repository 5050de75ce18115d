package store

import "encoding/json"

// Method selects how a patch mutates its key
type Method string

const (
	// MethodSet replaces the value wholesale. A nil value is a tombstone
	// that removes the key.
	MethodSet Method = "set"
	// MethodMerge deep-merges an object patch into the existing value.
	// A nil leaf deletes that leaf.
	MethodMerge Method = "merge"
)

// Patch is a single keyed mutation. Patches are the only write path into
// the store from business logic; that contract is what makes optimistic
// rollback sound.
type Patch struct {
	Key    string `json:"key"`
	Method Method `json:"method"`
	Value  any    `json:"value,omitempty"`
}

// Set builds a replace patch. Pass a nil value to delete the key.
func Set(key string, value any) Patch {
	return Patch{Key: key, Method: MethodSet, Value: normalize(value)}
}

// Merge builds a deep-merge patch
func Merge(key string, value any) Patch {
	return Patch{Key: key, Method: MethodMerge, Value: normalize(value)}
}

// normalize converts typed structs to plain JSON documents so patches and
// stored values compare and merge uniformly.
func normalize(v any) any {
	switch v.(type) {
	case nil, bool, string, float64:
		return v
	}
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// deepCopy clones a normalized document
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = deepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = deepCopy(child)
		}
		return out
	default:
		return v
	}
}

// deepMerge merges src into dst. Nil src leaves delete the corresponding
// dst key. Returns the merged document.
func deepMerge(dst, src any) any {
	srcMap, srcIsMap := src.(map[string]any)
	if !srcIsMap {
		return deepCopy(src)
	}
	dstMap, dstIsMap := dst.(map[string]any)
	if !dstIsMap {
		dstMap = make(map[string]any)
	} else {
		dstMap = deepCopy(dstMap).(map[string]any)
	}
	for k, v := range srcMap {
		if v == nil {
			delete(dstMap, k)
			continue
		}
		if childMap, ok := v.(map[string]any); ok {
			dstMap[k] = deepMerge(dstMap[k], childMap)
			continue
		}
		dstMap[k] = deepCopy(v)
	}
	return dstMap
}

// ApplyTo returns the value a key would hold after applying the patch to
// its current value, without touching any store. Builders use this to
// stage several patches against the same key in one update set.
func ApplyTo(p Patch, current any) any {
	switch p.Method {
	case MethodMerge:
		return deepMerge(normalize(current), normalize(p.Value))
	default:
		return deepCopy(normalize(p.Value))
	}
}

// Invert computes the exact inverse of a patch against the value the key
// held before the patch applied. Applying the patch and then its inverse
// restores the prior value bit-for-bit. Callers must capture `prior` by
// reading the store before the patch is applied (read-before-write).
func Invert(p Patch, prior any) Patch {
	prior = normalize(prior)
	switch p.Method {
	case MethodSet:
		return Patch{Key: p.Key, Method: MethodSet, Value: deepCopy(prior)}
	case MethodMerge:
		if prior == nil {
			// Key did not exist; the merge created it.
			return Patch{Key: p.Key, Method: MethodSet, Value: nil}
		}
		if _, priorIsMap := prior.(map[string]any); !priorIsMap {
			// Merge replaced a non-object value; only a full set restores it.
			return Patch{Key: p.Key, Method: MethodSet, Value: deepCopy(prior)}
		}
		return Patch{Key: p.Key, Method: MethodMerge, Value: invertMergeValue(p.Value, prior)}
	}
	return Patch{Key: p.Key, Method: MethodSet, Value: deepCopy(prior)}
}

// invertMergeValue walks the merge patch and records, for every touched
// node, the value it held before. Nodes the patch created invert to nil
// leaves so the inverse merge deletes them again.
func invertMergeValue(patchVal, prior any) any {
	patchMap, ok := patchVal.(map[string]any)
	if !ok {
		return deepCopy(prior)
	}
	priorMap, priorIsMap := prior.(map[string]any)
	out := make(map[string]any, len(patchMap))
	for k, v := range patchMap {
		var priorChild any
		var had bool
		if priorIsMap {
			priorChild, had = priorMap[k]
		}
		if !had {
			out[k] = nil
			continue
		}
		if _, vIsMap := v.(map[string]any); vIsMap {
			if _, pIsMap := priorChild.(map[string]any); pIsMap {
				out[k] = invertMergeValue(v, priorChild)
				continue
			}
		}
		out[k] = deepCopy(priorChild)
	}
	return out
}
