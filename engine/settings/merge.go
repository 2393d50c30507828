package settings

import "siteforge/engine/models"

// Merge deep-merges patch onto base and returns a new tree; neither input is
// mutated. For each key in patch: if both sides are non-null, non-array
// objects, recurse; otherwise the patch value replaces the base value
// wholesale (arrays replace, they are never merged element-wise) — spec.md
// §4.1 exactly.
func Merge(base, patch models.Settings) models.Settings {
	return mergeAny(base, patch).(models.Settings)
}

func mergeAny(base, patch any) any {
	baseMap, baseIsMap := asSettingsMap(base)
	patchMap, patchIsMap := asSettingsMap(patch)
	if baseIsMap && patchIsMap {
		out := make(models.Settings, len(baseMap)+len(patchMap))
		for k, v := range baseMap {
			out[k] = v
		}
		for k, pv := range patchMap {
			if bv, ok := out[k]; ok {
				out[k] = mergeAny(bv, pv)
			} else {
				out[k] = pv
			}
		}
		return out
	}
	// patch wins outright: scalar replace, array replace, or patch introduces
	// a map where base had a scalar.
	return patch
}

func asSettingsMap(v any) (models.Settings, bool) {
	switch m := v.(type) {
	case models.Settings:
		return m, true
	case map[string]any:
		return models.Settings(m), true
	default:
		return nil, false
	}
}

// Resolve computes the effective settings: resolve(defaults, overrides) in
// spec.md §4.1 terms. It is pure deep-merge, defaults as base.
func Resolve(defaults, overrides models.Settings) models.Settings {
	return Merge(defaults, overrides)
}

// DefaultsTree expands a Schema into a nested models.Settings tree whose
// leaves are each schema entry's Default, keyed by dotted path.
func DefaultsTree(schema *Schema) models.Settings {
	tree := models.Settings{}
	for _, path := range schema.Paths() {
		leaf, _ := schema.Lookup(path)
		setPath(tree, path, leaf.Default)
	}
	return tree
}

func setPath(tree models.Settings, path string, value any) {
	segs := splitPath(path)
	cur := tree
	for i, seg := range segs {
		if i == len(segs)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(models.Settings)
		if !ok {
			next = models.Settings{}
			cur[seg] = next
		}
		cur = next
	}
}

func getPath(tree models.Settings, path string) (any, bool) {
	segs := splitPath(path)
	var cur any = tree
	for i, seg := range segs {
		m, ok := asSettingsMap(cur)
		if !ok {
			return nil, false
		}
		v, present := m[seg]
		if !present {
			return nil, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		cur = v
	}
	return nil, false
}

func splitPath(path string) []string {
	segs := make([]string, 0, 4)
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segs = append(segs, path[start:i])
			start = i + 1
		}
	}
	segs = append(segs, path[start:])
	return segs
}

// Flatten walks a settings tree and returns a dotted-path -> leaf value map,
// using schema paths to know where the leaves are (so it doesn't need to
// guess whether an intermediate map is itself a leaf value).
func Flatten(schema *Schema, tree models.Settings) map[string]any {
	out := make(map[string]any, len(schema.Paths()))
	for _, path := range schema.Paths() {
		if v, ok := getPath(tree, path); ok {
			out[path] = v
		}
	}
	return out
}
