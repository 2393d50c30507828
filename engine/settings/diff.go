package settings

import (
	"reflect"

	"siteforge/engine/models"
)

// Diff returns the subtree of paths where effective != default, plus the
// override count (spec.md §4.1, testable property #7). Only paths known to
// the schema are compared; this keeps diff well-defined even when the
// effective tree carries forward-compat unknown keys.
func Diff(schema *Schema, defaults, effective models.Settings) (sparse models.Settings, overrideCount int) {
	sparse = models.Settings{}
	for _, path := range schema.Paths() {
		dv, _ := getPath(defaults, path)
		ev, hasEffective := getPath(effective, path)
		if !hasEffective {
			continue
		}
		if !reflect.DeepEqual(dv, ev) {
			setPath(sparse, path, ev)
			overrideCount++
		}
	}
	return sparse, overrideCount
}
