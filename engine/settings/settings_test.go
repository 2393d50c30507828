package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"siteforge/engine/models"
)

func TestMergeIdempotenceAndIdentity(t *testing.T) {
	a := models.Settings{"a": models.Settings{"b": 1, "c": 2}}

	assert.Equal(t, a, Merge(a, a))
	assert.Equal(t, a, Merge(a, models.Settings{}))
	assert.Equal(t, a, Merge(models.Settings{}, a))
}

func TestMergeArraysReplaceWholesale(t *testing.T) {
	base := models.Settings{"tags": []string{"x", "y"}}
	patch := models.Settings{"tags": []string{"z"}}
	out := Merge(base, patch)
	assert.Equal(t, []string{"z"}, out["tags"])
}

// E6: diff({a:{b:1,c:2}}, {a:{b:1,c:9}}) = {a:{c:9}}, overrideCount=1
func TestDiffE6(t *testing.T) {
	schema := NewSchema([]LeafSchema{
		{Path: "a.b", Kind: KindInt, Default: 1, Min: 0, Max: 100},
		{Path: "a.c", Kind: KindInt, Default: 2, Min: 0, Max: 100},
	})
	defaults := models.Settings{"a": models.Settings{"b": 1, "c": 2}}
	effective := models.Settings{"a": models.Settings{"b": 1, "c": 9}}

	sparse, count := Diff(schema, defaults, effective)
	require.Equal(t, 1, count)
	assert.Equal(t, models.Settings{"a": models.Settings{"c": 9}}, sparse)
}

func TestResolveDiffRoundTrip(t *testing.T) {
	schema := DefaultSchema()
	defaults := DefaultsTree(schema)
	overrides := models.Settings{
		"css":   models.Settings{"purge": false},
		"image": models.Settings{"maxWidth": 1000},
	}
	effective := Resolve(defaults, overrides)
	sparse, count := Diff(schema, defaults, effective)

	assert.Equal(t, false, mustGet(t, sparse, "css.purge"))
	assert.Equal(t, 1000, mustGet(t, sparse, "image.maxWidth"))
	assert.Equal(t, 2, count)

	// resolve(defaults, diff(defaults, S)) == S for every leaf S set.
	roundTripped := Resolve(defaults, sparse)
	assert.Equal(t, false, mustGet(t, roundTripped, "css.purge"))
	assert.Equal(t, 1000, mustGet(t, roundTripped, "image.maxWidth"))
}

func mustGet(t *testing.T, tree models.Settings, path string) any {
	t.Helper()
	v, ok := getPath(tree, path)
	require.True(t, ok, "path %s missing", path)
	return v
}

func TestSafeIdempotentOnItself(t *testing.T) {
	once := ApplySafe(models.Settings{"css": models.Settings{"purge": true}})
	twice := ApplySafe(once)
	assert.Equal(t, once, twice)
}

// E4: an overridden {css:{purge:true}} that fails a build is followed by an
// iteration whose settings equal merge(safer, iteration-1 settings).
func TestSaferFallbackE4(t *testing.T) {
	iter1 := models.Settings{
		"css": models.Settings{"purge": true, "purgeAggressiveness": "aggressive"},
		"js":  models.Settings{"removeJquery": true},
		"html": models.Settings{
			"minifier": models.Settings{"removeAttributeQuotes": true, "removeOptionalTags": true, "removeEmptyElements": true},
		},
	}
	iter2 := ApplySafe(iter1)

	assert.Equal(t, false, mustGet(t, iter2, "css.purge"))
	assert.Equal(t, "safe", mustGet(t, iter2, "css.purgeAggressiveness"))
	assert.Equal(t, false, mustGet(t, iter2, "js.removeJquery"))
	assert.Equal(t, false, mustGet(t, iter2, "html.minifier.removeAttributeQuotes"))
	assert.Equal(t, false, mustGet(t, iter2, "html.minifier.removeOptionalTags"))
	assert.Equal(t, false, mustGet(t, iter2, "html.minifier.removeEmptyElements"))
}

func TestValidateRejectsOutOfRangeAndUnknownEnum(t *testing.T) {
	schema := DefaultSchema()
	flat := map[string]any{
		"image.maxWidth":         99999,
		"css.purgeAggressiveness": "turbo",
		"css.purge":              true, // valid, should not appear in errs
	}
	errs, _ := schema.Validate(flat)
	require.Len(t, errs, 2)
}

func TestValidatePreservesUnknownKeysAsWarnings(t *testing.T) {
	schema := DefaultSchema()
	flat := map[string]any{"experimental.newThing": true}
	errs, warnings := schema.Validate(flat)
	assert.Empty(t, errs)
	require.Len(t, warnings, 1)
}

func TestLayersResolvePrecedence(t *testing.T) {
	l := NewLayers()
	l.Set(LayerGlobal, models.Settings{"css": models.Settings{"purge": true}})
	l.Set(LayerSite, models.Settings{"css": models.Settings{"purge": false}})
	effective := l.Resolve()
	assert.Equal(t, false, mustGet(t, effective, "css.purge"))
}
