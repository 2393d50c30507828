package settings

import "siteforge/engine/models"

// SaferPatch is the curated conservative patch applied after an iteration
// that errored or whose build failed (spec.md §4.1 "Safer-settings
// fallback", §4.7 step 8). It is deliberately a static literal, not derived
// from the schema, because it encodes an editorial judgment call about which
// knobs are risky — not a structural default.
func SaferPatch() models.Settings {
	return models.Settings{
		"css": models.Settings{
			"purge":              false,
			"purgeAggressiveness": "safe",
		},
		"js": models.Settings{
			"removeJquery": false,
		},
		"html": models.Settings{
			"minifier": models.Settings{
				"removeAttributeQuotes": false,
				"removeOptionalTags":    false,
				"removeEmptyElements":   false,
			},
		},
	}
}

// ApplySafe merges SaferPatch() onto current, producing the settings for the
// next iteration after a failure. Testable property #8: safe(safe(S)) ==
// safe(S), which holds because SaferPatch is idempotent on itself — merging
// it twice yields the same leaves both times.
func ApplySafe(current models.Settings) models.Settings {
	return Merge(current, SaferPatch())
}
