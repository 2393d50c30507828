package settings

import "siteforge/engine/models"

// Layer precedence, lowest to highest priority. Grounded on the teacher's
// engine/configx layer constants; siteforge collapses Global+Environment+
// Domain into "defaults" and Site+Ephemeral into "overrides" for the
// resolve/diff contract in spec.md §4.1, while keeping the five named layers
// as the mechanism defaults/overrides are themselves built from (e.g. an
// operator-wide environment override layered under a single site's tweak).
const (
	LayerGlobal = iota
	LayerEnvironment
	LayerDomain
	LayerSite
	LayerEphemeral
)

var layerNames = map[int]string{
	LayerGlobal:      "global",
	LayerEnvironment: "environment",
	LayerDomain:      "domain",
	LayerSite:        "site",
	LayerEphemeral:   "ephemeral",
}

// LayerName returns the human-readable name for a layer constant.
func LayerName(layer int) string {
	if name, ok := layerNames[layer]; ok {
		return name
	}
	return "unknown"
}

// LayerPrecedenceOrder returns the merge order from lowest to highest priority.
func LayerPrecedenceOrder() []int {
	return []int{LayerGlobal, LayerEnvironment, LayerDomain, LayerSite, LayerEphemeral}
}

// Layers is an ordered set of partial settings trees tagged with a layer id.
// Resolve folds them in LayerPrecedenceOrder, regardless of the order Set
// was called in, so callers can supply layers in any order.
type Layers struct {
	byLayer map[int]models.Settings
}

func NewLayers() *Layers { return &Layers{byLayer: make(map[int]models.Settings)} }

func (l *Layers) Set(layer int, tree models.Settings) { l.byLayer[layer] = tree }

// Resolve folds every set layer onto an empty base in precedence order and
// returns the effective tree. The last two layers folded in (Site, Ephemeral)
// correspond to spec.md's "overrides"; everything folded in before that is
// "defaults" for the purposes of Diff.
func (l *Layers) Resolve() models.Settings {
	var effective models.Settings = models.Settings{}
	for _, layer := range LayerPrecedenceOrder() {
		if tree, ok := l.byLayer[layer]; ok {
			effective = Merge(effective, tree)
		}
	}
	return effective
}

// DefaultsOnly folds Global+Environment+Domain, the portion of the layer
// stack that is process-wide rather than Site-owned (spec.md §3 "Ownership").
func (l *Layers) DefaultsOnly() models.Settings {
	var defaults models.Settings = models.Settings{}
	for _, layer := range []int{LayerGlobal, LayerEnvironment, LayerDomain} {
		if tree, ok := l.byLayer[layer]; ok {
			defaults = Merge(defaults, tree)
		}
	}
	return defaults
}
