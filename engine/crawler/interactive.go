package crawler

// defaultProbeCatalog is the scripted catalog of interactive probes replayed
// against every rendered page per spec §4.2 step 2: "forms, buttons,
// anchors, elements bearing modal/dropdown/slider class hints." Static and
// deterministic, so the catalog for a given DOM never changes between runs.
var defaultProbeCatalog = []InteractiveProbe{
	{Selector: "form", Kind: "form", Script: "submit form; assert navigation or ajax response"},
	{Selector: "button", Kind: "button", Script: "click selector; assert no uncaught error"},
	{Selector: "a[href]", Kind: "anchor", Script: "click selector; assert navigates to href"},
	{Selector: "[class*='modal']", Kind: "modal", Script: "click trigger; assert class 'open' appears on modal root"},
	{Selector: "[class*='dropdown']", Kind: "dropdown", Script: "click trigger; assert class 'show' appears on menu"},
	{Selector: "[class*='slider']", Kind: "slider", Script: "drag handle; assert position attribute changes"},
	{Selector: "[class*='carousel']", Kind: "slider", Script: "click next control; assert active slide index increments"},
	{Selector: "[class*='accordion']", Kind: "dropdown", Script: "click header; assert class 'expanded' toggles on panel"},
}

// ProbeCatalog returns the default interactive-probe set. A copy is
// returned so callers cannot mutate the shared catalog.
func ProbeCatalog() []InteractiveProbe {
	out := make([]InteractiveProbe, len(defaultProbeCatalog))
	copy(out, defaultProbeCatalog)
	return out
}
