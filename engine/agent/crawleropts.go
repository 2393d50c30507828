package agent

import (
	"time"

	"siteforge/engine/crawler"
	"siteforge/engine/models"
)

// crawlerOptions flattens the effective settings tree down to the subset of
// build.* leaves crawler.Options needs, the same getter-with-default idiom
// pipeline/config.go uses to build its own per-component option structs.
func (c *Controller) crawlerOptions(run *models.AgentRun, originURL string, tree models.Settings) crawler.Options {
	m := settingsFlatten(c.Schema, tree)
	selection := crawler.SelectionMode(getString(m, "build.pageSelection", "sitemap"))
	if getString(m, "build.scope", "full") == "custom" {
		// build.scope wins over build.pageSelection: a custom scope crawls exactly build.customUrls.
		selection = crawler.SelectionURLList
	}
	return crawler.Options{
		OriginURL:          originURL,
		MaxPages:           getInt(m, "build.maxPages", 200),
		MaxConcurrentPages: getInt(m, "build.maxConcurrentPages", 6),
		PageLoadTimeout:    time.Duration(getInt(m, "build.pageLoadTimeoutMs", 15000)) * time.Millisecond,
		NetworkIdleTimeout: time.Duration(getInt(m, "build.networkIdleTimeoutMs", 3000)) * time.Millisecond,
		CrawlWaitMs:        time.Duration(getInt(m, "build.crawlWaitMs", 500)) * time.Millisecond,
		Selection:          selection,
		CustomURLs:         getStringList(m, "build.customUrls"),
		ExcludeGlobs:       getStringList(m, "build.excludeGlobs"),
		WorkDir:            run.WorkDir,
	}
}
