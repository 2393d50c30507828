package htmlrewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// videoPlatform describes one recognized embed host.
type videoPlatform struct {
	name          string
	hostFragment  string
	privacyHost   string // swapped in when PrivacyEnhancedEmbeds is set
	thumbnailFunc func(src string) string
}

var videoPlatforms = []videoPlatform{
	{name: "youtube", hostFragment: "youtube.com/embed", privacyHost: "youtube-nocookie.com", thumbnailFunc: youtubeThumbnail},
	{name: "vimeo", hostFragment: "player.vimeo.com", thumbnailFunc: func(string) string { return "" }},
	{name: "wistia", hostFragment: "fast.wistia.net", thumbnailFunc: func(string) string { return "" }},
	{name: "loom", hostFragment: "loom.com/embed", thumbnailFunc: func(string) string { return "" }},
	{name: "bunny", hostFragment: "iframe.mediadelivery.net", thumbnailFunc: func(string) string { return "" }},
	{name: "mux", hostFragment: "stream.mux.com", thumbnailFunc: func(string) string { return "" }},
	{name: "dailymotion", hostFragment: "dailymotion.com/embed", thumbnailFunc: func(string) string { return "" }},
	{name: "streamable", hostFragment: "streamable.com/e/", thumbnailFunc: func(string) string { return "" }},
	{name: "twitch", hostFragment: "player.twitch.tv", thumbnailFunc: func(string) string { return "" }},
}

var youtubeIDRE = regexp.MustCompile(`embed/([a-zA-Z0-9_-]+)`)

func youtubeThumbnail(src string) string {
	m := youtubeIDRE.FindStringSubmatch(src)
	if len(m) < 2 {
		return ""
	}
	return fmt.Sprintf("https://i.ytimg.com/vi/%s/hqdefault.jpg", m[1])
}

func enabledSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, v := range list {
		set[strings.ToLower(v)] = true
	}
	return set
}

// stepVideoFacade replaces enabled-platform iframes/<video> with a
// click-to-load poster placeholder (spec §4.4 step d).
func stepVideoFacade(ctx *Context) error {
	enabled := enabledSet(ctx.Settings.FacadesEnabled)
	doc := ctx.Doc

	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		for _, p := range videoPlatforms {
			if !enabled[p.name] || !strings.Contains(src, p.hostFragment) {
				continue
			}
			finalSrc := src
			if ctx.Settings.PrivacyEnhancedEmbeds && p.privacyHost != "" {
				finalSrc = swapEmbedHost(src, p.privacyHost)
			}
			poster := p.thumbnailFunc(src)
			replaceWithFacade(s, finalSrc, poster)
			ctx.FacadesApplied++
			return
		}
	})

	if enabled["video"] {
		doc.Find("video[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			replaceWithFacade(s, src, "")
			ctx.FacadesApplied++
		})
	}
	return nil
}

func swapEmbedHost(src, newHost string) string {
	idx := strings.Index(src, "://")
	if idx < 0 {
		return src
	}
	rest := src[idx+3:]
	slash := strings.Index(rest, "/")
	if slash < 0 {
		return src
	}
	return src[:idx+3] + newHost + rest[slash:]
}

func replaceWithFacade(s *goquery.Selection, activateSrc, poster string) {
	html := fmt.Sprintf(
		`<div class="video-facade" data-src="%s"><img class="video-facade-poster" src="%s" loading="lazy" alt=""><button class="video-facade-play" aria-label="Play video" onclick="var d=this.parentElement;var f=document.createElement('iframe');f.src=d.dataset.src;f.allow='autoplay; encrypted-media';f.frameBorder='0';d.replaceChildren(f);">&#9658;</button></div>`,
		activateSrc, poster,
	)
	s.ReplaceWithHtml(html)
}
