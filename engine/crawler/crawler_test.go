package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"siteforge/engine/models"
)

// stubDriver renders by fetching the page over plain HTTP, simulating a
// headless browser with no JS execution — enough to exercise the crawler's
// orchestration without a real browser dependency.
type stubDriver struct{}

func (stubDriver) Render(ctx context.Context, pageURL string, idle, postNav time.Duration) (RenderResult, error) {
	resp, err := http.Get(pageURL)
	if err != nil {
		return RenderResult{}, err
	}
	defer resp.Body.Close()
	buf := make([]byte, 1<<16)
	n, _ := resp.Body.Read(buf)
	return RenderResult{HTML: string(buf[:n])}, nil
}

func (stubDriver) ReplayProbe(ctx context.Context, probe InteractiveProbe) (models.InteractiveElement, error) {
	return models.InteractiveElement{Selector: probe.Selector, Kind: probe.Kind, Behavior: probe.Script}, nil
}

func testServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?><urlset><url><loc>__BASE__/</loc></url><url><loc>__BASE__/about</loc></url></urlset>`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Home</title></head><body><a href="/about">About</a><img src="/logo.png"></body></html>`))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>About</title></head><body>About us</body></html>`))
	})
	mux.HandleFunc("/logo.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fake-png-bytes"))
	})
	return httptest.NewServer(mux)
}

func TestCrawlSitemapSelection(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	// rewrite sitemap body to point at this server's actual base.
	srv.Config.Handler = rewriteSitemapHandler(srv.Config.Handler, srv.URL)

	u, _ := url.Parse(srv.URL)
	c := New(FetchPolicy{Timeout: 5 * time.Second, AllowedDomains: []string{u.Hostname()}}, stubDriver{}, nil)

	dir := t.TempDir()
	inv, err := c.Crawl(context.Background(), Options{
		OriginURL:          srv.URL,
		MaxPages:           5,
		MaxConcurrentPages: 2,
		Selection:          SelectionSitemap,
		WorkDir:            dir,
	})
	require.NoError(t, err)
	require.Len(t, inv.Pages, 2)
	require.NotEmpty(t, inv.Assets)
}

func TestCrawlURLListSelection(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	c := New(FetchPolicy{Timeout: 5 * time.Second}, stubDriver{}, nil)
	dir := t.TempDir()
	inv, err := c.Crawl(context.Background(), Options{
		OriginURL:          srv.URL,
		MaxPages:           5,
		MaxConcurrentPages: 2,
		Selection:          SelectionURLList,
		CustomURLs:         []string{srv.URL + "/", srv.URL + "/about"},
		WorkDir:            dir,
	})
	require.NoError(t, err)
	require.Len(t, inv.Pages, 2)
}

func TestCrawlExcludeGlobs(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	c := New(FetchPolicy{Timeout: 5 * time.Second}, stubDriver{}, nil)
	dir := t.TempDir()
	inv, err := c.Crawl(context.Background(), Options{
		OriginURL:          srv.URL,
		MaxPages:           5,
		MaxConcurrentPages: 2,
		Selection:          SelectionURLList,
		CustomURLs:         []string{srv.URL + "/", srv.URL + "/about"},
		ExcludeGlobs:       []string{"/about"},
		WorkDir:            dir,
	})
	require.NoError(t, err)
	require.Len(t, inv.Pages, 1)
}

func TestCrawlMaxPagesCap(t *testing.T) {
	srv := testServer()
	defer srv.Close()

	c := New(FetchPolicy{Timeout: 5 * time.Second}, stubDriver{}, nil)
	dir := t.TempDir()
	inv, err := c.Crawl(context.Background(), Options{
		OriginURL:          srv.URL,
		MaxPages:           1,
		MaxConcurrentPages: 2,
		Selection:          SelectionURLList,
		CustomURLs:         []string{srv.URL + "/", srv.URL + "/about"},
		WorkDir:            dir,
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(inv.Pages), 1)
}

// rewriteSitemapHandler substitutes __BASE__ placeholders with the server's
// actual URL, which is only known after httptest.NewServer starts.
func rewriteSitemapHandler(base http.Handler, serverURL string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sitemap.xml" {
			w.Write([]byte(`<?xml version="1.0"?><urlset><url><loc>` + serverURL + `/</loc></url><url><loc>` + serverURL + `/about</loc></url></urlset>`))
			return
		}
		base.ServeHTTP(w, r)
	})
}
