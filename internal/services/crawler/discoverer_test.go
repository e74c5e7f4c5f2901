package crawler

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/models"
)

// fakeScraper serves canned HTML per URL and fails for URLs not in the map
type fakeScraper struct {
	pages map[string]string
	calls []string
}

func (f *fakeScraper) Scrape(ctx context.Context, url string) (*models.ScrapeResult, error) {
	f.calls = append(f.calls, url)
	html, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("navigation failed for %s", url)
	}
	return &models.ScrapeResult{URL: url, HTML: html}, nil
}

func page(links ...string) string {
	body := ""
	for _, l := range links {
		body += fmt.Sprintf(`<a href=%q>link</a>`, l)
	}
	return "<html><body>" + body + "</body></html>"
}

func newTestDiscoverer(scraper *fakeScraper) *Discoverer {
	return NewDiscoverer(scraper, &common.CrawlerConfig{MaxPages: 20}, common.GetLogger())
}

func TestDiscover_FollowsSameHostLinksBreadthFirst(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]string{
		"https://example.com/":      page("/about", "/blog", "https://other.org/skip"),
		"https://example.com/about": page("/team"),
		"https://example.com/blog":  page("/about"),
		"https://example.com/team":  page(),
	}}

	d := newTestDiscoverer(scraper)
	pages, err := d.Discover(context.Background(), "https://example.com", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/",
		"https://example.com/about",
		"https://example.com/blog",
		"https://example.com/team",
	}, pages)
}

func TestDiscover_BaseURLAlwaysFirst(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]string{
		"https://example.com/deep":  page("/", "/other"),
		"https://example.com/":      page(),
		"https://example.com/other": page(),
	}}

	d := newTestDiscoverer(scraper)
	pages, err := d.Discover(context.Background(), "https://example.com/deep", 10)
	require.NoError(t, err)
	require.NotEmpty(t, pages)
	assert.Equal(t, "https://example.com/deep", pages[0])
}

func TestDiscover_RespectsMaxPages(t *testing.T) {
	pages := map[string]string{}
	var links []string
	for i := 0; i < 30; i++ {
		links = append(links, fmt.Sprintf("/page-%d", i))
	}
	pages["https://example.com/"] = page(links...)
	for i := 0; i < 30; i++ {
		pages[fmt.Sprintf("https://example.com/page-%d", i)] = page()
	}

	d := newTestDiscoverer(&fakeScraper{pages: pages})
	found, err := d.Discover(context.Background(), "https://example.com", 5)
	require.NoError(t, err)
	assert.Len(t, found, 5)
}

func TestDiscover_StopsRenderingAtPageCap(t *testing.T) {
	pages := map[string]string{
		"https://example.com/": page("/a", "/b", "/c", "/d"),
	}
	for _, p := range []string{"a", "b", "c", "d"} {
		pages["https://example.com/"+p] = page()
	}

	scraper := &fakeScraper{pages: pages}
	d := newTestDiscoverer(scraper)
	found, err := d.Discover(context.Background(), "https://example.com", 3)
	require.NoError(t, err)

	assert.Len(t, found, 3)
	assert.Equal(t, []string{"https://example.com/"}, scraper.calls,
		"no further page loads once the cap is reached")
}

func TestDiscover_DefaultsMaxPagesFromConfig(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]string{
		"https://example.com/":  page("/a", "/b"),
		"https://example.com/a": page(),
		"https://example.com/b": page(),
	}}

	d := NewDiscoverer(scraper, &common.CrawlerConfig{MaxPages: 2}, common.GetLogger())
	found, err := d.Discover(context.Background(), "https://example.com", 0)
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestDiscover_BaseRenderFailureFailsDiscovery(t *testing.T) {
	d := newTestDiscoverer(&fakeScraper{pages: map[string]string{}})

	_, err := d.Discover(context.Background(), "https://example.com", 10)
	assert.Error(t, err)
}

func TestDiscover_SkipsUnrenderablePages(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]string{
		"https://example.com/":     page("/dead", "/live"),
		"https://example.com/live": page(),
		// /dead missing: render fails, page still listed but its links are lost
	}}

	d := newTestDiscoverer(scraper)
	pages, err := d.Discover(context.Background(), "https://example.com", 10)
	require.NoError(t, err)
	assert.Contains(t, pages, "https://example.com/live")
	assert.Contains(t, pages, "https://example.com/dead")
}

func TestDiscover_DeduplicatesLinks(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]string{
		"https://example.com/":      page("/about", "/about#team", "/about"),
		"https://example.com/about": page("/"),
	}}

	d := newTestDiscoverer(scraper)
	pages, err := d.Discover(context.Background(), "https://example.com", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/", "https://example.com/about"}, pages)
}

func TestDiscover_IgnoresNonPageLinks(t *testing.T) {
	scraper := &fakeScraper{pages: map[string]string{
		"https://example.com/": page("mailto:hi@example.com", "javascript:void(0)", "#section", "tel:123"),
	}}

	d := newTestDiscoverer(scraper)
	pages, err := d.Discover(context.Background(), "https://example.com", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/"}, pages)
}

func TestDiscover_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDiscoverer(&fakeScraper{pages: map[string]string{}})
	_, err := d.Discover(ctx, "https://example.com", 10)
	assert.Error(t, err)
}
