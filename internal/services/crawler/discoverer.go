// Package crawler discovers the set of same-site pages reachable from a base
// URL via breadth-first traversal of rendered anchor links.
package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/interfaces"
	"github.com/ternarybob/imitor/internal/models"
)

// Discoverer finds same-host pages by rendering each page and following its
// anchors breadth-first. Implements interfaces.PageDiscoverer.
type Discoverer struct {
	scraper interfaces.PageScraper
	limiter *rate.Limiter
	config  *common.CrawlerConfig
	logger  arbor.ILogger
}

// NewDiscoverer creates a Discoverer that renders pages through the given scraper
func NewDiscoverer(scraper interfaces.PageScraper, config *common.CrawlerConfig, logger arbor.ILogger) *Discoverer {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(config.RequestDelay), 1)
	}
	return &Discoverer{
		scraper: scraper,
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

// Discover walks same-host links breadth-first from baseURL and returns up to
// maxPages unique page URLs. The base URL is always first in the result.
// Pages that fail to render are skipped; only a failure to render the base
// URL itself fails discovery.
func (d *Discoverer) Discover(ctx context.Context, baseURL string, maxPages int) ([]string, error) {
	base, err := common.NormalizeURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if maxPages <= 0 {
		maxPages = d.config.MaxPages
	}

	visited := map[string]bool{base: true}
	ordered := []string{base}
	queue := []string{base}

	// Stop rendering as soon as the cap is reached; queued pages can no
	// longer contribute anything and each render is a load on the target.
	for len(queue) > 0 && len(ordered) < maxPages {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		current := queue[0]
		queue = queue[1:]

		if err := d.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		scrape, err := d.scraper.Scrape(ctx, current)
		if err != nil {
			if current == base {
				return nil, fmt.Errorf("failed to render base page: %w", err)
			}
			d.logger.Warn().Err(err).Str("url", current).Msg("Skipping unrenderable page during discovery")
			continue
		}

		links, err := d.extractLinks(scrape)
		if err != nil {
			d.logger.Warn().Err(err).Str("url", current).Msg("Failed to parse page links")
			continue
		}

		for _, link := range links {
			if len(ordered) >= maxPages {
				break
			}
			if visited[link] {
				continue
			}
			visited[link] = true
			ordered = append(ordered, link)
			queue = append(queue, link)
		}
	}

	d.logger.Info().
		Str("base_url", base).
		Int("pages_found", len(ordered)).
		Msg("Site discovery complete")

	return ordered, nil
}

// extractLinks pulls followable same-host anchors out of rendered HTML
func (d *Discoverer) extractLinks(scrape *models.ScrapeResult) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(scrape.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}

		resolved := common.ResolveLink(scrape.URL, href)
		if resolved == "" || !common.SameHost(scrape.URL, resolved) {
			return
		}

		normalized, err := common.NormalizeURL(resolved)
		if err != nil || seen[normalized] {
			return
		}
		seen[normalized] = true
		links = append(links, normalized)
	})

	return links, nil
}
