package interfaces

import (
	"context"

	"github.com/ternarybob/imitor/internal/models"
)

// PageDiscoverer finds the set of same-site page URLs reachable from a base URL.
// The returned slice always includes the base URL itself and never exceeds maxPages.
type PageDiscoverer interface {
	Discover(ctx context.Context, baseURL string, maxPages int) ([]string, error)
}

// PageScraper captures a fully rendered page: DOM, computed styles,
// screenshot, and metadata.
type PageScraper interface {
	Scrape(ctx context.Context, url string) (*models.ScrapeResult, error)
}

// EmitFunc receives incremental output fragments during generation.
// Implementations must tolerate nil emit.
type EmitFunc func(fragment string)

// CloneGenerator produces a standalone clone of a scraped page using the
// generative model identified by the given alias.
type CloneGenerator interface {
	Generate(ctx context.Context, scrape *models.ScrapeResult, model string, emit EmitFunc) (*models.CloneResult, error)
}

// AssetEmbedder downloads the external resources a page references and
// inlines them so the document renders without network access. Returns the
// rewritten HTML and the number of assets embedded.
type AssetEmbedder interface {
	Embed(ctx context.Context, html, baseURL string) (string, int, error)
}
