package models

// ScrapeMetadata captures page-level facts observed during a browser scrape
type ScrapeMetadata struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	ViewportWidth  int     `json:"viewport_width"`
	ViewportHeight int     `json:"viewport_height"`
	LoadTime       float64 `json:"load_time"`
	AssetCount     int     `json:"asset_count"`
}

// ScrapeResult is the full rendered capture of a single page
type ScrapeResult struct {
	URL        string         `json:"url"`
	HTML       string         `json:"html"`
	CSS        string         `json:"css"`
	Screenshot string         `json:"screenshot,omitempty"` // base64-encoded PNG
	Metadata   ScrapeMetadata `json:"metadata"`
}

// CloneResult is the generated output for a single-page clone
type CloneResult struct {
	HTML           string  `json:"html"`
	CSS            string  `json:"css,omitempty"`
	Reasoning      string  `json:"reasoning,omitempty"`
	ModelUsed      string  `json:"model_used"`
	ProcessingTime float64 `json:"processing_time"`
}

// PageResult is one generated page within a full-site clone.
// Instances are immutable once placed in a FullSiteResult.
type PageResult struct {
	URL        string         `json:"url"`
	Path       string         `json:"path"`
	HTML       string         `json:"html"`
	CSS        string         `json:"css,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"`
	Metadata   ScrapeMetadata `json:"metadata"`
}

// FullSiteResult aggregates the generated pages of a full-site clone
type FullSiteResult struct {
	BaseURL     string       `json:"base_url"`
	Pages       []PageResult `json:"pages"`
	Sitemap     []string     `json:"sitemap"`
	TotalPages  int          `json:"total_pages"`
	TotalAssets int          `json:"total_assets"`
	CloneTime   float64      `json:"clone_time"`
	ModelUsed   string       `json:"model_used"`
}

// Clone returns a deep copy of the result
func (r *FullSiteResult) Clone() *FullSiteResult {
	if r == nil {
		return nil
	}
	copied := *r
	copied.Pages = make([]PageResult, len(r.Pages))
	copy(copied.Pages, r.Pages)
	copied.Sitemap = make([]string, len(r.Sitemap))
	copy(copied.Sitemap, r.Sitemap)
	return &copied
}
