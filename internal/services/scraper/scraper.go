// Package scraper captures fully rendered pages with a headless browser:
// DOM after JavaScript execution, computed stylesheet text, a full-page
// screenshot, and page metadata.
package scraper

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/imitor/internal/common"
	"github.com/ternarybob/imitor/internal/models"
)

// collectStylesJS gathers the text of every same-origin stylesheet plus
// inline style blocks. Cross-origin sheets throw on cssRules access and
// are skipped.
const collectStylesJS = `(() => {
	const chunks = [];
	for (const sheet of document.styleSheets) {
		try {
			for (const rule of sheet.cssRules) {
				chunks.push(rule.cssText);
			}
		} catch (e) {
			// cross-origin stylesheet
		}
	}
	return chunks.join('\n');
})()`

const countAssetsJS = `document.querySelectorAll('img, script[src], link[rel="stylesheet"], video, audio, source').length`

const metaDescriptionJS = `(() => {
	const el = document.querySelector('meta[name="description"]');
	return el ? el.content : '';
})()`

// Service scrapes pages through a shared browser pool.
// Implements interfaces.PageScraper.
type Service struct {
	pool   *BrowserPool
	config *common.ScraperConfig
	logger arbor.ILogger
}

// NewService creates a scraper backed by the given pool
func NewService(pool *BrowserPool, config *common.ScraperConfig, logger arbor.ILogger) *Service {
	return &Service{
		pool:   pool,
		config: config,
		logger: logger,
	}
}

// Scrape navigates to the URL, waits for JavaScript to settle, and captures
// HTML, CSS, a full-page screenshot, and metadata.
func (s *Service) Scrape(ctx context.Context, url string) (*models.ScrapeResult, error) {
	browserCtx, err := s.pool.Get()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser: %w", err)
	}

	// Per-page tab so parallel scrapes don't share navigation state.
	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	defer tabCancel()

	timeout := s.config.RequestTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	runCtx, runCancel := context.WithTimeout(tabCtx, timeout)
	defer runCancel()

	// Honor caller cancellation alongside the scrape timeout.
	stop := context.AfterFunc(ctx, runCancel)
	defer stop()

	startTime := time.Now()

	var (
		html        string
		css         string
		title       string
		description string
		assetCount  int
		screenshot  []byte
	)

	tasks := chromedp.Tasks{
		emulation.SetDeviceMetricsOverride(int64(s.config.ViewportWidth), int64(s.config.ViewportHeight), 1, false),
		chromedp.Navigate(url),
		chromedp.Sleep(s.config.JavaScriptWaitTime),
		chromedp.Title(&title),
		chromedp.OuterHTML("html", &html),
		chromedp.Evaluate(collectStylesJS, &css),
		chromedp.Evaluate(metaDescriptionJS, &description),
		chromedp.Evaluate(countAssetsJS, &assetCount),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			screenshot, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithCaptureBeyondViewport(true).
				Do(ctx)
			return err
		}),
	}

	if err := chromedp.Run(runCtx, tasks); err != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", url, err)
	}

	loadTime := time.Since(startTime).Seconds()

	s.logger.Debug().
		Str("url", url).
		Str("title", title).
		Int("html_bytes", len(html)).
		Int("asset_count", assetCount).
		Msg("Page scraped")

	return &models.ScrapeResult{
		URL:        url,
		HTML:       html,
		CSS:        css,
		Screenshot: base64.StdEncoding.EncodeToString(screenshot),
		Metadata: models.ScrapeMetadata{
			Title:          title,
			Description:    description,
			ViewportWidth:  s.config.ViewportWidth,
			ViewportHeight: s.config.ViewportHeight,
			LoadTime:       loadTime,
			AssetCount:     assetCount,
		},
	}, nil
}
