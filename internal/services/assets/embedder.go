// Package assets downloads the external resources a page references and
// inlines them so the document renders without network access.
package assets

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
)

const (
	fetchTimeout = 30 * time.Second
	maxAssetSize = 10 << 20 // per asset

	// Some CDNs refuse requests without a browser user agent.
	fetchUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
)

// cssURLPattern matches url(...) references inside stylesheets and
// inline style attributes.
var cssURLPattern = regexp.MustCompile(`url\(["']?([^"')\s]+)["']?\)`)

// Embedder inlines stylesheets, images, scripts and CSS-referenced assets
// (fonts, background images) as inline tags and data URIs. Safe for
// concurrent use; per-call state lives on embedJob. Implements
// interfaces.AssetEmbedder.
type Embedder struct {
	client *http.Client
	logger arbor.ILogger
}

// NewEmbedder creates an Embedder with its own HTTP client
func NewEmbedder(logger arbor.ILogger) *Embedder {
	return &Embedder{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger,
	}
}

// Embed parses the document, inlines every fetchable asset it references,
// and returns the rewritten HTML with the number of assets embedded. An
// asset that cannot be fetched keeps its original reference; only an
// unparseable document or base URL is an error.
func (e *Embedder) Embed(ctx context.Context, html, baseURL string) (string, int, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", 0, fmt.Errorf("invalid base url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", 0, fmt.Errorf("failed to parse html: %w", err)
	}

	job := &embedJob{
		embedder: e,
		ctx:      ctx,
		base:     base,
		cache:    make(map[string][]byte),
	}
	job.inlineStylesheets(doc)
	job.inlineImages(doc)
	job.inlineScripts(doc)
	job.rewriteStyleAttributes(doc)

	out, err := doc.Html()
	if err != nil {
		return "", 0, fmt.Errorf("failed to render html: %w", err)
	}
	return out, job.embedded, nil
}

// embedJob carries the per-document state of one Embed call
type embedJob struct {
	embedder *Embedder
	ctx      context.Context
	base     *url.URL
	cache    map[string][]byte
	embedded int
}

// inlineStylesheets replaces external stylesheet links with <style> tags,
// inlining any url() references the stylesheet itself carries.
func (j *embedJob) inlineStylesheets(doc *goquery.Document) {
	doc.Find(`link[rel="stylesheet"]`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		cssURL := resolveAgainst(j.base, href)
		if cssURL == "" {
			return
		}
		body, err := j.fetch(cssURL)
		if err != nil {
			j.embedder.logger.Warn().Err(err).Str("url", cssURL).Msg("Failed to fetch stylesheet, keeping link")
			return
		}
		cssBase, err := url.Parse(cssURL)
		if err != nil {
			cssBase = j.base
		}
		css := j.rewriteCSSURLs(string(body), cssBase)
		sel.ReplaceWithHtml("<style>" + css + "</style>")
		j.embedded++
	})
}

// inlineImages rewrites img sources to data URIs
func (j *embedJob) inlineImages(doc *goquery.Document) {
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		imgURL := resolveAgainst(j.base, src)
		if imgURL == "" {
			return
		}
		body, err := j.fetch(imgURL)
		if err != nil {
			j.embedder.logger.Warn().Err(err).Str("url", imgURL).Msg("Failed to fetch image, keeping source")
			return
		}
		sel.SetAttr("src", dataURI(imgURL, body))
		j.embedded++
	})
}

// inlineScripts replaces external script sources with the script body
func (j *embedJob) inlineScripts(doc *goquery.Document) {
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		scriptURL := resolveAgainst(j.base, src)
		if scriptURL == "" {
			return
		}
		body, err := j.fetch(scriptURL)
		if err != nil {
			j.embedder.logger.Warn().Err(err).Str("url", scriptURL).Msg("Failed to fetch script, keeping source")
			return
		}
		sel.RemoveAttr("src")
		sel.SetHtml(string(body))
		j.embedded++
	})
}

// rewriteStyleAttributes inlines url() references in inline style attributes
// (background images mostly).
func (j *embedJob) rewriteStyleAttributes(doc *goquery.Document) {
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		style, ok := sel.Attr("style")
		if !ok || !strings.Contains(style, "url(") {
			return
		}
		sel.SetAttr("style", j.rewriteCSSURLs(style, j.base))
	})
}

// rewriteCSSURLs replaces every fetchable url() reference in the CSS text
// with a data URI, resolving relative references against base.
func (j *embedJob) rewriteCSSURLs(css string, base *url.URL) string {
	return cssURLPattern.ReplaceAllStringFunc(css, func(match string) string {
		ref := cssURLPattern.FindStringSubmatch(match)[1]
		target := resolveAgainst(base, ref)
		if target == "" {
			return match
		}
		body, err := j.fetch(target)
		if err != nil {
			j.embedder.logger.Warn().Err(err).Str("url", target).Msg("Failed to fetch css asset, keeping reference")
			return match
		}
		j.embedded++
		return "url(" + dataURI(target, body) + ")"
	})
}

// fetch downloads an asset, caching it for the lifetime of the Embed call
// so repeated references cost one request.
func (j *embedJob) fetch(rawURL string) ([]byte, error) {
	if body, ok := j.cache[rawURL]; ok {
		return body, nil
	}

	req, err := http.NewRequestWithContext(j.ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := j.embedder.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxAssetSize {
		return nil, fmt.Errorf("asset exceeds %d bytes", maxAssetSize)
	}

	j.cache[rawURL] = body
	return body, nil
}

// resolveAgainst resolves ref against base and returns the absolute URL,
// or "" when the reference is already inline or not fetchable over HTTP.
func resolveAgainst(base *url.URL, ref string) string {
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return ""
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// dataURI encodes content as a base64 data URI, guessing the MIME type from
// the URL extension.
func dataURI(rawURL string, content []byte) string {
	ext := ""
	if u, err := url.Parse(rawURL); err == nil {
		ext = strings.ToLower(path.Ext(u.Path))
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		switch ext {
		case ".woff":
			mimeType = "font/woff"
		case ".woff2":
			mimeType = "font/woff2"
		case ".ttf":
			mimeType = "font/ttf"
		case ".otf":
			mimeType = "font/otf"
		default:
			mimeType = "application/octet-stream"
		}
	}

	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(content)
}
