// Package archive assembles downloadable artifacts from completed clone
// jobs: offline link rewriting and zip packaging of full-site results.
package archive

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ternarybob/imitor/internal/common"
)

// RewriteLinks rewrites anchors that point at other cloned pages so the
// generated site navigates offline. pagePaths maps normalized page URLs to
// their relative file paths. Anchors to pages outside the clone are left
// untouched.
func RewriteLinks(html, pageURL string, pagePaths map[string]string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse generated page: %w", err)
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}

		resolved := common.ResolveLink(pageURL, href)
		if resolved == "" {
			return
		}
		normalized, err := common.NormalizeURL(resolved)
		if err != nil {
			return
		}

		if path, ok := pagePaths[normalized]; ok {
			sel.SetAttr("href", path)
		}
	})

	rewritten, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to serialize rewritten page: %w", err)
	}
	return rewritten, nil
}
