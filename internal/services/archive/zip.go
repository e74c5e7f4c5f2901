package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/ternarybob/imitor/internal/models"
)

// BuildSiteArchive packages a full-site result into a zip: one HTML file per
// page at its relative path, plus a sitemap.txt listing the source URLs.
func BuildSiteArchive(result *models.FullSiteResult) ([]byte, error) {
	if result == nil || len(result.Pages) == 0 {
		return nil, fmt.Errorf("no pages to archive")
	}

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, page := range result.Pages {
		path := page.Path
		if path == "" {
			path = "index.html"
		}

		f, err := w.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to add %s to archive: %w", path, err)
		}
		if _, err := f.Write([]byte(page.HTML)); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	if len(result.Sitemap) > 0 {
		f, err := w.Create("sitemap.txt")
		if err != nil {
			return nil, fmt.Errorf("failed to add sitemap to archive: %w", err)
		}
		if _, err := f.Write([]byte(strings.Join(result.Sitemap, "\n") + "\n")); err != nil {
			return nil, fmt.Errorf("failed to write sitemap: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return buf.Bytes(), nil
}
