package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/ternarybob/imitor/internal/models"
)

// Prompt size limits. Rendered DOMs routinely run to megabytes; the model only
// needs enough structure to reproduce the layout, the screenshot carries the
// visual truth.
const (
	maxStructureChars = 20000
	maxCSSChars       = 30000
)

const systemInstructions = `You are an expert front-end developer. Recreate the webpage shown in the screenshot as a single, self-contained HTML document.

Requirements:
- Produce one complete HTML file with all CSS inlined in a <style> block.
- Match the layout, colors, typography and spacing of the screenshot as closely as possible.
- Use placeholder images (via https://placehold.co) where original images cannot be reproduced.
- Do not include any external scripts or stylesheets.
- Output only the HTML document, with no commentary before or after it.`

// buildPrompt assembles the generation prompt: instructions, a markdown
// outline of the page structure, and a trimmed slice of the computed CSS.
func buildPrompt(scrape *models.ScrapeResult) (string, error) {
	var b strings.Builder

	b.WriteString(systemInstructions)
	b.WriteString("\n\nPage URL: ")
	b.WriteString(scrape.URL)

	if scrape.Metadata.Title != "" {
		b.WriteString("\nPage title: ")
		b.WriteString(scrape.Metadata.Title)
	}
	if scrape.Metadata.Description != "" {
		b.WriteString("\nPage description: ")
		b.WriteString(scrape.Metadata.Description)
	}

	structure, err := summarizeStructure(scrape.HTML)
	if err != nil {
		return "", err
	}
	if structure != "" {
		b.WriteString("\n\nPage content outline (markdown):\n")
		b.WriteString(truncate(structure, maxStructureChars))
	}

	if scrape.CSS != "" {
		b.WriteString("\n\nComputed page styles (excerpt):\n")
		b.WriteString(truncate(scrape.CSS, maxCSSChars))
	}

	return b.String(), nil
}

// summarizeStructure converts the rendered DOM to markdown, giving the model
// the page's text and hierarchy at a fraction of the HTML size.
func summarizeStructure(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert page structure: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}

// truncate cuts s to at most max bytes, backing up to a rune boundary so
// the model never sees a split multi-byte character.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
