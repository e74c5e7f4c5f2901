package generator

import (
	"strings"
)

// CleanOutput normalizes raw model output into a servable HTML document:
// markdown code fences are stripped, surrounding commentary outside the
// document is dropped, and bare fragments are wrapped in a document shell.
func CleanOutput(raw string) string {
	out := strings.TrimSpace(raw)
	if out == "" {
		return ""
	}

	out = stripCodeFences(out)

	// Drop chatter before the document when the model prefixed one anyway.
	if idx := strings.Index(out, "<!DOCTYPE"); idx > 0 {
		out = out[idx:]
	} else if idx := strings.Index(out, "<!doctype"); idx > 0 {
		out = out[idx:]
	} else if idx := strings.Index(out, "<html"); idx > 0 && !strings.Contains(out[:idx], "<") {
		out = out[idx:]
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}

	lower := strings.ToLower(out)
	if !strings.HasPrefix(lower, "<!doctype") && !strings.HasPrefix(lower, "<html") {
		out = wrapFragment(out)
	}

	return out
}

// stripCodeFences removes a surrounding markdown code fence, with or without
// a language tag.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return s
	}

	// First line is the opening fence (possibly "```html").
	lines = lines[1:]
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) == "```" {
			lines = append(lines[:i], lines[i+1:]...)
			break
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// wrapFragment turns a bare markup fragment into a complete document
func wrapFragment(fragment string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n<meta charset=\"UTF-8\">\n")
	b.WriteString("<meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	b.WriteString("</head>\n<body>\n")
	b.WriteString(fragment)
	b.WriteString("\n</body>\n</html>")
	return b.String()
}
