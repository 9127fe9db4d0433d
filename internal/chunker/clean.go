package chunker

import (
	"strings"
)

// CleanConfig lists header/footer lines to strip from extracted policy
// text. Keep the lists small and general; document-set specific patterns
// can be added through configuration later.
type CleanConfig struct {
	HeaderFooterExact    []string
	HeaderFooterPrefixes []string
}

func DefaultCleanConfig() CleanConfig {
	return CleanConfig{
		HeaderFooterExact: []string{
			"Insurance Product Information Document",
			"Policy Wording",
		},
		HeaderFooterPrefixes: []string{
			"Page ",
			"Section ",
		},
	}
}

// CleanText strips page numbers, repeated headers/footers and hyphenated
// line breaks from text extracted out of a policy PDF, and collapses runs
// of blank lines. The output is what gets chunked and embedded.
func CleanText(text string, cfg CleanConfig) string {
	// Re-join words split across lines: "wind-\nscreen" -> "windscreen".
	text = strings.ReplaceAll(text, "-\n", "")

	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	blankRun := 0
	for _, line := range lines {
		if isHeaderOrFooter(line, cfg) {
			continue
		}
		if strings.TrimSpace(line) == "" {
			blankRun++
			if blankRun > 1 {
				continue
			}
		} else {
			blankRun = 0
		}
		kept = append(kept, line)
	}

	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isHeaderOrFooter(line string, cfg CleanConfig) bool {
	s := strings.TrimSpace(line)
	if s == "" {
		return false
	}

	// Bare page numbers like "1", "12", "103".
	if len(s) <= 3 && isAllDigits(s) {
		return true
	}

	for _, exact := range cfg.HeaderFooterExact {
		if s == exact {
			return true
		}
	}
	for _, prefix := range cfg.HeaderFooterPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
