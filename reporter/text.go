package reporter

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape replaces the five markup-significant characters with entities.
// Strings without them are returned unchanged.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// Indent prefixes every non-blank line of s with n spaces.
func Indent(s string, n int) string {
	if n <= 0 {
		return s
	}
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

// Wrap reflows text so that, after indenting every line by indent spaces,
// no line is wider than width columns. Words longer than the available
// space are broken.
func Wrap(text string, indent, width int) string {
	limit := width - indent
	if limit < 1 {
		limit = 1
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return Indent(ansi.Wrap(text, limit, ""), indent)
}
