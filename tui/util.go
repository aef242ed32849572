package tui

import "strings"

const resetSeq = "\033[0m"

// ensureReset closes any styling left open by a truncated line so that it
// does not bleed into the next one.
func ensureReset(s string) string {
	if !strings.Contains(s, "\033[") || strings.HasSuffix(s, resetSeq) {
		return s
	}
	return s + resetSeq
}
