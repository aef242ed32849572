package reporter

import (
	"errors"
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// ErrorFormatter turns an error into a human-readable, possibly multi-line,
// summary starting with prefix.
type ErrorFormatter interface {
	FormatError(err error, prefix string) string
}

// ErrorFormatterFunc adapts a function to ErrorFormatter.
type ErrorFormatterFunc func(err error, prefix string) string

func (f ErrorFormatterFunc) FormatError(err error, prefix string) string {
	return f(err, prefix)
}

// DefaultErrorFormatter prints the error message, and the stack for a
// *TestError. Continuation lines are aligned under the first character
// after the prefix.
type DefaultErrorFormatter struct{}

func (DefaultErrorFormatter) FormatError(err error, prefix string) string {
	if err == nil {
		return prefix
	}
	msg := err.Error()
	var te *TestError
	if errors.As(err, &te) {
		msg = te.detail()
	}

	pad := strings.Repeat(" ", ansi.StringWidth(prefix))
	lines := strings.Split(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
	for i := 1; i < len(lines); i++ {
		if lines[i] != "" {
			lines[i] = pad + lines[i]
		}
	}
	return prefix + strings.Join(lines, "\n")
}
