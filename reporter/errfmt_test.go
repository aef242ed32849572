package reporter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultErrorFormatter_PlainError(t *testing.T) {
	got := DefaultErrorFormatter{}.FormatError(errors.New("boom"), "1) ")
	assert.Equal(t, "1) boom", got)
}

func TestDefaultErrorFormatter_NilError(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Equal(t, "1) ", DefaultErrorFormatter{}.FormatError(nil, "1) "))
	})
}

func TestDefaultErrorFormatter_TestError(t *testing.T) {
	err := &TestError{
		Type:    "AssertionError",
		Message: "expected 1 to equal 2",
		Stack:   []string{"at login (login.js:10:5)", "at run (runner.js:3:1)"},
	}

	got := DefaultErrorFormatter{}.FormatError(err, "12) ")
	assert.Equal(t, "12) AssertionError: expected 1 to equal 2\n"+
		"\n"+
		"    at login (login.js:10:5)\n"+
		"    at run (runner.js:3:1)", got)
}

func TestDefaultErrorFormatter_WrappedTestError(t *testing.T) {
	err := fmt.Errorf("step failed: %w", &TestError{Message: "boom", Stack: []string{"at x"}})

	got := DefaultErrorFormatter{}.FormatError(err, "1) ")
	assert.Equal(t, "1) boom\n\n   at x", got)
}

func TestErrorFormatterFunc(t *testing.T) {
	var f ErrorFormatter = ErrorFormatterFunc(func(err error, prefix string) string {
		return prefix + "<" + err.Error() + ">"
	})
	assert.Equal(t, "2) <x>", f.FormatError(errors.New("x"), "2) "))
}

func TestTestError_Error(t *testing.T) {
	assert.Equal(t, "boom", (&TestError{Message: "boom"}).Error())
	assert.Equal(t, "TypeError: boom", (&TestError{Type: "TypeError", Message: "boom"}).Error())
}
