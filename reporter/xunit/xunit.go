// Package xunit builds an XUnit XML document from the lifecycle of a test
// task. The document is accumulated in memory and written in one go when
// the task completes.
package xunit

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ansel1/xunitgen/reporter"
)

const (
	// DefaultLineWidth is the column limit for error text inside <failure>.
	DefaultLineWidth = 100

	// DefaultSuiteName prefixes the user agent list in the testsuite name.
	DefaultSuiteName = "TestCafe Tests"

	timestampLayout = "Mon, 02 Jan 2006 15:04:05 GMT"
	errorIndent     = 6
)

// ErrOutOfOrder is returned when a lifecycle call arrives in a state that
// does not accept it.
var ErrOutOfOrder = errors.New("lifecycle call out of order")

type state int

const (
	stateCreated state = iota
	stateStarted
	stateDone
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateStarted:
		return "started"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Builder is a reporter.Reporter producing an XUnit document.
type Builder struct {
	out        *reporter.Stream
	errFmt     reporter.ErrorFormatter
	suiteName  string
	lineWidth  int
	state      state
	report     strings.Builder
	startTime  time.Time
	userAgents string
	fixture    string
}

var _ reporter.Reporter = (*Builder)(nil)

// Option configures a Builder
type Option func(*Builder)

// WithErrorFormatter replaces the formatter used for test errors
func WithErrorFormatter(f reporter.ErrorFormatter) Option {
	return func(b *Builder) {
		b.errFmt = f
	}
}

// WithSuiteName changes the testsuite name prefix
func WithSuiteName(name string) Option {
	return func(b *Builder) {
		b.suiteName = name
	}
}

// WithLineWidth changes the column limit for error text. Widths that
// leave no room after the indent are ignored.
func WithLineWidth(width int) Option {
	return func(b *Builder) {
		if width > errorIndent {
			b.lineWidth = width
		}
	}
}

// New creates a Builder that writes the finished document to w.
func New(w io.Writer, opts ...Option) *Builder {
	b := &Builder{
		out:       reporter.NewStream(w),
		errFmt:    reporter.DefaultErrorFormatter{},
		suiteName: DefaultSuiteName,
		lineWidth: DefaultLineWidth,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) expect(call string, want state) error {
	if b.state != want {
		return fmt.Errorf("%w: %s called in state %s", ErrOutOfOrder, call, b.state)
	}
	return nil
}

// TaskStart records the start time and the user agents the task runs in.
func (b *Builder) TaskStart(startTime time.Time, userAgents []string) error {
	if err := b.expect("TaskStart", stateCreated); err != nil {
		return err
	}
	b.startTime = startTime
	b.userAgents = strings.Join(userAgents, ", ")
	b.state = stateStarted
	return nil
}

// FixtureStart makes name the classname of subsequent test cases.
func (b *Builder) FixtureStart(name string) error {
	if err := b.expect("FixtureStart", stateStarted); err != nil {
		return err
	}
	b.fixture = reporter.Escape(name)
	return nil
}

// TestDone appends a <testcase> for the test. Tests with errors get a
// <failure> block listing every error in order.
func (b *Builder) TestDone(name string, errs []error, durationMs float64, unstable bool) error {
	if err := b.expect("TestDone", stateStarted); err != nil {
		return err
	}

	if unstable {
		name += " (unstable)"
	}

	openTag := fmt.Sprintf(`<testcase classname="%s" name="%s" time="%s"`,
		b.fixture, reporter.Escape(name), formatSeconds(durationMs/1000))
	b.report.WriteString(reporter.Indent(openTag, 2))

	if len(errs) == 0 {
		b.report.WriteString(" />\n")
		return nil
	}

	b.report.WriteString(" >\n")
	b.report.WriteString(reporter.Indent("<failure>\n", 4))
	b.report.WriteString(reporter.Indent("<![CDATA[", 4))

	for i, err := range errs {
		prefix := fmt.Sprintf("%d) ", i+1)
		text := prefix
		if err != nil {
			text = b.errFmt.FormatError(err, prefix)
		}
		text = reporter.Escape(text)

		b.report.WriteString("\n")
		b.report.WriteString(reporter.Wrap(text, errorIndent, b.lineWidth))
		b.report.WriteString("\n")
	}

	b.report.WriteString(reporter.Indent("]]>\n", 4))
	b.report.WriteString(reporter.Indent("</failure>\n", 4))
	b.report.WriteString(reporter.Indent("</testcase>\n", 2))
	return nil
}

// TaskDone writes the whole document. Failures and errors both count
// total-passed tests.
func (b *Builder) TaskDone(passed, total int, endTime time.Time) error {
	if err := b.expect("TaskDone", stateStarted); err != nil {
		return err
	}
	b.state = stateDone

	name := b.suiteName + ": " + reporter.Escape(b.userAgents)
	failures := total - passed
	elapsed := float64(endTime.UnixMilli()-b.startTime.UnixMilli()) / 1000

	return b.out.
		Write(`<?xml version="1.0" encoding="UTF-8" ?>`).
		Newline().
		Write(fmt.Sprintf(`<testsuite name="%s" tests="%d" failures="%d" errors="%d" time="%s" timestamp="%s" >`,
			name, total, failures, failures, formatSeconds(elapsed), endTime.UTC().Format(timestampLayout))).
		Newline().
		Write(b.report.String()).
		End("</testsuite>")
}

// formatSeconds renders v with the fewest digits that represent it exactly.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
