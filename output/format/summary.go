package format

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ansel1/xunitgen/results"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// formatDuration formats a duration as HH:MM:SS.mmm.
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, milliseconds)
}

// Symbol constants for test results
const (
	SymbolPass     = "✓"
	SymbolFail     = "✗"
	SymbolUnstable = "~"
)

// Indentation constants
const (
	IndentLevel1 = "  "   // 2 spaces
	IndentLevel2 = "    " // 4 spaces
)

// maxFailureLines bounds how much of each error is shown in the summary.
// The full text is in the XUnit report.
const maxFailureLines = 10

// FixtureSummary aggregates the tests of one fixture.
type FixtureSummary struct {
	Name    string
	Passed  int
	Failed  int
	Elapsed time.Duration
}

// Summary represents computed summary statistics from a run.
type Summary struct {
	UserAgents    []string
	Status        results.RunStatus
	TotalTests    int
	PassedTests   int
	FailedTests   int
	UnstableTests int
	TotalTime     time.Duration
	Fixtures      []*FixtureSummary
	Failures      []*results.TestResult
	SlowTests     []*results.TestResult
	SlowThreshold time.Duration
}

// ComputeSummary calculates summary statistics from a Run.
//
// Test counts come from the finished tests rather than the totals reported
// by task-done, so an interrupted run still summarizes what it saw.
// Tests at or above slowThreshold are listed slowest first.
func ComputeSummary(run *results.Run, slowThreshold time.Duration) *Summary {
	summary := &Summary{
		UserAgents:    run.UserAgents,
		Status:        run.Status,
		TotalTime:     run.Elapsed(),
		SlowThreshold: slowThreshold,
	}

	byName := make(map[string]*FixtureSummary)
	for _, test := range run.Tests {
		summary.TotalTests++
		if test.Unstable {
			summary.UnstableTests++
		}

		fixture, exists := byName[test.Fixture]
		if !exists {
			fixture = &FixtureSummary{Name: test.Fixture}
			byName[test.Fixture] = fixture
			summary.Fixtures = append(summary.Fixtures, fixture)
		}
		fixture.Elapsed += test.Duration()

		switch test.Status {
		case results.StatusPassed:
			summary.PassedTests++
			fixture.Passed++
		case results.StatusFailed:
			summary.FailedTests++
			fixture.Failed++
			summary.Failures = append(summary.Failures, test)
		}

		if test.Duration() >= slowThreshold {
			summary.SlowTests = append(summary.SlowTests, test)
		}
	}

	sort.SliceStable(summary.SlowTests, func(i, j int) bool {
		return summary.SlowTests[i].DurationMs > summary.SlowTests[j].DurationMs
	})

	return summary
}

// SummaryFormatter formats a Summary for display.
type SummaryFormatter struct {
	width        int
	useColors    bool
	passStyle    lipgloss.Style
	failStyle    lipgloss.Style
	unstStyle    lipgloss.Style
	neutralStyle lipgloss.Style
}

// NewSummaryFormatter creates a new summary formatter.
//
// Colors are automatically enabled if stdout is a TTY. A width of zero or
// less means 80 columns.
func NewSummaryFormatter(width int) *SummaryFormatter {
	if width <= 0 {
		width = 80
	}
	useColors := isatty.IsTerminal(os.Stdout.Fd())

	return &SummaryFormatter{
		width:        width,
		useColors:    useColors,
		passStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")), // green
		failStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("1")), // red
		unstStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("3")), // yellow
		neutralStyle: lipgloss.NewStyle(),
	}
}

// SetColors overrides TTY detection.
func (sf *SummaryFormatter) SetColors(enabled bool) {
	sf.useColors = enabled
}

// Symbol returns the colored marker for a finished test.
func (sf *SummaryFormatter) Symbol(test *results.TestResult) string {
	symbol, style := SymbolPass, sf.passStyle
	if test.Status == results.StatusFailed {
		symbol, style = SymbolFail, sf.failStyle
	}
	if !sf.useColors {
		return symbol
	}
	return style.Render(symbol)
}

// TestLine renders a one-line progress entry for a finished test.
func (sf *SummaryFormatter) TestLine(test *results.TestResult) string {
	line := fmt.Sprintf("%s %s > %s (%s)", sf.Symbol(test), test.Fixture, test.Name, formatDuration(test.Duration()))
	if test.Unstable {
		marker := "(unstable)"
		if sf.useColors {
			marker = sf.unstStyle.Render(marker)
		}
		line += " " + marker
	}
	return line
}

// Format renders a complete summary as a formatted string.
func (sf *SummaryFormatter) Format(summary *Summary) string {
	var b strings.Builder

	if len(summary.Failures) > 0 {
		b.WriteString(sf.formatFailures(summary.Failures))
		b.WriteString("\n")
	}

	if len(summary.SlowTests) > 0 {
		b.WriteString(sf.formatSlowTests(summary.SlowTests, summary.SlowThreshold))
		b.WriteString("\n")
	}

	if len(summary.Fixtures) > 0 {
		b.WriteString(sf.formatFixtureSection(summary.Fixtures))
		b.WriteString("\n")
	}

	b.WriteString(sf.formatOverallResults(summary))
	b.WriteString("\n")

	return b.String()
}

// formatFailures lists every failed test with the head of each error.
func (sf *SummaryFormatter) formatFailures(failures []*results.TestResult) string {
	var b strings.Builder
	b.WriteString(renderSectionHeader("FAILURES"))

	for i, failure := range failures {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(failure.Fixture + "\n")
		b.WriteString(IndentLevel1 + failure.Name + "\n")

		for n, err := range failure.Errors {
			lines := strings.Split(fmt.Sprintf("%d) %s", n+1, err.Error()), "\n")
			lines = append(lines, err.Stack...)
			if len(lines) > maxFailureLines {
				lines = lines[:maxFailureLines]
			}
			for _, line := range lines {
				b.WriteString(IndentLevel2 + ensureReset(line) + "\n")
			}
		}
	}

	b.WriteString(sf.horizontalLine())
	return b.String()
}

// formatSlowTests formats the slow tests section.
func (sf *SummaryFormatter) formatSlowTests(slowTests []*results.TestResult, threshold time.Duration) string {
	var b strings.Builder
	b.WriteString(renderSectionHeader(fmt.Sprintf("SLOW TESTS (>%s)", threshold)))

	maxNameLen := 0
	for _, test := range slowTests {
		if len(test.Name) > maxNameLen {
			maxNameLen = len(test.Name)
		}
	}

	for _, test := range slowTests {
		fmt.Fprintf(&b, "%-*s  %s\n", maxNameLen, test.Name, formatDuration(test.Duration()))
		fmt.Fprintf(&b, "  %s\n", test.Fixture)
	}

	b.WriteString(sf.horizontalLine())
	return b.String()
}

// formatFixtureSection lists fixtures with aligned counts.
func (sf *SummaryFormatter) formatFixtureSection(fixtures []*FixtureSummary) string {
	var b strings.Builder
	b.WriteString(renderSectionHeader("FIXTURES"))

	maxNameLen, maxPassedLen, maxFailedLen := 0, 0, 0
	for _, f := range fixtures {
		maxNameLen = max(maxNameLen, len(f.Name))
		maxPassedLen = max(maxPassedLen, len(fmt.Sprint(f.Passed)))
		maxFailedLen = max(maxFailedLen, len(fmt.Sprint(f.Failed)))
	}

	for _, f := range fixtures {
		symbol, symbolStyle := SymbolPass, sf.passStyle
		if f.Failed > 0 {
			symbol, symbolStyle = SymbolFail, sf.failStyle
		}

		passedStr := fmt.Sprintf("%s %*d", SymbolPass, maxPassedLen, f.Passed)
		failedStr := fmt.Sprintf("%s %*d", SymbolFail, maxFailedLen, f.Failed)
		if sf.useColors {
			symbol = symbolStyle.Render(symbol)
			if f.Passed > 0 {
				passedStr = sf.passStyle.Render(passedStr)
			}
			if f.Failed > 0 {
				failedStr = sf.failStyle.Render(failedStr)
			}
		}

		fmt.Fprintf(&b, "%s %-*s  %s  %s  %s\n",
			symbol, maxNameLen, f.Name, passedStr, failedStr, formatDuration(f.Elapsed))
	}

	b.WriteString(sf.horizontalLine())
	return b.String()
}

// formatOverallResults formats the overall statistics section.
func (sf *SummaryFormatter) formatOverallResults(summary *Summary) string {
	var b strings.Builder
	b.WriteString(renderSectionHeader("OVERALL RESULTS"))

	passPercent, failPercent := 0.0, 0.0
	if summary.TotalTests > 0 {
		passPercent = float64(summary.PassedTests) / float64(summary.TotalTests) * 100
		failPercent = float64(summary.FailedTests) / float64(summary.TotalTests) * 100
	}

	passIcon, failIcon, unstIcon := SymbolPass, SymbolFail, SymbolUnstable
	if sf.useColors {
		passIcon = sf.passStyle.Render(SymbolPass)
		failIcon = sf.failStyle.Render(SymbolFail)
		unstIcon = sf.unstStyle.Render(SymbolUnstable)
	}

	if len(summary.UserAgents) > 0 {
		fmt.Fprintf(&b, "User agents:    %s\n", strings.Join(summary.UserAgents, ", "))
	}
	fmt.Fprintf(&b, "Total tests:    %d\n", summary.TotalTests)
	fmt.Fprintf(&b, "Passed:         %d %s (%.1f%%)\n", summary.PassedTests, passIcon, passPercent)
	fmt.Fprintf(&b, "Failed:         %d %s (%.1f%%)\n", summary.FailedTests, failIcon, failPercent)
	fmt.Fprintf(&b, "Unstable:       %d %s\n", summary.UnstableTests, unstIcon)
	fmt.Fprintf(&b, "Total time:     %s\n", formatDuration(summary.TotalTime))
	fmt.Fprintf(&b, "Fixtures:       %d\n", len(summary.Fixtures))
	if summary.Status == results.RunInterrupted {
		b.WriteString("Status:         interrupted before task-done, no report written\n")
	}

	b.WriteString(sf.horizontalLine())
	return b.String()
}

func (sf *SummaryFormatter) horizontalLine() string {
	return strings.Repeat("-", sf.width)
}

func renderSectionHeader(header string) string {
	return header + "\n" + strings.Repeat("-", len(header)) + "\n"
}

// ensureReset appends a terminal reset sequence if the string doesn't end with one.
func ensureReset(s string) string {
	reset := "\x1b[0m"
	if !strings.Contains(s, "\x1b[") || strings.HasSuffix(s, reset) {
		return s
	}
	return s + reset
}
