package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/ansel1/xunitgen/output/format"
	"github.com/ansel1/xunitgen/results"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// ResultsEventMsg wraps results events for bubbletea
type ResultsEventMsg results.Event

// EOFMsg signals that the collector has closed its event channel
type EOFMsg struct{}

// Model renders live progress of a run.
//
// It consumes results.Event from the results.Collector and reads finished
// tests back from the collector. Only the most recent tests are kept on
// screen; the full list goes into the summary printed after exit.
type Model struct {
	collector *results.Collector
	formatter *format.SummaryFormatter

	UserAgents string
	Fixture    string
	Recent     []string // Rendered lines of the latest finished tests
	Errors     []string // Reporter errors

	// Summary counters
	Passed   int
	Failed   int
	Unstable int

	TerminalWidth  int
	TerminalHeight int

	passStyle    lipgloss.Style
	failStyle    lipgloss.Style
	unstStyle    lipgloss.Style
	fixtureStyle lipgloss.Style

	ReplayMode bool
	ReplayRate float64

	Finished         bool
	StartTime        time.Time
	TotalElapsedTime float64
	spinner          spinner.Model
}

// NewModel creates a new TUI model
func NewModel(replayMode bool, replayRate float64, collector *results.Collector) *Model {
	s := spinner.New()
	s.Spinner = spinner.Jump

	return &Model{
		collector:      collector,
		formatter:      format.NewSummaryFormatter(80),
		Recent:         make([]string, 0),
		TerminalWidth:  80, // Updated by WindowSizeMsg
		TerminalHeight: 24,
		passStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("2")), // green
		failStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("1")), // red
		unstStyle:      lipgloss.NewStyle().Foreground(lipgloss.Color("3")), // yellow
		fixtureStyle:   lipgloss.NewStyle().Bold(true),
		ReplayMode:     replayMode,
		ReplayRate:     replayRate,
		StartTime:      time.Now(),
		spinner:        s,
	}
}

// Init initializes the model and returns the initial command
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ResultsEventMsg:
		return m, m.handleResultsEvent(results.Event(msg))

	case tea.WindowSizeMsg:
		m.TerminalWidth = msg.Width
		m.TerminalHeight = msg.Height

	case EOFMsg:
		m.finish()
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.finish()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) finish() {
	m.Finished = true
	m.TotalElapsedTime = time.Since(m.StartTime).Seconds()
}

// handleResultsEvent updates the view state. Raw output is printed above
// the live area.
func (m *Model) handleResultsEvent(evt results.Event) tea.Cmd {
	switch evt.Type {
	case results.EventRawOutput:
		return tea.Println(string(evt.RawLine))

	case results.EventTaskStarted:
		m.collector.WithRun(func(run *results.Run) {
			m.UserAgents = strings.Join(run.UserAgents, ", ")
		})

	case results.EventFixtureStarted:
		m.Fixture = evt.Fixture

	case results.EventTestDone:
		m.collector.WithRun(func(run *results.Run) {
			if evt.Index < 0 || evt.Index >= len(run.Tests) {
				return
			}
			test := run.Tests[evt.Index]
			switch test.Status {
			case results.StatusPassed:
				m.Passed++
			case results.StatusFailed:
				m.Failed++
			}
			if test.Unstable {
				m.Unstable++
			}
			m.addRecent(m.formatter.TestLine(test))
		})

	case results.EventReportError:
		m.Errors = append(m.Errors, evt.Err.Error())
	}
	return nil
}

// maxRecent bounds Recent; no terminal shows more lines than that.
const maxRecent = 200

func (m *Model) addRecent(line string) {
	if len(m.Recent) >= maxRecent {
		n := copy(m.Recent, m.Recent[len(m.Recent)-maxRecent+1:])
		m.Recent = m.Recent[:n]
	}
	m.Recent = append(m.Recent, line)
}

// recentLimit is how many finished tests fit under the fixed lines.
func (m *Model) recentLimit() int {
	fixed := 4 + len(m.Errors) // agents, fixture, separator, status
	if n := m.TerminalHeight - fixed; n > 0 {
		return n
	}
	return 0
}

// View renders the TUI
func (m *Model) View() string {
	var b strings.Builder

	if m.UserAgents != "" {
		b.WriteString("Running tests in: " + m.UserAgents + "\n")
	}
	if m.Fixture != "" {
		b.WriteString(m.fixtureStyle.Render(m.Fixture) + "\n")
	}

	recent := m.Recent
	if limit := m.recentLimit(); len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	for _, line := range recent {
		b.WriteString(truncateLine(format.IndentLevel1+line, m.TerminalWidth) + "\n")
	}

	for _, e := range m.Errors {
		b.WriteString(m.failStyle.Render("Error: "+e) + "\n")
	}

	b.WriteString(strings.Repeat("-", m.TerminalWidth) + "\n")
	m.renderStatusLine(&b)

	return b.String()
}

func (m *Model) renderStatusLine(b *strings.Builder) {
	elapsed := m.TotalElapsedTime
	if !m.Finished {
		elapsed = time.Since(m.StartTime).Seconds()
		if m.ReplayMode && m.ReplayRate > 0 {
			// show the original run's time, not the wall time of the replay
			elapsed /= m.ReplayRate
		}
	}

	prefix := m.spinner.View()
	if m.Finished {
		prefix = "DONE"
	}

	passed := fmt.Sprintf("✓ %d", m.Passed)
	if m.Passed > 0 {
		passed = m.passStyle.Render(passed)
	}
	failed := fmt.Sprintf("✗ %d", m.Failed)
	if m.Failed > 0 {
		failed = m.failStyle.Render(failed)
	}
	unstable := fmt.Sprintf("~ %d", m.Unstable)
	if m.Unstable > 0 {
		unstable = m.unstStyle.Render(unstable)
	}

	fmt.Fprintf(b, "%s %s  %s  %s  %s", prefix, passed, failed, unstable, formatElapsedTime(elapsed))
}

// HasFailures returns true if any tests failed
func (m *Model) HasFailures() bool {
	return m.Failed > 0
}

// formatElapsedTime formats elapsed time as X.Xs below a minute, X.Xm above.
func formatElapsedTime(seconds float64) string {
	if seconds < 0.05 {
		return "0.0s"
	}
	if seconds >= 60 {
		return fmt.Sprintf("%.1fm", seconds/60)
	}
	return fmt.Sprintf("%.1fs", seconds)
}

// truncateLine cuts a line to width display columns, keeping ANSI styling intact.
func truncateLine(line string, width int) string {
	if width <= 0 {
		return ""
	}
	return ensureReset(ansi.Truncate(line, width, ""))
}
