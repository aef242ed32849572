package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ansel1/xunitgen/output/format"
	"github.com/ansel1/xunitgen/results"
)

// SlowThreshold is the duration from which a test is listed as slow.
const SlowThreshold = 10 * time.Second

// SimpleOutput writes plain progress lines for -notty mode and a summary
// once the collector closes its event channel.
type SimpleOutput struct {
	writer    io.Writer
	collector *results.Collector
	formatter *format.SummaryFormatter

	// Lightweight counters for exit code determination
	failed int
}

// NewSimpleOutput creates a simple output writer
func NewSimpleOutput(w io.Writer, collector *results.Collector) *SimpleOutput {
	return &SimpleOutput{
		writer:    w,
		collector: collector,
		formatter: format.NewSummaryFormatter(80),
	}
}

// ProcessEvents writes a line per event until events is closed, then the
// summary.
func (s *SimpleOutput) ProcessEvents(events <-chan results.Event) error {
	for evt := range events {
		if err := s.handleEvent(evt); err != nil {
			return err
		}
	}
	return s.writeSummary()
}

func (s *SimpleOutput) handleEvent(evt results.Event) error {
	var line string

	switch evt.Type {
	case results.EventRawOutput:
		line = string(evt.RawLine)

	case results.EventTaskStarted:
		s.collector.WithRun(func(run *results.Run) {
			line = "Running tests in: " + strings.Join(run.UserAgents, ", ")
		})

	case results.EventFixtureStarted:
		line = "\n" + evt.Fixture

	case results.EventTestDone:
		s.collector.WithRun(func(run *results.Run) {
			if evt.Index < 0 || evt.Index >= len(run.Tests) {
				return
			}
			test := run.Tests[evt.Index]
			if test.Status == results.StatusFailed {
				s.failed++
			}
			line = format.IndentLevel1 + s.formatter.TestLine(test)
		})

	case results.EventReportError:
		line = fmt.Sprintf("Error: %v", evt.Err)
	}

	if line == "" {
		return nil
	}
	_, err := fmt.Fprintln(s.writer, line)
	return err
}

func (s *SimpleOutput) writeSummary() error {
	var summary *format.Summary
	s.collector.WithRun(func(run *results.Run) {
		summary = format.ComputeSummary(run, SlowThreshold)
	})
	if summary == nil {
		return nil
	}

	if _, err := fmt.Fprintln(s.writer); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.writer, s.formatter.Format(summary))
	return err
}

// HasFailures returns true if any tests failed
func (s *SimpleOutput) HasFailures() bool {
	return s.failed > 0
}
