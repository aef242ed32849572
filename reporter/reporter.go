// Package reporter defines the lifecycle contract between the execution
// driver and report generators, plus the text helpers reporters share.
package reporter

import (
	"strings"
	"time"
)

// Reporter receives the lifecycle of one test task.
//
// The driver calls TaskStart once, then any interleaving of FixtureStart and
// TestDone, then TaskDone once. Calls are never concurrent.
type Reporter interface {
	TaskStart(startTime time.Time, userAgents []string) error
	FixtureStart(name string) error
	// TestDone reports a finished test. An empty errs means the test passed.
	TestDone(name string, errs []error, durationMs float64, unstable bool) error
	TaskDone(passed, total int, endTime time.Time) error
}

// TestError is an error raised inside a test under execution.
type TestError struct {
	Type    string
	Message string
	Stack   []string
}

func (e *TestError) Error() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}

// detail renders the message followed by the stack, one frame per line.
func (e *TestError) detail() string {
	if len(e.Stack) == 0 {
		return e.Error()
	}
	return e.Error() + "\n\n" + strings.Join(e.Stack, "\n")
}
