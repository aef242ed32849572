package results

import (
	"time"

	"github.com/ansel1/xunitgen/reporter"
)

// Status is the outcome of a single test.
type Status string

const (
	StatusPassed Status = "pass"
	StatusFailed Status = "fail"
)

// RunStatus is the lifecycle position of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunDone        RunStatus = "done"
	RunInterrupted RunStatus = "interrupted" // input ended before task-done
)

// Run is one execution of the whole test task.
type Run struct {
	UserAgents     []string
	StartTime      time.Time
	EndTime        time.Time
	Status         RunStatus
	Fixtures       []string      // In the order they started
	CurrentFixture string        // Unescaped name of the active fixture
	Tests          []*TestResult // In the order they finished
	Counts         Counts        // Tallied from test-done events
	Passed         int           // As reported by task-done
	Total          int           // As reported by task-done
}

// Counts tallies finished tests.
type Counts struct {
	Passed   int
	Failed   int
	Unstable int
}

// TestResult is a finished test.
type TestResult struct {
	Fixture    string
	Name       string
	Status     Status
	Unstable   bool
	DurationMs float64
	Errors     []*reporter.TestError
}

// Duration returns the test duration.
func (t *TestResult) Duration() time.Duration {
	return time.Duration(t.DurationMs * float64(time.Millisecond))
}

// Elapsed returns the run duration so far, or the final one once the run
// has ended.
func (r *Run) Elapsed() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// NewRun creates a new run.
func NewRun(startTime time.Time, userAgents []string) *Run {
	return &Run{
		UserAgents: userAgents,
		StartTime:  startTime,
		Status:     RunRunning,
		Fixtures:   make([]string, 0),
		Tests:      make([]*TestResult, 0),
	}
}
