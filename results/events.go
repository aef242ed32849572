package results

// EventType identifies the type of event emitted by the Collector.
type EventType string

const (
	EventTaskStarted    EventType = "task_started"    // The run has started
	EventFixtureStarted EventType = "fixture_started" // A fixture became current
	EventTestDone       EventType = "test_done"       // A test finished
	EventTaskDone       EventType = "task_done"       // The run finished
	EventRawOutput      EventType = "raw_output"      // Non-event input line
	EventReportError    EventType = "report_error"    // A reporter rejected an event
)

// Event represents a high-level event emitted by the Collector.
type Event struct {
	Type    EventType
	Fixture string // For EventFixtureStarted, EventTestDone
	Test    string // For EventTestDone
	Index   int    // For EventTestDone, position in Run.Tests
	RawLine []byte // For EventRawOutput
	Err     error  // For EventReportError
}
