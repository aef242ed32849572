package engine

import (
	"bufio"
	"io"

	"github.com/ansel1/xunitgen/parser"
)

// EventType identifies the type of event emitted by the engine
type EventType string

const (
	EventRawLine   EventType = "raw"       // Non-event line from input
	EventLifecycle EventType = "lifecycle" // Parsed lifecycle event
	EventError     EventType = "error"     // Input could not be read
	EventComplete  EventType = "complete"  // Input stream finished
)

// Event represents a single event emitted by the engine
type Event struct {
	Type      EventType
	RawLine   []byte                // Populated for EventRawLine
	Lifecycle parser.LifecycleEvent // Populated for EventLifecycle
	Error     error                 // Populated for EventError
}

// Engine splits raw input into lifecycle events and raw lines.
// It keeps no state about the run.
type Engine struct {
	rawWriter  io.Writer
	jsonWriter io.Writer
	bufSize    int
}

// Option configures the engine
type Option func(*Engine)

// WithRawOutput tees every input line to w
func WithRawOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.rawWriter = w
	}
}

// WithJSONOutput tees lines that parsed as lifecycle events to w
func WithJSONOutput(w io.Writer) Option {
	return func(e *Engine) {
		e.jsonWriter = w
	}
}

// WithMaxLineSize sets the longest accepted input line. Longer lines stop
// the stream with an EventError wrapping bufio.ErrTooLong. Non-positive
// sizes keep the 1MiB default.
func WithMaxLineSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.bufSize = n
		}
	}
}

// NewEngine creates a new event processing engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{bufSize: 1024 * 1024}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stream reads from input, parses lines, and emits events via channel.
// The last event is always EventComplete, after which the channel is closed.
func (e *Engine) Stream(input io.Reader) <-chan Event {
	events := make(chan Event, 100)

	go func() {
		defer close(events)

		scanner := bufio.NewScanner(input)
		// the initial capacity also counts as a limit, keep it under bufSize
		scanner.Buffer(make([]byte, 0, min(64*1024, e.bufSize)), e.bufSize)
		for scanner.Scan() {
			line := scanner.Bytes()

			if e.rawWriter != nil {
				e.rawWriter.Write(line)
				e.rawWriter.Write([]byte("\n"))
			}

			evt, err := parser.ParseEvent(line)
			if err != nil {
				// scanner reuses its buffer
				lineCopy := make([]byte, len(line))
				copy(lineCopy, line)
				events <- Event{
					Type:    EventRawLine,
					RawLine: lineCopy,
				}
				continue
			}

			if e.jsonWriter != nil {
				e.jsonWriter.Write(line)
				e.jsonWriter.Write([]byte("\n"))
			}

			events <- Event{
				Type:      EventLifecycle,
				Lifecycle: evt,
			}
		}

		if err := scanner.Err(); err != nil {
			events <- Event{
				Type:  EventError,
				Error: err,
			}
		}

		events <- Event{
			Type: EventComplete,
		}
	}()

	return events
}
