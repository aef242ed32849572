package parser

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNoAction is returned for JSON lines that carry no Action field.
var ErrNoAction = errors.New("missing Action")

// Lifecycle actions emitted by the test execution driver.
const (
	ActionTaskStart    = "task-start"
	ActionFixtureStart = "fixture-start"
	ActionTestDone     = "test-done"
	ActionTaskDone     = "task-done"
)

// ErrorInfo is a single test error as it appears on the wire.
type ErrorInfo struct {
	Type    string   `json:"Type,omitempty"`
	Message string   `json:"Message"`
	Stack   []string `json:"Stack,omitempty"`
}

// LifecycleEvent represents a single line of the event stream
type LifecycleEvent struct {
	Time       time.Time   `json:"Time"`
	Action     string      `json:"Action"`
	UserAgents []string    `json:"UserAgents,omitempty"` // task-start
	Fixture    string      `json:"Fixture,omitempty"`    // fixture-start
	Test       string      `json:"Test,omitempty"`       // test-done
	Errors     []ErrorInfo `json:"Errors,omitempty"`     // test-done
	DurationMs float64     `json:"DurationMs,omitempty"` // test-done
	Unstable   bool        `json:"Unstable,omitempty"`   // test-done
	Passed     int         `json:"Passed,omitempty"`     // task-done
	Total      int         `json:"Total,omitempty"`      // task-done
}

// ParseEvent parses a single line of JSON from the event stream.
// An object without an Action is not a lifecycle event.
func ParseEvent(line []byte) (LifecycleEvent, error) {
	var event LifecycleEvent
	if err := json.Unmarshal(line, &event); err != nil {
		return event, err
	}
	if event.Action == "" {
		return event, ErrNoAction
	}
	return event, nil
}
