package results

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ansel1/xunitgen/engine"
	"github.com/ansel1/xunitgen/parser"
	"github.com/ansel1/xunitgen/reporter"
)

// ErrIncompleteRun is returned when the input ends before task-done.
var ErrIncompleteRun = errors.New("event stream ended before task-done")

// Collector is the execution driver. It consumes engine events, keeps the
// run state, forwards every lifecycle event to its reporters in order and
// emits high-level events to subscribers.
//
// Reporters are only ever called from the goroutine that feeds the
// Collector. The run state is guarded so that views can read it
// concurrently through WithRun.
type Collector struct {
	reporters   []reporter.Reporter
	run         *Run
	reportErr   error
	inputErr    error
	mu          sync.RWMutex
	subscribers []chan Event
	subMu       sync.Mutex
	now         func() time.Time
}

// NewCollector creates a collector driving the given reporters.
func NewCollector(reporters ...reporter.Reporter) *Collector {
	return &Collector{
		reporters:   reporters,
		subscribers: make([]chan Event, 0),
		now:         time.Now,
	}
}

// Subscribe returns a channel that will receive result events.
// The caller should read from this channel until it is closed.
func (c *Collector) Subscribe() <-chan Event {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	ch := make(chan Event, 100)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

func (c *Collector) emit(evt Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, sub := range c.subscribers {
		sub <- evt
	}
}

func (c *Collector) closeSubscribers() {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for _, sub := range c.subscribers {
		close(sub)
	}
	c.subscribers = nil
}

// ProcessEvents consumes engine events until EventComplete or until the
// channel is closed, then closes all subscriber channels. It returns the
// first reporter error, the input error, or ErrIncompleteRun, in that order
// of precedence.
func (c *Collector) ProcessEvents(events <-chan engine.Event) error {
	defer c.closeSubscribers()

	for evt := range events {
		if evt.Type == engine.EventComplete {
			break
		}
		c.Push(evt)
	}
	c.Finish()

	return c.Err()
}

// Push handles a single engine event.
func (c *Collector) Push(evt engine.Event) {
	switch evt.Type {
	case engine.EventRawLine:
		c.emit(Event{Type: EventRawOutput, RawLine: evt.RawLine})

	case engine.EventLifecycle:
		for _, e := range c.handleLifecycle(evt.Lifecycle) {
			c.emit(e)
		}

	case engine.EventError:
		c.mu.Lock()
		if c.inputErr == nil {
			c.inputErr = fmt.Errorf("reading events: %w", evt.Error)
		}
		c.mu.Unlock()

	case engine.EventComplete:
		c.Finish()
	}
}

// handleLifecycle updates the run and calls the reporters.
// Returns events to emit after the lock is released.
func (c *Collector) handleLifecycle(evt parser.LifecycleEvent) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()

	eventsToEmit := make([]Event, 0, 2)
	ts := evt.Time
	if ts.IsZero() {
		ts = c.now()
	}

	switch evt.Action {
	case parser.ActionTaskStart:
		c.run = NewRun(ts, evt.UserAgents)
		eventsToEmit = append(eventsToEmit, Event{Type: EventTaskStarted})
		eventsToEmit = c.dispatch(eventsToEmit, func(r reporter.Reporter) error {
			return r.TaskStart(ts, evt.UserAgents)
		})

	case parser.ActionFixtureStart:
		run := c.currentRun(ts)
		run.CurrentFixture = evt.Fixture
		run.Fixtures = append(run.Fixtures, evt.Fixture)
		eventsToEmit = append(eventsToEmit, Event{Type: EventFixtureStarted, Fixture: evt.Fixture})
		eventsToEmit = c.dispatch(eventsToEmit, func(r reporter.Reporter) error {
			return r.FixtureStart(evt.Fixture)
		})

	case parser.ActionTestDone:
		run := c.currentRun(ts)
		result := &TestResult{
			Fixture:    run.CurrentFixture,
			Name:       evt.Test,
			Status:     StatusPassed,
			Unstable:   evt.Unstable,
			DurationMs: evt.DurationMs,
		}
		errs := make([]error, 0, len(evt.Errors))
		for _, info := range evt.Errors {
			te := &reporter.TestError{Type: info.Type, Message: info.Message, Stack: info.Stack}
			result.Errors = append(result.Errors, te)
			errs = append(errs, te)
		}
		if len(errs) > 0 {
			result.Status = StatusFailed
			run.Counts.Failed++
		} else {
			run.Counts.Passed++
		}
		if evt.Unstable {
			run.Counts.Unstable++
		}
		run.Tests = append(run.Tests, result)

		eventsToEmit = append(eventsToEmit, Event{
			Type:    EventTestDone,
			Fixture: result.Fixture,
			Test:    result.Name,
			Index:   len(run.Tests) - 1,
		})
		eventsToEmit = c.dispatch(eventsToEmit, func(r reporter.Reporter) error {
			return r.TestDone(evt.Test, errs, evt.DurationMs, evt.Unstable)
		})

	case parser.ActionTaskDone:
		run := c.currentRun(ts)
		run.EndTime = ts
		run.Passed = evt.Passed
		run.Total = evt.Total
		run.Status = RunDone
		eventsToEmit = c.dispatch(eventsToEmit, func(r reporter.Reporter) error {
			return r.TaskDone(evt.Passed, evt.Total, ts)
		})
		eventsToEmit = append(eventsToEmit, Event{Type: EventTaskDone})
	}

	return eventsToEmit
}

// currentRun returns the active run, creating one for streams that skip
// task-start. Reporters will still reject such streams.
func (c *Collector) currentRun(ts time.Time) *Run {
	if c.run == nil {
		c.run = NewRun(ts, nil)
	}
	return c.run
}

// dispatch calls fn on every reporter. After the first failure no reporter
// is called again.
func (c *Collector) dispatch(eventsToEmit []Event, fn func(reporter.Reporter) error) []Event {
	if c.reportErr != nil {
		return eventsToEmit
	}
	for _, r := range c.reporters {
		if err := fn(r); err != nil {
			c.reportErr = err
			return append(eventsToEmit, Event{Type: EventReportError, Err: err})
		}
	}
	return eventsToEmit
}

// Finish marks a run that never saw task-done as interrupted.
func (c *Collector) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.run != nil && c.run.Status == RunRunning {
		c.run.Status = RunInterrupted
		c.run.EndTime = c.now()
	}
}

// Err returns the error that prevented a complete report, if any.
func (c *Collector) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch {
	case c.reportErr != nil:
		return c.reportErr
	case c.inputErr != nil:
		return c.inputErr
	case c.run == nil || c.run.Status != RunDone:
		return ErrIncompleteRun
	}
	return nil
}

// WithRun executes fn with the run while holding RLock.
// The callback is not executed if no event has been received yet.
func (c *Collector) WithRun(fn func(*Run)) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.run != nil {
		fn(c.run)
	}
}

// Run returns the run. Only safe to inspect once the collector is done
// processing events.
func (c *Collector) Run() *Run {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.run
}
