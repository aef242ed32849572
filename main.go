package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/ansel1/xunitgen/engine"
	"github.com/ansel1/xunitgen/output"
	"github.com/ansel1/xunitgen/output/format"
	"github.com/ansel1/xunitgen/reporter/xunit"
	"github.com/ansel1/xunitgen/results"
	"github.com/ansel1/xunitgen/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

func main() {
	os.Exit(run())
}

// run wires the command and returns its exit code, so that deferred closes
// happen before the process exits.
func run() int {
	// Parse command-line flags
	infile := flag.String("f", "", "Read events from file instead of stdin")
	xmlfile := flag.String("o", "", "Write the XUnit report to the specified file instead of stdout")
	outfile := flag.String("outfile", "", "Save all input to the specified file")
	jsonfile := flag.String("jsonfile", "", "Save lifecycle events to the specified file")
	notty := flag.Bool("notty", false, "Don't use TUI, print plain progress lines")
	replay := flag.Bool("replay", false, "Replay events with timing from original test run (requires -f)")
	rate := flag.Float64("rate", 1.0, "Replay rate multiplier (0=instant, 1=original speed, 0.5=2x speed)")
	suite := flag.String("suite", xunit.DefaultSuiteName, "Prefix of the testsuite name")
	width := flag.Int("width", xunit.DefaultLineWidth, "Column limit for error text in the report")
	maxLine := flag.Int("maxline", 1024*1024, "Longest accepted input line in bytes")
	flag.Parse()

	// Validate flag combinations
	if *replay && *infile == "" {
		return fail("-replay requires -f <filename>")
	}
	if *rate < 0 {
		return fail("-rate must be >= 0")
	}
	if *width <= 6 {
		return fail("-width must be > 6")
	}
	if *maxLine <= 0 {
		return fail("-maxline must be > 0")
	}

	// Setup input source (file or stdin)
	var inputSource io.Reader = os.Stdin
	if *infile != "" {
		f, err := os.Open(*infile)
		if err != nil {
			return fail("opening input file: %v", err)
		}
		defer f.Close()

		if *replay {
			replayReader, err := engine.NewReplayReader(f, *rate)
			if err != nil {
				return fail("creating replay reader: %v", err)
			}
			inputSource = replayReader
		} else {
			inputSource = f
		}
	}

	opts := []engine.Option{engine.WithMaxLineSize(*maxLine)}
	if *outfile != "" {
		f, err := os.Create(*outfile)
		if err != nil {
			return fail("creating output file: %v", err)
		}
		defer f.Close()
		opts = append(opts, engine.WithRawOutput(f))
	}
	if *jsonfile != "" {
		f, err := os.Create(*jsonfile)
		if err != nil {
			return fail("creating JSON file: %v", err)
		}
		defer f.Close()
		opts = append(opts, engine.WithJSONOutput(f))
	}

	// The report goes to stdout unless -o is given, progress then goes to stderr.
	var reportOut io.Writer = os.Stdout
	progressOut := os.Stderr
	if *xmlfile != "" {
		f, err := os.Create(*xmlfile)
		if err != nil {
			return fail("creating report file: %v", err)
		}
		defer f.Close()
		reportOut = f
		progressOut = os.Stdout
	}

	builder := xunit.New(reportOut, xunit.WithSuiteName(*suite), xunit.WithLineWidth(*width))
	collector := results.NewCollector(builder)

	eng := engine.NewEngine(opts...)
	engineEvents := eng.Stream(inputSource)

	useTUI := !*notty && *xmlfile != "" && isatty.IsTerminal(os.Stdout.Fd())

	var failed bool
	var err error
	if useTUI {
		failed, err = runTUI(collector, engineEvents, *replay, *rate)
	} else {
		failed, err = runSimple(collector, engineEvents, progressOut)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if failed {
		return 1
	}
	return 0
}

func fail(msg string, args ...any) int {
	fmt.Fprintf(os.Stderr, "Error: "+msg+"\n", args...)
	return 1
}

// runSimple drives the collector on the calling goroutine while a
// SimpleOutput prints progress.
func runSimple(collector *results.Collector, engineEvents <-chan engine.Event, w io.Writer) (bool, error) {
	simple := output.NewSimpleOutput(w, collector)
	events := collector.Subscribe()

	done := make(chan error, 1)
	go func() {
		err := simple.ProcessEvents(events)
		// keep draining so the collector never blocks on a dead subscriber
		for range events {
		}
		done <- err
	}()

	err := collector.ProcessEvents(engineEvents)
	if outErr := <-done; outErr != nil && err == nil {
		err = fmt.Errorf("writing progress: %w", outErr)
	}
	return simple.HasFailures(), err
}

// runTUI drives the collector in the background and forwards its events to
// the bubbletea program. The summary is printed once the program exits.
func runTUI(collector *results.Collector, engineEvents <-chan engine.Event, replay bool, rate float64) (bool, error) {
	m := tui.NewModel(replay, rate, collector)
	p := tea.NewProgram(m)

	events := collector.Subscribe()
	go func() {
		for evt := range events {
			p.Send(tui.ResultsEventMsg(evt))
		}
		p.Send(tui.EOFMsg{})
	}()

	processed := make(chan error, 1)
	go func() {
		processed <- collector.ProcessEvents(engineEvents)
	}()

	if _, err := p.Run(); err != nil {
		return false, fmt.Errorf("running program: %w", err)
	}

	var err error
	select {
	case err = <-processed:
	default:
		// quit before the input ended
		collector.Finish()
		err = collector.Err()
	}

	var summary *format.Summary
	collector.WithRun(func(run *results.Run) {
		summary = format.ComputeSummary(run, output.SlowThreshold)
	})
	if summary != nil {
		fmt.Println()
		fmt.Println(format.NewSummaryFormatter(m.TerminalWidth).Format(summary))
	}
	return m.HasFailures(), err
}
