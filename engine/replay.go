package engine

import (
	"bufio"
	"io"
	"time"

	"github.com/ansel1/xunitgen/parser"
)

// timedLine is an input line and the time it should be released at.
// Lines without their own timestamp inherit the previous one.
type timedLine struct {
	data []byte
	at   time.Time
}

// ReplayReader re-emits a recorded event stream, sleeping between lines
// so that the gaps between event timestamps are reproduced.
//
// rate scales the gaps: 1 is the original speed, 0.5 twice as fast and 0
// disables sleeping entirely.
type ReplayReader struct {
	lines   []timedLine
	rate    float64
	next    int
	pending []byte
	last    time.Time
	sleep   func(time.Duration)
}

// NewReplayReader reads r fully and returns a reader that replays it.
func NewReplayReader(r io.Reader, rate float64) (*ReplayReader, error) {
	var lines []timedLine
	var prev time.Time

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		data := append([]byte(nil), scanner.Bytes()...)
		at := prev
		if evt, err := parser.ParseEvent(data); err == nil && !evt.Time.IsZero() {
			at = evt.Time
		}
		lines = append(lines, timedLine{data: data, at: at})
		prev = at
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return &ReplayReader{
		lines: lines,
		rate:  rate,
		sleep: time.Sleep,
	}, nil
}

// Read implements io.Reader. Each line is released whole, followed by a
// newline, after the scaled delay since the previous timestamped line.
func (r *ReplayReader) Read(p []byte) (int, error) {
	if len(r.pending) == 0 {
		if r.next >= len(r.lines) {
			return 0, io.EOF
		}
		line := r.lines[r.next]
		r.next++

		if r.rate > 0 && !r.last.IsZero() && !line.at.IsZero() {
			if gap := line.at.Sub(r.last); gap > 0 {
				r.sleep(time.Duration(float64(gap) * r.rate))
			}
		}
		if !line.at.IsZero() {
			r.last = line.at
		}

		r.pending = append(append(make([]byte, 0, len(line.data)+1), line.data...), '\n')
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}
