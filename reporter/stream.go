package reporter

import (
	"bufio"
	"io"
)

// Stream is the output sink reporters write their document to. Writes are
// buffered until End. The first write error is kept and returned by End.
type Stream struct {
	w   *bufio.Writer
	err error
}

// NewStream creates a Stream writing to w.
func NewStream(w io.Writer) *Stream {
	return &Stream{w: bufio.NewWriter(w)}
}

// Write appends text.
func (s *Stream) Write(text string) *Stream {
	if s.err == nil {
		_, s.err = s.w.WriteString(text)
	}
	return s
}

// Newline appends a line break.
func (s *Stream) Newline() *Stream {
	return s.Write("\n")
}

// End writes the final chunk and flushes the stream.
func (s *Stream) End(text string) error {
	s.Write(text)
	if s.err == nil {
		s.err = s.w.Flush()
	}
	return s.err
}
