// Package output renders follow engine records for the terminal.
//
// Data bytes go to standard output, prefixed with a "==> path <==" header
// whenever the source changes and more than one source is being shown.
// Condition notices (truncation, rotation, vanished or restored sources) are
// rendered as diagnostic lines on standard error, inline with the data
// stream, never silently dropped.
package output

import (
	"fmt"
	"io"

	"github.com/howjmay/coreutils/internal/follow"
)

// StreamSink writes records as the tail command prints them. It is driven by
// the engine's single control goroutine and needs no locking.
type StreamSink struct {
	out     io.Writer
	errOut  io.Writer
	headers bool
	program string

	last  string
	wrote bool
}

// NewStreamSink builds a sink writing data to out and notices to errOut.
// headers enables the per-source banner on source change.
func NewStreamSink(out, errOut io.Writer, headers bool) *StreamSink {
	return &StreamSink{out: out, errOut: errOut, headers: headers, program: "tail"}
}

// Emit renders one record. A write failure is returned to the engine, which
// treats the sink as gone and stops the run.
func (s *StreamSink) Emit(rec follow.Record) error {
	switch rec.Kind {
	case follow.KindData:
		if s.headers && rec.Path != s.last {
			sep := "\n"
			if !s.wrote {
				sep = ""
			}
			if _, err := fmt.Fprintf(s.out, "%s==> %s <==\n", sep, displayName(rec.Path)); err != nil {
				return err
			}
			s.last = rec.Path
		}
		s.wrote = true
		_, err := s.out.Write(rec.Data)
		return err
	case follow.KindTruncated:
		return s.notice(rec.Path, "file truncated")
	case follow.KindRotated:
		return s.notice(rec.Path, "file was replaced; following new file")
	case follow.KindUnavailable:
		return s.notice(rec.Path, "file became inaccessible")
	case follow.KindRestored:
		return s.notice(rec.Path, "file appeared; following new file")
	}
	return nil
}

func (s *StreamSink) notice(path, msg string) error {
	_, err := fmt.Fprintf(s.errOut, "%s: %s: %s\n", s.program, displayName(path), msg)
	return err
}

func displayName(path string) string {
	if path == follow.StdinPath {
		return "standard input"
	}
	return path
}
