package output

import (
	"bytes"
	"errors"
	"testing"

	"github.com/howjmay/coreutils/internal/follow"
)

func TestEmitDataWithoutHeaders(t *testing.T) {
	var out, errOut bytes.Buffer
	s := NewStreamSink(&out, &errOut, false)

	for _, line := range []string{"one\n", "two\n"} {
		if err := s.Emit(follow.Record{Path: "/a", Kind: follow.KindData, Data: []byte(line)}); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}

	if got := out.String(); got != "one\ntwo\n" {
		t.Errorf("out = %q, want %q", got, "one\ntwo\n")
	}
	if errOut.Len() != 0 {
		t.Errorf("unexpected stderr output: %q", errOut.String())
	}
}

func TestEmitHeadersOnSourceChange(t *testing.T) {
	var out, errOut bytes.Buffer
	s := NewStreamSink(&out, &errOut, true)

	records := []follow.Record{
		{Path: "/a", Kind: follow.KindData, Data: []byte("a1\n")},
		{Path: "/a", Kind: follow.KindData, Data: []byte("a2\n")},
		{Path: "/b", Kind: follow.KindData, Data: []byte("b1\n")},
		{Path: "/a", Kind: follow.KindData, Data: []byte("a3\n")},
	}
	for _, rec := range records {
		if err := s.Emit(rec); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}

	want := "==> /a <==\na1\na2\n\n==> /b <==\nb1\n\n==> /a <==\na3\n"
	if got := out.String(); got != want {
		t.Errorf("out = %q, want %q", got, want)
	}
}

func TestEmitStdinHeaderName(t *testing.T) {
	var out, errOut bytes.Buffer
	s := NewStreamSink(&out, &errOut, true)

	if err := s.Emit(follow.Record{Path: follow.StdinPath, Kind: follow.KindData, Data: []byte("x\n")}); err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	want := "==> standard input <==\nx\n"
	if got := out.String(); got != want {
		t.Errorf("out = %q, want %q", got, want)
	}
}

func TestEmitNotices(t *testing.T) {
	tests := []struct {
		kind follow.Kind
		want string
	}{
		{follow.KindTruncated, "tail: /a: file truncated\n"},
		{follow.KindRotated, "tail: /a: file was replaced; following new file\n"},
		{follow.KindUnavailable, "tail: /a: file became inaccessible\n"},
		{follow.KindRestored, "tail: /a: file appeared; following new file\n"},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			var out, errOut bytes.Buffer
			s := NewStreamSink(&out, &errOut, true)
			if err := s.Emit(follow.Record{Path: "/a", Kind: tt.kind}); err != nil {
				t.Fatalf("Emit() error = %v", err)
			}
			if got := errOut.String(); got != tt.want {
				t.Errorf("stderr = %q, want %q", got, tt.want)
			}
			if out.Len() != 0 {
				t.Errorf("notices must not write to stdout, got %q", out.String())
			}
		})
	}
}

// failWriter fails every write, standing in for a closed pipe.
type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func TestEmitPropagatesWriteError(t *testing.T) {
	s := NewStreamSink(failWriter{}, failWriter{}, false)
	if err := s.Emit(follow.Record{Path: "/a", Kind: follow.KindData, Data: []byte("x\n")}); err == nil {
		t.Error("Emit() with failing writer expected error, got nil")
	}
	if err := s.Emit(follow.Record{Path: "/a", Kind: follow.KindTruncated}); err == nil {
		t.Error("Emit() notice with failing writer expected error, got nil")
	}
}
