package follow

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"
)

// Identity fingerprints the underlying file object at a watched path, not the
// path itself. Comparing identities is the sole ground truth for "is this
// still the same file I opened".
type Identity struct {
	Dev uint64
	Ino uint64
}

type fileState int

const (
	stateInit fileState = iota
	stateStreaming
	stateWaiting // source missing or unreadable, retry pending
	stateClosed
)

// change classifies what happened to a watched path since the last tick.
type change int

const (
	chNone change = iota
	chGrown
	chTruncated
	chRotated
	chVanished
	chAppeared
)

// watchedFile is the per-path follow state. It is created when a path is
// registered and its handle is closed only on rotation, unwatch, or engine
// shutdown. All mutation happens on the engine's control goroutine.
type watchedFile struct {
	path    string
	fs      afero.Fs
	f       afero.File
	offset  int64 // bytes consumed from the file
	id      Identity
	hasID   bool
	state   fileState
	pending []byte // trailing bytes not yet newline-terminated
	readBuf []byte

	retry     *backoff.ExponentialBackOff
	nextRetry time.Time
}

func newWatchedFile(fs afero.Fs, path string) *watchedFile {
	return &watchedFile{path: path, fs: fs, state: stateInit}
}

// classify re-stats the path and decides which transition applies. It never
// mutates state; the engine acts on the result.
func (w *watchedFile) classify() change {
	fi, err := w.fs.Stat(w.path)
	if err != nil {
		if w.state == stateWaiting {
			return chNone
		}
		return chVanished
	}
	if w.state == stateWaiting {
		return chAppeared
	}
	if id, ok := identityOf(fi); ok && w.hasID && id != w.id {
		return chRotated
	}
	size := fi.Size()
	switch {
	case size < w.offset:
		return chTruncated
	case size > w.offset:
		return chGrown
	default:
		return chNone
	}
}

// open acquires a fresh handle and resets the read position to the start of
// the file. Any buffered partial line belongs to the previous identity and
// is discarded, never emitted.
func (w *watchedFile) open() error {
	f, err := w.fs.Open(w.path)
	if err != nil {
		return fmt.Errorf("follow: open %s: %w", w.path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("follow: stat %s: %w", w.path, err)
	}
	w.close()
	w.f = f
	w.offset = 0
	w.id, w.hasID = identityOf(fi)
	w.state = stateStreaming
	w.resetRetry()
	return nil
}

// close releases the handle and drops the buffered partial line.
func (w *watchedFile) close() {
	if w.f != nil {
		w.f.Close()
		w.f = nil
	}
	w.pending = nil
}

// rewind resets the consumed offset after a truncation. The buffered partial
// line belongs to the pre-truncation content and is discarded.
func (w *watchedFile) rewind() {
	w.offset = 0
	w.pending = nil
}

// readNew consumes all bytes past the current offset, emitting every complete
// line and retaining the unterminated tail in pending until its newline
// arrives. Per-file byte order is preserved.
func (w *watchedFile) readNew(emit func(Record) error) error {
	if w.f == nil {
		return nil
	}
	if _, err := w.f.Seek(w.offset, io.SeekStart); err != nil {
		return fmt.Errorf("follow: seek %s: %w", w.path, err)
	}
	if w.readBuf == nil {
		w.readBuf = make([]byte, 64*1024)
	}
	for {
		n, err := w.f.Read(w.readBuf)
		if n > 0 {
			w.offset += int64(n)
			w.pending = append(w.pending, w.readBuf[:n]...)
			if emitErr := w.flushLines(emit); emitErr != nil {
				return emitErr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("follow: read %s: %w", w.path, err)
		}
	}
}

// flushLines emits every newline-terminated line buffered in pending.
func (w *watchedFile) flushLines(emit func(Record) error) error {
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			return nil
		}
		line := make([]byte, i+1)
		copy(line, w.pending[:i+1])
		w.pending = w.pending[i+1:]
		if err := emit(Record{Path: w.path, Kind: KindData, Data: line}); err != nil {
			return err
		}
	}
}

// scheduleRetry pushes the next reopen attempt out on an exponential curve so
// a long-missing source does not burn a stat on every sweep.
func (w *watchedFile) scheduleRetry(now time.Time, initial time.Duration) {
	if w.retry == nil {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = 16 * initial
		b.MaxElapsedTime = 0 // retry for as long as the engine runs
		b.Reset()
		w.retry = b
	}
	w.nextRetry = now.Add(w.retry.NextBackOff())
}

func (w *watchedFile) retryDue(now time.Time) bool {
	return w.nextRetry.IsZero() || !now.Before(w.nextRetry)
}

func (w *watchedFile) resetRetry() {
	w.retry = nil
	w.nextRetry = time.Time{}
}
