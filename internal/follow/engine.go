// Package follow implements the live multi-file follow engine behind the
// tail command.
//
// The engine owns a set of watched files, drives a single-goroutine event
// loop over an abstract notification backend, and emits ordered output
// records to a sink. It handles the conditions a long-running follow must
// survive: file growth, truncation, rotation (replacement of the file behind
// a path, detected by identity, never by path), sources that vanish and
// reappear, and notification queue overflow.
//
// Example usage:
//
//	eng, err := follow.New(follow.Config{
//		Paths: []string{"/var/log/app.log"},
//		Lines: 10,
//		Mode:  follow.ModeFollow,
//	}, sink)
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = eng.Run(ctx)
package follow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/howjmay/coreutils/internal/notify"
)

// StdinPath is the path operand naming standard input.
const StdinPath = "-"

// ErrNoSourcesRemaining is returned by Run when the engine follows without
// retry and every watched source has been permanently closed.
var ErrNoSourcesRemaining = errors.New("no sources remaining")

// Mode selects when the engine stops on its own.
type Mode int

const (
	// ModeNone prints the initial tail of every source and returns.
	ModeNone Mode = iota
	// ModeFollow keeps following until every source is permanently closed.
	ModeFollow
	// ModeFollowRetry follows until cancelled, waiting for removed sources
	// to reappear indefinitely.
	ModeFollowRetry
)

// Config is the inbound configuration for one engine run.
type Config struct {
	// Paths are the sources to tail; StdinPath names standard input.
	Paths []string
	// Lines is the initial "last N lines" count; zero retains nothing from
	// the initial pass. Ignored when ByBytes is set.
	Lines int
	// Bytes is the initial "last N bytes" count, used when ByBytes is set.
	Bytes int64
	// ByBytes switches the initial pass from lines to bytes.
	ByBytes bool
	// Mode selects the run mode.
	Mode Mode
	// Retry keeps missing or unreadable sources watched, waiting for them
	// to (re)appear, instead of closing them.
	Retry bool
	// Interval is the poll sweep period and the base reopen backoff.
	Interval time.Duration
	// Stdin is the reader behind StdinPath. In the follow modes a reader
	// goroutine feeds it into the event loop until end of stream. Defaults
	// to os.Stdin.
	Stdin io.Reader
	// FS is the filesystem the engine reads from. Defaults to the OS
	// filesystem.
	FS afero.Fs
	// Backend overrides the notification backend. The engine takes
	// ownership and closes it on shutdown. Defaults to notify.New.
	Backend notify.Backend
	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Engine multiplexes the follow of many files over one event loop. All state
// is confined to the goroutine running Run; no internal locking.
type Engine struct {
	cfg     Config
	fs      afero.Fs
	backend notify.Backend
	sink    Sink
	log     *zap.Logger

	files map[string]*watchedFile
	order []string

	// stdin follow state: chunks arrive from the reader goroutine on
	// stdinCh (nil when stdin is not being followed), line-buffered in
	// stdinPending. stdinStop releases a reader blocked on send.
	stdinCh      chan []byte
	stdinStop    chan struct{}
	stdinPending []byte
}

// New validates cfg and builds an engine. Run must be called exactly once.
func New(cfg Config, sink Sink) (*Engine, error) {
	if sink == nil {
		return nil, errors.New("follow: sink cannot be nil")
	}
	if len(cfg.Paths) == 0 {
		cfg.Paths = []string{StdinPath}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}
	if cfg.FS == nil {
		cfg.FS = afero.NewOsFs()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Engine{
		cfg:   cfg,
		fs:    cfg.FS,
		sink:  sink,
		log:   cfg.Logger,
		files: make(map[string]*watchedFile),
	}, nil
}

// Run performs the initial last-N pass over every source and, in the follow
// modes, drives the event loop until ctx is cancelled or the engine runs out
// of sources. Every handle opened during the run is closed before Run
// returns.
func (e *Engine) Run(ctx context.Context) error {
	defer e.shutdown()

	if e.cfg.Mode != ModeNone {
		e.backend = e.cfg.Backend
		if e.backend == nil {
			e.backend = notify.New(e.fs, e.cfg.Interval, e.log)
		}
	}

	if err := e.initialize(); err != nil {
		return err
	}
	if e.cfg.Mode == ModeNone || (len(e.files) == 0 && e.stdinCh == nil) {
		return e.exitStatus()
	}
	if e.doneFollowing() {
		return e.exitStatus()
	}

	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-e.backend.Events():
			if !ok {
				return errors.New("follow: notification backend closed")
			}
			if err := e.dispatch(ev); err != nil {
				return err
			}
		case berr, ok := <-e.backend.Errors():
			if ok {
				if err := e.handleBackendError(berr); err != nil {
					return err
				}
			}
		case chunk, ok := <-e.stdinCh:
			if err := e.consumeStdin(chunk, ok); err != nil {
				return err
			}
		case now := <-ticker.C:
			if err := e.sweep(now); err != nil {
				return err
			}
		}
		if e.doneFollowing() {
			return e.exitStatus()
		}
	}
}

// initialize opens every source, emits its last-N tail, and registers it
// with the notification backend.
func (e *Engine) initialize() error {
	var openErr error
	for _, path := range e.cfg.Paths {
		if path == StdinPath {
			if e.cfg.Mode == ModeNone {
				if err := e.dumpStdin(); err != nil {
					return err
				}
			} else if e.stdinCh == nil {
				e.startStdin()
			}
			continue
		}
		if _, dup := e.files[path]; dup {
			continue
		}
		w := newWatchedFile(e.fs, path)
		e.files[path] = w
		e.order = append(e.order, path)

		if err := w.open(); err != nil {
			e.log.Warn("cannot open source", zap.String("path", path), zap.Error(err))
			openErr = err
			if err := e.notice(path, KindUnavailable); err != nil {
				return err
			}
			if e.retryEnabled() {
				w.state = stateWaiting
				w.scheduleRetry(time.Now(), e.cfg.Interval)
				e.register(path)
			} else {
				w.state = stateClosed
			}
			continue
		}
		if err := e.initialDump(w); err != nil {
			return err
		}
		if e.cfg.Mode != ModeNone {
			e.register(path)
		}
	}

	// Without retry, an unopenable operand in one-shot mode is the only
	// thing the run did, so surface it.
	if e.cfg.Mode == ModeNone && openErr != nil {
		return openErr
	}
	return nil
}

// initialDump emits the last N lines (or bytes) of a freshly opened file via
// a bounded ring pre-pass and leaves the offset at the bytes consumed.
func (e *Engine) initialDump(w *watchedFile) error {
	if e.cfg.ByBytes {
		return e.initialDumpBytes(w)
	}
	lines, consumed, err := lastLines(w.f, e.cfg.Lines)
	if err != nil {
		return err
	}
	w.offset = consumed
	for _, line := range lines {
		if err := e.emitData(w.path, line); err != nil {
			return err
		}
	}
	return nil
}

// initialDumpBytes seeks to size-N and streams the remainder. The source is
// a regular file here, so seeking beats the chunk-ring pass used for stdin.
func (e *Engine) initialDumpBytes(w *watchedFile) error {
	fi, err := w.f.Stat()
	if err != nil {
		return fmt.Errorf("follow: stat %s: %w", w.path, err)
	}
	start := int64(0)
	if fi.Size() > e.cfg.Bytes {
		start = fi.Size() - e.cfg.Bytes
	}
	if _, err := w.f.Seek(start, io.SeekStart); err != nil {
		return fmt.Errorf("follow: seek %s: %w", w.path, err)
	}
	w.offset = start
	buf := make([]byte, initialChunkSize)
	for {
		n, rerr := w.f.Read(buf)
		if n > 0 {
			w.offset += int64(n)
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := e.emitData(w.path, chunk); err != nil {
				return err
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("follow: read %s: %w", w.path, rerr)
		}
	}
}

// startStdin spawns the reader goroutine that feeds standard input into the
// event loop. Stdin has no path to stat or reopen, so it bypasses the
// notification backend: the goroutine is the event source, and the loop stays
// the single writer of all engine state.
func (e *Engine) startStdin() {
	e.stdinCh = make(chan []byte)
	e.stdinStop = make(chan struct{})
	go func(ch chan<- []byte, stop <-chan struct{}) {
		defer close(ch)
		buf := make([]byte, initialChunkSize)
		for {
			n, err := e.cfg.Stdin.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case ch <- chunk:
				case <-stop:
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					e.log.Warn("stdin read failed", zap.Error(err))
				}
				return
			}
		}
	}(e.stdinCh, e.stdinStop)
}

// consumeStdin folds one chunk from the stdin reader into the line buffer and
// emits every completed line. A closed channel is end of stream: the trailing
// unterminated bytes are flushed and stdin stops counting as a live source.
func (e *Engine) consumeStdin(chunk []byte, ok bool) error {
	if !ok {
		e.stdinCh = nil
		if len(e.stdinPending) > 0 {
			tail := e.stdinPending
			e.stdinPending = nil
			return e.emitData(StdinPath, tail)
		}
		return nil
	}
	e.stdinPending = append(e.stdinPending, chunk...)
	for {
		i := bytes.IndexByte(e.stdinPending, '\n')
		if i < 0 {
			return nil
		}
		line := make([]byte, i+1)
		copy(line, e.stdinPending[:i+1])
		e.stdinPending = e.stdinPending[i+1:]
		if err := e.emitData(StdinPath, line); err != nil {
			return err
		}
	}
}

// dumpStdin consumes standard input to EOF through the ring pass, for the
// one-shot mode where the last N window applies.
func (e *Engine) dumpStdin() error {
	var (
		chunks [][]byte
		err    error
	)
	if e.cfg.ByBytes {
		chunks, _, err = lastBytes(e.cfg.Stdin, e.cfg.Bytes)
	} else {
		chunks, _, err = lastLines(e.cfg.Stdin, e.cfg.Lines)
	}
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if err := e.emitData(StdinPath, c); err != nil {
			return err
		}
	}
	return nil
}

// dispatch routes one backend event to its watched file. Unknown paths are
// ignored; backends may coalesce writes, so the handler re-stats rather than
// trusting the event kind.
func (e *Engine) dispatch(ev fsnotify.Event) error {
	w, ok := e.files[ev.Name]
	if !ok {
		return nil
	}
	return e.poke(w, time.Now())
}

// sweep re-stats every source. It is the polling tick for poll-backed paths,
// the retry tick for waiting sources, and the resync path after an event
// queue overflow.
func (e *Engine) sweep(now time.Time) error {
	for _, path := range e.order {
		if err := e.poke(e.files[path], now); err != nil {
			return err
		}
	}
	return nil
}

// poke classifies what happened to one source since its last visit and
// applies the transition. All fully available lines are flushed before poke
// returns, so output from different sources never interleaves mid-event.
func (e *Engine) poke(w *watchedFile, now time.Time) error {
	switch w.state {
	case stateClosed:
		return nil
	case stateWaiting:
		if !w.retryDue(now) {
			return nil
		}
	}

	switch w.classify() {
	case chNone:
		if w.state == stateWaiting {
			w.scheduleRetry(now, e.cfg.Interval)
		}
		return nil

	case chGrown:
		return e.drain(w)

	case chTruncated:
		e.log.Info("source truncated", zap.String("path", w.path))
		if err := e.notice(w.path, KindTruncated); err != nil {
			return err
		}
		w.rewind()
		return e.drain(w)

	case chVanished:
		// The old handle may still hold undelivered bytes; drain it
		// before letting go.
		if err := e.drain(w); err != nil {
			return err
		}
		e.log.Info("source vanished", zap.String("path", w.path))
		if err := e.notice(w.path, KindUnavailable); err != nil {
			return err
		}
		w.close()
		if e.retryEnabled() {
			w.state = stateWaiting
			w.scheduleRetry(now, e.cfg.Interval)
			e.reregister(w.path)
		} else {
			w.state = stateClosed
			e.unregister(w.path)
		}
		return nil

	case chRotated:
		// Finish the old file first; its trailing partial line dies with
		// it and must never prefix the new file's first bytes.
		if err := e.drain(w); err != nil {
			return err
		}
		e.log.Info("source rotated", zap.String("path", w.path))
		return e.reopen(w, KindRotated, now)

	case chAppeared:
		e.log.Info("source appeared", zap.String("path", w.path))
		return e.reopen(w, KindRestored, now)
	}
	return nil
}

// reopen swaps in a fresh handle after rotation or reappearance, atomically
// replacing the backend registration, and streams the new file from offset
// zero.
func (e *Engine) reopen(w *watchedFile, kind Kind, now time.Time) error {
	wasWaiting := w.state == stateWaiting
	if err := w.open(); err != nil {
		e.log.Warn("reopen failed", zap.String("path", w.path), zap.Error(err))
		if !wasWaiting {
			if nerr := e.notice(w.path, KindUnavailable); nerr != nil {
				return nerr
			}
			w.close()
		}
		if e.retryEnabled() {
			w.state = stateWaiting
			w.scheduleRetry(now, e.cfg.Interval)
		} else {
			w.state = stateClosed
			e.unregister(w.path)
		}
		return nil
	}
	if err := e.notice(w.path, kind); err != nil {
		return err
	}
	e.reregister(w.path)
	return e.drain(w)
}

// drain reads and emits everything newly available from one source. Sink
// failures abort the run; I/O failures are transient and only logged.
func (e *Engine) drain(w *watchedFile) error {
	err := w.readNew(e.emit)
	if err == nil {
		return nil
	}
	var se *sinkError
	if errors.As(err, &se) {
		return fmt.Errorf("follow: sink: %w", se.err)
	}
	e.log.Warn("read failed", zap.String("path", w.path), zap.Error(err))
	return nil
}

// handleBackendError treats an event queue overflow as a request to resync
// every source by sweep; anything else is logged and survived.
func (e *Engine) handleBackendError(err error) error {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		e.log.Warn("notification queue overflow, resyncing")
		return e.sweep(time.Now())
	}
	e.log.Warn("notification backend error", zap.Error(err))
	return nil
}

func (e *Engine) retryEnabled() bool {
	return e.cfg.Retry || e.cfg.Mode == ModeFollowRetry
}

// doneFollowing reports whether the loop has nothing left to wait for.
func (e *Engine) doneFollowing() bool {
	if e.cfg.Mode == ModeFollowRetry {
		return false
	}
	if e.stdinCh != nil {
		return false
	}
	for _, w := range e.files {
		if w.state != stateClosed {
			return false
		}
	}
	return true
}

// exitStatus distinguishes "ran out of sources while following" from a
// normal completion.
func (e *Engine) exitStatus() error {
	if e.cfg.Mode == ModeFollow && len(e.files) > 0 && e.doneFollowing() {
		return ErrNoSourcesRemaining
	}
	return nil
}

func (e *Engine) register(path string) {
	if e.backend == nil {
		return
	}
	if err := e.backend.Add(path); err != nil {
		e.log.Warn("watch registration failed", zap.String("path", path), zap.Error(err))
	}
}

// reregister replaces any prior registration so a file never carries two.
func (e *Engine) reregister(path string) {
	e.unregister(path)
	e.register(path)
}

func (e *Engine) unregister(path string) {
	if e.backend == nil {
		return
	}
	if err := e.backend.Remove(path); err != nil {
		e.log.Debug("watch deregistration", zap.String("path", path), zap.Error(err))
	}
}

// shutdown closes every handle and the backend and releases the stdin
// reader. Safe on every return path.
func (e *Engine) shutdown() {
	for _, w := range e.files {
		w.close()
		w.state = stateClosed
	}
	if e.stdinStop != nil {
		close(e.stdinStop)
		e.stdinStop = nil
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.log.Warn("backend close", zap.Error(err))
		}
		e.backend = nil
	}
}

// sinkError marks an emit failure so drain can tell fatal sink trouble from
// transient I/O trouble.
type sinkError struct{ err error }

func (s *sinkError) Error() string { return s.err.Error() }
func (s *sinkError) Unwrap() error { return s.err }

func (e *Engine) emit(rec Record) error {
	if err := e.sink.Emit(rec); err != nil {
		return &sinkError{err: err}
	}
	return nil
}

func (e *Engine) emitData(path string, data []byte) error {
	if err := e.sink.Emit(Record{Path: path, Kind: KindData, Data: data}); err != nil {
		return fmt.Errorf("follow: sink: %w", err)
	}
	return nil
}

func (e *Engine) notice(path string, kind Kind) error {
	if err := e.sink.Emit(Record{Path: path, Kind: kind}); err != nil {
		return fmt.Errorf("follow: sink: %w", err)
	}
	return nil
}
