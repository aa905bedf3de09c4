// Package notify abstracts how the follow engine learns that a watched path
// changed. It wraps fsnotify and provides a poll-based backend for paths or
// filesystems fsnotify cannot cover, behind one interface so the two can be
// mixed per path within a single engine.
//
// Backends may coalesce several writes into one event; consumers must
// re-stat rather than assume one event per write.
package notify

import (
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Backend delivers path-change events for a set of registered paths.
type Backend interface {
	// Events returns the channel change events are delivered on. It is
	// closed by Close.
	Events() <-chan fsnotify.Event
	// Errors returns the channel backend errors are delivered on,
	// including fsnotify.ErrEventOverflow on queue overflow.
	Errors() <-chan error
	// Add registers a path. Polling backends accept paths that do not
	// exist yet and synthesize a Create event on appearance.
	Add(name string) error
	// Remove deregisters a path.
	Remove(name string) error
	// Close stops delivery and releases all resources.
	Close() error
}

// New selects the best backend for fs: OS-event notification with per-path
// polling fallback when fs is the real filesystem, pure polling otherwise
// (fsnotify cannot observe synthetic filesystems).
func New(fs afero.Fs, interval time.Duration, log *zap.Logger) Backend {
	if log == nil {
		log = zap.NewNop()
	}
	if _, ok := fs.(*afero.OsFs); !ok {
		return NewPoller(fs, interval, log)
	}
	event, err := NewEventBackend()
	if err != nil {
		log.Warn("event notification unavailable, polling every path", zap.Error(err))
		return NewPoller(fs, interval, log)
	}
	return newHybrid(event, NewPoller(fs, interval, log), log)
}
