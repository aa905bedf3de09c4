package notify

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// EventBackend is the event-driven Backend variant, a thin wrapper over an
// fsnotify watcher subscribed to OS change notifications.
type EventBackend struct {
	w *fsnotify.Watcher
}

// NewEventBackend subscribes to OS-level change notification. It fails when
// the platform primitive cannot be initialized (e.g. inotify instance
// exhaustion), in which case callers fall back to polling.
func NewEventBackend() (*EventBackend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("notify: fsnotify: %w", err)
	}
	return &EventBackend{w: w}, nil
}

func (b *EventBackend) Events() <-chan fsnotify.Event { return b.w.Events }

func (b *EventBackend) Errors() <-chan error { return b.w.Errors }

func (b *EventBackend) Add(name string) error { return b.w.Add(name) }

func (b *EventBackend) Remove(name string) error { return b.w.Remove(name) }

func (b *EventBackend) Close() error { return b.w.Close() }
