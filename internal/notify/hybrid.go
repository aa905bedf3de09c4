package notify

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// hybrid prefers event-driven notification and falls back to polling path by
// path: when event registration fails (unsupported filesystem, resource
// exhaustion, or the path does not exist yet) that one path is polled while
// the rest stay event-driven. Both feeds merge into a single pair of
// channels.
type hybrid struct {
	event Backend
	poll  *Poller
	log   *zap.Logger

	mu     sync.Mutex
	polled map[string]bool

	events chan fsnotify.Event
	errors chan error
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func newHybrid(event Backend, poll *Poller, log *zap.Logger) *hybrid {
	h := &hybrid{
		event:  event,
		poll:   poll,
		log:    log,
		polled: make(map[string]bool),
		events: make(chan fsnotify.Event, 64),
		errors: make(chan error, 2),
		done:   make(chan struct{}),
	}
	h.wg.Add(2)
	go h.forward(event.Events(), event.Errors())
	go h.forward(poll.Events(), poll.Errors())
	return h
}

func (h *hybrid) Events() <-chan fsnotify.Event { return h.events }

func (h *hybrid) Errors() <-chan error { return h.errors }

// Add registers with the event backend, falling back to the poller for this
// path only. Re-adding a previously polled path that now works through
// events drops the stale poll registration so the path never carries two.
func (h *hybrid) Add(name string) error {
	err := h.event.Add(name)
	if err == nil {
		h.mu.Lock()
		wasPolled := h.polled[name]
		delete(h.polled, name)
		h.mu.Unlock()
		if wasPolled {
			h.poll.Remove(name) //nolint:errcheck
		}
		return nil
	}
	h.log.Debug("event watch failed, polling path", zap.String("path", name), zap.Error(err))
	h.mu.Lock()
	h.polled[name] = true
	h.mu.Unlock()
	return h.poll.Add(name)
}

func (h *hybrid) Remove(name string) error {
	h.mu.Lock()
	wasPolled := h.polled[name]
	delete(h.polled, name)
	h.mu.Unlock()
	if wasPolled {
		return h.poll.Remove(name)
	}
	return h.event.Remove(name)
}

// Close shuts both underlying backends down, then closes the merged
// channels once the forwarders drain.
func (h *hybrid) Close() error {
	var err error
	h.once.Do(func() {
		err = h.event.Close()
		if perr := h.poll.Close(); err == nil {
			err = perr
		}
		close(h.done)
		h.wg.Wait()
		close(h.events)
		close(h.errors)
	})
	return err
}

// forward funnels one backend's feeds into the merged channels until both
// source channels close or the hybrid shuts down.
func (h *hybrid) forward(evs <-chan fsnotify.Event, errs <-chan error) {
	defer h.wg.Done()
	for evs != nil || errs != nil {
		select {
		case ev, ok := <-evs:
			if !ok {
				evs = nil
				continue
			}
			select {
			case h.events <- ev:
			case <-h.done:
				return
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			select {
			case h.errors <- err:
			case <-h.done:
				return
			}
		}
	}
}
