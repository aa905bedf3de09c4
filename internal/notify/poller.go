package notify

import (
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// pollState is the last observation of one polled path.
type pollState struct {
	exists bool
	size   int64
	mtime  time.Time
	mode   os.FileMode
}

func (s *pollState) update(fi os.FileInfo) {
	s.exists = true
	s.size = fi.Size()
	s.mtime = fi.ModTime()
	s.mode = fi.Mode()
}

func (s *pollState) changed(fi os.FileInfo) bool {
	return fi.Size() != s.size || !fi.ModTime().Equal(s.mtime) || fi.Mode() != s.mode
}

// Poller is the polling Backend variant: a single goroutine re-stats every
// registered path on a fixed interval and synthesizes fsnotify events when
// size, mtime, mode, or existence differ from the last observation. Unlike
// the event backend it accepts paths that do not exist yet.
type Poller struct {
	fs       afero.Fs
	interval time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	watches map[string]*pollState

	events chan fsnotify.Event
	errors chan error
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// NewPoller starts a polling backend over fs with the given re-stat
// interval.
func NewPoller(fs afero.Fs, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Poller{
		fs:       fs,
		interval: interval,
		log:      log,
		watches:  make(map[string]*pollState),
		events:   make(chan fsnotify.Event, 64),
		errors:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Poller) Events() <-chan fsnotify.Event { return p.events }

func (p *Poller) Errors() <-chan error { return p.errors }

// Add registers a path and snapshots its current state as the comparison
// baseline. A missing path is registered as not-yet-existing so its creation
// synthesizes a Create event.
func (p *Poller) Add(name string) error {
	st := &pollState{}
	if fi, err := p.fs.Stat(name); err == nil {
		st.update(fi)
	}
	p.mu.Lock()
	p.watches[name] = st
	p.mu.Unlock()
	return nil
}

func (p *Poller) Remove(name string) error {
	p.mu.Lock()
	_, ok := p.watches[name]
	delete(p.watches, name)
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("notify: %s is not being polled", name)
	}
	return nil
}

// Close stops the poll loop and closes the event and error channels.
func (p *Poller) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.wg.Wait()
		close(p.events)
		close(p.errors)
	})
	return nil
}

func (p *Poller) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

// tick sweeps every registered path in a stable order so multiplexed
// consumers see deterministic cross-path delivery within one interval.
func (p *Poller) tick() {
	p.mu.Lock()
	paths := make([]string, 0, len(p.watches))
	for path := range p.watches {
		paths = append(paths, path)
	}
	p.mu.Unlock()
	sort.Strings(paths)

	for _, path := range paths {
		if ev, ok := p.check(path); ok {
			p.send(ev)
		}
	}
}

func (p *Poller) check(path string) (fsnotify.Event, bool) {
	fi, statErr := p.fs.Stat(path)

	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.watches[path]
	if !ok {
		// Removed between the snapshot and now.
		return fsnotify.Event{}, false
	}
	switch {
	case statErr != nil && st.exists:
		st.exists = false
		return fsnotify.Event{Name: path, Op: fsnotify.Remove}, true
	case statErr == nil && !st.exists:
		st.update(fi)
		return fsnotify.Event{Name: path, Op: fsnotify.Create}, true
	case statErr == nil && st.changed(fi):
		st.update(fi)
		return fsnotify.Event{Name: path, Op: fsnotify.Write}, true
	}
	return fsnotify.Event{}, false
}

// send delivers an event without ever blocking the poll loop. A full queue
// is reported as an overflow so the consumer resynchronizes by sweep.
func (p *Poller) send(ev fsnotify.Event) {
	select {
	case p.events <- ev:
	case <-p.done:
	default:
		p.log.Warn("poll event queue full", zap.String("path", ev.Name))
		select {
		case p.errors <- fsnotify.ErrEventOverflow:
		default:
		}
	}
}
