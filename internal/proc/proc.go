// Package proc probes process liveness for the --pid flag, so tail can stop
// following once the writing process has exited.
package proc

import (
	"context"
	"errors"
	"os"
	"syscall"
	"time"
)

// Alive reports whether a process with the given PID currently exists, using
// a signal-0 probe. EPERM means the process exists but belongs to another
// user, so it still counts as alive.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

// Wait polls the process on the given interval and closes the returned
// channel once it no longer exists or ctx is cancelled.
func Wait(ctx context.Context, pid int, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !Alive(pid) {
					return
				}
			}
		}
	}()
	return done
}
