// Package lock provides cross-process mutual exclusion around the shared
// pf configuration. Any invocation of this tool, or an operator running
// pfctl by hand under the same lock discipline, contends on one well-known
// lock file.
package lock

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"grimm.is/limawan/internal/clock"
)

// ErrBusy is returned when the lock cannot be acquired within the wait
// budget. The caller may retry.
var ErrBusy = errors.New("firewall configuration is locked by another process")

const (
	// DefaultWait bounds how long Acquire blocks before surfacing ErrBusy.
	DefaultWait = 10 * time.Second

	retryInterval = 250 * time.Millisecond
)

// FileLock is an exclusive flock on a well-known path.
type FileLock struct {
	path string
	wait time.Duration
	fd   int
}

// New creates a lock on path. wait <= 0 selects DefaultWait.
func New(path string, wait time.Duration) *FileLock {
	if wait <= 0 {
		wait = DefaultWait
	}
	return &FileLock{path: path, wait: wait, fd: -1}
}

// Acquire takes the lock, polling with a bounded wait. It never blocks
// indefinitely: when the budget is exhausted it returns ErrBusy.
func (l *FileLock) Acquire() error {
	if l.fd >= 0 {
		return fmt.Errorf("lock %s already held by this process", l.path)
	}

	fd, err := unix.Open(l.path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file %s: %w", l.path, err)
	}

	deadline := clock.Now().Add(l.wait)
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			l.fd = fd
			return nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			unix.Close(fd)
			return fmt.Errorf("flock %s: %w", l.path, err)
		}
		if clock.Now().After(deadline) {
			unix.Close(fd)
			return ErrBusy
		}
		time.Sleep(retryInterval)
	}
}

// Release drops the lock. Safe to call when not held; Release on all exit
// paths is the expected pattern.
func (l *FileLock) Release() {
	if l.fd < 0 {
		return
	}
	unix.Flock(l.fd, unix.LOCK_UN)
	unix.Close(l.fd)
	l.fd = -1
	// The lock file itself stays behind; removing it would race other
	// processes opening it.
	_ = os.Chtimes(l.path, clock.Now(), clock.Now())
}

// Held reports whether this process holds the lock.
func (l *FileLock) Held() bool {
	return l.fd >= 0
}
