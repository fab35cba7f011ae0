// Package lock provides the single-instance guard for the scheduler. Only
// one scheduler may run per lock path; a second acquisition attempt fails
// until the holder releases the lock or its process dies.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"
)

// Lock guards a resource that must have at most one holder.
type Lock interface {
	// TryAcquire attempts to take the lock without blocking. It returns
	// false when another holder already has it.
	TryAcquire() (bool, error)
	// Release gives the lock up. Releasing an unheld lock is a no-op.
	Release() error
	// IsHeld reports whether this instance currently holds the lock.
	IsHeld() bool
}

// FileLock is an advisory flock on a pid file. The kernel drops the lock
// when the holding process exits, so a crashed scheduler never leaves a
// stale lock behind. The pid file itself may linger but carries no
// authority; the flock is the lock.
type FileLock struct {
	path string

	mu   sync.Mutex
	file *os.File
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

func (l *FileLock) TryAcquire() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	file, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return false, fmt.Errorf("failed to open lock file %s: %w", l.path, err)
	}

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock %s: %w", l.path, err)
	}

	if err := file.Truncate(0); err == nil {
		file.WriteString(strconv.Itoa(os.Getpid()) + "\n")
		file.Sync()
	}

	l.file = file
	return true, nil
}

func (l *FileLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}

	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	os.Remove(l.path)

	if err != nil {
		return fmt.Errorf("failed to unlock %s: %w", l.path, err)
	}
	return closeErr
}

func (l *FileLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file != nil
}

// HolderPID reads the pid recorded in the lock file, if any. Used for
// operator-facing diagnostics when acquisition fails.
func (l *FileLock) HolderPID() (int, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(string(trimNewline(data)))
	if err != nil {
		return 0, false
	}
	return pid, true
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

// MemoryLock implements Lock in-process.
type MemoryLock struct {
	mu   sync.Mutex
	held bool
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{}
}

func (l *MemoryLock) TryAcquire() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *MemoryLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

func (l *MemoryLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}
