// Package flock provides a blocking exclusive advisory lock on a file path,
// used to serialize configuration mutation across independent shell
// processes. Only the exclusive-hold semantics matter; the file's content is
// irrelevant.
package flock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock is a held advisory lock.
type Lock struct {
	f *os.File
}

// Acquire opens (or creates) the file at path and blocks until an exclusive
// advisory lock is held.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flock: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flock: lock %s: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// TryAcquire is Acquire without blocking. It returns held=false when another
// process holds the lock.
func TryAcquire(path string) (lock *Lock, held bool, err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("flock: open %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		_ = f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("flock: lock %s: %w", path, err)
	}
	return &Lock{f: f}, true, nil
}

// Release drops the lock and closes the file. Safe to call more than once.
func (l *Lock) Release() error {
	if l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil

	// Closing the descriptor releases the lock even if the explicit unlock
	// fails.
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return f.Close()
}
