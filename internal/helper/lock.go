package helper

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another run holds the lock")

// AcquireRunLock takes an advisory lock on path. The lock is released by Unlock or when the
// process exits, so a crashed run never leaves a stale lock behind.
func AcquireRunLock(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrLocked)
	}
	return lock, nil
}
