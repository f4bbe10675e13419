package shared

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created next to the database to keep a single server per data directory.
const LockFileName = "ytaudio.lock"

// AcquireLock takes an exclusive, non-blocking lock on dir/ytaudio.lock.
//
// Job dispatch is in-memory, so two servers sharing a database would each reconcile
// the other's in-flight jobs as interrupted.
func AcquireLock(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, lock.Path())
	}

	return lock, nil
}
