package shared

import (
	"errors"
	"testing"
)

func TestAcquireLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("failed to acquire lock: %v", err)
	}

	if _, err := AcquireLock(dir); !errors.Is(err, ErrLocked) {
		t.Errorf("expected ErrLocked for second lock, got %v", err)
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("failed to unlock: %v", err)
	}

	again, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("expected lock to be available after unlock: %v", err)
	}
	again.Unlock()
}
