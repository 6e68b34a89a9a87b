package instance

import "testing"

func TestAcquireAndRelease(t *testing.T) {
	// Use an ephemeral-range port to avoid colliding with a running
	// daemon on the developer machine.
	const port = 45954

	lock, err := Acquire(port)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	// A second acquire must fail while the lock is held.
	if _, err := Acquire(port); err == nil {
		t.Error("second Acquire() succeeded, want error")
	}

	lock.Release()

	// After release the lock is available again.
	again, err := Acquire(port)
	if err != nil {
		t.Fatalf("Acquire() after Release() error = %v", err)
	}
	again.Release()

	// Release is safe to repeat and safe on nil.
	again.Release()
	var nilLock *Lock
	nilLock.Release()
}
