package concurrency

import "time"

// The *LockTry helpers attempt the systemwide read or write lock within an
// explicit timeout and report the outcome as a boolean instead of blocking
// indefinitely or surfacing an error. On failure nothing is retained; the
// only externally visible record of the attempt is Got.

// ReadLockTry attempts the global S lock within a timeout.
type ReadLockTry struct {
	got bool
	lk  *GlobalRead
}

// NewReadLockTry tries to take the global read lock, waiting at most try.
func NewReadLockTry(lockState Locker, try time.Duration) *ReadLockTry {
	lk, err := NewGlobalReadTimeout(lockState, try)
	if err != nil {
		return &ReadLockTry{}
	}
	return &ReadLockTry{got: true, lk: lk}
}

// Got reports whether the lock was acquired.
func (t *ReadLockTry) Got() bool {
	return t.got
}

// Close releases the lock if it was acquired.
func (t *ReadLockTry) Close() {
	if t.got {
		t.lk.Close()
		t.got = false
	}
}

// WriteLockTry attempts the global X lock within a timeout.
type WriteLockTry struct {
	got bool
	lk  *GlobalWrite
}

// NewWriteLockTry tries to take the global write lock, waiting at most try.
func NewWriteLockTry(lockState Locker, try time.Duration) *WriteLockTry {
	lk, err := NewGlobalWriteTimeout(lockState, try)
	if err != nil {
		return &WriteLockTry{}
	}
	return &WriteLockTry{got: true, lk: lk}
}

// Got reports whether the lock was acquired.
func (t *WriteLockTry) Got() bool {
	return t.got
}

// Close releases the lock if it was acquired.
func (t *WriteLockTry) Close() {
	if t.got {
		t.lk.Close()
		t.got = false
	}
}
