package concurrency

import (
	"github.com/stratumdb/stratum/internal/logger"
)

// TempRelease gives up every lock its context holds for the duration of an
// operation that must not hold locks, then restores exactly what was held.
//
// When the tracker cannot release (the context sits inside recursive
// acquisition that cannot be partially unwound), construction still
// succeeds but nothing is released and Close is a no-op. Callers must treat
// "nothing was released" as a valid outcome, observable via Released.
//
// A batch participant's barrier hold is not a tracked lock and stays in
// place across the release.
//
// Deprecated: TempRelease exists only to support legacy call sites. New
// code must restructure so it never needs to drop locks mid-operation.
type TempRelease struct {
	lockState Locker
	snapshot  *LockSnapshot
	released  bool
}

// NewTempRelease captures the context's held locks and releases them all,
// degrading to a recorded no-op when release is impossible.
func NewTempRelease(lockState Locker) *TempRelease {
	snapshot, ok := lockState.SaveAndReleaseAll()
	if !ok {
		logger.Debug("temp release skipped, lock state not releasable",
			logger.KeyContextID, lockState.ID())
		return &TempRelease{lockState: lockState}
	}
	return &TempRelease{lockState: lockState, snapshot: snapshot, released: true}
}

// Released reports whether construction actually released the locks.
func (t *TempRelease) Released() bool {
	return t.released
}

// Close restores the captured snapshot exactly: same resources, same modes,
// same reference counts. No-op when nothing was released.
func (t *TempRelease) Close() {
	if t.released {
		t.lockState.Restore(t.snapshot)
	}
}
