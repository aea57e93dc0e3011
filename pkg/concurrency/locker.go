package concurrency

import "time"

// WaitForever makes an acquisition block without a deadline.
const WaitForever time.Duration = -1

// Locker is the per-execution-context lock tracker the guards are layered
// on. Every execution context owns exactly one Locker; no lock state is
// shared between contexts, only the resources being locked.
//
// Application code must go through the scoped guards in this package;
// calling the Locker primitives directly is out of contract.
type Locker interface {
	// ========================================================================
	// Identity
	// ========================================================================

	// ID returns a stable identifier for this context, used in logs and
	// error messages.
	ID() string

	// ========================================================================
	// Acquisition primitives
	// ========================================================================

	// Acquire blocks until mode is compatible with all current holders of
	// res, or the timeout elapses. Pass WaitForever for an unbounded wait.
	// Reentrant acquisition in a covered mode increments a reference count.
	// A timed-out acquisition leaves the context's lock state untouched.
	Acquire(res ResourceID, mode LockMode, timeout time.Duration) error

	// Release decrements this context's hold on res, truly releasing it
	// when the reference count reaches zero. Returns false if the count is
	// still positive or the resource was not held.
	Release(res ResourceID) bool

	// ModeHeld returns the mode this context currently holds on res, or
	// ModeNone.
	ModeHeld(res ResourceID) LockMode

	// IsLockHeldForMode reports whether the mode held on res covers the
	// given mode.
	IsLockHeldForMode(res ResourceID, mode LockMode) bool

	// ========================================================================
	// Temporary release
	// ========================================================================

	// SaveAndReleaseAll atomically captures and releases everything this
	// context holds. It reports false without releasing anything when the
	// state cannot be restored exactly, e.g. when any hold is recursive.
	// A context holding nothing yields the empty snapshot and true.
	SaveAndReleaseAll() (*LockSnapshot, bool)

	// Restore reinstates exactly the locks described by a snapshot
	// previously captured from this context. Restoring the empty snapshot
	// is a no-op.
	Restore(snapshot *LockSnapshot)

	// ========================================================================
	// Batch barrier participation
	// ========================================================================

	// MarkBatchParticipant declares that this context may conflict with a
	// batch operation. Participants synchronize with the barrier's
	// exclusive holder before any global lock acquisition.
	MarkBatchParticipant()

	// IsBatchParticipant reports whether MarkBatchParticipant was called.
	IsBatchParticipant() bool

	// EnterBatchShared blocks while the batch barrier is held exclusively,
	// then holds the shared side. Nested calls only bump a depth counter.
	// No-op for non-participants.
	EnterBatchShared()

	// ExitBatchShared undoes one EnterBatchShared.
	ExitBatchShared()
}

// HeldLock is one entry of a LockSnapshot.
type HeldLock struct {
	Resource ResourceID
	Mode     LockMode
	Count    uint32
}

// LockSnapshot captures everything a context held at the time of a
// SaveAndReleaseAll. It is produced by the tracker and consumed only by
// Restore; callers must treat it as opaque.
type LockSnapshot struct {
	Locks []HeldLock
}

// Empty reports whether the snapshot is the distinguished zero-lock capture.
func (s *LockSnapshot) Empty() bool {
	return s == nil || len(s.Locks) == 0
}
