package concurrency

import (
	"time"

	"github.com/stratumdb/stratum/internal/logger"
)

// The scoped guards below are the sole supported acquisition surface for
// application code. Each guard acquires its ancestor and target locks
// bottom-up on construction and releases them top-down on Close. Guard
// nesting (innermost constructed, innermost closed first) combined with the
// containment rules makes hierarchy-violating lock orders unrepresentable.
//
// Close is single-shot: each guard releases exactly once.

// scopedLock carries what every global-touching guard shares: the owning
// lock context and, for batch participants, a hold on the barrier's shared
// side for the guard's lifetime.
type scopedLock struct {
	lockState   Locker
	batchShared bool
}

func enterScope(lockState Locker) scopedLock {
	sl := scopedLock{lockState: lockState}
	if lockState.IsBatchParticipant() {
		lockState.EnterBatchShared()
		sl.batchShared = true
	}
	return sl
}

func (sl *scopedLock) exitScope() {
	if sl.batchShared {
		sl.lockState.ExitBatchShared()
		sl.batchShared = false
	}
}

// ============================================================================
// Global guards
// ============================================================================

// GlobalWrite holds the global resource in X: exclusive access to every
// database and collection. Further (recursive) global acquisition by the
// same context nests without self-deadlock.
type GlobalWrite struct {
	scopedLock
}

// NewGlobalWrite acquires the global lock in X, waiting as long as it takes.
func NewGlobalWrite(lockState Locker) *GlobalWrite {
	g, err := NewGlobalWriteTimeout(lockState, WaitForever)
	invariant(err == nil, "unbounded global X acquisition failed: %v", err)
	return g
}

// NewGlobalWriteTimeout acquires the global lock in X, waiting at most
// timeout. On timeout no partial state is retained and a timeout error is
// returned.
func NewGlobalWriteTimeout(lockState Locker, timeout time.Duration) (*GlobalWrite, error) {
	sl := enterScope(lockState)
	if err := lockState.Acquire(ResourceGlobal, ModeX, timeout); err != nil {
		sl.exitScope()
		return nil, err
	}
	return &GlobalWrite{scopedLock: sl}, nil
}

// Close releases the global lock.
func (g *GlobalWrite) Close() {
	g.lockState.Release(ResourceGlobal)
	g.exitScope()
}

// GlobalRead holds the global resource in S: concurrent read access to
// every database and collection, blocking all writers.
type GlobalRead struct {
	scopedLock
}

// NewGlobalRead acquires the global lock in S, waiting as long as it takes.
func NewGlobalRead(lockState Locker) *GlobalRead {
	g, err := NewGlobalReadTimeout(lockState, WaitForever)
	invariant(err == nil, "unbounded global S acquisition failed: %v", err)
	return g
}

// NewGlobalReadTimeout acquires the global lock in S, waiting at most
// timeout.
func NewGlobalReadTimeout(lockState Locker, timeout time.Duration) (*GlobalRead, error) {
	sl := enterScope(lockState)
	if err := lockState.Acquire(ResourceGlobal, ModeS, timeout); err != nil {
		sl.exitScope()
		return nil, err
	}
	return &GlobalRead{scopedLock: sl}, nil
}

// Close releases the global lock.
func (g *GlobalRead) Close() {
	g.lockState.Release(ResourceGlobal)
	g.exitScope()
}

// ============================================================================
// Database guard
// ============================================================================

// DBLock holds a database in one of IS, IX, S, X, with the global intent
// lock (IS for IS/S, IX for IX/X) acquired first. When collection-level
// locking is disabled, IS is upgraded to S and IX to X transparently.
type DBLock struct {
	scopedLock
	id   ResourceID
	mode LockMode
}

// NewDBLock acquires the global intent lock and then the named database in
// the given mode, waiting as long as it takes.
func NewDBLock(lockState Locker, db string, mode LockMode) *DBLock {
	invariant(mode != ModeNone && mode.IsValid(), "database %q locked with invalid mode %s", db, mode)

	if !CollectionLockingEnabled() {
		mode = upgradeIntent(mode)
	}

	sl := enterScope(lockState)
	mustAcquire(lockState, ResourceGlobal, IntentMode(mode))

	id := DatabaseResource(db)
	mustAcquire(lockState, id, mode)

	return &DBLock{scopedLock: sl, id: id, mode: mode}
}

// Mode returns the mode currently held on the database.
func (l *DBLock) Mode() LockMode {
	return l.mode
}

// RelockWithMode releases the database-level lock and re-acquires it in
// newMode while the already-held global intent lock stays in place, so the
// database cannot be dropped during the gap.
//
// Relocking from IS or S to IX or X is forbidden: it would invalidate the
// global intent already granted. Destroy and reconstruct the guard instead,
// or acquire the stronger mode from the start.
func (l *DBLock) RelockWithMode(newMode LockMode) {
	invariant(newMode != ModeNone && newMode.IsValid(), "database %q relocked with invalid mode %s", l.id.Name, newMode)
	invariant(!(l.mode.IsShared() && !newMode.IsShared()),
		"database %q relock %s -> %s would strengthen past the held global intent", l.id.Name, l.mode, newMode)

	if !CollectionLockingEnabled() {
		newMode = upgradeIntent(newMode)
	}

	logger.Debug("database relock",
		logger.KeyResource, l.id.String(),
		logger.KeyMode, l.mode.String(),
		logger.KeyNewMode, newMode.String(),
		logger.KeyContextID, l.lockState.ID())

	l.lockState.Release(l.id)
	mustAcquire(l.lockState, l.id, newMode)
	l.mode = newMode
}

// Close releases the database lock and then the global intent lock.
func (l *DBLock) Close() {
	l.lockState.Release(l.id)
	l.lockState.Release(ResourceGlobal)
	l.exitScope()
}

// ============================================================================
// Collection guard
// ============================================================================

// CollectionLock holds a collection in one of IS, IX, S, X. A DBLock
// covering the same namespace must already be held in the matching intent
// mode; that precondition is a caller contract checked defensively, not
// re-derived. When document-level locking is disabled, IS is upgraded to S
// and IX to X transparently.
type CollectionLock struct {
	lockState Locker
	id        ResourceID
	mode      LockMode
}

// NewCollectionLock acquires the named "db.collection" namespace in the
// given mode. The database is the only required ancestor; no further
// hierarchy traversal happens here.
func NewCollectionLock(lockState Locker, ns string, mode LockMode) *CollectionLock {
	invariant(mode != ModeNone && mode.IsValid(), "collection %q locked with invalid mode %s", ns, mode)
	invariant(lockState.IsLockHeldForMode(DatabaseResource(ns), IntentMode(mode)),
		"collection %q locked in %s without a covering database lock", ns, mode)

	if !DocumentLockingEnabled() {
		mode = upgradeIntent(mode)
	}

	id := CollectionResource(ns)
	mustAcquire(lockState, id, mode)

	return &CollectionLock{lockState: lockState, id: id, mode: mode}
}

// Mode returns the mode currently held on the collection.
func (l *CollectionLock) Mode() LockMode {
	return l.mode
}

// RelockWithMode releases the collection-level lock and re-acquires it in
// newMode. The DBLock whose intent protects the gap is passed explicitly so
// the lock to preserve is unambiguous; it must belong to the same context
// and cover newMode. The IS/S -> IX/X restriction from DBLock.RelockWithMode
// applies here for the same reason.
func (l *CollectionLock) RelockWithMode(newMode LockMode, db *DBLock) {
	invariant(newMode != ModeNone && newMode.IsValid(), "collection %q relocked with invalid mode %s", l.id.Name, newMode)
	invariant(db != nil && db.lockState == l.lockState, "collection %q relocked against a foreign database guard", l.id.Name)
	invariant(db.id == DatabaseResource(l.id.Name),
		"collection %q relocked against a guard for database %q", l.id.Name, db.id.Name)
	invariant(!(l.mode.IsShared() && !newMode.IsShared()),
		"collection %q relock %s -> %s would strengthen past the held database intent", l.id.Name, l.mode, newMode)
	invariant(l.lockState.IsLockHeldForMode(db.id, IntentMode(newMode)),
		"collection %q relock to %s without a covering database lock", l.id.Name, newMode)

	if !DocumentLockingEnabled() {
		newMode = upgradeIntent(newMode)
	}

	l.lockState.Release(l.id)
	mustAcquire(l.lockState, l.id, newMode)
	l.mode = newMode
}

// Close releases the collection lock.
func (l *CollectionLock) Close() {
	l.lockState.Release(l.id)
}

// ============================================================================
// Generic resource guard
// ============================================================================

// ResourceLock is a general-purpose guard for resources outside the
// global/database/collection hierarchy. It performs exactly one
// acquire/release pair with no hierarchy checks or global locking; callers
// own whatever ordering discipline is needed among mutex resources.
type ResourceLock struct {
	lockState Locker
	id        ResourceID
}

// NewResourceLock acquires the resource in the given mode, waiting as long
// as it takes.
func NewResourceLock(lockState Locker, id ResourceID, mode LockMode) *ResourceLock {
	invariant(mode != ModeNone && mode.IsValid(), "resource %s locked with invalid mode %s", id, mode)
	mustAcquire(lockState, id, mode)
	return &ResourceLock{lockState: lockState, id: id}
}

// Close releases the resource.
func (l *ResourceLock) Close() {
	l.lockState.Release(l.id)
}

// mustAcquire performs an unbounded acquisition. Unbounded waits only fail
// on caller bugs (invalid mode), so failure is an invariant violation.
func mustAcquire(lockState Locker, res ResourceID, mode LockMode) {
	err := lockState.Acquire(res, mode, WaitForever)
	invariant(err == nil, "unbounded acquisition of %s in %s failed: %v", res, mode, err)
}
