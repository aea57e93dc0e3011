package tracker

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stratumdb/stratum/internal/logger"
	"github.com/stratumdb/stratum/pkg/concurrency"
)

// Verify LockContext satisfies the Locker contract at compile time.
var _ concurrency.Locker = (*LockContext)(nil)

// LockContext is the per-execution-context lock tracker. Each execution
// context (session, replication worker, maintenance job) owns exactly one
// LockContext and uses it from a single goroutine; only the Table behind it
// is shared.
type LockContext struct {
	id      string
	table   *Table
	barrier *concurrency.BatchBarrier

	// held maps each resource to the context's single hold on it. A context
	// never holds two modes for one resource: stronger reacquisition
	// converts the mode in place.
	held map[concurrency.ResourceID]*heldLock

	batchParticipant bool
	batchDepth       int
}

type heldLock struct {
	mode  concurrency.LockMode
	count uint32
}

// NewLockContext creates a context over the shared table. barrier may be
// nil when the process runs without batch operations.
func NewLockContext(table *Table, barrier *concurrency.BatchBarrier) *LockContext {
	return &LockContext{
		id:      uuid.New().String(),
		table:   table,
		barrier: barrier,
		held:    make(map[concurrency.ResourceID]*heldLock),
	}
}

// ID returns the context identifier.
func (lc *LockContext) ID() string {
	return lc.id
}

// Acquire implements concurrency.Locker.
//
// A request covered by the current hold only bumps the reference count. A
// stronger request goes to the table as a conversion: the granted mode
// replaces the held one and the count still increments, so the matching
// Release unwinds it symmetrically.
func (lc *LockContext) Acquire(res concurrency.ResourceID, mode concurrency.LockMode, timeout time.Duration) error {
	if mode == concurrency.ModeNone || !mode.IsValid() {
		return concurrency.NewInvalidModeError(res, mode)
	}

	if h := lc.held[res]; h != nil {
		if concurrency.Covers(h.mode, mode) {
			h.count++
			return nil
		}

		effective, err := lc.table.acquire(lc.id, res, mode, timeout)
		if err != nil {
			return err
		}
		h.mode = effective
		h.count++
		return nil
	}

	effective, err := lc.table.acquire(lc.id, res, mode, timeout)
	if err != nil {
		return err
	}
	lc.held[res] = &heldLock{mode: effective, count: 1}
	return nil
}

// Release implements concurrency.Locker.
func (lc *LockContext) Release(res concurrency.ResourceID) bool {
	h := lc.held[res]
	if h == nil {
		logger.Warn("release of unheld resource",
			logger.KeyResource, res.String(),
			logger.KeyContextID, lc.id)
		return false
	}

	h.count--
	if h.count > 0 {
		return false
	}

	delete(lc.held, res)
	lc.table.release(lc.id, res)
	return true
}

// ModeHeld implements concurrency.Locker.
func (lc *LockContext) ModeHeld(res concurrency.ResourceID) concurrency.LockMode {
	if h := lc.held[res]; h != nil {
		return h.mode
	}
	return concurrency.ModeNone
}

// IsLockHeldForMode implements concurrency.Locker.
func (lc *LockContext) IsLockHeldForMode(res concurrency.ResourceID, mode concurrency.LockMode) bool {
	return concurrency.Covers(lc.ModeHeld(res), mode)
}

// HeldCount returns how many resources the context currently holds. Used by
// tests and diagnostics.
func (lc *LockContext) HeldCount() int {
	return len(lc.held)
}

// SaveAndReleaseAll implements concurrency.Locker.
//
// Recursive holds cannot be partially unwound, so any reference count above
// one makes the state unreleasable and the call reports false without
// touching anything.
func (lc *LockContext) SaveAndReleaseAll() (*concurrency.LockSnapshot, bool) {
	if len(lc.held) == 0 {
		lc.table.metrics.ObserveTempRelease(true)
		return &concurrency.LockSnapshot{}, true
	}

	for _, h := range lc.held {
		if h.count > 1 {
			lc.table.metrics.ObserveTempRelease(false)
			return nil, false
		}
	}

	snapshot := &concurrency.LockSnapshot{
		Locks: make([]concurrency.HeldLock, 0, len(lc.held)),
	}
	for res, h := range lc.held {
		snapshot.Locks = append(snapshot.Locks, concurrency.HeldLock{
			Resource: res,
			Mode:     h.mode,
			Count:    h.count,
		})
		lc.table.release(lc.id, res)
	}
	clear(lc.held)

	logger.Debug("temporarily released all locks",
		logger.KeyContextID, lc.id,
		logger.KeyHeld, len(snapshot.Locks))
	lc.table.metrics.ObserveTempRelease(true)
	return snapshot, true
}

// Restore implements concurrency.Locker.
func (lc *LockContext) Restore(snapshot *concurrency.LockSnapshot) {
	if snapshot.Empty() {
		return
	}

	for _, saved := range snapshot.Locks {
		effective, err := lc.table.acquire(lc.id, saved.Resource, saved.Mode, concurrency.WaitForever)
		if err != nil {
			panic(fmt.Sprintf("tracker: snapshot restore of %s in %s failed: %v", saved.Resource, saved.Mode, err))
		}
		lc.held[saved.Resource] = &heldLock{mode: effective, count: saved.Count}
	}
}

// MarkBatchParticipant implements concurrency.Locker.
func (lc *LockContext) MarkBatchParticipant() {
	lc.batchParticipant = true
}

// IsBatchParticipant implements concurrency.Locker.
func (lc *LockContext) IsBatchParticipant() bool {
	return lc.batchParticipant
}

// EnterBatchShared implements concurrency.Locker. The barrier's shared side
// is taken once per context; nested guards only deepen the count, which is
// safe because a context never leaves its goroutine.
func (lc *LockContext) EnterBatchShared() {
	if !lc.batchParticipant || lc.barrier == nil {
		return
	}
	if lc.batchDepth == 0 {
		lc.barrier.EnterShared()
	}
	lc.batchDepth++
}

// ExitBatchShared implements concurrency.Locker.
func (lc *LockContext) ExitBatchShared() {
	if !lc.batchParticipant || lc.barrier == nil {
		return
	}
	if lc.batchDepth == 0 {
		panic("tracker: unbalanced batch barrier exit")
	}
	lc.batchDepth--
	if lc.batchDepth == 0 {
		lc.barrier.ExitShared()
	}
}
