package concurrency

import (
	"sync"

	"github.com/stratumdb/stratum/internal/logger"
)

// BatchBarrier is the systemwide exclusive gate used by maintenance
// operations that must see a frozen system. It is orthogonal to the
// resource hierarchy: holding it grants no resource-level lock, and it is
// not suspended by TempRelease.
//
// The barrier is created once at process start and injected into every
// LockContext; it lives until process shutdown. Exactly one context holds
// the exclusive side at a time; re-entry by that owner nests via a depth
// count instead of self-deadlocking. Every context that might conflict with
// a batch operation marks itself a participant on its Locker; participant
// guards then hold the shared side for their lifetime, so they block at
// construction until the exclusive holder (if any) finishes.
type BatchBarrier struct {
	mu sync.RWMutex

	// ownerMu guards the exclusive-side bookkeeping. owner and depth are
	// only meaningful while depth > 0, i.e. while mu is write-held.
	ownerMu sync.Mutex
	owner   string
	depth   int
}

// NewBatchBarrier creates the process-wide barrier.
func NewBatchBarrier() *BatchBarrier {
	return &BatchBarrier{}
}

// Exclusive blocks until every shared holder has drained, then holds the
// barrier exclusively until the matching Close. ownerID identifies the
// acquiring context; when the current exclusive owner re-enters, the hold
// nests and only the outermost Close releases the gate. Distinct owners
// exclude each other as usual.
func (b *BatchBarrier) Exclusive(ownerID string) *BatchExclusive {
	b.ownerMu.Lock()
	if b.depth > 0 && b.owner == ownerID {
		b.depth++
		b.ownerMu.Unlock()
		return &BatchExclusive{barrier: b}
	}
	b.ownerMu.Unlock()

	b.mu.Lock()

	b.ownerMu.Lock()
	b.owner = ownerID
	b.depth = 1
	b.ownerMu.Unlock()

	logger.Debug("batch barrier held exclusively", logger.KeyContextID, ownerID)
	return &BatchExclusive{barrier: b}
}

// EnterShared blocks while the barrier is held exclusively, then holds the
// shared side. This is the participation check: Locker implementations call
// it on behalf of participant guards; application code never calls it
// directly. Per-context nesting is the Locker's responsibility.
func (b *BatchBarrier) EnterShared() {
	b.mu.RLock()
}

// ExitShared releases one shared hold.
func (b *BatchBarrier) ExitShared() {
	b.mu.RUnlock()
}

// BatchExclusive holds one level of the barrier's exclusive side.
type BatchExclusive struct {
	barrier *BatchBarrier
}

// Close releases one exclusive level; the outermost Close lets blocked
// participants proceed.
func (e *BatchExclusive) Close() {
	b := e.barrier

	b.ownerMu.Lock()
	if b.depth == 0 {
		b.ownerMu.Unlock()
		panic("concurrency: batch barrier closed while not held")
	}
	b.depth--
	release := b.depth == 0
	if release {
		b.owner = ""
	}
	b.ownerMu.Unlock()

	if release {
		logger.Debug("batch barrier released")
		b.mu.Unlock()
	}
}
