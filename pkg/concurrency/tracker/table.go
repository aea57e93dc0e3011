// Package tracker provides the in-process reference implementation of the
// concurrency.Locker contract: per-context lock state over a shared
// conflict table.
//
// One Table is shared by every LockContext in the process. The table only
// knows which context holds which mode on which resource and who is
// waiting; reference counting, hierarchy rules, and snapshots live in
// LockContext and the guards above it.
package tracker

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/stratumdb/stratum/internal/logger"
	"github.com/stratumdb/stratum/pkg/concurrency"
)

// tracerName identifies spans created around blocking waits.
const tracerName = "github.com/stratumdb/stratum/pkg/concurrency/tracker"

// Table is the shared conflict table all lock contexts acquire through.
//
// Grant policy: a request compatible with every current holder is granted
// immediately only while nobody is queued; otherwise it queues FIFO behind
// the existing waiters. On each release (and on waiter removal) the queue
// is swept in order and granting stops at the first waiter that still
// conflicts, so a writer is never starved by a stream of later readers.
// Conversions of an existing grant bypass the queue, since waiting behind a
// request that is itself blocked on this context's grant would deadlock.
// Beyond that the table makes no fairness promises.
type Table struct {
	mu        sync.Mutex
	resources map[concurrency.ResourceID]*resourceState

	metrics *Metrics
	tracer  trace.Tracer
}

type resourceState struct {
	granted map[string]concurrency.LockMode // context ID -> held mode
	queue   []*waiter
}

type waiter struct {
	ctxID string
	mode  concurrency.LockMode

	// convert is true when the context already holds this resource in a
	// weaker mode and is waiting to replace it with a stronger one.
	convert bool

	// granted is set under Table.mu before ready is closed, and re-checked
	// by timed waiters that lose the race between grant and timeout.
	granted bool
	ready   chan struct{}
}

// NewTable creates a conflict table. metrics may be nil.
func NewTable(metrics *Metrics) *Table {
	return &Table{
		resources: make(map[concurrency.ResourceID]*resourceState),
		metrics:   metrics,
		tracer:    otel.Tracer(tracerName),
	}
}

// acquire grants res to ctxID in mode, blocking up to timeout (negative
// means forever). It returns the effective granted mode: for a conversion
// the effective mode is the weakest mode covering both the old and the new
// one, so rights already handed out to nested guards are never lost.
func (t *Table) acquire(ctxID string, res concurrency.ResourceID, mode concurrency.LockMode, timeout time.Duration) (concurrency.LockMode, error) {
	t.mu.Lock()

	rs := t.resources[res]
	if rs == nil {
		rs = &resourceState{granted: make(map[string]concurrency.LockMode)}
		t.resources[res] = rs
	}

	held, converting := rs.granted[ctxID]
	effective := mode
	if converting {
		effective = combineModes(held, mode)
	}

	// A fresh request joins the queue whenever anyone is already waiting,
	// even if it is compatible with the granted set: letting it through
	// would starve the queued waiters. Conversions bypass the queue, since
	// parking a context behind a waiter that is itself blocked on that
	// context's current grant would self-deadlock.
	if rs.compatibleWith(effective, ctxID) && (converting || len(rs.queue) == 0) {
		rs.granted[ctxID] = effective
		t.mu.Unlock()
		if !converting {
			t.metrics.ObserveGrant(res.Level)
		}
		t.metrics.ObserveAcquire(res.Level, mode, StatusGranted)
		return effective, nil
	}

	w := &waiter{
		ctxID:   ctxID,
		mode:    effective,
		convert: converting,
		ready:   make(chan struct{}),
	}
	rs.queue = append(rs.queue, w)
	t.mu.Unlock()

	granted := t.wait(w, res, mode, timeout)
	if !granted {
		t.mu.Lock()
		if w.granted {
			// Granted between the deadline firing and us re-locking the
			// table; accept the grant.
			t.mu.Unlock()
			if !converting {
				t.metrics.ObserveGrant(res.Level)
			}
			t.metrics.ObserveAcquire(res.Level, mode, StatusGranted)
			return effective, nil
		}
		rs.removeWaiter(w)
		// The removed waiter may have been the head blocking compatible
		// waiters behind it.
		rs.sweepQueue()
		t.mu.Unlock()

		logger.Warn("bounded lock wait timed out",
			logger.KeyResource, res.String(),
			logger.KeyMode, mode.String(),
			logger.KeyTimeout, timeout.String(),
			logger.KeyContextID, ctxID)
		t.metrics.ObserveAcquire(res.Level, mode, StatusTimeout)
		return concurrency.ModeNone, concurrency.NewLockTimeoutError(res, mode, timeout)
	}

	if !converting {
		t.metrics.ObserveGrant(res.Level)
	}
	t.metrics.ObserveAcquire(res.Level, mode, StatusGranted)
	return effective, nil
}

// wait blocks on the waiter's ready channel, bounded by timeout when it is
// non-negative. The blocking window is traced and measured.
func (t *Table) wait(w *waiter, res concurrency.ResourceID, mode concurrency.LockMode, timeout time.Duration) bool {
	start := time.Now()
	_, span := t.tracer.Start(context.Background(), "lock.wait",
		trace.WithAttributes(
			attribute.String("lock.resource", res.String()),
			attribute.String("lock.mode", mode.String()),
		))
	defer func() {
		span.End()
		t.metrics.ObserveBlockingDuration(res.Level, time.Since(start))
		logger.Debug("lock wait finished",
			logger.KeyResource, res.String(),
			logger.KeyMode, mode.String(),
			logger.KeyDurationMs, logger.Duration(start))
	}()

	if timeout < 0 {
		<-w.ready
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.ready:
		return true
	case <-timer.C:
		return false
	}
}

// release drops ctxID's grant on res entirely and hands the resource to as
// many queued waiters as now fit.
func (t *Table) release(ctxID string, res concurrency.ResourceID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs := t.resources[res]
	if rs == nil {
		return
	}

	if _, ok := rs.granted[ctxID]; !ok {
		return
	}
	delete(rs.granted, ctxID)
	t.metrics.ObserveRelease(res.Level)

	rs.sweepQueue()

	if len(rs.granted) == 0 && len(rs.queue) == 0 {
		delete(t.resources, res)
	}
}

// modeHeld returns the mode the table has granted ctxID on res.
func (t *Table) modeHeld(ctxID string, res concurrency.ResourceID) concurrency.LockMode {
	t.mu.Lock()
	defer t.mu.Unlock()

	rs := t.resources[res]
	if rs == nil {
		return concurrency.ModeNone
	}
	return rs.granted[ctxID]
}

// compatibleWith reports whether mode can coexist with every grant on the
// resource other than ctxID's own.
func (rs *resourceState) compatibleWith(mode concurrency.LockMode, ctxID string) bool {
	for holder, held := range rs.granted {
		if holder == ctxID {
			continue
		}
		if !concurrency.Compatible(held, mode) {
			return false
		}
	}
	return true
}

// sweepQueue grants queued waiters in FIFO order, stopping at the first one
// that still conflicts.
func (rs *resourceState) sweepQueue() {
	for len(rs.queue) > 0 {
		w := rs.queue[0]
		if !rs.compatibleWith(w.mode, w.ctxID) {
			return
		}
		rs.granted[w.ctxID] = w.mode
		w.granted = true
		close(w.ready)
		rs.queue = rs.queue[1:]
	}
}

// removeWaiter drops a timed-out waiter from the queue.
func (rs *resourceState) removeWaiter(target *waiter) {
	for i, w := range rs.queue {
		if w == target {
			rs.queue = append(rs.queue[:i], rs.queue[i+1:]...)
			return
		}
	}
}

// combineModes returns the weakest mode that covers both a and b. The only
// incomparable pair in the lattice is IX/S, which combines to X.
func combineModes(a, b concurrency.LockMode) concurrency.LockMode {
	if concurrency.Covers(a, b) {
		return a
	}
	if concurrency.Covers(b, a) {
		return b
	}
	return concurrency.ModeX
}
