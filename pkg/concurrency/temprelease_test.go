package concurrency_test

import (
	"testing"
	"time"

	"github.com/stratumdb/stratum/pkg/concurrency"
	"github.com/stratumdb/stratum/pkg/concurrency/tracker"
)

func TestTempRelease_RoundTrip(t *testing.T) {
	t.Parallel()

	ctxs := newSharedContexts(t, 2)

	db := concurrency.NewDBLock(ctxs[0], "test", concurrency.ModeIX)
	coll := concurrency.NewCollectionLock(ctxs[0], "test.users", concurrency.ModeIX)

	tr := concurrency.NewTempRelease(ctxs[0])
	if !tr.Released() {
		t.Fatal("expected locks to be released")
	}
	if ctxs[0].HeldCount() != 0 {
		t.Fatal("expected no locks during the release window")
	}

	// Another context can take the whole system while the window is open.
	g := concurrency.NewGlobalWrite(ctxs[1])
	g.Close()

	tr.Close()
	if got := ctxs[0].ModeHeld(concurrency.ResourceGlobal); got != concurrency.ModeIX {
		t.Fatalf("global mode = %s, want IX restored", got)
	}
	if got := ctxs[0].ModeHeld(concurrency.DatabaseResource("test")); got != concurrency.ModeIX {
		t.Fatalf("database mode = %s, want IX restored", got)
	}
	if got := ctxs[0].ModeHeld(concurrency.CollectionResource("test.users")); got != concurrency.ModeIX {
		t.Fatalf("collection mode = %s, want IX restored", got)
	}

	coll.Close()
	db.Close()
	if ctxs[0].HeldCount() != 0 {
		t.Fatal("locks leaked after guards closed")
	}
}

func TestTempRelease_RecursiveHolds_NoOp(t *testing.T) {
	t.Parallel()

	ctxs := newSharedContexts(t, 2)

	outer := concurrency.NewGlobalWrite(ctxs[0])
	inner := concurrency.NewGlobalWrite(ctxs[0])

	tr := concurrency.NewTempRelease(ctxs[0])
	if tr.Released() {
		t.Fatal("recursive holds must make the release a no-op")
	}

	// The lock is still held: another context must time out.
	_, err := concurrency.NewGlobalWriteTimeout(ctxs[1], 20*time.Millisecond)
	if !concurrency.IsTimeoutError(err) {
		t.Fatalf("expected timeout while no-op release is open, got %v", err)
	}

	tr.Close() // no-op
	if got := ctxs[0].ModeHeld(concurrency.ResourceGlobal); got != concurrency.ModeX {
		t.Fatalf("global mode = %s, want X untouched", got)
	}

	inner.Close()
	outer.Close()
}

func TestTempRelease_NothingHeld(t *testing.T) {
	t.Parallel()

	lc := newContext(t)

	tr := concurrency.NewTempRelease(lc)
	if !tr.Released() {
		t.Fatal("empty lock state must release trivially")
	}
	tr.Close()

	if lc.HeldCount() != 0 {
		t.Fatal("restore of an empty snapshot must not create locks")
	}
}

func TestTempRelease_BatchParticipantKeepsBarrier(t *testing.T) {
	t.Parallel()

	table := tracker.NewTable(nil)
	barrier := concurrency.NewBatchBarrier()
	lc := tracker.NewLockContext(table, barrier)
	lc.MarkBatchParticipant()

	db := concurrency.NewDBLock(lc, "test", concurrency.ModeIS)

	tr := concurrency.NewTempRelease(lc)
	if !tr.Released() {
		t.Fatal("expected locks to be released")
	}

	// The barrier's shared side is not a tracked lock: an exclusive attempt
	// must still block while the guard scope is open.
	acquired := make(chan struct{})
	go func() {
		excl := barrier.Exclusive("batch-op")
		close(acquired)
		excl.Close()
	}()

	select {
	case <-acquired:
		t.Fatal("batch barrier must stay held across a temporary release")
	case <-time.After(50 * time.Millisecond):
	}

	tr.Close()
	db.Close()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("batch barrier not released after guard closed")
	}
}
