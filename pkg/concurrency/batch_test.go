package concurrency_test

import (
	"testing"
	"time"

	"github.com/stratumdb/stratum/pkg/concurrency"
	"github.com/stratumdb/stratum/pkg/concurrency/tracker"
)

func TestBatchBarrier_ExclusiveBlocksParticipantGuards(t *testing.T) {
	t.Parallel()

	table := tracker.NewTable(nil)
	barrier := concurrency.NewBatchBarrier()

	participant := tracker.NewLockContext(table, barrier)
	participant.MarkBatchParticipant()

	excl := barrier.Exclusive("batch-op")

	constructed := make(chan struct{})
	go func() {
		db := concurrency.NewDBLock(participant, "test", concurrency.ModeIX)
		close(constructed)
		db.Close()
	}()

	select {
	case <-constructed:
		t.Fatal("participant guard must block while the barrier is exclusive")
	case <-time.After(50 * time.Millisecond):
	}

	excl.Close()

	select {
	case <-constructed:
	case <-time.After(time.Second):
		t.Fatal("participant guard did not proceed after exclusive release")
	}
}

func TestBatchBarrier_NonParticipantUnaffected(t *testing.T) {
	t.Parallel()

	table := tracker.NewTable(nil)
	barrier := concurrency.NewBatchBarrier()

	bystander := tracker.NewLockContext(table, barrier)

	excl := barrier.Exclusive("batch-op")
	defer excl.Close()

	// Contexts that never marked themselves participants ignore the barrier.
	db := concurrency.NewDBLock(bystander, "test", concurrency.ModeIX)
	db.Close()
}

func TestBatchBarrier_SharedSideDrainsBeforeExclusive(t *testing.T) {
	t.Parallel()

	table := tracker.NewTable(nil)
	barrier := concurrency.NewBatchBarrier()

	participant := tracker.NewLockContext(table, barrier)
	participant.MarkBatchParticipant()

	db := concurrency.NewDBLock(participant, "test", concurrency.ModeIS)

	acquired := make(chan struct{})
	go func() {
		excl := barrier.Exclusive("batch-op")
		close(acquired)
		excl.Close()
	}()

	select {
	case <-acquired:
		t.Fatal("exclusive must wait for the participant guard to close")
	case <-time.After(50 * time.Millisecond):
	}

	db.Close()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("exclusive did not proceed after shared holders drained")
	}
}

func TestBatchBarrier_NestedGuardsSingleSharedHold(t *testing.T) {
	t.Parallel()

	table := tracker.NewTable(nil)
	barrier := concurrency.NewBatchBarrier()

	participant := tracker.NewLockContext(table, barrier)
	participant.MarkBatchParticipant()

	// Nested guards must not deadlock against a pending exclusive: the
	// context takes the shared side once, not per guard.
	db := concurrency.NewDBLock(participant, "test", concurrency.ModeIX)

	pending := make(chan struct{})
	go func() {
		excl := barrier.Exclusive("batch-op")
		close(pending)
		excl.Close()
	}()

	// Give the exclusive attempt time to queue behind the shared hold.
	time.Sleep(20 * time.Millisecond)

	coll := concurrency.NewCollectionLock(participant, "test.users", concurrency.ModeIX)
	g := concurrency.NewGlobalRead(participant)
	g.Close()
	coll.Close()
	db.Close()

	select {
	case <-pending:
	case <-time.After(time.Second):
		t.Fatal("exclusive starved by nested participant guards")
	}
}

func TestBatchBarrier_ExclusiveRecursiveForOwner(t *testing.T) {
	t.Parallel()

	barrier := concurrency.NewBatchBarrier()

	nested := make(chan struct{})
	go func() {
		outer := barrier.Exclusive("maint-ctx")
		inner := barrier.Exclusive("maint-ctx") // same owner nests
		inner.Close()
		outer.Close()
		close(nested)
	}()

	select {
	case <-nested:
	case <-time.After(time.Second):
		t.Fatal("owner re-entering the exclusive gate deadlocked")
	}
}

func TestBatchBarrier_ExclusiveHeldUntilOutermostClose(t *testing.T) {
	t.Parallel()

	barrier := concurrency.NewBatchBarrier()

	outer := barrier.Exclusive("maint-ctx")
	inner := barrier.Exclusive("maint-ctx")

	acquired := make(chan struct{})
	go func() {
		excl := barrier.Exclusive("other-ctx")
		close(acquired)
		excl.Close()
	}()

	inner.Close()
	select {
	case <-acquired:
		t.Fatal("inner Close must not release the gate to another owner")
	case <-time.After(50 * time.Millisecond):
	}

	outer.Close()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("outermost Close did not release the gate")
	}
}

func TestBatchBarrier_DistinctOwnersExclude(t *testing.T) {
	t.Parallel()

	barrier := concurrency.NewBatchBarrier()

	held := barrier.Exclusive("ctx-a")

	acquired := make(chan struct{})
	go func() {
		excl := barrier.Exclusive("ctx-b")
		close(acquired)
		excl.Close()
	}()

	select {
	case <-acquired:
		t.Fatal("a second owner must block while the gate is held")
	case <-time.After(50 * time.Millisecond):
	}

	held.Close()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second owner not admitted after release")
	}
}
