package store

import (
	"context"
	"testing"

	"github.com/rsahai/bizkeeper/internal/models"
)

func TestQueuePreservesEnqueueOrder(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	idA, _ := m.Create(ctx, CollectionProjects, Row{"name": "first"})
	idB, _ := m.Create(ctx, CollectionProjects, Row{"name": "second"})
	m.Update(ctx, CollectionProjects, idA, Row{"name": "first-edited"})

	items, err := m.PendingItems(ctx)
	if err != nil {
		t.Fatalf("PendingItems() failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("queue has %d items, want 3", len(items))
	}

	want := []struct {
		op models.SyncOp
		id string
	}{
		{models.OpCreate, idA},
		{models.OpCreate, idB},
		{models.OpUpdate, idA},
	}
	for i, w := range want {
		if items[i].Op != w.op || items[i].EntityID != w.id {
			t.Errorf("item %d = (%s, %s), want (%s, %s)", i, items[i].Op, items[i].EntityID, w.op, w.id)
		}
	}
	for i := 1; i < len(items); i++ {
		if items[i].LocalSeq <= items[i-1].LocalSeq {
			t.Errorf("local_seq not strictly increasing at %d", i)
		}
	}
}

func TestMarkItemDeliveredFlipsSyncedFlag(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, _ := m.Create(ctx, CollectionInvoices, Row{"invoiceNumber": "INV-001"})

	items, _ := m.PendingItems(ctx)
	if len(items) != 1 {
		t.Fatalf("queue has %d items, want 1", len(items))
	}

	if err := m.MarkItemDelivered(ctx, items[0]); err != nil {
		t.Fatalf("MarkItemDelivered() failed: %v", err)
	}

	count, _ := m.PendingSyncCount(ctx)
	if count != 0 {
		t.Errorf("PendingSyncCount() = %d, want 0 after delivery", count)
	}

	row, found, err := m.Get(ctx, CollectionInvoices, id)
	if err != nil || !found {
		t.Fatalf("Get() failed: found=%v err=%v", found, err)
	}
	if row["synced"] != true {
		t.Errorf("synced = %v, want true after last item delivered", row["synced"])
	}
}

func TestMarkItemDeliveredKeepsUnsyncedWhileItemsRemain(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, _ := m.Create(ctx, CollectionTasks, Row{"title": "draft"})
	m.Update(ctx, CollectionTasks, id, Row{"title": "final"})

	items, _ := m.PendingItems(ctx)
	if len(items) != 2 {
		t.Fatalf("queue has %d items, want 2", len(items))
	}

	// Deliver the create; the update is still outstanding.
	if err := m.MarkItemDelivered(ctx, items[0]); err != nil {
		t.Fatalf("MarkItemDelivered() failed: %v", err)
	}

	row, _, err := m.Get(ctx, CollectionTasks, id)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if row["synced"] != false {
		t.Errorf("synced = %v, want false while an item for the entity is queued", row["synced"])
	}

	if err := m.MarkItemDelivered(ctx, items[1]); err != nil {
		t.Fatalf("MarkItemDelivered() failed: %v", err)
	}
	row, _, _ = m.Get(ctx, CollectionTasks, id)
	if row["synced"] != true {
		t.Errorf("synced = %v, want true once the queue drains for the entity", row["synced"])
	}
}

func TestRecordItemFailureParksAfterMaxRetries(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Create(ctx, CollectionClients, Row{"name": "flaky"})

	const maxRetries = 3
	for attempt := 1; attempt <= maxRetries; attempt++ {
		items, err := m.PendingItems(ctx)
		if err != nil {
			t.Fatalf("PendingItems() failed: %v", err)
		}
		if attempt < maxRetries && len(items) != 1 {
			t.Fatalf("attempt %d: queue has %d items, want 1", attempt, len(items))
		}

		evicted, err := m.RecordItemFailure(ctx, items[0], errTest("boom"), maxRetries)
		if err != nil {
			t.Fatalf("RecordItemFailure() failed: %v", err)
		}
		if wantEvicted := attempt == maxRetries; evicted != wantEvicted {
			t.Errorf("attempt %d: evicted = %v, want %v", attempt, evicted, wantEvicted)
		}
	}

	pending, _ := m.PendingSyncCount(ctx)
	if pending != 0 {
		t.Errorf("PendingSyncCount() = %d, want 0 after eviction", pending)
	}

	failed, err := m.FailedSyncItems(ctx)
	if err != nil {
		t.Fatalf("FailedSyncItems() failed: %v", err)
	}
	if len(failed) != 1 {
		t.Fatalf("failed bucket has %d items, want 1", len(failed))
	}
	if failed[0].Status != models.SyncStatusFailed {
		t.Errorf("status = %s, want failed", failed[0].Status)
	}
	if failed[0].Retries != maxRetries {
		t.Errorf("retries = %d, want %d", failed[0].Retries, maxRetries)
	}
	if failed[0].LastError != "boom" {
		t.Errorf("last_error = %q, want boom", failed[0].LastError)
	}
}

func TestRetryFailedItemsRequeues(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Create(ctx, CollectionProjects, Row{"name": "p"})
	items, _ := m.PendingItems(ctx)
	for i := 0; i < 3; i++ {
		m.RecordItemFailure(ctx, items[0], errTest("down"), 3)
		items[0].Retries++
	}

	moved, err := m.RetryFailedItems(ctx)
	if err != nil {
		t.Fatalf("RetryFailedItems() failed: %v", err)
	}
	if moved != 1 {
		t.Errorf("RetryFailedItems() = %d, want 1", moved)
	}

	pending, _ := m.PendingItems(ctx)
	if len(pending) != 1 {
		t.Fatalf("queue has %d items after retry, want 1", len(pending))
	}
	if pending[0].Retries != 0 || pending[0].LastError != "" {
		t.Errorf("requeued item not reset: retries=%d last_error=%q", pending[0].Retries, pending[0].LastError)
	}

	failedCount, _ := m.FailedSyncCount(ctx)
	if failedCount != 0 {
		t.Errorf("FailedSyncCount() = %d, want 0", failedCount)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
