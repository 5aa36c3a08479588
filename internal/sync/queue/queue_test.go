// Package queue provides unit tests for the pending-upload queue.
package queue

import (
	"context"
	"sync"
	"testing"

	"github.com/kimhsiao/menuscan/backend/internal/db"
	"github.com/kimhsiao/menuscan/backend/internal/models"
)

func newTestQueue(t *testing.T) (*Queue, *db.Repository) {
	t.Helper()
	database, err := db.OpenAndMigrate(t.TempDir())
	if err != nil {
		t.Fatalf("OpenAndMigrate() failed: %v", err)
	}
	repo := db.NewRepository(database.DB)
	t.Cleanup(func() {
		repo.Close()
		database.Close()
	})
	return NewQueue(repo), repo
}

func menuUpload(id string) Upload {
	return Upload{
		Type:     models.UploadTypeMenu,
		Data:     map[string]interface{}{"id": id, "name": "Lunch"},
		Endpoint: "/api/menus",
		Method:   models.MethodPost,
	}
}

// TestQueueEnqueue tests enqueuing uploads.
func TestQueueEnqueue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	id, err := q.Enqueue(ctx, menuUpload("menu-1"))
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected non-zero id")
	}

	items, err := q.ListOrdered(ctx)
	if err != nil {
		t.Fatalf("ListOrdered failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.ID != id {
		t.Errorf("Expected id %d, got %d", id, item.ID)
	}
	if item.RetryCount != 0 {
		t.Errorf("Expected RetryCount 0, got %d", item.RetryCount)
	}
	if item.CreatedAt == 0 {
		t.Error("Expected CreatedAt to be set")
	}
	if key, ok := item.BusinessKey(); !ok || key != "menu-1" {
		t.Errorf("Expected business key menu-1, got %q", key)
	}
}

// TestQueueEnqueue_malformedAccepted tests that undeliverable uploads are stored.
func TestQueueEnqueue_malformedAccepted(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	if _, err := q.Enqueue(ctx, Upload{Type: models.UploadTypeMenu}); err != nil {
		t.Fatalf("Enqueue of upload without endpoint failed: %v", err)
	}

	items, _ := q.ListOrdered(ctx)
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if string(items[0].Data) != "{}" {
		t.Errorf("Expected empty payload, got %s", items[0].Data)
	}
}

// TestQueueEnqueue_monotonicCreatedAt tests FIFO order under a frozen clock.
func TestQueueEnqueue_monotonicCreatedAt(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)
	q.now = func() int64 { return 1000 }

	var ids []int64
	for _, key := range []string{"a", "b", "c"} {
		id, err := q.Enqueue(ctx, menuUpload(key))
		if err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
		ids = append(ids, id)
	}

	items, _ := q.ListOrdered(ctx)
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.ID != ids[i] {
			t.Errorf("position %d: expected id %d, got %d", i, ids[i], item.ID)
		}
		if i > 0 && item.CreatedAt <= items[i-1].CreatedAt {
			t.Errorf("createdAt not strictly increasing: %d after %d", item.CreatedAt, items[i-1].CreatedAt)
		}
	}
}

// TestQueueEnqueue_concurrent tests that concurrent enqueues all land.
func TestQueueEnqueue_concurrent(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Enqueue(ctx, menuUpload("menu-x")); err != nil {
				t.Errorf("Enqueue failed: %v", err)
			}
		}()
	}
	wg.Wait()

	size, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("Size failed: %v", err)
	}
	if size != 10 {
		t.Errorf("Expected 10 items, got %d", size)
	}
}

// TestQueueListOrdered_empty tests listing an empty queue.
func TestQueueListOrdered_empty(t *testing.T) {
	q, _ := newTestQueue(t)

	items, err := q.ListOrdered(context.Background())
	if err != nil {
		t.Fatalf("ListOrdered failed: %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("Expected empty slice, got %v", items)
	}
}

// TestQueueRemove tests removing uploads, including an absent id.
func TestQueueRemove(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	id, _ := q.Enqueue(ctx, menuUpload("menu-1"))

	if err := q.Remove(ctx, id); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := q.Remove(ctx, id); err != nil {
		t.Errorf("second Remove should succeed, got %v", err)
	}

	size, _ := q.Size(ctx)
	if size != 0 {
		t.Errorf("Expected empty queue, got %d", size)
	}
}

// TestQueueBumpRetry tests retry counting.
func TestQueueBumpRetry(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	id, _ := q.Enqueue(ctx, menuUpload("menu-1"))
	for i := 0; i < 5; i++ {
		if err := q.BumpRetry(ctx, id); err != nil {
			t.Fatalf("BumpRetry failed: %v", err)
		}
	}

	items, _ := q.ListOrdered(ctx)
	if items[0].RetryCount != 5 {
		t.Errorf("Expected RetryCount 5, got %d", items[0].RetryCount)
	}

	if err := q.BumpRetry(ctx, id+1); err != nil {
		t.Errorf("BumpRetry on missing id should succeed, got %v", err)
	}
}

// TestQueueHasPendingFor tests lookup by business key.
func TestQueueHasPendingFor(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	id, _ := q.Enqueue(ctx, menuUpload("menu-1"))

	pending, err := q.HasPendingFor(ctx, models.UploadTypeMenu, "menu-1")
	if err != nil {
		t.Fatalf("HasPendingFor failed: %v", err)
	}
	if !pending {
		t.Error("Expected pending upload for menu-1")
	}

	pending, _ = q.HasPendingFor(ctx, models.UploadTypeMenuItem, "menu-1")
	if pending {
		t.Error("Expected no menuItem upload for menu-1")
	}

	q.Remove(ctx, id)
	pending, _ = q.HasPendingFor(ctx, models.UploadTypeMenu, "menu-1")
	if pending {
		t.Error("Expected no pending upload after removal")
	}
}

// TestQueueStats tests queue statistics.
func TestQueueStats(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	first, _ := q.Enqueue(ctx, menuUpload("menu-1"))
	q.Enqueue(ctx, menuUpload("menu-2"))
	q.Enqueue(ctx, Upload{
		Type:     models.UploadTypeMenuItem,
		Data:     map[string]interface{}{"id": "item-1"},
		Endpoint: "/api/menu-items",
		Method:   models.MethodPost,
	})
	q.BumpRetry(ctx, first)
	q.BumpRetry(ctx, first)

	stats, err := q.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Expected 3 total, got %d", stats.Total)
	}
	if stats.ByType[models.UploadTypeMenu] != 2 || stats.ByType[models.UploadTypeMenuItem] != 1 {
		t.Errorf("Unexpected per-type counts: %v", stats.ByType)
	}
	if stats.MaxRetryCount != 2 {
		t.Errorf("Expected MaxRetryCount 2, got %d", stats.MaxRetryCount)
	}
}

// TestQueueClear tests clearing the queue.
func TestQueueClear(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	q.Enqueue(ctx, menuUpload("menu-1"))
	q.Enqueue(ctx, menuUpload("menu-2"))

	n, err := q.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 dropped, got %d", n)
	}

	size, _ := q.Size(ctx)
	if size != 0 {
		t.Errorf("Expected empty queue after clear, got %d", size)
	}
}

// TestQueueEnqueueTx_rollback tests that a rolled-back entity write drops its upload.
func TestQueueEnqueueTx_rollback(t *testing.T) {
	ctx := context.Background()
	q, repo := newTestQueue(t)

	err := repo.InTx(ctx, func(tx *db.Repository) error {
		if _, err := tx.PutMenu(ctx, &models.Menu{MenuID: "menu-1", Name: "Lunch"}); err != nil {
			return err
		}
		if _, err := q.EnqueueTx(ctx, tx, menuUpload("menu-1")); err != nil {
			return err
		}
		return context.Canceled
	})
	if err != context.Canceled {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	size, _ := q.Size(ctx)
	if size != 0 {
		t.Errorf("Expected no queued upload after rollback, got %d", size)
	}
}
