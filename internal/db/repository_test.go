// Package db tests for repository operations.
package db

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/models"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	sqlDB := openMemory(t)
	m := NewMigrator(sqlDB, nil)
	if err := m.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	if err := m.Up(); err != nil {
		t.Fatalf("Up() failed: %v", err)
	}
	repo := NewRepository(sqlDB)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// TestPutMenu_roundTrip verifies a stored menu is returned by an index query.
func TestPutMenu_roundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	menu := &models.Menu{MenuID: "menu-1", Name: "Lunch", Description: "weekday"}
	id, err := repo.PutMenu(ctx, menu)
	if err != nil {
		t.Fatalf("PutMenu() failed: %v", err)
	}
	if id == 0 || menu.ID != id {
		t.Fatalf("PutMenu() id = %d, menu.ID = %d", id, menu.ID)
	}
	if menu.CreatedAt == 0 || menu.UpdatedAt != menu.CreatedAt {
		t.Errorf("timestamps not defaulted: created=%d updated=%d", menu.CreatedAt, menu.UpdatedAt)
	}

	got, err := repo.QueryMenus(ctx, "menuId", "menu-1")
	if err != nil {
		t.Fatalf("QueryMenus() failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("QueryMenus() returned %d menus, want 1", len(got))
	}
	if got[0].Name != "Lunch" || got[0].Description != "weekday" || got[0].Synced {
		t.Errorf("QueryMenus() = %+v", got[0])
	}
}

// TestPutMenu_upsert verifies writing with an existing id overwrites the record.
func TestPutMenu_upsert(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	menu := &models.Menu{MenuID: "menu-1", Name: "Lunch"}
	if _, err := repo.PutMenu(ctx, menu); err != nil {
		t.Fatalf("PutMenu() failed: %v", err)
	}

	menu.Name = "Dinner"
	menu.Synced = true
	if _, err := repo.PutMenu(ctx, menu); err != nil {
		t.Fatalf("second PutMenu() failed: %v", err)
	}

	n, err := repo.Count(ctx, CollectionMenus)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}

	got, err := repo.GetMenuByMenuID(ctx, "menu-1")
	if err != nil {
		t.Fatalf("GetMenuByMenuID() failed: %v", err)
	}
	if got.Name != "Dinner" || !got.Synced {
		t.Errorf("GetMenuByMenuID() = %+v", got)
	}
}

// TestGetMenuByMenuID_notFound verifies the not-found error code.
func TestGetMenuByMenuID_notFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetMenuByMenuID(context.Background(), "missing")
	if !IsNotFound(err) {
		t.Errorf("GetMenuByMenuID() error = %v, want not found", err)
	}
}

// TestPutMenuItem_nullableFields verifies optional columns survive a round trip.
func TestPutMenuItem_nullableFields(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	price := 12.5
	withPrice := &models.MenuItem{ItemID: "item-1", MenuID: "menu-1", Name: "Ramen", Price: &price, Category: "Mains"}
	noPrice := &models.MenuItem{ItemID: "item-2", MenuID: "menu-1", Name: "Water"}
	for _, item := range []*models.MenuItem{withPrice, noPrice} {
		if _, err := repo.PutMenuItem(ctx, item); err != nil {
			t.Fatalf("PutMenuItem() failed: %v", err)
		}
	}

	items, err := repo.ListMenuItems(ctx, "menu-1")
	if err != nil {
		t.Fatalf("ListMenuItems() failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ListMenuItems() returned %d items, want 2", len(items))
	}

	byID := map[string]*models.MenuItem{}
	for _, item := range items {
		byID[item.ItemID] = item
	}
	if byID["item-1"].Price == nil || *byID["item-1"].Price != 12.5 {
		t.Errorf("item-1 price = %v, want 12.5", byID["item-1"].Price)
	}
	if byID["item-1"].Category != "Mains" {
		t.Errorf("item-1 category = %q", byID["item-1"].Category)
	}
	if byID["item-2"].Price != nil {
		t.Errorf("item-2 price = %v, want nil", *byID["item-2"].Price)
	}
}

// TestQuery_ordering verifies results are ordered by created_at then id.
func TestQuery_ordering(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	uploads := []*models.PendingUpload{
		{Type: models.UploadTypeMenu, Endpoint: "/c", Method: models.MethodPost, CreatedAt: 300},
		{Type: models.UploadTypeMenu, Endpoint: "/a", Method: models.MethodPost, CreatedAt: 100},
		{Type: models.UploadTypeMenu, Endpoint: "/b1", Method: models.MethodPost, CreatedAt: 200},
		{Type: models.UploadTypeMenu, Endpoint: "/b2", Method: models.MethodPost, CreatedAt: 200},
	}
	for _, u := range uploads {
		if _, err := repo.PutPendingUpload(ctx, u); err != nil {
			t.Fatalf("PutPendingUpload() failed: %v", err)
		}
	}

	got, err := repo.QueryPendingUploads(ctx, "", nil)
	if err != nil {
		t.Fatalf("QueryPendingUploads() failed: %v", err)
	}
	want := []string{"/a", "/b1", "/b2", "/c"}
	if len(got) != len(want) {
		t.Fatalf("got %d uploads, want %d", len(got), len(want))
	}
	for i, u := range got {
		if u.Endpoint != want[i] {
			t.Errorf("position %d: endpoint = %q, want %q", i, u.Endpoint, want[i])
		}
	}
}

// TestQueryPendingUploads_empty verifies an empty queue yields an empty slice.
func TestQueryPendingUploads_empty(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.QueryPendingUploads(context.Background(), "type", "menu")
	if err != nil {
		t.Fatalf("QueryPendingUploads() failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("QueryPendingUploads() = %v, want empty slice", got)
	}
}

// TestQuery_unknownField verifies non-indexed fields are rejected.
func TestQuery_unknownField(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.QueryMenus(context.Background(), "imageBlob", "x")
	if !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Errorf("QueryMenus() error = %v, want INVALID_INPUT", err)
	}
}

// TestModifyWhere verifies matching records are patched and counted.
func TestModifyWhere(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	for _, id := range []string{"menu-1", "menu-1", "menu-2"} {
		if _, err := repo.PutMenu(ctx, &models.Menu{MenuID: id, Name: id}); err != nil {
			t.Fatalf("PutMenu() failed: %v", err)
		}
	}

	n, err := repo.ModifyWhere(ctx, CollectionMenus, "menuId", "menu-1", Patch{"synced": true})
	if err != nil {
		t.Fatalf("ModifyWhere() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("ModifyWhere() = %d, want 2", n)
	}

	synced, err := repo.QueryMenus(ctx, "synced", true)
	if err != nil {
		t.Fatalf("QueryMenus() failed: %v", err)
	}
	if len(synced) != 2 {
		t.Errorf("synced menus = %d, want 2", len(synced))
	}

	n, err = repo.ModifyWhere(ctx, CollectionMenus, "menuId", "absent", Patch{"synced": true})
	if err != nil || n != 0 {
		t.Errorf("ModifyWhere(absent) = %d, %v; want 0, nil", n, err)
	}
}

// TestModifyWhere_invalidField verifies unknown fields fail without writing.
func TestModifyWhere_invalidField(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	tests := []struct {
		name  string
		coll  Collection
		field string
		patch Patch
	}{
		{"unknown collection", Collection("orders"), "id", Patch{"synced": true}},
		{"non-indexed where field", CollectionMenus, "description", Patch{"synced": true}},
		{"non-patchable field", CollectionMenus, "menuId", Patch{"createdAt": 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.ModifyWhere(ctx, tt.coll, tt.field, "x", tt.patch)
			if !apperrors.Is(err, apperrors.ErrInvalid) {
				t.Errorf("ModifyWhere() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

// TestDelete_idempotent verifies deleting twice succeeds.
func TestDelete_idempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	upload := &models.PendingUpload{Type: models.UploadTypeMenu, Endpoint: "/api/menus", Method: models.MethodPost}
	id, err := repo.PutPendingUpload(ctx, upload)
	if err != nil {
		t.Fatalf("PutPendingUpload() failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.Delete(ctx, CollectionPendingUploads, id); err != nil {
			t.Fatalf("Delete() call %d failed: %v", i+1, err)
		}
	}

	n, _ := repo.Count(ctx, CollectionPendingUploads)
	if n != 0 {
		t.Errorf("Count() = %d, want 0", n)
	}
}

// TestInTx_rollback verifies a failing transaction leaves no writes behind.
func TestInTx_rollback(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	boom := errors.New("boom")

	err := repo.InTx(ctx, func(tx *Repository) error {
		if _, err := tx.PutMenu(ctx, &models.Menu{MenuID: "menu-1", Name: "Lunch"}); err != nil {
			return err
		}
		if _, err := tx.PutPendingUpload(ctx, &models.PendingUpload{
			Type: models.UploadTypeMenu, Endpoint: "/api/menus", Method: models.MethodPost,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want boom", err)
	}

	menus, _ := repo.Count(ctx, CollectionMenus)
	uploads, _ := repo.Count(ctx, CollectionPendingUploads)
	if menus != 0 || uploads != 0 {
		t.Errorf("after rollback: menus=%d uploads=%d, want 0,0", menus, uploads)
	}
}

// TestInTx_commit verifies writes are visible after commit, including nested calls.
func TestInTx_commit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	err := repo.InTx(ctx, func(tx *Repository) error {
		if _, err := tx.PutMenu(ctx, &models.Menu{MenuID: "menu-1", Name: "Lunch"}); err != nil {
			return err
		}
		return tx.InTx(ctx, func(inner *Repository) error {
			_, err := inner.PutMenuItem(ctx, &models.MenuItem{ItemID: "item-1", MenuID: "menu-1", Name: "Soup"})
			return err
		})
	})
	if err != nil {
		t.Fatalf("InTx() failed: %v", err)
	}

	if _, err := repo.GetMenuItemByItemID(ctx, "item-1"); err != nil {
		t.Errorf("GetMenuItemByItemID() after commit: %v", err)
	}
}

// TestIncrementRetryCount verifies the counter and missing-id reporting.
func TestIncrementRetryCount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	upload := &models.PendingUpload{Type: models.UploadTypeMenu, Endpoint: "/api/menus", Method: models.MethodPost}
	id, err := repo.PutPendingUpload(ctx, upload)
	if err != nil {
		t.Fatalf("PutPendingUpload() failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		ok, err := repo.IncrementRetryCount(ctx, id)
		if err != nil || !ok {
			t.Fatalf("IncrementRetryCount() = %v, %v", ok, err)
		}
	}

	got, err := repo.QueryPendingUploads(ctx, "retryCount", 3)
	if err != nil {
		t.Fatalf("QueryPendingUploads() failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != id {
		t.Errorf("QueryPendingUploads(retryCount=3) = %v", got)
	}

	ok, err := repo.IncrementRetryCount(ctx, id+100)
	if err != nil || ok {
		t.Errorf("IncrementRetryCount(missing) = %v, %v; want false, nil", ok, err)
	}
}

// TestCountPendingForKey verifies matching on type and data.id, ignoring bad JSON.
func TestCountPendingForKey(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	uploads := []*models.PendingUpload{
		{Type: models.UploadTypeMenu, Data: []byte(`{"id":"menu-1"}`), Endpoint: "/api/menus", Method: models.MethodPost},
		{Type: models.UploadTypeMenu, Data: []byte(`{"id":"menu-1","name":"x"}`), Endpoint: "/api/menus/menu-1", Method: models.MethodPut},
		{Type: models.UploadTypeMenuItem, Data: []byte(`{"id":"menu-1"}`), Endpoint: "/api/menu-items", Method: models.MethodPost},
		{Type: models.UploadTypeMenu, Data: []byte(`not json`), Endpoint: "/api/menus", Method: models.MethodPost},
	}
	for _, u := range uploads {
		if _, err := repo.PutPendingUpload(ctx, u); err != nil {
			t.Fatalf("PutPendingUpload() failed: %v", err)
		}
	}

	n, err := repo.CountPendingForKey(ctx, models.UploadTypeMenu, "menu-1")
	if err != nil {
		t.Fatalf("CountPendingForKey() failed: %v", err)
	}
	if n != 2 {
		t.Errorf("CountPendingForKey(menu, menu-1) = %d, want 2", n)
	}

	n, _ = repo.CountPendingForKey(ctx, models.UploadTypeMenu, "menu-2")
	if n != 0 {
		t.Errorf("CountPendingForKey(menu, menu-2) = %d, want 0", n)
	}
}

// TestPendingUploadStats verifies per-type counts and max retry.
func TestPendingUploadStats(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	uploads := []*models.PendingUpload{
		{Type: models.UploadTypeMenu, Endpoint: "/a", Method: models.MethodPost, RetryCount: 4},
		{Type: models.UploadTypeMenu, Endpoint: "/b", Method: models.MethodPost, RetryCount: 1},
		{Type: models.UploadTypeMenuItem, Endpoint: "/c", Method: models.MethodPost},
	}
	for _, u := range uploads {
		if _, err := repo.PutPendingUpload(ctx, u); err != nil {
			t.Fatalf("PutPendingUpload() failed: %v", err)
		}
	}

	stats, err := repo.PendingUploadStats(ctx)
	if err != nil {
		t.Fatalf("PendingUploadStats() failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stat rows, want 2", len(stats))
	}
	if stats[0].Type != models.UploadTypeMenu || stats[0].Count != 2 || stats[0].MaxRetryCount != 4 {
		t.Errorf("menu stats = %+v", stats[0])
	}
	if stats[1].Type != models.UploadTypeMenuItem || stats[1].Count != 1 {
		t.Errorf("menuItem stats = %+v", stats[1])
	}
}
