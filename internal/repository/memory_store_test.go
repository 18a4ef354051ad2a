package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/subman/internal/model"
)

const testWorkspaceID = "3f0b8f0e-8a4e-4d0b-9f50-6f3a3d0c2a11"

func newTestInput(name string) model.NewSubscription {
	return model.NewSubscription{
		Name:        name,
		Amount:      decimal.RequireFromString("9.99"),
		Currency:    "USD",
		Frequency:   model.FrequencyMonthly,
		NextPayment: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Labels:      []string{" video ", "video", "", "family"},
	}
}

// Createが採番・既定値・ラベル正規化を行うことを検証
func TestMemoryStore_Create_AssignsDefaults(t *testing.T) {
	store, err := NewMemoryStore("")
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	repo := ForWorkspace(store, testWorkspaceID)

	sub, err := repo.Create(context.Background(), newTestInput("Netflix"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sub.ID == "" {
		t.Error("expected generated ID")
	}
	if !sub.AutoRenewal {
		t.Error("AutoRenewal should default to true")
	}
	if sub.CreatedAt.IsZero() || !sub.CreatedAt.Equal(sub.UpdatedAt) {
		t.Errorf("timestamps = %v / %v, want equal non-zero", sub.CreatedAt, sub.UpdatedAt)
	}
	if len(sub.Labels) != 2 || sub.Labels[0] != "video" || sub.Labels[1] != "family" {
		t.Errorf("Labels = %v, want [video family]", sub.Labels)
	}
	if sub.WorkspaceID != testWorkspaceID {
		t.Errorf("WorkspaceID = %q, want %q", sub.WorkspaceID, testWorkspaceID)
	}
}

// インポート時に指定されたIDが維持されることを検証
func TestMemoryStore_Create_PreservesGivenID(t *testing.T) {
	store, _ := NewMemoryStore("")
	repo := ForWorkspace(store, testWorkspaceID)

	in := newTestInput("Spotify")
	in.ID = "legacy-1"
	disabled := false
	in.AutoRenewal = &disabled

	sub, err := repo.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if sub.ID != "legacy-1" {
		t.Errorf("ID = %q, want %q", sub.ID, "legacy-1")
	}
	if sub.AutoRenewal {
		t.Error("AutoRenewal should be false")
	}

	if _, err := repo.Create(context.Background(), in); err == nil {
		t.Error("expected error for duplicate id in the same workspace")
	}
}

// 作成時にワークスペースが暗黙的に初期化されることを検証
func TestMemoryStore_Create_InitializesWorkspace(t *testing.T) {
	store, _ := NewMemoryStore("")
	if _, err := ForWorkspace(store, testWorkspaceID).Create(context.Background(), newTestInput("Zoom")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ws, err := store.FindByID(context.Background(), testWorkspaceID)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if ws == nil {
		t.Fatal("expected workspace to be created")
	}
	if ws.Name != model.DefaultWorkspaceName {
		t.Errorf("Name = %q, want %q", ws.Name, model.DefaultWorkspaceName)
	}
}

// ワークスペース間でデータが分離されることを検証
func TestMemoryStore_WorkspaceIsolation(t *testing.T) {
	store, _ := NewMemoryStore("")
	ctx := context.Background()
	a := ForWorkspace(store, "ws-a")
	b := ForWorkspace(store, "ws-b")

	sub, _ := a.Create(ctx, newTestInput("Netflix"))

	list, err := b.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() error = %v", err)
	}
	if len(list) != 0 {
		t.Errorf("len(list) = %d, want 0", len(list))
	}
	if err := b.Delete(ctx, sub.ID); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Delete() from other workspace error = %v, want ErrNotFound", err)
	}
}

// Updateがフィールドを部分更新し、IDを維持することを検証
func TestMemoryStore_Update(t *testing.T) {
	store, _ := NewMemoryStore("")
	current := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }
	ctx := context.Background()
	repo := ForWorkspace(store, testWorkspaceID)

	sub, _ := repo.Create(ctx, newTestInput("Netflix"))
	current = current.Add(time.Hour)

	name := "Netflix Premium"
	next := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	if err := repo.Update(ctx, sub.ID, model.SubscriptionPatch{Name: &name, NextPayment: &next}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	list, _ := repo.ListAll(ctx)
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != sub.ID {
		t.Errorf("ID = %q, want %q", got.ID, sub.ID)
	}
	if got.Name != name {
		t.Errorf("Name = %q, want %q", got.Name, name)
	}
	if !got.NextPayment.Equal(next) {
		t.Errorf("NextPayment = %v, want %v", got.NextPayment, next)
	}
	if got.Currency != "USD" {
		t.Errorf("Currency = %q, want unchanged USD", got.Currency)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Errorf("UpdatedAt = %v should be after CreatedAt = %v", got.UpdatedAt, got.CreatedAt)
	}
}

func TestMemoryStore_UpdateDelete_NotFound(t *testing.T) {
	store, _ := NewMemoryStore("")
	repo := ForWorkspace(store, testWorkspaceID)
	ctx := context.Background()

	name := "x"
	if err := repo.Update(ctx, "missing", model.SubscriptionPatch{Name: &name}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

// 返却値を変更してもストア内のデータに影響しないことを検証
func TestMemoryStore_ListAll_ReturnsCopies(t *testing.T) {
	store, _ := NewMemoryStore("")
	ctx := context.Background()
	repo := ForWorkspace(store, testWorkspaceID)
	_, _ = repo.Create(ctx, newTestInput("Netflix"))

	list, _ := repo.ListAll(ctx)
	list[0].Name = "mutated"
	list[0].Labels[0] = "mutated"

	again, _ := repo.ListAll(ctx)
	if again[0].Name != "Netflix" || again[0].Labels[0] != "video" {
		t.Errorf("store was mutated through returned value: %+v", again[0])
	}
}

func TestMemoryStore_ShareToken(t *testing.T) {
	store, _ := NewMemoryStore("")
	ctx := context.Background()
	_, _ = ForWorkspace(store, testWorkspaceID).Create(ctx, newTestInput("Netflix"))

	if _, err := store.ListByShareToken(ctx, "token-1"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("ListByShareToken() before share error = %v, want ErrNotFound", err)
	}

	if err := store.SetShareToken(ctx, testWorkspaceID, "token-1"); err != nil {
		t.Fatalf("SetShareToken() error = %v", err)
	}
	list, err := store.ListByShareToken(ctx, "token-1")
	if err != nil {
		t.Fatalf("ListByShareToken() error = %v", err)
	}
	if len(list) != 1 {
		t.Errorf("len(list) = %d, want 1", len(list))
	}

	ws, _ := store.FindByShareToken(ctx, "token-1")
	if ws == nil || ws.ID != testWorkspaceID {
		t.Errorf("FindByShareToken() = %+v, want workspace %s", ws, testWorkspaceID)
	}
}

func TestMemoryStore_WorkspaceUpdates_NotFound(t *testing.T) {
	store, _ := NewMemoryStore("")
	ctx := context.Background()
	if err := store.UpdateName(ctx, "missing", "x"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("UpdateName() error = %v, want ErrNotFound", err)
	}
	if err := store.UpdateSortOption(ctx, "missing", "name-asc"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("UpdateSortOption() error = %v, want ErrNotFound", err)
	}
}

// ファイル永続化したデータが再起動後に読み込まれることを検証
func TestMemoryStore_PersistsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "data.json")
	ctx := context.Background()

	store, err := NewMemoryStore(path)
	if err != nil {
		t.Fatalf("NewMemoryStore() error = %v", err)
	}
	in := newTestInput("Netflix")
	in.Colors = model.Colors{"primary": "#E50914"}
	created, err := ForWorkspace(store, testWorkspaceID).Create(ctx, in)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := store.UpdateSortOption(ctx, testWorkspaceID, "name-asc"); err != nil {
		t.Fatalf("UpdateSortOption() error = %v", err)
	}

	reopened, err := NewMemoryStore(path)
	if err != nil {
		t.Fatalf("NewMemoryStore() reopen error = %v", err)
	}
	list, _ := ForWorkspace(reopened, testWorkspaceID).ListAll(ctx)
	if len(list) != 1 {
		t.Fatalf("len(list) = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != created.ID {
		t.Errorf("ID = %q, want %q", got.ID, created.ID)
	}
	if !got.Amount.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("Amount = %s, want 9.99", got.Amount)
	}
	if got.Colors["primary"] != "#E50914" {
		t.Errorf("Colors = %v", got.Colors)
	}
	ws, _ := reopened.FindByID(ctx, testWorkspaceID)
	if ws == nil || ws.SortOption != "name-asc" {
		t.Errorf("workspace = %+v, want sort name-asc", ws)
	}
}
