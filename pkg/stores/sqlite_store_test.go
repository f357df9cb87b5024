package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/singletons/pkg/catalog"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{
		Path: ":memory:",
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}

	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testSnapshot compiles a small catalog into a snapshot.
func testSnapshot(t *testing.T, id string, compiledAt time.Time, status CompilationStatus) *Snapshot {
	t.Helper()
	ctx := context.Background()

	cat := catalog.New(catalog.WithID(id))
	if err := cat.IncludeClass(ctx, "singleton"); err != nil {
		t.Fatal(err)
	}
	if err := cat.Declare(ctx, "package", "singleton_package_vim", map[string]interface{}{"ensure": "latest", "name": "vim"}); err != nil {
		t.Fatal(err)
	}
	if err := cat.DeclareFrom(ctx, "manifest", "user", "fu", map[string]interface{}{"groups": []interface{}{"wheel"}}); err != nil {
		t.Fatal(err)
	}

	doc := cat.Document()
	doc.CreatedAt = compiledAt

	snap, err := NewSnapshot(&Compilation{
		Manifest:    "site.star",
		Status:      status,
		Environment: "test",
		DurationMs:  12,
	}, doc)
	if err != nil {
		t.Fatalf("NewSnapshot failed: %v", err)
	}
	return snap
}

// TestStoreLifecycle tests database initialization and closure
func TestStoreLifecycle(t *testing.T) {
	store, err := NewSQLiteStore(Config{
		Path: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ctx := context.Background()
	if err := store.HealthCheck(ctx); err == nil {
		t.Error("expected health check to fail before Init")
	}
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	// A second run has nothing to apply.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("repeated migration failed: %v", err)
	}
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

// TestStoreMigrations tests database migrations
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	tables := []string{"compilations", "catalog_resources", "catalog_classes"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
}

func TestCompilationRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	compiledAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := testSnapshot(t, "c-1", compiledAt, CompilationStatusSuccess)
	if err := store.SaveCompilation(ctx, snap); err != nil {
		t.Fatalf("SaveCompilation failed: %v", err)
	}

	got, err := store.GetCompilation(ctx, "c-1")
	if err != nil {
		t.Fatalf("GetCompilation failed: %v", err)
	}
	c := got.Compilation
	if c.Manifest != "site.star" || c.Status != CompilationStatusSuccess || c.Environment != "test" {
		t.Errorf("unexpected compilation: %+v", c)
	}
	if c.ResourceCount != 2 || c.ClassCount != 1 || c.DurationMs != 12 || c.Diagnostics != "[]" {
		t.Errorf("unexpected counts: %+v", c)
	}
	if !c.CompiledAt.Equal(compiledAt) {
		t.Errorf("CompiledAt = %v, want %v", c.CompiledAt, compiledAt)
	}

	doc, err := got.Document()
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if len(doc.Classes) != 1 || doc.Classes[0] != "singleton" {
		t.Errorf("unexpected classes: %v", doc.Classes)
	}
	if len(doc.Resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(doc.Resources))
	}
	vim := doc.Resources[0]
	if vim.Ref() != "Package['singleton_package_vim']" || vim.Parameters["ensure"] != "latest" || vim.Source != "singleton" {
		t.Errorf("unexpected first resource: %+v", vim)
	}
	user := doc.Resources[1]
	groups, ok := user.Parameters["groups"].([]interface{})
	if user.Source != "manifest" || !ok || len(groups) != 1 || groups[0] != "wheel" {
		t.Errorf("unexpected second resource: %+v", user)
	}

	if err := store.SaveCompilation(ctx, snap); err == nil {
		t.Error("expected error saving the same compilation twice")
	}
}

func TestGetCompilation_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetCompilation(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListCompilations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	statuses := []CompilationStatus{
		CompilationStatusSuccess,
		CompilationStatusFailed,
		CompilationStatusSuccess,
		CompilationStatusRejected,
	}
	for i, status := range statuses {
		snap := testSnapshot(t, string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour), status)
		if err := store.SaveCompilation(ctx, snap); err != nil {
			t.Fatalf("SaveCompilation failed: %v", err)
		}
	}

	success := CompilationStatusSuccess
	other := "other.star"
	tests := []struct {
		name string
		opts ListOptions
		want []string
	}{
		{"all newest first", ListOptions{}, []string{"d", "c", "b", "a"}},
		{"limit", ListOptions{Limit: 2}, []string{"d", "c"}},
		{"offset", ListOptions{Limit: 2, Offset: 2}, []string{"b", "a"}},
		{"by status", ListOptions{Status: &success}, []string{"c", "a"}},
		{"by manifest", ListOptions{Manifest: &other}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ListCompilations(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListCompilations failed: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d compilations, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestListResources_ByKind(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SaveCompilation(ctx, testSnapshot(t, "c-1", time.Now().UTC(), CompilationStatusSuccess)); err != nil {
		t.Fatalf("SaveCompilation failed: %v", err)
	}

	kind := "User"
	users, err := store.ListResources(ctx, "c-1", &kind)
	if err != nil {
		t.Fatalf("ListResources failed: %v", err)
	}
	if len(users) != 1 || users[0].Title != "fu" || users[0].Position != 1 {
		t.Errorf("unexpected resources: %+v", users)
	}
}

func TestDeleteCompilation_Cascades(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := store.SaveCompilation(ctx, testSnapshot(t, "c-1", time.Now().UTC(), CompilationStatusSuccess)); err != nil {
		t.Fatalf("SaveCompilation failed: %v", err)
	}
	if err := store.DeleteCompilation(ctx, "c-1"); err != nil {
		t.Fatalf("DeleteCompilation failed: %v", err)
	}

	for _, table := range []string{"catalog_resources", "catalog_classes"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Errorf("%s has %d orphaned rows", table, count)
		}
	}

	if err := store.DeleteCompilation(ctx, "c-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPruneCompilations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		snap := testSnapshot(t, id, base.Add(time.Duration(i)*time.Minute), CompilationStatusSuccess)
		if err := store.SaveCompilation(ctx, snap); err != nil {
			t.Fatalf("SaveCompilation failed: %v", err)
		}
	}

	deleted, err := store.PruneCompilations(ctx, 1)
	if err != nil {
		t.Fatalf("PruneCompilations failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d, want 2", deleted)
	}
	left, err := store.ListCompilations(ctx, ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].ID != "new" {
		t.Errorf("unexpected remaining compilations: %+v", left)
	}

	if _, err := store.PruneCompilations(ctx, -1); err == nil {
		t.Error("expected error for negative keep")
	}
}
