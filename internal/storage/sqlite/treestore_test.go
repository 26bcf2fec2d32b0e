package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustID(t *testing.T) ids.ID {
	t.Helper()
	id, err := ids.New()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	return id
}

func insertCategoryRow(t *testing.T, store *Store, id ids.ID, name string, parentID *ids.ID) {
	t.Helper()
	var parentStr any
	if parentID != nil {
		parentStr = parentID.String()
	}
	_, err := store.ExecContext(context.Background(), `
		INSERT INTO catalogue_categories (id, name, code, parent_id, is_leaf, properties)
		VALUES (?, ?, ?, ?, ?, '[]')
	`, id.String(), name, ids.Slugify(name), parentStr, false)
	if err != nil {
		t.Fatalf("insert category row: %v", err)
	}
}

func TestTreeStoreBreadcrumbsDetectsOrphanedParent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	tree := TreeStore{Table: "catalogue_categories"}

	missingParent := mustID(t)
	leaf := mustID(t)
	insertCategoryRow(t, store, leaf, "Lenses", &missingParent)

	_, err := tree.Breadcrumbs(ctx, store, leaf, 5)
	if !kinderr.Is(err, kinderr.KindDatabaseIntegrity) {
		t.Fatalf("expected database-integrity for an orphaned parent link above self, got %v", err)
	}
}

func TestTreeStoreBreadcrumbsMissingNode(t *testing.T) {
	store := openTestStore(t)
	tree := TreeStore{Table: "catalogue_categories"}

	_, err := tree.Breadcrumbs(context.Background(), store, mustID(t), 5)
	if !kinderr.Is(err, kinderr.KindMissingRecord) {
		t.Fatalf("expected missing-record for a non-existent starting node, got %v", err)
	}
}

func TestTreeStoreCheckMoveValidDetectsCycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	tree := TreeStore{Table: "catalogue_categories"}

	root := mustID(t)
	insertCategoryRow(t, store, root, "Optics", nil)
	child := mustID(t)
	insertCategoryRow(t, store, child, "Lenses", &root)

	if err := tree.CheckMoveValid(ctx, store, root, child); !kinderr.Is(err, kinderr.KindInvalidAction) {
		t.Fatalf("expected invalid-action moving root under its own descendant, got %v", err)
	}

	if err := tree.CheckMoveValid(ctx, store, root, root); !kinderr.Is(err, kinderr.KindInvalidAction) {
		t.Fatalf("expected invalid-action moving a node under itself, got %v", err)
	}

	unrelated := mustID(t)
	insertCategoryRow(t, store, unrelated, "Filters", nil)
	if err := tree.CheckMoveValid(ctx, store, child, unrelated); err != nil {
		t.Fatalf("expected an unrelated move target to be valid, got %v", err)
	}
}

func TestTreeStoreHasChildElements(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	tree := TreeStore{Table: "catalogue_categories"}

	root := mustID(t)
	insertCategoryRow(t, store, root, "Optics", nil)

	has, err := tree.HasChildElements(ctx, store, root)
	if err != nil {
		t.Fatalf("has child elements: %v", err)
	}
	if has {
		t.Fatal("expected no child elements for a freshly created leaf-less node")
	}

	child := mustID(t)
	insertCategoryRow(t, store, child, "Lenses", &root)

	has, err = tree.HasChildElements(ctx, store, root)
	if err != nil {
		t.Fatalf("has child elements after adding a child: %v", err)
	}
	if !has {
		t.Fatal("expected a child category to be detected")
	}
}

func TestWriteLockRowRequiresExistingRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return WriteLockRow(ctx, tx, "catalogue_categories", mustID(t))
	})
	if !kinderr.Is(err, kinderr.KindMissingRecord) {
		t.Fatalf("expected missing-record locking a non-existent row, got %v", err)
	}

	root := mustID(t)
	insertCategoryRow(t, store, root, "Optics", nil)
	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return WriteLockRow(ctx, tx, "catalogue_categories", root)
	})
	if err != nil {
		t.Fatalf("expected locking an existing row to succeed, got %v", err)
	}
}

func TestIsUniqueConstraintErrNil(t *testing.T) {
	if IsUniqueConstraintErr(nil) {
		t.Fatal("expected nil to never be a unique constraint error")
	}
}

// TestIsUniqueConstraintErrDuplicateSiblingCode is the regression test for
// the sibling-code expression indexes in schema.go: a plain
// UNIQUE(parent_id, code) would not catch this, since SQLite treats every
// NULL parent_id as distinct from every other, so two root categories could
// reuse the same code. idx_catalogue_categories_sibling_code folds parent_id
// through COALESCE(parent_id, '') so roots collide like any other sibling
// set, and I1 (sibling-code uniqueness) holds at the root too.
func TestIsUniqueConstraintErrDuplicateSiblingCode(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	root := mustID(t)
	insertCategoryRow(t, store, root, "Optics", nil)

	_, err := store.ExecContext(ctx, `
		INSERT INTO catalogue_categories (id, name, code, parent_id, is_leaf, properties)
		VALUES (?, ?, ?, ?, ?, '[]')
	`, mustID(t).String(), "Optics Again", "optics", nil, false)
	if !IsUniqueConstraintErr(err) {
		t.Fatalf("expected a duplicate root-level code insert to be detected as a unique constraint error, got %v", err)
	}
}
