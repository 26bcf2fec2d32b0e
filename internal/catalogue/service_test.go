package catalogue

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/properties"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

func newService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	categories := sqlite.NewCategoryRepository()
	units := sqlite.NewUnitRepository()
	engine := properties.NewEngine(categories, sqlite.NewCatalogueItemRepository(), sqlite.NewItemRepository(), units)
	return NewService(store, categories, units, engine)
}

// TestMoveRejectsCycle mirrors spec.md scenario S2: moving a category
// under its own descendant must be rejected before any write happens.
func TestMoveRejectsCycle(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, NewCategory{Name: "Optics", IsLeaf: false})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	child, err := svc.Create(ctx, NewCategory{Name: "Lenses", ParentID: &root.ID, IsLeaf: false})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	_, err = svc.Move(ctx, root.ID, &child.ID)
	if !kinderr.Is(err, kinderr.KindInvalidAction) {
		t.Fatalf("expected invalid-action moving a node under its own descendant, got %v", err)
	}

	// The attempted cycle must not have mutated the root's parent.
	got, err := svc.Get(ctx, root.ID)
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if got.ParentID != nil {
		t.Fatal("root's parent_id should be unchanged after a rejected move")
	}
}

// TestSetIsLeafBlockedByChildElements mirrors spec.md scenario S3: a
// category cannot flip leaf status while child categories exist.
func TestSetIsLeafBlockedByChildElements(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, NewCategory{Name: "Optics", IsLeaf: false})
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	if _, err := svc.Create(ctx, NewCategory{Name: "Lenses", ParentID: &root.ID, IsLeaf: true}); err != nil {
		t.Fatalf("create child: %v", err)
	}

	_, err = svc.SetIsLeaf(ctx, root.ID, true)
	if !kinderr.Is(err, kinderr.KindChildElementsExist) {
		t.Fatalf("expected child-elements-exist, got %v", err)
	}
}

func TestCreateRejectsLeafParent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	leaf, err := svc.Create(ctx, NewCategory{Name: "Lenses", IsLeaf: true})
	if err != nil {
		t.Fatalf("create leaf: %v", err)
	}
	_, err = svc.Create(ctx, NewCategory{Name: "Sub", ParentID: &leaf.ID, IsLeaf: true})
	if !kinderr.Is(err, kinderr.KindLeafParent) {
		t.Fatalf("expected leaf-parent, got %v", err)
	}
}

// TestCreateRejectsDuplicateRootCode is the service-layer regression test
// for sibling-code uniqueness (I1) among root categories: two categories
// with names that slugify to the same code, both with no parent, must not
// both be creatable.
func TestCreateRejectsDuplicateRootCode(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, NewCategory{Name: "Optics", IsLeaf: false}); err != nil {
		t.Fatalf("create first root: %v", err)
	}
	_, err := svc.Create(ctx, NewCategory{Name: "Optics", IsLeaf: false})
	if !kinderr.Is(err, kinderr.KindDuplicateRecord) {
		t.Fatalf("expected duplicate-record creating a second root with the same code, got %v", err)
	}
}

// TestBreadcrumbsTruncation mirrors spec.md scenario S4: a chain longer
// than the configured max trail length is truncated, with full_trail=false.
func TestBreadcrumbsTruncation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	var parentID *ids.ID
	var leafID ids.ID
	for i := 0; i < 6; i++ {
		c, err := svc.Create(ctx, NewCategory{Name: categoryName(i), ParentID: parentID, IsLeaf: false})
		if err != nil {
			t.Fatalf("create level %d: %v", i, err)
		}
		parentID = &c.ID
		leafID = c.ID
	}

	bc, err := svc.Breadcrumbs(ctx, leafID, 5)
	if err != nil {
		t.Fatalf("breadcrumbs: %v", err)
	}
	if bc.FullTrail {
		t.Fatal("expected full_trail=false when the chain exceeds max_trail_length")
	}
	if len(bc.Trail) != 5 {
		t.Fatalf("expected trail truncated to 5 entries, got %d", len(bc.Trail))
	}

	bcFull, err := svc.Breadcrumbs(ctx, leafID, 10)
	if err != nil {
		t.Fatalf("breadcrumbs (untruncated): %v", err)
	}
	if !bcFull.FullTrail {
		t.Fatal("expected full_trail=true when max_trail_length comfortably covers the chain")
	}
	if len(bcFull.Trail) != 6 {
		t.Fatalf("expected all 6 entries (self plus 5 ancestors), got %d", len(bcFull.Trail))
	}
}

func categoryName(i int) string {
	names := []string{"Level0", "Level1", "Level2", "Level3", "Level4", "Level5"}
	return names[i]
}
