package properties

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func mustNewID(t *testing.T) ids.ID {
	t.Helper()
	id, err := ids.New()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	return id
}

// TestAddPropertyCascade mirrors spec.md scenario S1: adding a mandatory
// property with a default value to a leaf category must cascade the new
// denormalised entry onto every catalogue item and item beneath it.
func TestAddPropertyCascade(t *testing.T) {
	store := openStore(t)
	categories := sqlite.NewCategoryRepository()
	catalogueItems := sqlite.NewCatalogueItemRepository()
	items := sqlite.NewItemRepository()
	units := sqlite.NewUnitRepository()
	engine := NewEngine(categories, catalogueItems, items, units)

	ctx := context.Background()
	categoryID := mustNewID(t)
	propB := mustNewID(t)
	if err := categories.Create(ctx, store, &model.CatalogueCategory{
		ID: categoryID, Name: "Lenses", Code: "lenses", IsLeaf: true,
		Properties: []model.PropertyDescriptor{{ID: propB, Name: "Property B", Type: model.PropertyTypeBoolean}},
	}); err != nil {
		t.Fatalf("create category: %v", err)
	}

	manufacturerID := mustNewID(t)
	if _, err := store.ExecContext(ctx, `
		INSERT INTO manufacturers (id, name, code, url, address_line, postcode, country)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, manufacturerID.String(), "Acme", "acme", "https://acme.test", "1 Street", "AB1 2CD", "UK"); err != nil {
		t.Fatalf("insert manufacturer: %v", err)
	}

	catalogueItemID := mustNewID(t)
	if err := catalogueItems.Create(ctx, store, &model.CatalogueItem{
		ID: catalogueItemID, CatalogueCategoryID: categoryID, ManufacturerID: manufacturerID,
		Name: "50mm Lens", CostGBP: 10, DaysToReplace: 1,
		Properties: []model.StoredProperty{{ID: propB, Name: "Property B", Value: false}},
	}); err != nil {
		t.Fatalf("create catalogue item: %v", err)
	}

	unitID := mustNewID(t)
	if _, err := store.ExecContext(ctx, `INSERT INTO units (id, value, code) VALUES (?, ?, ?)`, unitID.String(), "millimeters", "mm"); err != nil {
		t.Fatalf("insert unit: %v", err)
	}

	itemID := mustNewID(t)
	if err := items.Create(ctx, store, &model.Item{
		ID: itemID, CatalogueItemID: catalogueItemID, SystemID: mustNewID(t), UsageStatusID: mustNewID(t),
		Properties: []model.StoredProperty{{ID: propB, Name: "Property B", Value: false}},
	}); err != nil {
		t.Fatalf("create item: %v", err)
	}

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		_, err := engine.AddProperty(ctx, tx, categoryID, NewProperty{
			Name: "Diameter", Type: model.PropertyTypeNumber, UnitID: &unitID, Mandatory: true, DefaultValue: float64(42),
		})
		return err
	})
	if err != nil {
		t.Fatalf("AddProperty: %v", err)
	}

	category, err := categories.Get(ctx, store, categoryID)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if len(category.Properties) != 2 {
		t.Fatalf("expected 2 properties on category, got %d", len(category.Properties))
	}

	ci, err := catalogueItems.Get(ctx, store, catalogueItemID)
	if err != nil {
		t.Fatalf("get catalogue item: %v", err)
	}
	if len(ci.Properties) != 2 || ci.Properties[1].Name != "Diameter" || ci.Properties[1].Unit != "millimeters" || ci.Properties[1].Value != float64(42) {
		t.Fatalf("catalogue item properties not cascaded correctly: %+v", ci.Properties)
	}

	it, err := items.Get(ctx, store, itemID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if len(it.Properties) != 2 || it.Properties[1].Name != "Diameter" || it.Properties[1].Value != float64(42) {
		t.Fatalf("item properties not cascaded correctly: %+v", it.Properties)
	}
	if it.Properties[1].ID != category.Properties[1].ID || ci.Properties[1].ID != category.Properties[1].ID {
		t.Fatal("cascaded property id must match the new schema descriptor's id across all three documents")
	}
}

// TestModifyAllowedValuesRejectsNonExtension mirrors spec.md scenario S6:
// a list's allowed_values may only ever gain members, never lose, reorder
// or replace existing ones.
func TestModifyAllowedValuesRejectsNonExtension(t *testing.T) {
	store := openStore(t)
	categories := sqlite.NewCategoryRepository()
	engine := NewEngine(categories, sqlite.NewCatalogueItemRepository(), sqlite.NewItemRepository(), sqlite.NewUnitRepository())

	ctx := context.Background()
	categoryID := mustNewID(t)
	propID := mustNewID(t)
	if err := categories.Create(ctx, store, &model.CatalogueCategory{
		ID: categoryID, Name: "Filters", Code: "filters", IsLeaf: true,
		Properties: []model.PropertyDescriptor{{
			ID: propID, Name: "Colour", Type: model.PropertyTypeString,
			AllowedValues: &model.AllowedValues{Kind: "list", Values: []any{"Red", "Green"}},
		}},
	}); err != nil {
		t.Fatalf("create category: %v", err)
	}

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return engine.ModifyAllowedValues(ctx, tx, categoryID, propID, []any{"Red", "Blue"})
	})
	if !kinderr.Is(err, kinderr.KindInvalidAction) {
		t.Fatalf("expected invalid-action when replacing an existing value, got %v", err)
	}

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return engine.ModifyAllowedValues(ctx, tx, categoryID, propID, []any{"Red"})
	})
	if !kinderr.Is(err, kinderr.KindInvalidAction) {
		t.Fatalf("expected invalid-action when shrinking the list, got %v", err)
	}

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return engine.ModifyAllowedValues(ctx, tx, categoryID, propID, []any{"Red", "Green", "Blue"})
	})
	if err != nil {
		t.Fatalf("extending with a new trailing value should be permitted: %v", err)
	}

	category, err := categories.Get(ctx, store, categoryID)
	if err != nil {
		t.Fatalf("get category: %v", err)
	}
	if len(category.Properties[0].AllowedValues.Values) != 3 {
		t.Fatalf("expected 3 allowed values after extension, got %d", len(category.Properties[0].AllowedValues.Values))
	}
}

func TestRenamePropertyCascades(t *testing.T) {
	store := openStore(t)
	categories := sqlite.NewCategoryRepository()
	catalogueItems := sqlite.NewCatalogueItemRepository()
	items := sqlite.NewItemRepository()
	engine := NewEngine(categories, catalogueItems, items, sqlite.NewUnitRepository())

	ctx := context.Background()
	categoryID := mustNewID(t)
	propID := mustNewID(t)
	if err := categories.Create(ctx, store, &model.CatalogueCategory{
		ID: categoryID, Name: "Lenses", Code: "lenses", IsLeaf: true,
		Properties: []model.PropertyDescriptor{{ID: propID, Name: "Diameter", Type: model.PropertyTypeNumber}},
	}); err != nil {
		t.Fatalf("create category: %v", err)
	}

	manufacturerID := mustNewID(t)
	if _, err := store.ExecContext(ctx, `
		INSERT INTO manufacturers (id, name, code, url, address_line, postcode, country)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, manufacturerID.String(), "Acme", "acme", "https://acme.test", "1 Street", "AB1 2CD", "UK"); err != nil {
		t.Fatalf("insert manufacturer: %v", err)
	}
	catalogueItemID := mustNewID(t)
	if err := catalogueItems.Create(ctx, store, &model.CatalogueItem{
		ID: catalogueItemID, CatalogueCategoryID: categoryID, ManufacturerID: manufacturerID,
		Name: "Lens", CostGBP: 1, DaysToReplace: 1,
		Properties: []model.StoredProperty{{ID: propID, Name: "Diameter", Value: float64(50)}},
	}); err != nil {
		t.Fatalf("create catalogue item: %v", err)
	}

	err := store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return engine.RenameProperty(ctx, tx, categoryID, propID, "Aperture Diameter")
	})
	if err != nil {
		t.Fatalf("RenameProperty: %v", err)
	}

	ci, err := catalogueItems.Get(ctx, store, catalogueItemID)
	if err != nil {
		t.Fatalf("get catalogue item: %v", err)
	}
	if ci.Properties[0].Name != "Aperture Diameter" {
		t.Fatalf("expected cascaded rename, got %q", ci.Properties[0].Name)
	}
}
