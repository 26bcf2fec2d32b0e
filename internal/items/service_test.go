package items

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
	"github.com/ral-facilities/inventory-management-system-api/internal/properties"
	"github.com/ral-facilities/inventory-management-system-api/internal/spares"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

type fixture struct {
	store          *sqlite.Store
	items          *sqlite.ItemRepository
	catalogueItems *sqlite.CatalogueItemRepository
	categories     *sqlite.CategoryRepository
	systems        *sqlite.SystemRepository
	systemTypes    *sqlite.SystemTypeRepository
	usageStatuses  *sqlite.UsageStatusRepository
	rules          *sqlite.RuleRepository
	units          *sqlite.UnitRepository
	settings       *sqlite.SettingsRepository
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := sqlite.Open(context.Background(), storage.Config{Path: dbPath})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &fixture{
		store:          store,
		items:          sqlite.NewItemRepository(),
		catalogueItems: sqlite.NewCatalogueItemRepository(),
		categories:     sqlite.NewCategoryRepository(),
		systems:        sqlite.NewSystemRepository(),
		systemTypes:    sqlite.NewSystemTypeRepository(),
		usageStatuses:  sqlite.NewUsageStatusRepository(),
		rules:          sqlite.NewRuleRepository(),
		units:          sqlite.NewUnitRepository(),
		settings:       sqlite.NewSettingsRepository(),
	}
}

func mustID(t *testing.T) ids.ID {
	t.Helper()
	id, err := ids.New()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	return id
}

// setupWorld builds a leaf category, a catalogue item under it, a system
// type, and a root system of that type, returning their ids.
func (f *fixture) setupWorld(t *testing.T) (categoryID, catalogueItemID, systemTypeID, systemID, manufacturerID ids.ID) {
	t.Helper()
	ctx := context.Background()

	categoryID = mustID(t)
	if err := f.categories.Create(ctx, f.store, &model.CatalogueCategory{
		ID: categoryID, Name: "Lenses", Code: "lenses", IsLeaf: true,
	}); err != nil {
		t.Fatalf("create category: %v", err)
	}

	manufacturerID = mustID(t)
	if _, err := f.store.ExecContext(ctx, `
		INSERT INTO manufacturers (id, name, code, url, address_line, postcode, country)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, manufacturerID.String(), "Acme", "acme", "https://acme.test", "1 Street", "AB1 2CD", "UK"); err != nil {
		t.Fatalf("insert manufacturer: %v", err)
	}

	catalogueItemID = mustID(t)
	if err := f.catalogueItems.Create(ctx, f.store, &model.CatalogueItem{
		ID: catalogueItemID, CatalogueCategoryID: categoryID, ManufacturerID: manufacturerID,
		Name: "50mm Lens", CostGBP: 100, DaysToReplace: 7,
	}); err != nil {
		t.Fatalf("create catalogue item: %v", err)
	}

	systemTypeID = mustID(t)
	if err := f.systemTypes.Create(ctx, f.store, &model.SystemType{ID: systemTypeID, Value: "Operational"}); err != nil {
		t.Fatalf("create system type: %v", err)
	}

	systemID = mustID(t)
	if err := f.systems.Create(ctx, f.store, &model.System{
		ID: systemID, Name: "Beamline 1", Code: "beamline-1", TypeID: systemTypeID, Importance: model.ImportanceMedium,
	}); err != nil {
		t.Fatalf("create system: %v", err)
	}
	return
}

func (f *fixture) createUsageStatus(t *testing.T, value string) ids.ID {
	t.Helper()
	id := mustID(t)
	if err := f.usageStatuses.Create(context.Background(), f.store, &model.UsageStatus{ID: id, Value: value, Code: ids.Slugify(value)}); err != nil {
		t.Fatalf("create usage status: %v", err)
	}
	return id
}

func (f *fixture) allowRule(t *testing.T, src, dst, dstUsage *ids.ID) {
	t.Helper()
	id := mustID(t)
	if err := f.rules.Create(context.Background(), f.store, &model.Rule{ID: id, SrcSystemTypeID: src, DstSystemTypeID: dst, DstUsageStatusID: dstUsage}); err != nil {
		t.Fatalf("create rule: %v", err)
	}
}

func (f *fixture) service(enableSpares bool) *Service {
	recomputer := spares.NewRecomputer(f.settings, f.items, f.catalogueItems)
	return NewService(f.store, f.items, f.catalogueItems, f.categories, f.systems, f.rules, f.units, recomputer, enableSpares)
}

func TestCreateItemRequiresRule(t *testing.T) {
	f := setupFixture(t)
	_, catalogueItemID, systemTypeID, systemID, _ := f.setupWorld(t)
	newUsageID := f.createUsageStatus(t, "New")

	svc := f.service(false)
	_, err := svc.Create(context.Background(), NewItem{
		CatalogueItemID: catalogueItemID, SystemID: systemID, UsageStatusID: newUsageID,
	})
	if !kinderr.Is(err, kinderr.KindInvalidAction) {
		t.Fatalf("expected invalid-action without a creation rule, got %v", err)
	}

	// Now permit creation into this system type with this usage status.
	f.allowRule(t, nil, &systemTypeID, &newUsageID)
	item, err := svc.Create(context.Background(), NewItem{
		CatalogueItemID: catalogueItemID, SystemID: systemID, UsageStatusID: newUsageID,
	})
	if err != nil {
		t.Fatalf("create item after rule permits it: %v", err)
	}
	if item.ID.IsZero() {
		t.Fatal("expected a generated id")
	}
}

func TestDeleteItemRequiresRule(t *testing.T) {
	f := setupFixture(t)
	_, catalogueItemID, systemTypeID, systemID, _ := f.setupWorld(t)
	newUsageID := f.createUsageStatus(t, "New")
	f.allowRule(t, nil, &systemTypeID, &newUsageID)

	svc := f.service(false)
	item, err := svc.Create(context.Background(), NewItem{CatalogueItemID: catalogueItemID, SystemID: systemID, UsageStatusID: newUsageID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Delete(context.Background(), item.ID); !kinderr.Is(err, kinderr.KindInvalidAction) {
		t.Fatalf("expected invalid-action without a deletion rule, got %v", err)
	}

	f.allowRule(t, &systemTypeID, nil, nil)
	if err := svc.Delete(context.Background(), item.ID); err != nil {
		t.Fatalf("delete after rule permits it: %v", err)
	}
	if _, err := svc.Get(context.Background(), item.ID); !kinderr.Is(err, kinderr.KindMissingRecord) {
		t.Fatalf("expected missing-record after delete, got %v", err)
	}
}

// TestSpareRecomputeOnStatusChange mirrors spec.md scenario S5: spares
// definition = {Scrapped}; patching an item's usage status to Scrapped
// increments the owning catalogue item's number_of_spares.
func TestSpareRecomputeOnStatusChange(t *testing.T) {
	f := setupFixture(t)
	_, catalogueItemID, systemTypeID, systemID, _ := f.setupWorld(t)
	newUsageID := f.createUsageStatus(t, "New")
	scrappedUsageID := f.createUsageStatus(t, "Scrapped")
	f.allowRule(t, nil, &systemTypeID, &newUsageID)
	f.allowRule(t, nil, &systemTypeID, &scrappedUsageID)

	if err := f.settings.PutSparesDefinition(context.Background(), f.store, &model.SparesDefinition{UsageStatuses: []ids.ID{scrappedUsageID}}); err != nil {
		t.Fatalf("put spares definition: %v", err)
	}

	svc := f.service(true)
	i1, err := svc.Create(context.Background(), NewItem{CatalogueItemID: catalogueItemID, SystemID: systemID, UsageStatusID: newUsageID})
	if err != nil {
		t.Fatalf("create i1: %v", err)
	}
	_, err = svc.Create(context.Background(), NewItem{CatalogueItemID: catalogueItemID, SystemID: systemID, UsageStatusID: scrappedUsageID})
	if err != nil {
		t.Fatalf("create i2: %v", err)
	}

	ci, err := f.catalogueItems.Get(context.Background(), f.store, catalogueItemID)
	if err != nil {
		t.Fatalf("get catalogue item: %v", err)
	}
	if ci.NumberOfSpares != 1 {
		t.Fatalf("expected number_of_spares=1 after i2 created Scrapped, got %d", ci.NumberOfSpares)
	}

	if _, err := svc.SetUsageStatus(context.Background(), i1.ID, scrappedUsageID); err != nil {
		t.Fatalf("set usage status: %v", err)
	}

	ci, err = f.catalogueItems.Get(context.Background(), f.store, catalogueItemID)
	if err != nil {
		t.Fatalf("get catalogue item after status change: %v", err)
	}
	if ci.NumberOfSpares != 2 {
		t.Fatalf("expected number_of_spares=2 after both items Scrapped, got %d", ci.NumberOfSpares)
	}
}

func TestMoveBetweenSameTypeSystemsNeedsNoRule(t *testing.T) {
	f := setupFixture(t)
	_, catalogueItemID, systemTypeID, systemID, _ := f.setupWorld(t)
	newUsageID := f.createUsageStatus(t, "New")
	f.allowRule(t, nil, &systemTypeID, &newUsageID)

	secondSystemID := mustID(t)
	if err := f.systems.Create(context.Background(), f.store, &model.System{
		ID: secondSystemID, Name: "Beamline 2", Code: "beamline-2", TypeID: systemTypeID, Importance: model.ImportanceLow,
	}); err != nil {
		t.Fatalf("create second system: %v", err)
	}

	svc := f.service(false)
	item, err := svc.Create(context.Background(), NewItem{CatalogueItemID: catalogueItemID, SystemID: systemID, UsageStatusID: newUsageID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	moved, err := svc.Move(context.Background(), item.ID, secondSystemID)
	if err != nil {
		t.Fatalf("move between same-type systems should not require a rule: %v", err)
	}
	if moved.SystemID != secondSystemID {
		t.Fatalf("expected system_id updated to %s, got %s", secondSystemID, moved.SystemID)
	}
}

func TestValidateSuppliedPropertiesRejectsMissingMandatory(t *testing.T) {
	unitID := mustID(t)
	propID := mustID(t)
	defined := []model.PropertyDescriptor{
		{ID: propID, Name: "Diameter", Type: model.PropertyTypeNumber, UnitID: &unitID, Mandatory: true},
	}
	_, err := properties.ValidateSuppliedProperties(defined, nil, func(ids.ID) (string, error) { return "mm", nil })
	if !kinderr.Is(err, kinderr.KindMissingMandatoryProperty) {
		t.Fatalf("expected missing-mandatory-property, got %v", err)
	}
}
