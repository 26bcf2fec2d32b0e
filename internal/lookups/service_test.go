package lookups

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

func newService(t *testing.T) *Service {
	t.Helper()
	store, err := sqlite.Open(context.Background(), storage.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewService(store, sqlite.NewSystemTypeRepository(), sqlite.NewUsageStatusRepository(),
		sqlite.NewRuleRepository(), sqlite.NewSettingsRepository(), sqlite.NewUnitRepository(), sqlite.NewManufacturerRepository())
}

// TestCreateRuleRejectsSelfTransition resolves spec.md §9 open question 1:
// a rule whose src and dst system type are the same id is rejected.
func TestCreateRuleRejectsSelfTransition(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	st, err := svc.CreateSystemType(ctx, "Operational")
	if err != nil {
		t.Fatalf("create system type: %v", err)
	}

	_, err = svc.CreateRule(ctx, NewRule{SrcSystemTypeID: &st.ID, DstSystemTypeID: &st.ID})
	if !kinderr.Is(err, kinderr.KindInvalidAction) {
		t.Fatalf("expected invalid-action for src==dst rule, got %v", err)
	}
}

func TestCreateRuleRejectsDuplicate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	src, err := svc.CreateSystemType(ctx, "Operational")
	if err != nil {
		t.Fatalf("create src type: %v", err)
	}
	dst, err := svc.CreateSystemType(ctx, "Storage")
	if err != nil {
		t.Fatalf("create dst type: %v", err)
	}
	us, err := svc.CreateUsageStatus(ctx, "New")
	if err != nil {
		t.Fatalf("create usage status: %v", err)
	}

	if _, err := svc.CreateRule(ctx, NewRule{SrcSystemTypeID: &src.ID, DstSystemTypeID: &dst.ID, DstUsageStatusID: &us.ID}); err != nil {
		t.Fatalf("create first rule: %v", err)
	}
	_, err = svc.CreateRule(ctx, NewRule{SrcSystemTypeID: &src.ID, DstSystemTypeID: &dst.ID, DstUsageStatusID: &us.ID})
	if !kinderr.Is(err, kinderr.KindDuplicateRecord) {
		t.Fatalf("expected duplicate-record for an identical rule, got %v", err)
	}
}

func TestPutSparesDefinitionValidatesUsageStatuses(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	us, err := svc.CreateUsageStatus(ctx, "Scrapped")
	if err != nil {
		t.Fatalf("create usage status: %v", err)
	}

	if err := svc.PutSparesDefinition(ctx, model.SparesDefinition{UsageStatuses: []ids.ID{us.ID}}); err != nil {
		t.Fatalf("put valid spares definition: %v", err)
	}

	bogus := mustBogusID(t)
	err = svc.PutSparesDefinition(ctx, model.SparesDefinition{UsageStatuses: []ids.ID{bogus}})
	if !kinderr.Is(err, kinderr.KindMissingRecord) {
		t.Fatalf("expected missing-record for an unresolvable usage status, got %v", err)
	}
}

func mustBogusID(t *testing.T) ids.ID {
	t.Helper()
	id, err := ids.New()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	return id
}
