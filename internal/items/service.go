// Package items implements item create/move/delete/update: rule-based
// transition validation against the system/rule engine (§4.E) and
// derived-state spares recompute triggered by the same operations.
package items

import (
	"context"
	"time"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
	"github.com/ral-facilities/inventory-management-system-api/internal/properties"
	"github.com/ral-facilities/inventory-management-system-api/internal/spares"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

// Service implements item creation, movement, deletion and update.
type Service struct {
	Store          storage.Storage
	Items          *sqlite.ItemRepository
	CatalogueItems *sqlite.CatalogueItemRepository
	Categories     *sqlite.CategoryRepository
	Systems        *sqlite.SystemRepository
	Rules          *sqlite.RuleRepository
	Units          *sqlite.UnitRepository
	Spares         *spares.Recomputer

	SparesRecomputeEnabled bool
}

func NewService(store storage.Storage, items *sqlite.ItemRepository, catalogueItems *sqlite.CatalogueItemRepository,
	categories *sqlite.CategoryRepository, systems *sqlite.SystemRepository, rules *sqlite.RuleRepository,
	units *sqlite.UnitRepository, recomputer *spares.Recomputer, sparesRecomputeEnabled bool) *Service {
	return &Service{
		Store: store, Items: items, CatalogueItems: catalogueItems, Categories: categories, Systems: systems,
		Rules: rules, Units: units, Spares: recomputer, SparesRecomputeEnabled: sparesRecomputeEnabled,
	}
}

// NewItem is the caller-supplied shape for item creation.
type NewItem struct {
	CatalogueItemID ids.ID
	SystemID        ids.ID
	UsageStatusID   ids.ID
	IsDefective     bool
	SerialNumber    *string
	Properties      []properties.SuppliedProperty
}

// Create implements item creation: admissible iff a rule exists with
// src=null, dst=type-of(system), dst_usage_status=usage status. On
// success, recomputes spares for the owning catalogue item under
// write-lock.
func (s *Service) Create(ctx context.Context, ni NewItem) (*model.Item, error) {
	var created *model.Item
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		catalogueItem, err := s.CatalogueItems.Get(ctx, tx, ni.CatalogueItemID)
		if err != nil {
			return err
		}
		if catalogueItem == nil {
			return kinderr.New(kinderr.KindMissingRecord, "catalogue item not found")
		}
		system, err := s.Systems.Get(ctx, tx, ni.SystemID)
		if err != nil {
			return err
		}
		if system == nil {
			return kinderr.New(kinderr.KindMissingRecord, "system not found")
		}

		if err := s.checkRule(ctx, tx, nil, &system.TypeID, &ni.UsageStatusID); err != nil {
			return err
		}

		category, err := s.Categories.Get(ctx, tx, catalogueItem.CatalogueCategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return kinderr.New(kinderr.KindDatabaseIntegrity, "catalogue item references a category that no longer exists")
		}

		storedProps, err := properties.ValidateSuppliedProperties(category.Properties, ni.Properties, s.unitValue(ctx, tx))
		if err != nil {
			return err
		}

		id, err := ids.New()
		if err != nil {
			return err
		}
		item := &model.Item{
			ID: id, CatalogueItemID: ni.CatalogueItemID, SystemID: ni.SystemID, UsageStatusID: ni.UsageStatusID,
			IsDefective: ni.IsDefective, SerialNumber: ni.SerialNumber, Properties: storedProps,
		}
		if err := s.Items.Create(ctx, tx, item); err != nil {
			return err
		}

		if err := s.recompute(ctx, tx, ni.CatalogueItemID); err != nil {
			return err
		}

		created = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) unitValue(ctx context.Context, tx storage.Transaction) func(ids.ID) (string, error) {
	return func(id ids.ID) (string, error) {
		u, err := s.Units.Get(ctx, tx, id)
		if err != nil {
			return "", err
		}
		if u == nil {
			return "", kinderr.New(kinderr.KindMissingRecord, "unit not found")
		}
		return u.Value, nil
	}
}

// checkRule validates that a rule exists matching the given (src, dst,
// dstUsage) triple.
func (s *Service) checkRule(ctx context.Context, tx storage.Transaction, src, dst, dstUsage *ids.ID) error {
	exists, err := s.Rules.Exists(ctx, tx, src, dst, dstUsage)
	if err != nil {
		return err
	}
	if !exists {
		return kinderr.New(kinderr.KindInvalidAction, "no rule permits this transition")
	}
	return nil
}

func (s *Service) recompute(ctx context.Context, tx storage.Transaction, catalogueItemID ids.ID) error {
	if !s.SparesRecomputeEnabled {
		return nil
	}
	if err := s.Spares.Lock(ctx, tx, catalogueItemID); err != nil {
		return err
	}
	return s.Spares.Recompute(ctx, tx, catalogueItemID)
}

func (s *Service) Get(ctx context.Context, id ids.ID) (*model.Item, error) {
	it, err := s.Items.Get(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, kinderr.New(kinderr.KindMissingRecord, "item not found")
	}
	return it, nil
}

// Move relocates an item to a new system. Admissible iff the systems
// share a type (no rule needed) or a rule exists for src=oldType,
// dst=newType, dst_usage_status=item's current usage status.
func (s *Service) Move(ctx context.Context, id, newSystemID ids.ID) (*model.Item, error) {
	var updated *model.Item
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		item, err := s.Items.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return kinderr.New(kinderr.KindMissingRecord, "item not found")
		}
		oldSystem, err := s.Systems.Get(ctx, tx, item.SystemID)
		if err != nil {
			return err
		}
		if oldSystem == nil {
			return kinderr.New(kinderr.KindDatabaseIntegrity, "item references a system that no longer exists")
		}
		newSystem, err := s.Systems.Get(ctx, tx, newSystemID)
		if err != nil {
			return err
		}
		if newSystem == nil {
			return kinderr.New(kinderr.KindMissingRecord, "destination system not found")
		}

		typeChanging := oldSystem.TypeID != newSystem.TypeID
		if typeChanging {
			if err := s.checkRule(ctx, tx, &oldSystem.TypeID, &newSystem.TypeID, &item.UsageStatusID); err != nil {
				return err
			}
		}

		item.SystemID = newSystemID
		if err := s.Items.Update(ctx, tx, item); err != nil {
			return err
		}

		if typeChanging {
			if err := s.recompute(ctx, tx, item.CatalogueItemID); err != nil {
				return err
			}
		}

		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetUsageStatus changes an item's usage status, recomputing spares for
// its owning catalogue item since usage-status membership in the spares
// definition may have changed.
func (s *Service) SetUsageStatus(ctx context.Context, id, newUsageStatusID ids.ID) (*model.Item, error) {
	var updated *model.Item
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		item, err := s.Items.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return kinderr.New(kinderr.KindMissingRecord, "item not found")
		}
		if item.UsageStatusID == newUsageStatusID {
			updated = item
			return nil
		}
		item.UsageStatusID = newUsageStatusID
		if err := s.Items.Update(ctx, tx, item); err != nil {
			return err
		}
		if err := s.recompute(ctx, tx, item.CatalogueItemID); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Patch is the caller-supplied shape for an item field update. Nil
// fields are left unchanged; Properties, when non-nil, replaces the
// full supplied-property set and is revalidated against the owning
// category's current schema.
type Patch struct {
	IsDefective     *bool
	SerialNumber    **string
	WarrantyEndDate **time.Time
	Properties      []properties.SuppliedProperty
}

// Update applies field and/or property edits to an existing item. It
// does not change system or usage status — use Move and SetUsageStatus
// for those, since both carry rule-validation and spares-recompute
// semantics Update does not.
func (s *Service) Update(ctx context.Context, id ids.ID, patch Patch) (*model.Item, error) {
	var updated *model.Item
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		item, err := s.Items.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return kinderr.New(kinderr.KindMissingRecord, "item not found")
		}

		if patch.IsDefective != nil {
			item.IsDefective = *patch.IsDefective
		}
		if patch.SerialNumber != nil {
			item.SerialNumber = *patch.SerialNumber
		}
		if patch.WarrantyEndDate != nil {
			item.WarrantyEndDate = *patch.WarrantyEndDate
		}
		if patch.Properties != nil {
			catalogueItem, err := s.CatalogueItems.Get(ctx, tx, item.CatalogueItemID)
			if err != nil {
				return err
			}
			if catalogueItem == nil {
				return kinderr.New(kinderr.KindDatabaseIntegrity, "item references a catalogue item that no longer exists")
			}
			category, err := s.Categories.Get(ctx, tx, catalogueItem.CatalogueCategoryID)
			if err != nil {
				return err
			}
			if category == nil {
				return kinderr.New(kinderr.KindDatabaseIntegrity, "catalogue item references a category that no longer exists")
			}
			storedProps, err := properties.ValidateSuppliedProperties(category.Properties, patch.Properties, s.unitValue(ctx, tx))
			if err != nil {
				return err
			}
			item.Properties = storedProps
		}

		if err := s.Items.Update(ctx, tx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete implements item deletion: admissible iff a rule exists with
// src=type-of(system), dst=null. Recomputes spares for the owning
// catalogue item afterwards.
func (s *Service) Delete(ctx context.Context, id ids.ID) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		item, err := s.Items.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return kinderr.New(kinderr.KindMissingRecord, "item not found")
		}
		system, err := s.Systems.Get(ctx, tx, item.SystemID)
		if err != nil {
			return err
		}
		if system == nil {
			return kinderr.New(kinderr.KindDatabaseIntegrity, "item references a system that no longer exists")
		}

		if err := s.checkRule(ctx, tx, &system.TypeID, nil, nil); err != nil {
			return err
		}

		if err := s.Items.Delete(ctx, tx, id); err != nil {
			return err
		}
		return s.recompute(ctx, tx, item.CatalogueItemID)
	})
}
