// Package systems implements the system tree of §4.E: a specialisation of
// the generic tree repository (§4.B) adding system-type inheritance,
// cycle-safe moves, and a write-lock on type changes that may affect
// spares eligibility. Item rule validation and the spares recompute itself
// live in package items.
package systems

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
	"github.com/ral-facilities/inventory-management-system-api/internal/objectstorage"
	"github.com/ral-facilities/inventory-management-system-api/internal/spares"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

// Service implements the system tree and rule engine.
type Service struct {
	Store       storage.Storage
	Systems     *sqlite.SystemRepository
	SystemTypes *sqlite.SystemTypeRepository
	Items       *sqlite.ItemRepository
	Settings    *sqlite.SettingsRepository
	Spares      *spares.Recomputer
	ObjectStore *objectstorage.Client
	// SparesRecomputeEnabled mirrors spec.md §6 spares.recompute.enabled.
	SparesRecomputeEnabled bool
}

func NewService(store storage.Storage, systems *sqlite.SystemRepository, systemTypes *sqlite.SystemTypeRepository,
	items *sqlite.ItemRepository, settings *sqlite.SettingsRepository, recomputer *spares.Recomputer,
	objectStore *objectstorage.Client, sparesRecomputeEnabled bool) *Service {
	return &Service{
		Store: store, Systems: systems, SystemTypes: systemTypes, Items: items, Settings: settings,
		Spares: recomputer, ObjectStore: objectStore, SparesRecomputeEnabled: sparesRecomputeEnabled,
	}
}

// NewSystem is the caller-supplied shape for system creation.
type NewSystem struct {
	Name        string
	ParentID    *ids.ID
	TypeID      ids.ID
	Description *string
	Location    *string
	Owner       *string
	Importance  model.Importance
}

// Create implements spec.md §4.E create: if a parent is set, the child's
// type_id must equal the parent's (children inherit the parent's type,
// enforced not stored).
func (s *Service) Create(ctx context.Context, ns NewSystem) (*model.System, error) {
	var created *model.System
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		typ, err := s.SystemTypes.Get(ctx, tx, ns.TypeID)
		if err != nil {
			return err
		}
		if typ == nil {
			return kinderr.New(kinderr.KindMissingRecord, "system type not found")
		}

		if ns.ParentID != nil {
			parent, err := s.Systems.Get(ctx, tx, *ns.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return kinderr.New(kinderr.KindMissingRecord, "parent system not found")
			}
			if parent.TypeID != ns.TypeID {
				return kinderr.New(kinderr.KindInvalidAction, "a system must share its parent's type")
			}
		}

		id, err := ids.New()
		if err != nil {
			return err
		}
		system := &model.System{
			ID: id, Name: ns.Name, Code: ids.Slugify(ns.Name), ParentID: ns.ParentID, TypeID: ns.TypeID,
			Description: ns.Description, Location: ns.Location, Owner: ns.Owner, Importance: ns.Importance,
		}
		if err := s.Systems.Create(ctx, tx, system); err != nil {
			return err
		}
		created = system
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id ids.ID) (*model.System, error) {
	sys, err := s.Systems.Get(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	if sys == nil {
		return nil, kinderr.New(kinderr.KindMissingRecord, "system not found")
	}
	return sys, nil
}

func (s *Service) List(ctx context.Context, parentID *ids.ID) ([]*model.System, error) {
	return s.Systems.List(ctx, s.Store, parentID)
}

func (s *Service) Breadcrumbs(ctx context.Context, id ids.ID, maxTrailLength int) (sqlite.Breadcrumbs, error) {
	return s.Systems.Tree.Breadcrumbs(ctx, s.Store, id, maxTrailLength)
}

// Patch is the caller-supplied shape for a system update. Nil fields are
// left unchanged.
type Patch struct {
	Name        *string
	ParentID    **ids.ID
	TypeID      *ids.ID
	Description **string
	Location    **string
	Owner       **string
	Importance  *model.Importance
}

// Update implements spec.md §4.E update: type_id changes require no
// child elements and a matching parent type; parent_id changes require a
// matching-type parent and pass the cycle check; a write-lock is taken
// when a spares definition is configured, type_id is actually changing,
// and either the current or new parent is root (nil).
func (s *Service) Update(ctx context.Context, id ids.ID, patch Patch) (*model.System, error) {
	var updated *model.System
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		sys, err := s.Systems.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if sys == nil {
			return kinderr.New(kinderr.KindMissingRecord, "system not found")
		}

		typeChanging := patch.TypeID != nil && *patch.TypeID != sys.TypeID
		var newParentID *ids.ID = sys.ParentID
		parentChanging := false
		if patch.ParentID != nil {
			newParentID = *patch.ParentID
			parentChanging = !idPtrEqual(newParentID, sys.ParentID)
		}

		if typeChanging {
			hasChildren, err := s.Systems.Tree.HasChildElements(ctx, tx, id)
			if err != nil {
				return err
			}
			if hasChildren {
				return kinderr.New(kinderr.KindChildElementsExist, "cannot change type while child systems or items exist")
			}
			typ, err := s.SystemTypes.Get(ctx, tx, *patch.TypeID)
			if err != nil {
				return err
			}
			if typ == nil {
				return kinderr.New(kinderr.KindMissingRecord, "system type not found")
			}
			if newParentID != nil {
				parent, err := s.Systems.Get(ctx, tx, *newParentID)
				if err != nil {
					return err
				}
				if parent == nil {
					return kinderr.New(kinderr.KindMissingRecord, "parent system not found")
				}
				if parent.TypeID != *patch.TypeID {
					return kinderr.New(kinderr.KindInvalidAction, "a system must share its parent's type")
				}
			}
		}

		if parentChanging {
			if newParentID != nil {
				parent, err := s.Systems.Get(ctx, tx, *newParentID)
				if err != nil {
					return err
				}
				if parent == nil {
					return kinderr.New(kinderr.KindMissingRecord, "parent system not found")
				}
				effectiveType := sys.TypeID
				if typeChanging {
					effectiveType = *patch.TypeID
				}
				if parent.TypeID != effectiveType {
					return kinderr.New(kinderr.KindInvalidAction, "a system must share its parent's type")
				}
				if err := s.Systems.Tree.CheckMoveValid(ctx, tx, id, *newParentID); err != nil {
					return err
				}
			}
		}

		sparesDef, err := s.Settings.GetSparesDefinition(ctx, tx)
		if err != nil {
			return err
		}
		needsWriteLock := s.SparesRecomputeEnabled && spares.Enabled(s.SparesRecomputeEnabled, sparesDef) &&
			typeChanging && (sys.ParentID == nil || newParentID == nil)
		if needsWriteLock {
			if err := s.Systems.Tree.WriteLock(ctx, tx, id); err != nil {
				return err
			}
		}

		if patch.Name != nil {
			sys.Name = *patch.Name
			sys.Code = ids.Slugify(*patch.Name)
		}
		if patch.ParentID != nil {
			sys.ParentID = newParentID
		}
		if patch.TypeID != nil {
			sys.TypeID = *patch.TypeID
		}
		if patch.Description != nil {
			sys.Description = *patch.Description
		}
		if patch.Location != nil {
			sys.Location = *patch.Location
		}
		if patch.Owner != nil {
			sys.Owner = *patch.Owner
		}
		if patch.Importance != nil {
			sys.Importance = *patch.Importance
		}

		if err := s.Systems.Update(ctx, tx, sys); err != nil {
			return err
		}
		updated = sys
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func idPtrEqual(a, b *ids.ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Delete refuses while child systems or items exist. On success it
// invokes the object-storage collaborator best-effort, after the local
// transaction has already committed (spec.md §9: outbound side effects
// are never part of the transaction).
func (s *Service) Delete(ctx context.Context, id ids.ID) error {
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return s.Systems.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	if s.ObjectStore == nil {
		return nil
	}

	var result *multierror.Error
	if err := s.ObjectStore.DeleteAttachments(ctx, id); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.ObjectStore.DeleteImages(ctx, id); err != nil {
		result = multierror.Append(result, err)
	}
	// The local delete already committed; a non-nil return here only
	// reports the dangling remote objects a separate janitor reconciles,
	// it never rolls back.
	return result.ErrorOrNil()
}
