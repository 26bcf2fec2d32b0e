// Package catalogue implements §4.C, the catalogue-category engine: a
// specialisation of the generic tree repository (§4.B) that owns per-leaf
// property schemas and enforces the leaf/non-leaf invariants.
package catalogue

import (
	"context"
	"fmt"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
	"github.com/ral-facilities/inventory-management-system-api/internal/properties"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

// Service implements the catalogue-category engine. Property-schema edits
// are delegated to the propagation engine (§4.D) per spec.md §4.C.
type Service struct {
	Store      storage.Storage
	Categories *sqlite.CategoryRepository
	Units      *sqlite.UnitRepository
	Properties *properties.Engine
}

func NewService(store storage.Storage, categories *sqlite.CategoryRepository, units *sqlite.UnitRepository, propEngine *properties.Engine) *Service {
	return &Service{Store: store, Categories: categories, Units: units, Properties: propEngine}
}

// AddProperty delegates to the propagation engine inside a transaction.
func (s *Service) AddProperty(ctx context.Context, categoryID ids.ID, np properties.NewProperty) (*model.PropertyDescriptor, error) {
	var descriptor *model.PropertyDescriptor
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		d, err := s.Properties.AddProperty(ctx, tx, categoryID, np)
		if err != nil {
			return err
		}
		descriptor = d
		return nil
	})
	return descriptor, err
}

// RenameProperty delegates to the propagation engine inside a transaction.
func (s *Service) RenameProperty(ctx context.Context, categoryID, propertyID ids.ID, newName string) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return s.Properties.RenameProperty(ctx, tx, categoryID, propertyID, newName)
	})
}

// ModifyAllowedValues delegates to the propagation engine inside a
// transaction.
func (s *Service) ModifyAllowedValues(ctx context.Context, categoryID, propertyID ids.ID, newValues []any) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return s.Properties.ModifyAllowedValues(ctx, tx, categoryID, propertyID, newValues)
	})
}

// NewCategory is the caller-supplied shape for category creation.
type NewCategory struct {
	Name       string
	ParentID   *ids.ID
	IsLeaf     bool
	Properties []NewCategoryProperty
}

// NewCategoryProperty is one property-schema entry supplied at category
// creation time.
type NewCategoryProperty struct {
	Name          string
	Type          model.PropertyType
	UnitID        *ids.ID
	Mandatory     bool
	AllowedValues *model.AllowedValues
}

// Create implements spec.md §4.C create: parent, if set, must be
// non-leaf; property names must be duplicate-free; every unit_id must
// resolve.
func (s *Service) Create(ctx context.Context, nc NewCategory) (*model.CatalogueCategory, error) {
	var created *model.CatalogueCategory
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		if nc.ParentID != nil {
			parent, err := s.Categories.Get(ctx, tx, *nc.ParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return kinderr.New(kinderr.KindMissingRecord, "parent category not found")
			}
			if parent.IsLeaf {
				return kinderr.New(kinderr.KindLeafParent, "cannot place a category under a leaf category")
			}
		}

		seen := map[string]bool{}
		properties := make([]model.PropertyDescriptor, 0, len(nc.Properties))
		for _, p := range nc.Properties {
			if seen[p.Name] {
				return kinderr.New(kinderr.KindDuplicatePropertyName, fmt.Sprintf("duplicate property name %q", p.Name))
			}
			seen[p.Name] = true

			if p.UnitID != nil {
				exists, err := s.Units.Exists(ctx, tx, *p.UnitID)
				if err != nil {
					return err
				}
				if !exists {
					return kinderr.New(kinderr.KindMissingRecord, "unit not found")
				}
			}

			propID, err := ids.New()
			if err != nil {
				return err
			}
			properties = append(properties, model.PropertyDescriptor{
				ID: propID, Name: p.Name, Type: p.Type, UnitID: p.UnitID,
				Mandatory: p.Mandatory, AllowedValues: p.AllowedValues,
			})
		}
		if !nc.IsLeaf {
			properties = nil
		}

		id, err := ids.New()
		if err != nil {
			return err
		}
		category := &model.CatalogueCategory{
			ID: id, Name: nc.Name, Code: ids.Slugify(nc.Name),
			ParentID: nc.ParentID, IsLeaf: nc.IsLeaf, Properties: properties,
		}
		if err := s.Categories.Create(ctx, tx, category); err != nil {
			return err
		}
		created = category
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, id ids.ID) (*model.CatalogueCategory, error) {
	c, err := s.Categories.Get(ctx, s.Store, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, kinderr.New(kinderr.KindMissingRecord, "catalogue category not found")
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, parentID *ids.ID) ([]*model.CatalogueCategory, error) {
	return s.Categories.List(ctx, s.Store, parentID)
}

func (s *Service) Breadcrumbs(ctx context.Context, id ids.ID, maxTrailLength int) (sqlite.Breadcrumbs, error) {
	return s.Categories.Tree.Breadcrumbs(ctx, s.Store, id, maxTrailLength)
}

// Rename renames a category, regenerating its code and re-checking
// sibling uniqueness via the table's unique index.
func (s *Service) Rename(ctx context.Context, id ids.ID, newName string) (*model.CatalogueCategory, error) {
	var updated *model.CatalogueCategory
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		c, err := s.Categories.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return kinderr.New(kinderr.KindMissingRecord, "catalogue category not found")
		}
		c.Name = newName
		c.Code = ids.Slugify(newName)
		if err := s.Categories.Update(ctx, tx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	return updated, err
}

// Move changes a category's parent, rejecting leaf parents and cycles.
func (s *Service) Move(ctx context.Context, id ids.ID, newParentID *ids.ID) (*model.CatalogueCategory, error) {
	var updated *model.CatalogueCategory
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		c, err := s.Categories.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return kinderr.New(kinderr.KindMissingRecord, "catalogue category not found")
		}

		if newParentID != nil {
			parent, err := s.Categories.Get(ctx, tx, *newParentID)
			if err != nil {
				return err
			}
			if parent == nil {
				return kinderr.New(kinderr.KindMissingRecord, "parent category not found")
			}
			if parent.IsLeaf {
				return kinderr.New(kinderr.KindLeafParent, "cannot move a category under a leaf category")
			}
			if err := s.Categories.Tree.CheckMoveValid(ctx, tx, id, *newParentID); err != nil {
				return err
			}
		}

		c.ParentID = newParentID
		if err := s.Categories.Update(ctx, tx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	return updated, err
}

// SetIsLeaf converts a category between leaf and non-leaf, refusing while
// child categories or catalogue items exist (spec.md §4.C).
func (s *Service) SetIsLeaf(ctx context.Context, id ids.ID, isLeaf bool) (*model.CatalogueCategory, error) {
	var updated *model.CatalogueCategory
	err := s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		c, err := s.Categories.Get(ctx, tx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return kinderr.New(kinderr.KindMissingRecord, "catalogue category not found")
		}
		if c.IsLeaf == isLeaf {
			updated = c
			return nil
		}
		hasChildren, err := s.Categories.Tree.HasChildElements(ctx, tx, id)
		if err != nil {
			return err
		}
		if hasChildren {
			return kinderr.New(kinderr.KindChildElementsExist, "cannot change leaf status while child categories or catalogue items exist")
		}
		c.IsLeaf = isLeaf
		if !isLeaf {
			c.Properties = nil
		}
		if err := s.Categories.Update(ctx, tx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	return updated, err
}

// Delete refuses while child categories or catalogue items exist.
func (s *Service) Delete(ctx context.Context, id ids.ID) error {
	return s.Store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return s.Categories.Delete(ctx, tx, id)
	})
}
