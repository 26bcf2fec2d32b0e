// Package properties implements §4.D, the property propagation engine:
// the hardest subsystem in the core. It keeps the category's property
// schema and every dependent catalogue item's and item's denormalised
// property copies coherent, joining strictly on the property's stable id.
package properties

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
	"github.com/ral-facilities/inventory-management-system-api/internal/kinderr"
	"github.com/ral-facilities/inventory-management-system-api/internal/model"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage"
	"github.com/ral-facilities/inventory-management-system-api/internal/storage/sqlite"
)

// Engine coordinates property-schema mutations across a category and its
// dependent catalogue items and items.
type Engine struct {
	Categories     *sqlite.CategoryRepository
	CatalogueItems *sqlite.CatalogueItemRepository
	Items          *sqlite.ItemRepository
	Units          *sqlite.UnitRepository
}

func NewEngine(categories *sqlite.CategoryRepository, catalogueItems *sqlite.CatalogueItemRepository, items *sqlite.ItemRepository, units *sqlite.UnitRepository) *Engine {
	return &Engine{Categories: categories, CatalogueItems: catalogueItems, Items: items, Units: units}
}

// NewProperty is the caller-supplied shape of a property to add.
type NewProperty struct {
	Name          string
	Type          model.PropertyType
	UnitID        *ids.ID
	Mandatory     bool
	AllowedValues *model.AllowedValues
	// DefaultValue is required when Mandatory is true; it seeds every
	// existing dependent record's new property entry.
	DefaultValue any
}

// AddProperty implements spec.md §4.D.1: insert the new descriptor into
// the category, then bulk-append the denormalised entry to every
// catalogue item and item beneath it, all inside tx.
func (e *Engine) AddProperty(ctx context.Context, tx storage.Transaction, categoryID ids.ID, np NewProperty) (*model.PropertyDescriptor, error) {
	category, err := e.Categories.Get(ctx, tx, categoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, kinderr.New(kinderr.KindMissingRecord, "catalogue category not found")
	}
	if !category.IsLeaf {
		return nil, kinderr.New(kinderr.KindInvalidAction, "properties can only be added to a leaf category")
	}
	for _, p := range category.Properties {
		if p.Name == np.Name {
			return nil, kinderr.New(kinderr.KindDuplicatePropertyName, fmt.Sprintf("property %q already exists", np.Name))
		}
	}
	if np.Mandatory && np.DefaultValue == nil {
		return nil, kinderr.New(kinderr.KindInvalidAction, "a mandatory property requires a default_value")
	}
	if np.UnitID != nil {
		exists, err := e.Units.Exists(ctx, tx, *np.UnitID)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, kinderr.New(kinderr.KindMissingRecord, "unit not found")
		}
	}

	newID, err := ids.New()
	if err != nil {
		return nil, err
	}
	descriptor := model.PropertyDescriptor{
		ID: newID, Name: np.Name, Type: np.Type, UnitID: np.UnitID,
		Mandatory: np.Mandatory, AllowedValues: np.AllowedValues,
	}
	if np.DefaultValue != nil {
		if err := checkValueAgainstDescriptor(descriptor, np.DefaultValue); err != nil {
			return nil, err
		}
	}

	category.Properties = append(category.Properties, descriptor)
	if err := e.Categories.Update(ctx, tx, category); err != nil {
		return nil, err
	}

	unitStr := ""
	if np.UnitID != nil {
		unit, err := e.Units.Get(ctx, tx, *np.UnitID)
		if err != nil {
			return nil, err
		}
		if unit != nil {
			unitStr = unit.Value
		}
	}
	newEntry := model.StoredProperty{ID: newID, Name: np.Name, Unit: unitStr, Value: np.DefaultValue}

	catalogueItems, err := e.CatalogueItems.ListByCategory(ctx, tx, categoryID)
	if err != nil {
		return nil, err
	}
	catalogueItemIDs := make([]ids.ID, 0, len(catalogueItems))
	for _, ci := range catalogueItems {
		ci.Properties = append(ci.Properties, newEntry)
		if err := e.CatalogueItems.UpdateProperties(ctx, tx, ci.ID, ci.Properties); err != nil {
			return nil, err
		}
		catalogueItemIDs = append(catalogueItemIDs, ci.ID)
	}

	items, err := e.Items.ListByCatalogueItems(ctx, tx, catalogueItemIDs)
	if err != nil {
		return nil, err
	}
	for _, it := range items {
		it.Properties = append(it.Properties, newEntry)
		if err := e.Items.UpdateProperties(ctx, tx, it.ID, it.Properties); err != nil {
			return nil, err
		}
	}

	return &descriptor, nil
}

// RenameProperty implements spec.md §4.D.2: update the descriptor's name,
// then overwrite name on every matching denormalised entry, joined by id.
func (e *Engine) RenameProperty(ctx context.Context, tx storage.Transaction, categoryID, propertyID ids.ID, newName string) error {
	category, err := e.Categories.Get(ctx, tx, categoryID)
	if err != nil {
		return err
	}
	if category == nil {
		return kinderr.New(kinderr.KindMissingRecord, "catalogue category not found")
	}

	idx := -1
	for i, p := range category.Properties {
		if p.Name == newName && p.ID != propertyID {
			return kinderr.New(kinderr.KindDuplicatePropertyName, fmt.Sprintf("property %q already exists", newName))
		}
		if p.ID == propertyID {
			idx = i
		}
	}
	if idx == -1 {
		return kinderr.New(kinderr.KindMissingRecord, "property not found on category")
	}
	category.Properties[idx].Name = newName
	if err := e.Categories.Update(ctx, tx, category); err != nil {
		return err
	}

	catalogueItems, err := e.CatalogueItems.ListByCategory(ctx, tx, categoryID)
	if err != nil {
		return err
	}
	catalogueItemIDs := make([]ids.ID, 0, len(catalogueItems))
	for _, ci := range catalogueItems {
		renameStoredProperty(ci.Properties, propertyID, newName)
		if err := e.CatalogueItems.UpdateProperties(ctx, tx, ci.ID, ci.Properties); err != nil {
			return err
		}
		catalogueItemIDs = append(catalogueItemIDs, ci.ID)
	}

	items, err := e.Items.ListByCatalogueItems(ctx, tx, catalogueItemIDs)
	if err != nil {
		return err
	}
	for _, it := range items {
		renameStoredProperty(it.Properties, propertyID, newName)
		if err := e.Items.UpdateProperties(ctx, tx, it.ID, it.Properties); err != nil {
			return err
		}
	}
	return nil
}

func renameStoredProperty(props []model.StoredProperty, id ids.ID, newName string) {
	for i := range props {
		if props[i].ID == id {
			props[i].Name = newName
		}
	}
}

// ModifyAllowedValues implements spec.md §4.D.3: a list's allowed_values
// may only ever be extended. No cascade is required since every
// previously stored value remains a member of the extended set.
func (e *Engine) ModifyAllowedValues(ctx context.Context, tx storage.Transaction, categoryID, propertyID ids.ID, newValues []any) error {
	category, err := e.Categories.Get(ctx, tx, categoryID)
	if err != nil {
		return err
	}
	if category == nil {
		return kinderr.New(kinderr.KindMissingRecord, "catalogue category not found")
	}

	idx := -1
	for i, p := range category.Properties {
		if p.ID == propertyID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return kinderr.New(kinderr.KindMissingRecord, "property not found on category")
	}

	existing := category.Properties[idx].AllowedValues
	if existing == nil || existing.Kind != "list" {
		return kinderr.New(kinderr.KindInvalidAction, "allowed_values of kind list can only be extended, not introduced")
	}
	if !isSupersetPreservingOrder(existing.Values, newValues) {
		return kinderr.New(kinderr.KindInvalidAction, "may only add more values, not remove or modify existing ones")
	}

	category.Properties[idx].AllowedValues = &model.AllowedValues{Kind: "list", Values: newValues}
	return e.Categories.Update(ctx, tx, category)
}

// isSupersetPreservingOrder reports whether every value in old appears, in
// the same relative order, as a prefix-compatible subsequence of next —
// i.e. next only ever appends, it never reorders or removes.
func isSupersetPreservingOrder(old, next []any) bool {
	if len(next) < len(old) {
		return false
	}
	for i, v := range old {
		if !valuesEqual(v, next[i]) {
			return false
		}
	}
	return true
}

// SuppliedProperty is one caller-supplied property value, keyed by id
// (preferred) or name (fallback for convenience callers).
type SuppliedProperty struct {
	ID    *ids.ID
	Name  string
	Value any
}

// ValidateSuppliedProperties implements spec.md §4.D.4. The supplied list
// is reconciled against defined in this fixed order: missing-mandatory
// check, drop-unknown, overwrite unit from the declaration, type/
// allowed-values check — the order the original implementation used.
// Every distinct validation failure is accumulated via go-multierror
// rather than returned on first failure, so a caller sees every problem
// with a payload in one response.
func ValidateSuppliedProperties(defined []model.PropertyDescriptor, supplied []SuppliedProperty, unitValue func(ids.ID) (string, error)) ([]model.StoredProperty, error) {
	bySuppliedID := map[ids.ID]SuppliedProperty{}
	bySuppliedName := map[string]SuppliedProperty{}
	for _, s := range supplied {
		if s.ID != nil {
			bySuppliedID[*s.ID] = s
		} else if s.Name != "" {
			bySuppliedName[s.Name] = s
		}
	}

	var result []model.StoredProperty
	var errs *multierror.Error

	for _, d := range defined {
		s, ok := bySuppliedID[d.ID]
		if !ok {
			s, ok = bySuppliedName[d.Name]
		}

		var value any
		if ok {
			value = s.Value
		}

		if d.Mandatory && value == nil {
			errs = multierror.Append(errs, kinderr.New(kinderr.KindMissingMandatoryProperty, fmt.Sprintf("property %q is mandatory", d.Name)))
			continue
		}

		unit := ""
		if d.UnitID != nil {
			u, err := unitValue(*d.UnitID)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			unit = u
		}

		if value != nil {
			if err := checkValueAgainstDescriptor(d, value); err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
		}

		result = append(result, model.StoredProperty{ID: d.ID, Name: d.Name, Unit: unit, Value: value})
	}
	// Supplied entries whose id/name is not declared on the category are
	// silently dropped, per spec.md §4.D.4.

	if errs != nil && len(errs.Errors) > 0 {
		return nil, errs.ErrorOrNil()
	}
	return result, nil
}

func checkValueAgainstDescriptor(d model.PropertyDescriptor, value any) error {
	if value == nil {
		return nil
	}
	switch d.Type {
	case model.PropertyTypeString:
		if _, ok := value.(string); !ok {
			return kinderr.New(kinderr.KindInvalidPropertyType, fmt.Sprintf("property %q must be a string", d.Name))
		}
	case model.PropertyTypeNumber:
		switch value.(type) {
		case float64, int, int64:
		default:
			return kinderr.New(kinderr.KindInvalidPropertyType, fmt.Sprintf("property %q must be a number", d.Name))
		}
	case model.PropertyTypeBoolean:
		if _, ok := value.(bool); !ok {
			return kinderr.New(kinderr.KindInvalidPropertyType, fmt.Sprintf("property %q must be a boolean", d.Name))
		}
	}

	if d.AllowedValues != nil && d.AllowedValues.Kind == "list" {
		found := false
		for _, v := range d.AllowedValues.Values {
			if valuesEqual(v, value) {
				found = true
				break
			}
		}
		if !found {
			return kinderr.New(kinderr.KindInvalidPropertyType, fmt.Sprintf("property %q value is not one of the allowed values", d.Name))
		}
	}
	return nil
}

func valuesEqual(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
