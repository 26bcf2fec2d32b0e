package model

import "github.com/ral-facilities/inventory-management-system-api/internal/ids"

// PropertyType enumerates the closed set of scalar types a property
// declaration may carry.
type PropertyType string

const (
	PropertyTypeString  PropertyType = "string"
	PropertyTypeNumber  PropertyType = "number"
	PropertyTypeBoolean PropertyType = "boolean"
)

// AllowedValues constrains a property's stored values to a fixed set. Only
// Kind "list" is currently supported; the list may only ever grow.
type AllowedValues struct {
	Kind   string `json:"kind"`
	Values []any  `json:"values"`
}

// PropertyDescriptor is a property-schema entry owned by a leaf catalogue
// category. Category is the single authoritative source for Name, Unit,
// Type, AllowedValues and Mandatory; catalogue items and items only carry
// denormalised copies reconciled by ID.
type PropertyDescriptor struct {
	ID            ids.ID         `json:"id"`
	Name          string         `json:"name"`
	Type          PropertyType   `json:"type"`
	UnitID        *ids.ID        `json:"unit_id,omitempty"`
	Mandatory     bool           `json:"mandatory"`
	AllowedValues *AllowedValues `json:"allowed_values,omitempty"`
}

// StoredProperty is a denormalised property value carried by a catalogue
// item or an item. ID and Name are reconciled by the propagation engine
// whenever the owning descriptor changes.
type StoredProperty struct {
	ID    ids.ID `json:"id"`
	Name  string `json:"name"`
	Unit  string `json:"unit"`
	Value any    `json:"value"`
}
