package model

import "github.com/ral-facilities/inventory-management-system-api/internal/ids"

// UsageStatus is a closed-vocabulary lifecycle state for an item (e.g. New,
// Used, In Use, Scrapped).
type UsageStatus struct {
	ID    ids.ID `json:"id"`
	Value string `json:"value"`
	Code  string `json:"code"`
}

// Unit is a flat lookup entry, specified only by the interface the core
// consumes: it is never mutated by the core, only resolved by ID.
type Unit struct {
	ID    ids.ID `json:"id"`
	Value string `json:"value"`
	Code  string `json:"code"`
}

// ManufacturerAddress is the free-text postal address of a manufacturer.
type ManufacturerAddress struct {
	AddressLine string  `json:"address_line"`
	Town        *string `json:"town,omitempty"`
	County      *string `json:"county,omitempty"`
	PostCode    string  `json:"postcode"`
	Country     string  `json:"country"`
}

// Manufacturer is a flat lookup entry, specified only by the interface the
// core consumes: it is never mutated by the core, only resolved by ID.
type Manufacturer struct {
	ID        ids.ID              `json:"id"`
	Name      string              `json:"name"`
	Code      string              `json:"code"`
	URL       string              `json:"url"`
	Address   ManufacturerAddress `json:"address"`
	Telephone *string             `json:"telephone,omitempty"`
}

// Rule encodes one permitted item transition triple. A nil
// SrcSystemTypeID with a set DstSystemTypeID describes creation; both set
// describes a move; a nil DstUsageStatusID with a set SrcSystemTypeID and
// nil DstSystemTypeID describes deletion.
type Rule struct {
	ID                ids.ID  `json:"id"`
	SrcSystemTypeID   *ids.ID `json:"src_system_type_id,omitempty"`
	DstSystemTypeID   *ids.ID `json:"dst_system_type_id,omitempty"`
	DstUsageStatusID  *ids.ID `json:"dst_usage_status_id,omitempty"`
}

// SparesDefinition is the "settings" document controlling which usage
// statuses count an item as a spare. SystemTypeScope, if non-empty,
// additionally restricts the count to items whose system is one of the
// listed types (I10's "spares scope"); left empty, every system type is
// in scope.
type SparesDefinition struct {
	UsageStatuses   []ids.ID `json:"usage_statuses"`
	SystemTypeScope []ids.ID `json:"system_type_scope,omitempty"`
}
