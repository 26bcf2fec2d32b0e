package model

import (
	"time"

	"github.com/ral-facilities/inventory-management-system-api/internal/ids"
)

// Item is a physical instance of a catalogue item placed within a system.
type Item struct {
	ID              ids.ID           `json:"id"`
	CatalogueItemID ids.ID           `json:"catalogue_item_id"`
	SystemID        ids.ID           `json:"system_id"`
	UsageStatusID   ids.ID           `json:"usage_status_id"`
	IsDefective     bool             `json:"is_defective"`
	SerialNumber    *string          `json:"serial_number,omitempty"`
	WarrantyEndDate *time.Time       `json:"warranty_end_date,omitempty"`
	Properties      []StoredProperty `json:"properties"`
}
