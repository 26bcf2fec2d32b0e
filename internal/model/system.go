package model

import "github.com/ral-facilities/inventory-management-system-api/internal/ids"

// Importance is the closed enumeration of a system's operational
// importance.
type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

// System is a node of the system tree representing a deployment location.
type System struct {
	ID          ids.ID     `json:"id"`
	Name        string     `json:"name"`
	Code        string     `json:"code"`
	ParentID    *ids.ID    `json:"parent_id,omitempty"`
	TypeID      ids.ID     `json:"type_id"`
	Description *string    `json:"description,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Owner       *string    `json:"owner,omitempty"`
	Importance  Importance `json:"importance"`
}

// SystemType is a fixed enumeration value (Storage, Operational, Scrapped).
type SystemType struct {
	ID    ids.ID `json:"id"`
	Value string `json:"value"`
}
