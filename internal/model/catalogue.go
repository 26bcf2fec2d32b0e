package model

import "github.com/ral-facilities/inventory-management-system-api/internal/ids"

// CatalogueCategory is a node of the catalogue tree. Properties is
// populated only when IsLeaf is true.
type CatalogueCategory struct {
	ID         ids.ID               `json:"id"`
	Name       string               `json:"name"`
	Code       string               `json:"code"`
	ParentID   *ids.ID              `json:"parent_id,omitempty"`
	IsLeaf     bool                 `json:"is_leaf"`
	Properties []PropertyDescriptor `json:"properties"`
}

// CatalogueItem is an abstract item model living under a leaf category.
type CatalogueItem struct {
	ID                                  ids.ID           `json:"id"`
	CatalogueCategoryID                  ids.ID           `json:"catalogue_category_id"`
	ManufacturerID                       ids.ID           `json:"manufacturer_id"`
	Name                                 string           `json:"name"`
	Description                          *string          `json:"description,omitempty"`
	CostGBP                              float64          `json:"cost_gbp"`
	DaysToReplace                        int              `json:"days_to_replace"`
	Obsolete                             bool             `json:"obsolete"`
	ObsoleteReplacementCatalogueItemID *ids.ID          `json:"obsolete_replacement_catalogue_item_id,omitempty"`
	Properties                           []StoredProperty `json:"properties"`
	NumberOfSpares                       int              `json:"number_of_spares"`
}
