package models

import "time"

// RawFoodRecord is one decoded JSON object from an input file. Field names
// follow whatever convention the source used (snake_case or camelCase).
type RawFoodRecord map[string]any

// CanonicalFoodRecord is the normalized form every source is mapped into
// before de-duplication and commit.
type CanonicalFoodRecord struct {
	ExternalID   string   `json:"external_id"`
	NameEn       string   `json:"name_en"`
	NameAr       string   `json:"name_ar"`
	BrandEn      *string  `json:"brand_en,omitempty"`
	BrandAr      *string  `json:"brand_ar,omitempty"`
	Category     string   `json:"category"`
	Subcategory  *string  `json:"subcategory,omitempty"`
	ServingSizeG float64  `json:"serving_size_g"`
	Calories     float64  `json:"calories"`
	ProteinG     float64  `json:"protein_g"`
	CarbsG       float64  `json:"carbs_g"`
	FatG         float64  `json:"fat_g"`
	FiberG       float64  `json:"fiber_g"`
	SugarG       *float64 `json:"sugar_g,omitempty"`
	SodiumMg     *float64 `json:"sodium_mg,omitempty"`
	IsEgyptian   bool     `json:"is_egyptian"`
	Barcode      *string  `json:"barcode,omitempty"`
	AvailableAt  []string `json:"available_at"`
	Tags         []string `json:"tags"`
}

// Brand returns BrandEn or "" when unset.
func (r CanonicalFoodRecord) Brand() string {
	if r.BrandEn == nil {
		return ""
	}
	return *r.BrandEn
}

// StoredFood is a catalog row: the canonical record plus its store identity.
type StoredFood struct {
	ID int64 `json:"id"`
	CanonicalFoodRecord
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
