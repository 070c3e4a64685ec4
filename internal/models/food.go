package models

import (
	"time"
)

// Nutrition value bases
const (
	BasisPer100g    = "per_100g"
	BasisPerServing = "per_serving"
)

// NutritionFacts holds the nutrient values reported by a source, per serving or
// per 100g as named by Basis. A nil field means the source did not report it.
type NutritionFacts struct {
	Basis string `json:"basis,omitempty"`

	TotalCarbsGrams *float64 `json:"total_carbs_g,omitempty"`
	FiberGrams      *float64 `json:"fiber_g,omitempty"`
	SugarsGrams     *float64 `json:"sugars_g,omitempty"`
	ProteinGrams    *float64 `json:"protein_g,omitempty"`
	FatGrams        *float64 `json:"fat_g,omitempty"`
	Calories        *float64 `json:"calories,omitempty"` // kcal
}

// FoodRecord is the normalized nutrition record every source maps onto
type FoodRecord struct {
	ProductName string `json:"product_name"`
	Brand       string `json:"brand"`

	// Ingredients keep the manufacturer's declared order
	Ingredients []string `json:"ingredients"`

	NutritionFacts   *NutritionFacts `json:"nutrition_facts,omitempty"`
	ServingSizeGrams float64         `json:"serving_size_g"`
	GlycemicIndex    *float64        `json:"glycemic_index,omitempty"`
}

// Result is the outcome of resolving a barcode. Exactly one of Record or Error is set.
type Result struct {
	Success    bool        `json:"success"`
	Record     *FoodRecord `json:"record,omitempty"`
	Source     string      `json:"source,omitempty"`
	TrustScore float64     `json:"trust_score,omitempty"`
	Incomplete bool        `json:"incomplete"`
	Error      string      `json:"error,omitempty"`
}

// Failure builds the failed result shape handed to transports
func Failure(reason string) Result {
	return Result{Success: false, Error: reason}
}

// CacheEntry is an accepted result together with the time it was captured
type CacheEntry struct {
	Barcode    string    `json:"barcode"`
	Result     Result    `json:"result"`
	CapturedAt time.Time `json:"captured_at"`
}

// Age returns how old the entry is relative to now
func (e CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}

// CacheStats is diagnostic information about the resolver cache
type CacheStats struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Value returns a pointer to v, for populating NutritionFacts
func Value(v float64) *float64 { return &v }

// Scan statuses
const (
	ScanPending  = "pending"
	ScanResolved = "resolved"
	ScanFailed   = "failed"
)

// ScanRecord tracks one lookup requested through the live channel
type ScanRecord struct {
	ID        string    `json:"id"`
	Barcode   string    `json:"barcode"`
	Status    string    `json:"status"`
	Source    string    `json:"source,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
