package sources

import (
	"context"
	"hash/fnv"

	"github.com/sugarcypher/sweetguard/internal/models"
)

// Mock is the last link of the chain. It answers from a small static table and
// fabricates a complete record for any other barcode, so a lookup is rarely
// left without an answer.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (s *Mock) Name() string { return NameMock }

type mockProduct struct {
	name, brand string
	ingredients []string
	carbs       float64
	fiber       float64
	sugars      float64
	protein     float64
	fat         float64
	calories    float64
	serving     float64
}

var mockProducts = map[string]mockProduct{
	"049000006346": {
		name:        "Coca-Cola Classic",
		brand:       "Coca-Cola",
		ingredients: []string{"Carbonated Water", "High Fructose Corn Syrup", "Caramel Color", "Phosphoric Acid", "Natural Flavors", "Caffeine"},
		carbs:       39, fiber: 0, sugars: 39, protein: 0, fat: 0, calories: 140, serving: 355,
	},
	"038000138416": {
		name:        "Lays Classic Potato Chips",
		brand:       "Lays",
		ingredients: []string{"Potatoes", "Vegetable Oil", "Salt"},
		carbs:       15, fiber: 1, sugars: 0, protein: 2, fat: 10, calories: 160, serving: 28,
	},
	"021130126026": {
		name:        "Honey Nut Cheerios",
		brand:       "General Mills",
		ingredients: []string{"Whole Grain Oats", "Sugar", "Oat Bran", "Corn Starch", "Honey", "Brown Sugar Syrup", "Salt"},
		carbs:       22, fiber: 3, sugars: 9, protein: 3, fat: 2, calories: 110, serving: 28,
	},
	"123456789012": {
		name:        "Granola Bar",
		brand:       "Nature Valley",
		ingredients: []string{"Whole Grain Oats", "Sugar", "Canola Oil", "Rice Flour", "Honey", "Brown Sugar Syrup"},
		carbs:       29, fiber: 4, sugars: 11, protein: 4, fat: 6, calories: 190, serving: 42,
	},
}

var (
	fabricatedNames  = []string{"Mystery Snack", "Unknown Beverage", "Test Food Item", "Sample Product"}
	fabricatedBrands = []string{"Generic", "Test Brand", "Demo Co.", "Sample Inc."}
	fabricatedSugars = []float64{5, 12, 18, 25, 32}
)

func (s *Mock) Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p, ok := mockProducts[barcode]; ok {
		return p.record(), nil
	}
	return fabricate(barcode).record(), nil
}

// fabricate picks demo values from the barcode so the same code always yields
// the same product.
func fabricate(barcode string) mockProduct {
	h := fnv.New32a()
	_, _ = h.Write([]byte(barcode))
	sum := h.Sum32()

	sugars := fabricatedSugars[sum%uint32(len(fabricatedSugars))]
	return mockProduct{
		name:        fabricatedNames[(sum>>8)%uint32(len(fabricatedNames))],
		brand:       fabricatedBrands[(sum>>16)%uint32(len(fabricatedBrands))],
		ingredients: []string{"Various ingredients", "Sugar", "Artificial flavors"},
		carbs:       sugars + 10,
		fiber:       2,
		sugars:      sugars,
		protein:     3,
		fat:         5,
		calories:    150,
		serving:     100,
	}
}

func (p mockProduct) record() *models.FoodRecord {
	ingredients := make([]string, len(p.ingredients))
	copy(ingredients, p.ingredients)
	return &models.FoodRecord{
		ProductName: p.name,
		Brand:       p.brand,
		Ingredients: ingredients,
		NutritionFacts: &models.NutritionFacts{
			Basis:           models.BasisPerServing,
			TotalCarbsGrams: models.Value(p.carbs),
			FiberGrams:      models.Value(p.fiber),
			SugarsGrams:     models.Value(p.sugars),
			ProteinGrams:    models.Value(p.protein),
			FatGrams:        models.Value(p.fat),
			Calories:        models.Value(p.calories),
		},
		ServingSizeGrams: p.serving,
	}
}
