package resolver

import (
	"testing"

	"github.com/sugarcypher/sweetguard/internal/models"
	"github.com/sugarcypher/sweetguard/internal/sources"
)

func completeRecord() *models.FoodRecord {
	return &models.FoodRecord{
		ProductName: "Honey Nut Cheerios",
		Brand:       "General Mills",
		Ingredients: []string{"Whole Grain Oats", "Sugar"},
		NutritionFacts: &models.NutritionFacts{
			TotalCarbsGrams: models.Value(22),
			FiberGrams:      models.Value(3),
			SugarsGrams:     models.Value(9),
		},
		ServingSizeGrams: 28,
	}
}

func TestTrustScoreTable(t *testing.T) {
	cases := []struct {
		name   string
		rec    *models.FoodRecord
		source string
		want   float64
	}{
		{"nil record scores base weight", nil, sources.NameOpenFoodFacts, 0.85},
		{"empty record scores base weight", &models.FoodRecord{}, sources.NameGoUPC, 0.70},
		{"unknown source", &models.FoodRecord{}, "Somewhere Else", DefaultWeight},
		{"complete mock record", completeRecord(), sources.NameMock, 1},
		{"complete record clamps", completeRecord(), sources.NameUSDA, 1},
		{"name and brand only", &models.FoodRecord{ProductName: "x", Brand: "y"}, sources.NameMock, 0.70},
		{"whitespace name earns nothing", &models.FoodRecord{ProductName: "  "}, sources.NameMock, 0.60},
		{"ingredients bonus", &models.FoodRecord{Ingredients: []string{"Salt"}}, sources.NameBarcodeLookup, 0.75},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := TrustScore(tc.rec, tc.source, nil)
			if got != tc.want {
				t.Fatalf("TrustScore: want=%v got=%v", tc.want, got)
			}
		})
	}
}

func TestTrustScoreClampsCustomWeights(t *testing.T) {
	if got := TrustScore(completeRecord(), "x", map[string]float64{"x": 2}); got != 1 {
		t.Fatalf("TrustScore above range: want=1 got=%v", got)
	}
	if got := TrustScore(nil, "x", map[string]float64{"x": -3}); got != 0 {
		t.Fatalf("TrustScore below range: want=0 got=%v", got)
	}
}

// recordWith populates the fields selected by the bits of mask
func recordWith(mask int) *models.FoodRecord {
	rec := &models.FoodRecord{}
	facts := &models.NutritionFacts{}
	if mask&1 != 0 {
		rec.ProductName = "Product"
	}
	if mask&2 != 0 {
		rec.Brand = "Brand"
	}
	if mask&4 != 0 {
		rec.Ingredients = []string{"Oats"}
	}
	if mask&8 != 0 {
		facts.TotalCarbsGrams = models.Value(10)
	}
	if mask&16 != 0 {
		facts.FiberGrams = models.Value(1)
	}
	if mask&32 != 0 {
		facts.SugarsGrams = models.Value(2)
	}
	if mask&64 != 0 {
		rec.ServingSizeGrams = 30
	}
	if mask&(8|16|32) != 0 {
		rec.NutritionFacts = facts
	}
	return rec
}

func TestTrustScoreMonotonic(t *testing.T) {
	const fields = 7
	for _, source := range []string{sources.NameUSDA, sources.NameGoUPC, sources.NameMock, "unknown"} {
		for mask := 0; mask < 1<<fields; mask++ {
			base := TrustScore(recordWith(mask), source, nil)
			if base < 0 || base > 1 {
				t.Fatalf("%s mask=%b: score %v out of range", source, mask, base)
			}
			for bit := 0; bit < fields; bit++ {
				if mask&(1<<bit) != 0 {
					continue
				}
				more := TrustScore(recordWith(mask|1<<bit), source, nil)
				if more < base {
					t.Fatalf("%s mask=%b +bit %d: score dropped from %v to %v", source, mask, bit, base, more)
				}
			}
		}
	}
}

func TestIsIncomplete(t *testing.T) {
	if IsIncomplete(completeRecord()) {
		t.Fatalf("complete record flagged incomplete")
	}
	if !IsIncomplete(nil) {
		t.Fatalf("nil record must be incomplete")
	}

	mutations := map[string]func(*models.FoodRecord){
		"blank name":      func(r *models.FoodRecord) { r.ProductName = " \t" },
		"missing brand":   func(r *models.FoodRecord) { r.Brand = "" },
		"no ingredients":  func(r *models.FoodRecord) { r.Ingredients = []string{} },
		"no nutrition":    func(r *models.FoodRecord) { r.NutritionFacts = nil },
		"no serving size": func(r *models.FoodRecord) { r.ServingSizeGrams = 0 },
	}
	for name, mutate := range mutations {
		rec := completeRecord()
		mutate(rec)
		if !IsIncomplete(rec) {
			t.Fatalf("%s: want incomplete", name)
		}
	}
}
