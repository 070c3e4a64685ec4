package resolver

import (
	"math"
	"strings"

	"github.com/sugarcypher/sweetguard/internal/models"
	"github.com/sugarcypher/sweetguard/internal/sources"
)

// DefaultWeight is the base trust of a source missing from the weight table
const DefaultWeight = 0.5

// DefaultWeights ranks source reliability. It is policy input, not derived data.
var DefaultWeights = map[string]float64{
	sources.NameUSDA:          0.95,
	sources.NameEdamam:        0.90,
	sources.NameOpenFoodFacts: 0.85,
	sources.NameFatSecret:     0.80,
	sources.NameGoUPC:         0.70,
	sources.NameBarcodeLookup: 0.65,
	sources.NameMock:          0.60,
}

// Field bonuses added on top of the source weight
const (
	bonusName        = 0.05
	bonusBrand       = 0.05
	bonusIngredients = 0.10
	bonusNutrient    = 0.05
	bonusServing     = 0.05
)

func baseWeight(source string, weights map[string]float64) float64 {
	if weights == nil {
		weights = DefaultWeights
	}
	if w, ok := weights[source]; ok {
		return w
	}
	return DefaultWeight
}

// TrustScore grades rec as reported by source. Every populated field adds a
// fixed bonus to the source weight, so filling a field never lowers the score.
// The result is clamped to [0, 1]. A nil weights map uses DefaultWeights.
func TrustScore(rec *models.FoodRecord, source string, weights map[string]float64) float64 {
	score := baseWeight(source, weights)
	if rec != nil {
		if !blank(rec.ProductName) {
			score += bonusName
		}
		if !blank(rec.Brand) {
			score += bonusBrand
		}
		if len(rec.Ingredients) > 0 {
			score += bonusIngredients
		}
		if f := rec.NutritionFacts; f != nil {
			for _, v := range []*float64{f.TotalCarbsGrams, f.FiberGrams, f.SugarsGrams} {
				if v != nil {
					score += bonusNutrient
				}
			}
		}
		if rec.ServingSizeGrams > 0 {
			score += bonusServing
		}
	}
	// Rounded so sums like 0.6+0.2 compare cleanly against the threshold
	score = math.Round(score*1e4) / 1e4
	return math.Max(0, math.Min(1, score))
}

// IsIncomplete reports whether any required field is missing. It is
// independent of the trust score.
func IsIncomplete(rec *models.FoodRecord) bool {
	if rec == nil {
		return true
	}
	return blank(rec.ProductName) ||
		blank(rec.Brand) ||
		len(rec.Ingredients) == 0 ||
		rec.NutritionFacts == nil ||
		rec.ServingSizeGrams <= 0
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
