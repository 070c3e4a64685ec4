// Package sugar grades the sugar content of a food record against the WHO
// adult daily limit.
package sugar

import (
	"math"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const (
	// DailyLimitGrams is the WHO recommended daily limit of free sugars for adults
	DailyLimitGrams = 25.0
	// GramsPerTeaspoon converts sugar grams to teaspoons
	GramsPerTeaspoon = 4.0
)

type Severity string

const (
	Low      Severity = "LOW"
	Medium   Severity = "MEDIUM"
	High     Severity = "HIGH"
	VeryHigh Severity = "VERY_HIGH"
)

// Upper bounds (inclusive) of each band, in grams per serving
const (
	lowMax    = 5.0
	mediumMax = 15.0
	highMax   = 25.0
)

var colors = map[Severity]string{
	Low:      "#34C759",
	Medium:   "#FFCC00",
	High:     "#FF9500",
	VeryHigh: "#FF3B30",
}

// SeverityOf bands a sugar amount in grams
func SeverityOf(grams float64) Severity {
	switch {
	case grams <= lowMax:
		return Low
	case grams <= mediumMax:
		return Medium
	case grams <= highMax:
		return High
	default:
		return VeryHigh
	}
}

// Color returns the display colour of a severity band
func (s Severity) Color() string { return colors[s] }

// Assessment is the sugar grading of one serving
type Assessment struct {
	GramsPerServing     float64  `json:"grams_per_serving"`
	Teaspoons           float64  `json:"teaspoons"`
	PercentOfDailyLimit float64  `json:"percent_of_daily_limit"`
	Severity            Severity `json:"severity"`
	Color               string   `json:"color"`
}

// Assess grades a sugar amount in grams per serving
func Assess(grams float64) Assessment {
	s := SeverityOf(grams)
	return Assessment{
		GramsPerServing:     round(grams, 1),
		Teaspoons:           round(grams/GramsPerTeaspoon, 2),
		PercentOfDailyLimit: round(grams/DailyLimitGrams*100, 1),
		Severity:            s,
		Color:               s.Color(),
	}
}

// ForRecord grades the sugars of one serving of rec. Values reported per 100g
// are scaled by the serving size. It returns nil when rec has no sugar value.
func ForRecord(rec *models.FoodRecord) *Assessment {
	if rec == nil || rec.NutritionFacts == nil || rec.NutritionFacts.SugarsGrams == nil {
		return nil
	}
	grams := *rec.NutritionFacts.SugarsGrams
	if rec.NutritionFacts.Basis == models.BasisPer100g && rec.ServingSizeGrams > 0 {
		grams = grams * rec.ServingSizeGrams / 100
	}
	a := Assess(grams)
	return &a
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
