package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const defaultEdamamURL = "https://api.edamam.com"

// Edamam queries the Edamam food database parser by UPC
type Edamam struct {
	baseURL string
	appID   string
	appKey  string
	req     *Requester
}

func NewEdamam(baseURL, appID, appKey string, r *Requester) *Edamam {
	if baseURL == "" {
		baseURL = defaultEdamamURL
	}
	return &Edamam{baseURL: strings.TrimRight(baseURL, "/"), appID: appID, appKey: appKey, req: r}
}

func (s *Edamam) Name() string { return NameEdamam }

type edamamResponse struct {
	Hints []struct {
		Food struct {
			Label             string         `json:"label"`
			Brand             string         `json:"brand"`
			FoodContentsLabel string         `json:"foodContentsLabel"`
			Nutrients         map[string]any `json:"nutrients"`
		} `json:"food"`
		Measures []struct {
			Label  string  `json:"label"`
			Weight float64 `json:"weight"`
		} `json:"measures"`
	} `json:"hints"`
}

func (s *Edamam) Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error) {
	if s.appID == "" || s.appKey == "" {
		return nil, fmt.Errorf("edamam: app_id and app_key required: %w", ErrMissingCredentials)
	}

	q := url.Values{}
	q.Set("app_id", s.appID)
	q.Set("app_key", s.appKey)
	q.Set("upc", barcode)
	reqURL := s.baseURL + "/api/food-database/v2/parser?" + q.Encode()

	var resp edamamResponse
	if err := s.req.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		if IsStatus(err, 404) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("edamam: %w", err)
	}
	if len(resp.Hints) == 0 {
		return nil, ErrNotFound
	}

	hint := resp.Hints[0]
	n := hint.Food.Nutrients
	if n == nil {
		n = map[string]any{}
	}
	serving := 100.0
	for _, m := range hint.Measures {
		if strings.EqualFold(m.Label, "Serving") && m.Weight > 0 {
			serving = m.Weight
			break
		}
	}

	return &models.FoodRecord{
		ProductName: hint.Food.Label,
		Brand:       hint.Food.Brand,
		Ingredients: ParseIngredients(hint.Food.FoodContentsLabel),
		NutritionFacts: &models.NutritionFacts{
			Basis:           models.BasisPer100g,
			TotalCarbsGrams: firstNumber(n, "CHOCDF"),
			FiberGrams:      firstNumber(n, "FIBTG"),
			SugarsGrams:     firstNumber(n, "SUGAR"),
			ProteinGrams:    firstNumber(n, "PROCNT"),
			FatGrams:        firstNumber(n, "FAT"),
			Calories:        firstNumber(n, "ENERC_KCAL"),
		},
		ServingSizeGrams: serving,
	}, nil
}
