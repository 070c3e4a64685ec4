package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const defaultGoUPCURL = "https://go-upc.com"

// GoUPC queries the retail-oriented Go-UPC product database. It rarely carries
// nutrition data, so its records usually fail the completeness check.
type GoUPC struct {
	baseURL string
	apiKey  string
	req     *Requester
}

func NewGoUPC(baseURL, apiKey string, r *Requester) *GoUPC {
	if baseURL == "" {
		baseURL = defaultGoUPCURL
	}
	return &GoUPC{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, req: r}
}

func (s *GoUPC) Name() string { return NameGoUPC }

type goUPCResponse struct {
	Code    string `json:"code"`
	Product *struct {
		Name        string `json:"name"`
		Brand       string `json:"brand"`
		Ingredients *struct {
			Text string `json:"text"`
		} `json:"ingredients"`
		NutritionFacts map[string]any `json:"nutritionFacts"`
		ServingSize    string         `json:"servingSize"`
	} `json:"product"`
}

func (s *GoUPC) Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("go-upc: api key required: %w", ErrMissingCredentials)
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.apiKey)
	reqURL := fmt.Sprintf("%s/api/v1/code/%s", s.baseURL, url.PathEscape(barcode))

	var resp goUPCResponse
	if err := s.req.GetJSON(ctx, reqURL, header, &resp); err != nil {
		if IsStatus(err, 404) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("go-upc: %w", err)
	}
	if resp.Product == nil || resp.Product.Name == "" {
		return nil, ErrNotFound
	}

	p := resp.Product
	rec := &models.FoodRecord{
		ProductName:      p.Name,
		Brand:            p.Brand,
		ServingSizeGrams: 100,
	}
	if p.Ingredients != nil {
		rec.Ingredients = ParseIngredients(p.Ingredients.Text)
	}
	if f, ok := gramsIn(p.ServingSize); ok {
		rec.ServingSizeGrams = f
	}
	if len(p.NutritionFacts) > 0 {
		n := p.NutritionFacts
		rec.NutritionFacts = &models.NutritionFacts{
			Basis:           models.BasisPerServing,
			TotalCarbsGrams: firstNumber(n, "carbohydrates", "totalCarbohydrate"),
			FiberGrams:      firstNumber(n, "fiber", "dietaryFiber"),
			SugarsGrams:     firstNumber(n, "sugars", "totalSugars"),
			ProteinGrams:    firstNumber(n, "protein"),
			FatGrams:        firstNumber(n, "fat", "totalFat"),
			Calories:        firstNumber(n, "calories"),
		}
	}
	return rec, nil
}
