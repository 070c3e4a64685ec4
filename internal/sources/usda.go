package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const defaultUSDAURL = "https://api.nal.usda.gov"

// USDA nutrient numbers
const (
	usdaProtein = "203"
	usdaFat     = "204"
	usdaCarbs   = "205"
	usdaKcal    = "208"
	usdaSugars  = "269"
	usdaFiber   = "291"
)

// USDA searches FoodData Central branded foods. FDC has no barcode endpoint,
// so the barcode is used as the search query and matched against gtinUpc.
type USDA struct {
	baseURL string
	apiKey  string
	req     *Requester
}

func NewUSDA(baseURL, apiKey string, r *Requester) *USDA {
	if baseURL == "" {
		baseURL = defaultUSDAURL
	}
	return &USDA{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, req: r}
}

func (s *USDA) Name() string { return NameUSDA }

type usdaSearchResponse struct {
	Foods []usdaFood `json:"foods"`
}

type usdaFood struct {
	Description     string  `json:"description"`
	BrandName       string  `json:"brandName"`
	BrandOwner      string  `json:"brandOwner"`
	GtinUpc         string  `json:"gtinUpc"`
	Ingredients     string  `json:"ingredients"`
	ServingSize     float64 `json:"servingSize"`
	ServingSizeUnit string  `json:"servingSizeUnit"`
	FoodNutrients   []struct {
		NutrientNumber string  `json:"nutrientNumber"`
		Value          float64 `json:"value"`
	} `json:"foodNutrients"`
}

func (s *USDA) Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("usda: api key required: %w", ErrMissingCredentials)
	}

	q := url.Values{}
	q.Set("api_key", s.apiKey)
	q.Set("query", barcode)
	q.Set("dataType", "Branded")
	q.Set("pageSize", "10")
	reqURL := s.baseURL + "/fdc/v1/foods/search?" + q.Encode()

	var resp usdaSearchResponse
	if err := s.req.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		return nil, fmt.Errorf("usda: %w", err)
	}
	for i := range resp.Foods {
		if sameGTIN(resp.Foods[i].GtinUpc, barcode) {
			return resp.Foods[i].toRecord(), nil
		}
	}
	return nil, ErrNotFound
}

func (f *usdaFood) toRecord() *models.FoodRecord {
	values := make(map[string]any, len(f.FoodNutrients))
	for _, n := range f.FoodNutrients {
		values[n.NutrientNumber] = n.Value
	}

	serving := 100.0
	switch strings.ToLower(f.ServingSizeUnit) {
	case "g", "grm":
		if f.ServingSize > 0 {
			serving = f.ServingSize
		}
	}

	return &models.FoodRecord{
		ProductName: f.Description,
		Brand:       firstNonEmpty(f.BrandName, f.BrandOwner),
		Ingredients: ParseIngredients(f.Ingredients),
		NutritionFacts: &models.NutritionFacts{
			Basis:           models.BasisPer100g,
			TotalCarbsGrams: firstNumber(values, usdaCarbs),
			FiberGrams:      firstNumber(values, usdaFiber),
			SugarsGrams:     firstNumber(values, usdaSugars),
			ProteinGrams:    firstNumber(values, usdaProtein),
			FatGrams:        firstNumber(values, usdaFat),
			Calories:        firstNumber(values, usdaKcal),
		},
		ServingSizeGrams: serving,
	}
}

// sameGTIN compares two product codes ignoring zero padding. This is only
// used to match a provider's search hit, never to key the cache.
func sameGTIN(a, b string) bool {
	a = strings.TrimLeft(strings.TrimSpace(a), "0")
	b = strings.TrimLeft(strings.TrimSpace(b), "0")
	return a != "" && a == b
}
