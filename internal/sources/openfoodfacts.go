package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const defaultOpenFoodFactsURL = "https://world.openfoodfacts.org"

// OpenFoodFacts looks barcodes up in the community Open Food Facts database
type OpenFoodFacts struct {
	baseURL string
	req     *Requester
}

func NewOpenFoodFacts(baseURL string, r *Requester) *OpenFoodFacts {
	if baseURL == "" {
		baseURL = defaultOpenFoodFactsURL
	}
	return &OpenFoodFacts{baseURL: strings.TrimRight(baseURL, "/"), req: r}
}

func (s *OpenFoodFacts) Name() string { return NameOpenFoodFacts }

type offResponse struct {
	Status  int         `json:"status"`
	Product *offProduct `json:"product"`
}

type offProduct struct {
	ProductName       string         `json:"product_name"`
	ProductNameEn     string         `json:"product_name_en"`
	Brands            string         `json:"brands"`
	IngredientsText   string         `json:"ingredients_text"`
	IngredientsTextEn string         `json:"ingredients_text_en"`
	ServingSize       string         `json:"serving_size"`
	ServingQuantity   any            `json:"serving_quantity"`
	Nutriments        map[string]any `json:"nutriments"`
}

func (s *OpenFoodFacts) Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error) {
	reqURL := fmt.Sprintf("%s/api/v0/product/%s.json", s.baseURL, url.PathEscape(barcode))

	var resp offResponse
	if err := s.req.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		if IsStatus(err, 404) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open food facts: %w", err)
	}
	if resp.Status == 0 || resp.Product == nil {
		return nil, ErrNotFound
	}
	return resp.Product.toRecord(), nil
}

func (p *offProduct) toRecord() *models.FoodRecord {
	n := p.Nutriments
	if n == nil {
		n = map[string]any{}
	}
	return &models.FoodRecord{
		ProductName: orDefault(firstNonEmpty(p.ProductName, p.ProductNameEn), "Unknown Product"),
		Brand:       orDefault(p.Brands, "Unknown Brand"),
		Ingredients: ParseIngredients(firstNonEmpty(p.IngredientsText, p.IngredientsTextEn)),
		NutritionFacts: &models.NutritionFacts{
			Basis:           models.BasisPer100g,
			TotalCarbsGrams: zeroOr(firstNumber(n, "carbohydrates_100g", "carbohydrates")),
			FiberGrams:      zeroOr(firstNumber(n, "fiber_100g", "fiber")),
			SugarsGrams:     zeroOr(firstNumber(n, "sugars_100g", "sugars")),
			ProteinGrams:    firstNumber(n, "proteins_100g", "proteins"),
			FatGrams:        firstNumber(n, "fat_100g", "fat"),
			Calories:        firstNumber(n, "energy-kcal_100g", "energy-kcal"),
		},
		ServingSizeGrams: p.servingGrams(),
	}
}

func (p *offProduct) servingGrams() float64 {
	if f, ok := numberValue(p.ServingQuantity); ok && f > 0 {
		return f
	}
	if f, ok := gramsIn(p.ServingSize); ok {
		return f
	}
	return 100
}
