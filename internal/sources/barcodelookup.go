package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const defaultBarcodeLookupURL = "https://api.barcodelookup.com"

// BarcodeLookup queries barcodelookup.com. Nutrition arrives as free text
// and is parsed best effort.
type BarcodeLookup struct {
	baseURL string
	apiKey  string
	req     *Requester
}

func NewBarcodeLookup(baseURL, apiKey string, r *Requester) *BarcodeLookup {
	if baseURL == "" {
		baseURL = defaultBarcodeLookupURL
	}
	return &BarcodeLookup{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, req: r}
}

func (s *BarcodeLookup) Name() string { return NameBarcodeLookup }

type barcodeLookupResponse struct {
	Products []struct {
		Title          string `json:"title"`
		Brand          string `json:"brand"`
		Ingredients    string `json:"ingredients"`
		NutritionFacts string `json:"nutrition_facts"`
		Size           string `json:"size"`
	} `json:"products"`
}

func (s *BarcodeLookup) Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("barcode lookup: api key required: %w", ErrMissingCredentials)
	}

	q := url.Values{}
	q.Set("barcode", barcode)
	q.Set("formatted", "y")
	q.Set("key", s.apiKey)
	reqURL := s.baseURL + "/v3/products?" + q.Encode()

	var resp barcodeLookupResponse
	if err := s.req.GetJSON(ctx, reqURL, nil, &resp); err != nil {
		if IsStatus(err, 404) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("barcode lookup: %w", err)
	}
	if len(resp.Products) == 0 {
		return nil, ErrNotFound
	}

	p := resp.Products[0]
	serving := 100.0
	if f, ok := gramsIn(p.Size); ok {
		serving = f
	}
	return &models.FoodRecord{
		ProductName:      p.Title,
		Brand:            p.Brand,
		Ingredients:      ParseIngredients(p.Ingredients),
		NutritionFacts:   parseNutritionText(p.NutritionFacts),
		ServingSizeGrams: serving,
	}, nil
}

var nutrientLine = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z ]*?)\s*:?\s*(\d+(?:\.\d+)?)\s*(g|kcal|cal|mg)?\s*$`)

// parseNutritionText reads text like "Energy 140 kcal, Carbohydrate 39 g, Sugars 39 g".
// It returns nil when nothing recognisable is found.
func parseNutritionText(text string) *models.NutritionFacts {
	var facts models.NutritionFacts
	found := false
	for _, part := range strings.Split(text, ",") {
		m := nutrientLine.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(m[1]))
		v, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		unit := strings.ToLower(m[3])
		if unit == "mg" {
			continue
		}
		switch {
		case strings.Contains(label, "carbohydrate"):
			facts.TotalCarbsGrams = models.Value(v)
		case strings.Contains(label, "fiber"), strings.Contains(label, "fibre"):
			facts.FiberGrams = models.Value(v)
		case strings.Contains(label, "sugar"):
			facts.SugarsGrams = models.Value(v)
		case strings.Contains(label, "protein"):
			facts.ProteinGrams = models.Value(v)
		case label == "fat" || label == "total fat":
			facts.FatGrams = models.Value(v)
		case label == "energy" || label == "calories":
			if unit == "kcal" || unit == "cal" || unit == "" {
				facts.Calories = models.Value(v)
			}
		default:
			continue
		}
		found = true
	}
	if !found {
		return nil
	}
	facts.Basis = models.BasisPerServing
	return &facts
}
