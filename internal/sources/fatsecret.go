package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sugarcypher/sweetguard/internal/models"
)

const (
	defaultFatSecretURL      = "https://platform.fatsecret.com/rest/server.api"
	defaultFatSecretTokenURL = "https://oauth.fatsecret.com/connect/token"
)

// FatSecret resolves barcodes through the FatSecret Platform API. Requests are
// authorised with an OAuth2 client-credentials token, fetched under the
// lookup's context and reused until it expires.
//
// The API does not return ingredient lists, so FatSecret records never pass
// the completeness check on their own; the adapter stays in the chain for its
// nutrition data and serving sizes.
type FatSecret struct {
	baseURL string
	cc      *clientcredentials.Config
	req     *Requester

	mu    sync.Mutex
	token *oauth2.Token
}

// NewFatSecret builds the adapter. With empty credentials it stays in the chain
// and reports ErrMissingCredentials without touching the network.
func NewFatSecret(baseURL, tokenURL, clientID, clientSecret string, r *Requester) *FatSecret {
	if baseURL == "" {
		baseURL = defaultFatSecretURL
	}
	if tokenURL == "" {
		tokenURL = defaultFatSecretTokenURL
	}
	s := &FatSecret{baseURL: baseURL, req: r}
	if clientID == "" || clientSecret == "" {
		return s
	}
	s.cc = &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"basic", "barcode"},
	}
	return s
}

// accessToken returns the cached token or fetches a new one. The fetch runs
// under ctx so the per-source timeout bounds it.
func (s *FatSecret) accessToken(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	tok := s.token
	s.mu.Unlock()
	if tok.Valid() {
		return tok, nil
	}

	// Token requests go through the same base client as API calls
	tok, err := s.cc.Token(context.WithValue(ctx, oauth2.HTTPClient, s.req.Client))
	if err != nil {
		return nil, fmt.Errorf("fatsecret token: %w", err)
	}
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
	return tok, nil
}

func (s *FatSecret) dropToken(tok *oauth2.Token) {
	s.mu.Lock()
	if s.token == tok {
		s.token = nil
	}
	s.mu.Unlock()
}

func (s *FatSecret) Name() string { return NameFatSecret }

type fatSecretBarcodeResponse struct {
	FoodID struct {
		Value string `json:"value"`
	} `json:"food_id"`
}

type fatSecretFoodResponse struct {
	Food struct {
		FoodName  string `json:"food_name"`
		BrandName string `json:"brand_name"`
		Servings  struct {
			// A single serving is sent as an object, several as an array
			Serving json.RawMessage `json:"serving"`
		} `json:"servings"`
	} `json:"food"`
}

type fatSecretServing struct {
	MetricServingAmount string `json:"metric_serving_amount"`
	MetricServingUnit   string `json:"metric_serving_unit"`
	Carbohydrate        string `json:"carbohydrate"`
	Fiber               string `json:"fiber"`
	Sugar               string `json:"sugar"`
	Protein             string `json:"protein"`
	Fat                 string `json:"fat"`
	Calories            string `json:"calories"`
}

func (s *FatSecret) Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error) {
	if s.cc == nil {
		return nil, fmt.Errorf("fatsecret: oauth client credentials required: %w", ErrMissingCredentials)
	}

	var idResp fatSecretBarcodeResponse
	if err := s.call(ctx, url.Values{
		"method":  {"food.find_id_for_barcode"},
		"barcode": {gtin13(barcode)},
	}, &idResp); err != nil {
		return nil, err
	}
	foodID := strings.TrimSpace(idResp.FoodID.Value)
	if foodID == "" || foodID == "0" {
		return nil, ErrNotFound
	}

	var foodResp fatSecretFoodResponse
	if err := s.call(ctx, url.Values{
		"method":  {"food.get.v4"},
		"food_id": {foodID},
	}, &foodResp); err != nil {
		return nil, err
	}

	rec := &models.FoodRecord{
		ProductName:      foodResp.Food.FoodName,
		Brand:            foodResp.Food.BrandName,
		ServingSizeGrams: 100,
	}
	if serving, ok := firstServing(foodResp.Food.Servings.Serving); ok {
		values := map[string]any{
			"carbohydrate": serving.Carbohydrate,
			"fiber":        serving.Fiber,
			"sugar":        serving.Sugar,
			"protein":      serving.Protein,
			"fat":          serving.Fat,
			"calories":     serving.Calories,
		}
		rec.NutritionFacts = &models.NutritionFacts{
			Basis:           models.BasisPerServing,
			TotalCarbsGrams: firstNumber(values, "carbohydrate"),
			FiberGrams:      firstNumber(values, "fiber"),
			SugarsGrams:     firstNumber(values, "sugar"),
			ProteinGrams:    firstNumber(values, "protein"),
			FatGrams:        firstNumber(values, "fat"),
			Calories:        firstNumber(values, "calories"),
		}
		if strings.EqualFold(serving.MetricServingUnit, "g") {
			if f, ok := numberValue(serving.MetricServingAmount); ok && f > 0 {
				rec.ServingSizeGrams = f
			}
		}
	}
	return rec, nil
}

func (s *FatSecret) call(ctx context.Context, q url.Values, out any) error {
	tok, err := s.accessToken(ctx)
	if err != nil {
		return err
	}
	q.Set("format", "json")
	reqURL := s.baseURL + "?" + q.Encode()
	header := http.Header{}
	header.Set("Authorization", tok.Type()+" "+tok.AccessToken)

	if err := s.req.GetJSON(ctx, reqURL, header, out); err != nil {
		switch {
		case IsStatus(err, http.StatusNotFound):
			return ErrNotFound
		case IsStatus(err, http.StatusUnauthorized):
			s.dropToken(tok)
		}
		return fmt.Errorf("fatsecret %s: %w", q.Get("method"), err)
	}
	return nil
}

func firstServing(raw json.RawMessage) (fatSecretServing, bool) {
	if len(raw) == 0 {
		return fatSecretServing{}, false
	}
	var list []fatSecretServing
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) == 0 {
			return fatSecretServing{}, false
		}
		return list[0], true
	}
	var single fatSecretServing
	if err := json.Unmarshal(raw, &single); err != nil {
		return fatSecretServing{}, false
	}
	return single, true
}

// gtin13 zero-pads shorter codes; the barcode endpoint only accepts GTIN-13.
func gtin13(barcode string) string {
	if len(barcode) >= 13 {
		return barcode
	}
	return strings.Repeat("0", 13-len(barcode)) + barcode
}
