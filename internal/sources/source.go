// Package sources holds one adapter per external nutrition-data provider.
// Every adapter maps its provider's response onto models.FoodRecord and all
// provider failure modes onto the errors declared here.
package sources

import (
	"context"
	"errors"

	"github.com/sugarcypher/sweetguard/internal/models"
)

// Source names double as keys into the trust weight table
const (
	NameOpenFoodFacts = "Open Food Facts API"
	NameUSDA          = "USDA FoodData Central"
	NameEdamam        = "Edamam Food Database"
	NameFatSecret     = "FatSecret Platform"
	NameGoUPC         = "Go-UPC API"
	NameBarcodeLookup = "Barcode Lookup API"
	NameMock          = "Mock Database"
)

var (
	// ErrNotFound means the provider answered but does not know the product
	ErrNotFound = errors.New("product not found")
	// ErrMissingCredentials means the provider needs credentials that are not configured
	ErrMissingCredentials = errors.New("missing credentials")
)

// Source resolves a barcode against one provider
type Source interface {
	Name() string
	Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error)
}

// Info describes a provider for diagnostics
type Info struct {
	Name   string `json:"name"`
	Access string `json:"access"`
	URL    string `json:"url"`
	Doc    string `json:"doc"`
	Notes  string `json:"notes"`
}

// Catalog describes every known provider, keyed by source name
var Catalog = map[string]Info{
	NameOpenFoodFacts: {
		Name:   NameOpenFoodFacts,
		Access: "free",
		URL:    "https://world.openfoodfacts.org/api/v0/product/{barcode}.json",
		Doc:    "https://openfoodfacts.github.io/openfoodfacts-server/api/",
		Notes:  "Community-powered database.",
	},
	NameUSDA: {
		Name:   NameUSDA,
		Access: "free (with API key)",
		URL:    "https://api.nal.usda.gov/fdc/v1/foods/search",
		Doc:    "https://fdc.nal.usda.gov/api-guide",
		Notes:  "Government-grade data. Keyword search, matched on gtinUpc.",
	},
	NameEdamam: {
		Name:   NameEdamam,
		Access: "freemium",
		URL:    "https://api.edamam.com/api/food-database/v2/parser",
		Doc:    "https://developer.edamam.com/food-database-api-docs",
		Notes:  "Highly curated. Requires app_id and app_key.",
	},
	NameFatSecret: {
		Name:   NameFatSecret,
		Access: "freemium",
		URL:    "https://platform.fatsecret.com/rest/server.api",
		Doc:    "https://platform.fatsecret.com/",
		Notes:  "Broad database. Requires OAuth2 client credentials.",
	},
	NameGoUPC: {
		Name:   NameGoUPC,
		Access: "free trial (1000 requests)",
		URL:    "https://go-upc.com/api/v1/code/{barcode}",
		Doc:    "https://go-upc.com/docs",
		Notes:  "Retail-centric. Requires API key.",
	},
	NameBarcodeLookup: {
		Name:   NameBarcodeLookup,
		Access: "trial/commercial",
		URL:    "https://api.barcodelookup.com/v3/products",
		Doc:    "https://www.barcodelookup.com/api",
		Notes:  "Includes product photos and pricing. Requires API key.",
	},
	NameMock: {
		Name:   NameMock,
		Access: "free",
		URL:    "local",
		Doc:    "internal",
		Notes:  "Demo fallback, always answers.",
	},
}
