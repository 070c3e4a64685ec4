package sources

import (
	"net/http"

	"github.com/sugarcypher/sweetguard/internal/config"
)

// DefaultChain builds the providers in their fixed priority order:
// Open Food Facts, USDA, Edamam, FatSecret, Go-UPC, Barcode Lookup, Mock.
func DefaultChain(cfg config.SourcesConfig, client *http.Client) []Source {
	r := NewRequester(client, cfg.UserAgent, cfg.MaxRetries)

	chain := []Source{
		NewOpenFoodFacts(cfg.OpenFoodFacts.BaseURL, r),
		NewUSDA(cfg.USDA.BaseURL, cfg.USDA.APIKey, r),
		NewEdamam(cfg.Edamam.BaseURL, cfg.Edamam.AppID, cfg.Edamam.AppKey, r),
		NewFatSecret(cfg.FatSecret.BaseURL, cfg.FatSecret.TokenURL, cfg.FatSecret.ClientID, cfg.FatSecret.ClientSecret, r),
		NewGoUPC(cfg.GoUPC.BaseURL, cfg.GoUPC.APIKey, r),
		NewBarcodeLookup(cfg.BarcodeLookup.BaseURL, cfg.BarcodeLookup.APIKey, r),
	}
	if !cfg.Mock.Disabled {
		chain = append(chain, NewMock())
	}
	return chain
}
