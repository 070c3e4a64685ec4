package sources

import (
	"testing"

	"github.com/sugarcypher/sweetguard/internal/config"
)

func TestDefaultChainOrder(t *testing.T) {
	var cfg config.SourcesConfig
	want := []string{
		NameOpenFoodFacts,
		NameUSDA,
		NameEdamam,
		NameFatSecret,
		NameGoUPC,
		NameBarcodeLookup,
		NameMock,
	}
	chain := DefaultChain(cfg, nil)
	if len(chain) != len(want) {
		t.Fatalf("chain length: want=%d got=%d", len(want), len(chain))
	}
	for i, s := range chain {
		if s.Name() != want[i] {
			t.Fatalf("chain[%d]: want=%q got=%q", i, want[i], s.Name())
		}
		if _, ok := Catalog[s.Name()]; !ok {
			t.Fatalf("Catalog is missing %q", s.Name())
		}
	}
}

func TestDefaultChainWithoutMock(t *testing.T) {
	var cfg config.SourcesConfig
	cfg.Mock.Disabled = true
	chain := DefaultChain(cfg, nil)
	if got := chain[len(chain)-1].Name(); got != NameBarcodeLookup {
		t.Fatalf("last source: want=%q got=%q", NameBarcodeLookup, got)
	}
}
