package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sugarcypher/sweetguard/internal/cache"
	"github.com/sugarcypher/sweetguard/internal/logger"
	"github.com/sugarcypher/sweetguard/internal/sources"
)

func TestResolveLogsNoProviderCredentials(t *testing.T) {
	const secret = "SUPERSECRETKEY"

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	base := srv.URL
	srv.Close()

	core, logs := observer.New(zapcore.DebugLevel)
	log := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	req := sources.NewRequester(nil, "sweetguard-test", 0)
	chain := []sources.Source{
		sources.NewUSDA(base, secret, req),
		sources.NewEdamam(base, "app", secret, req),
		sources.NewBarcodeLookup(base, secret, req),
		sources.NewMock(),
	}
	r := New(chain, cache.NewMemory(10, 0), WithLogger(log))

	res, err := r.Resolve(context.Background(), "049000006346")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != sources.NameMock {
		t.Fatalf("Source: want=%q got=%q", sources.NameMock, res.Source)
	}

	failures := 0
	for _, entry := range logs.All() {
		if entry.Message == "source failed" {
			failures++
		}
		for key, v := range entry.ContextMap() {
			if strings.Contains(fmt.Sprint(v), secret) {
				t.Fatalf("log %q field %q leaks credential: %v", entry.Message, key, v)
			}
		}
	}
	if failures != 3 {
		t.Fatalf("source failed entries: want=3 got=%d", failures)
	}
}
