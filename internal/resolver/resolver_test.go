package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sugarcypher/sweetguard/internal/cache"
	"github.com/sugarcypher/sweetguard/internal/models"
	"github.com/sugarcypher/sweetguard/internal/sources"
)

type fakeSource struct {
	name     string
	lookupFn func(ctx context.Context, barcode string) (*models.FoodRecord, error)
	calls    atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Lookup(ctx context.Context, barcode string) (*models.FoodRecord, error) {
	f.calls.Add(1)
	return f.lookupFn(ctx, barcode)
}

func returning(name string, rec *models.FoodRecord) *fakeSource {
	return &fakeSource{name: name, lookupFn: func(context.Context, string) (*models.FoodRecord, error) {
		return rec, nil
	}}
}

func failing(name string, err error) *fakeSource {
	return &fakeSource{name: name, lookupFn: func(context.Context, string) (*models.FoodRecord, error) {
		return nil, err
	}}
}

// countingCache wraps a real cache and counts calls into it
type countingCache struct {
	cache.Cache
	gets, sets atomic.Int32
	getErr     error
}

func (c *countingCache) Get(ctx context.Context, barcode string) (models.CacheEntry, bool, error) {
	c.gets.Add(1)
	if c.getErr != nil {
		return models.CacheEntry{}, false, c.getErr
	}
	return c.Cache.Get(ctx, barcode)
}

func (c *countingCache) Set(ctx context.Context, entry models.CacheEntry) error {
	c.sets.Add(1)
	return c.Cache.Set(ctx, entry)
}

func newCountingCache() *countingCache {
	return &countingCache{Cache: cache.NewMemory(100, 0)}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestResolveRejectsInvalidBarcodes(t *testing.T) {
	src := returning(sources.NameUSDA, completeRecord())
	store := newCountingCache()
	r := New([]sources.Source{src}, store)

	for _, barcode := range []string{"", "1234567", "123456789012345", strings.Repeat("9", 40)} {
		res, err := r.Resolve(context.Background(), barcode)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("Resolve(%q): want ErrValidation, got=%v", barcode, err)
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Barcode != barcode {
			t.Fatalf("Resolve(%q): want *ValidationError, got=%#v", barcode, err)
		}
		if res.Success || res.Error == "" {
			t.Fatalf("Resolve(%q): want failure result, got=%+v", barcode, res)
		}
	}
	if n := src.calls.Load(); n != 0 {
		t.Fatalf("source calls: want=0 got=%d", n)
	}
	if n := store.gets.Load(); n != 0 {
		t.Fatalf("cache reads: want=0 got=%d", n)
	}
}

func TestResolveAcceptsBoundaryLengths(t *testing.T) {
	r := New([]sources.Source{returning(sources.NameUSDA, completeRecord())}, cache.NewMemory(10, 0))
	for _, barcode := range []string{"12345678", "12345678901234"} {
		if _, err := r.Resolve(context.Background(), barcode); err != nil {
			t.Fatalf("Resolve(%q): %v", barcode, err)
		}
	}
}

func TestResolveCacheHitSkipsSources(t *testing.T) {
	src := returning(sources.NameUSDA, completeRecord())
	r := New([]sources.Source{src}, cache.NewMemory(10, 0), WithClock(newClock().Now))

	first, err := r.Resolve(context.Background(), "021130126026")
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), "021130126026")
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls: want=1 got=%d", n)
	}

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Fatalf("cached result differs:\nfirst=%s\nsecond=%s", a, b)
	}
}

func TestResolveCacheExpiry(t *testing.T) {
	clock := newClock()
	src := returning(sources.NameUSDA, completeRecord())
	store := cache.NewMemory(10, 0)
	r := New([]sources.Source{src}, store, WithClock(clock.Now))
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "021130126026"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	clock.Advance(DefaultTTL - time.Second)
	if _, err := r.Resolve(ctx, "021130126026"); err != nil {
		t.Fatalf("Resolve before expiry: %v", err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls before expiry: want=1 got=%d", n)
	}

	clock.Advance(time.Second)
	if _, err := r.Resolve(ctx, "021130126026"); err != nil {
		t.Fatalf("Resolve after expiry: %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("source calls after expiry: want=2 got=%d", n)
	}

	entry, ok, _ := store.Get(ctx, "021130126026")
	if !ok || !entry.CapturedAt.Equal(clock.Now()) {
		t.Fatalf("cache entry should be refreshed at %v, got=%v ok=%v", clock.Now(), entry.CapturedAt, ok)
	}
}

func TestResolveFallbackOrder(t *testing.T) {
	first := failing(sources.NameOpenFoodFacts, sources.ErrNotFound)
	second := failing(sources.NameUSDA, errors.New("connection reset"))
	third := failing(sources.NameEdamam, sources.ErrMissingCredentials)
	winner := returning(sources.NameFatSecret, completeRecord())
	after := returning(sources.NameMock, completeRecord())

	r := New([]sources.Source{first, second, third, winner, after}, cache.NewMemory(10, 0))
	res, err := r.Resolve(context.Background(), "049000006346")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != sources.NameFatSecret {
		t.Fatalf("Source: want=%q got=%q", sources.NameFatSecret, res.Source)
	}
	if !res.Success || res.Incomplete || res.TrustScore < DefaultQualityThreshold {
		t.Fatalf("result: got=%+v", res)
	}
	for _, s := range []*fakeSource{first, second, third, winner} {
		if n := s.calls.Load(); n != 1 {
			t.Fatalf("%s calls: want=1 got=%d", s.name, n)
		}
	}
	if n := after.calls.Load(); n != 0 {
		t.Fatalf("source after the winner was called %d times", n)
	}
}

func TestResolveQualityGateRejection(t *testing.T) {
	incomplete := completeRecord()
	incomplete.Brand = ""
	lowTrust := completeRecord()
	lowTrust.ProductName = "Low Trust Cheerios"

	rejectedIncomplete := returning(sources.NameUSDA, incomplete)
	rejectedLowTrust := returning("Unvetted Scraper", lowTrust)
	accepted := returning(sources.NameMock, completeRecord())

	store := cache.NewMemory(10, 0)
	r := New(
		[]sources.Source{rejectedIncomplete, rejectedLowTrust, accepted},
		store,
		WithSourceWeights(map[string]float64{"Unvetted Scraper": 0.2}),
	)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "021130126026")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != sources.NameMock {
		t.Fatalf("Source: want=%q got=%q", sources.NameMock, res.Source)
	}
	if rejectedIncomplete.calls.Load() != 1 || rejectedLowTrust.calls.Load() != 1 {
		t.Fatalf("rejected sources should each be tried once")
	}

	entry, ok, _ := store.Get(ctx, "021130126026")
	if !ok {
		t.Fatalf("accepted result was not cached")
	}
	if entry.Result.Source != sources.NameMock || entry.Result.Record.ProductName != "Honey Nut Cheerios" {
		t.Fatalf("cache holds a rejected record: %+v", entry.Result)
	}
}

func TestResolveExhaustion(t *testing.T) {
	incomplete := completeRecord()
	incomplete.Ingredients = nil

	store := newCountingCache()
	r := New([]sources.Source{
		failing(sources.NameOpenFoodFacts, sources.ErrNotFound),
		returning(sources.NameUSDA, incomplete),
		failing(sources.NameMock, errors.New("boom")),
	}, store)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "00000000")
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("Resolve: want ErrExhausted, got=%v", err)
	}
	if res.Success || res.Error != "all sources exhausted" {
		t.Fatalf("result: got=%+v", res)
	}
	if n := store.sets.Load(); n != 0 {
		t.Fatalf("cache writes: want=0 got=%d", n)
	}
	stats, err := r.CacheStats(ctx)
	if err != nil {
		t.Fatalf("CacheStats: %v", err)
	}
	if stats.Size != 0 {
		t.Fatalf("CacheStats: want empty, got=%+v", stats)
	}
}

func TestResolveSourceTimeoutIsHardFailure(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	// Ignores its context entirely
	hung := &fakeSource{name: sources.NameOpenFoodFacts, lookupFn: func(context.Context, string) (*models.FoodRecord, error) {
		<-release
		return nil, errors.New("too late")
	}}
	slow := &fakeSource{name: sources.NameUSDA, lookupFn: func(ctx context.Context, _ string) (*models.FoodRecord, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	next := returning(sources.NameMock, completeRecord())

	r := New([]sources.Source{hung, slow, next}, cache.NewMemory(10, 0), WithSourceTimeout(20*time.Millisecond))
	res, err := r.Resolve(context.Background(), "049000006346")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != sources.NameMock {
		t.Fatalf("Source: want=%q got=%q", sources.NameMock, res.Source)
	}
}

func TestResolveRecoversSourcePanic(t *testing.T) {
	bad := &fakeSource{name: sources.NameOpenFoodFacts, lookupFn: func(context.Context, string) (*models.FoodRecord, error) {
		panic("nil map write")
	}}
	r := New([]sources.Source{bad, returning(sources.NameMock, completeRecord())}, cache.NewMemory(10, 0))

	res, err := r.Resolve(context.Background(), "049000006346")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Source != sources.NameMock {
		t.Fatalf("Source: want=%q got=%q", sources.NameMock, res.Source)
	}
}

func TestResolveNilRecordIsNotFound(t *testing.T) {
	r := New([]sources.Source{
		returning(sources.NameOpenFoodFacts, nil),
		returning(sources.NameMock, completeRecord()),
	}, cache.NewMemory(10, 0))
	res, err := r.Resolve(context.Background(), "049000006346")
	if err != nil || res.Source != sources.NameMock {
		t.Fatalf("Resolve: res=%+v err=%v", res, err)
	}
}

func TestResolveHonoursCancellationBetweenSources(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &fakeSource{name: sources.NameOpenFoodFacts, lookupFn: func(context.Context, string) (*models.FoodRecord, error) {
		cancel()
		return nil, sources.ErrNotFound
	}}
	second := returning(sources.NameMock, completeRecord())

	r := New([]sources.Source{first, second}, cache.NewMemory(10, 0), WithSingleFlight(false))
	_, err := r.Resolve(ctx, "049000006346")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Resolve: want context.Canceled, got=%v", err)
	}
	if n := second.calls.Load(); n != 0 {
		t.Fatalf("source after cancellation was called %d times", n)
	}
}

func TestResolveCallerCancellationWithSingleFlight(t *testing.T) {
	release := make(chan struct{})
	blocked := &fakeSource{name: sources.NameMock, lookupFn: func(context.Context, string) (*models.FoodRecord, error) {
		<-release
		return completeRecord(), nil
	}}
	r := New([]sources.Source{blocked}, cache.NewMemory(10, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := r.Resolve(ctx, "049000006346")
	close(release)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Resolve: want context.DeadlineExceeded, got=%v", err)
	}
}

func TestResolveSingleFlightCollapsesConcurrentLookups(t *testing.T) {
	release := make(chan struct{})
	src := &fakeSource{name: sources.NameUSDA, lookupFn: func(context.Context, string) (*models.FoodRecord, error) {
		<-release
		return completeRecord(), nil
	}}
	r := New([]sources.Source{src}, cache.NewMemory(10, 0))

	const callers = 8
	var wg sync.WaitGroup
	results := make([]models.Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), "021130126026")
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].Source != sources.NameUSDA {
			t.Fatalf("caller %d: Source=%q", i, results[i].Source)
		}
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls: want=1 got=%d", n)
	}
}

func TestResolveCacheReadErrorIsMiss(t *testing.T) {
	store := newCountingCache()
	store.getErr = errors.New("redis: connection refused")
	src := returning(sources.NameUSDA, completeRecord())
	r := New([]sources.Source{src}, store)

	if _, err := r.Resolve(context.Background(), "021130126026"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("source calls: want=1 got=%d", n)
	}
}

func TestClearCacheAndStats(t *testing.T) {
	r := New([]sources.Source{returning(sources.NameMock, completeRecord())}, cache.NewMemory(10, 0))
	ctx := context.Background()
	for _, b := range []string{"33333333", "11111111", "22222222"} {
		if _, err := r.Resolve(ctx, b); err != nil {
			t.Fatalf("Resolve(%s): %v", b, err)
		}
	}

	stats, err := r.CacheStats(ctx)
	if err != nil {
		t.Fatalf("CacheStats: %v", err)
	}
	if stats.Size != 3 || strings.Join(stats.Keys, ",") != "11111111,22222222,33333333" {
		t.Fatalf("CacheStats: got=%+v", stats)
	}

	if err := r.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	stats, _ = r.CacheStats(ctx)
	if stats.Size != 0 || len(stats.Keys) != 0 {
		t.Fatalf("CacheStats after clear: got=%+v", stats)
	}
}

func TestSourcesListsChainWithWeights(t *testing.T) {
	r := New(
		[]sources.Source{returning(sources.NameOpenFoodFacts, nil), returning("Custom", nil)},
		cache.NewMemory(10, 0),
		WithSourceWeights(map[string]float64{sources.NameOpenFoodFacts: 0.9}),
	)
	infos := r.Sources()
	if len(infos) != 2 {
		t.Fatalf("Sources: want=2 got=%d", len(infos))
	}
	if infos[0].Name != sources.NameOpenFoodFacts || infos[0].Weight != 0.9 || infos[0].Position != 1 {
		t.Fatalf("Sources[0]: got=%+v", infos[0])
	}
	if infos[0].Access == "" {
		t.Fatalf("Sources[0]: catalog metadata missing")
	}
	if infos[1].Name != "Custom" || infos[1].Weight != DefaultWeight {
		t.Fatalf("Sources[1]: got=%+v", infos[1])
	}
}

func TestMetricsRecordOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New([]sources.Source{
		failing(sources.NameOpenFoodFacts, sources.ErrNotFound),
		returning(sources.NameMock, completeRecord()),
	}, cache.NewMemory(10, 0), WithMetrics(NewMetrics(reg)))
	ctx := context.Background()

	_, _ = r.Resolve(ctx, "short")
	_, _ = r.Resolve(ctx, "049000006346")
	_, _ = r.Resolve(ctx, "049000006346")

	checks := []struct {
		metric string
		labels map[string]string
		want   float64
	}{
		{"sweetguard_resolutions_total", map[string]string{"outcome": "invalid"}, 1},
		{"sweetguard_resolutions_total", map[string]string{"outcome": "accepted"}, 1},
		{"sweetguard_resolutions_total", map[string]string{"outcome": "cache_hit"}, 1},
		{"sweetguard_source_attempts_total", map[string]string{"source": sources.NameOpenFoodFacts, "outcome": "not_found"}, 1},
		{"sweetguard_source_attempts_total", map[string]string{"source": sources.NameMock, "outcome": "accepted"}, 1},
		{"sweetguard_cache_lookups_total", map[string]string{"result": "miss"}, 1},
		{"sweetguard_cache_lookups_total", map[string]string{"result": "hit"}, 1},
	}
	for _, c := range checks {
		if got := counterValue(t, reg, c.metric, c.labels); got != c.want {
			t.Fatalf("%s%v: want=%v got=%v", c.metric, c.labels, c.want, got)
		}
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
