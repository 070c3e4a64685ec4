// Package resolver turns a barcode into a trusted food record by walking a
// fixed, priority ordered chain of sources. The first record that clears the
// quality gate is cached and returned; everything else is logged and skipped.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sugarcypher/sweetguard/internal/cache"
	"github.com/sugarcypher/sweetguard/internal/logger"
	"github.com/sugarcypher/sweetguard/internal/models"
	"github.com/sugarcypher/sweetguard/internal/sources"
)

const (
	DefaultTTL              = 30 * 24 * time.Hour
	DefaultSourceTimeout    = 5 * time.Second
	DefaultQualityThreshold = 0.8
)

// Resolver is safe for concurrent use
type Resolver struct {
	sources []sources.Source
	store   cache.Cache

	now           func() time.Time
	ttl           time.Duration
	sourceTimeout time.Duration
	threshold     float64
	weights       map[string]float64
	singleFlight  bool

	group   singleflight.Group
	log     *logger.Logger
	metrics *Metrics
}

// Option configures a Resolver
type Option func(*Resolver)

// WithClock replaces time.Now for cache timestamps and expiry checks
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

func WithTTL(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.ttl = d
		}
	}
}

func WithSourceTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.sourceTimeout = d
		}
	}
}

func WithQualityThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 && t <= 1 {
			r.threshold = t
		}
	}
}

// WithSourceWeights overrides base weights per source name. Sources absent
// from overrides keep their default weight.
func WithSourceWeights(overrides map[string]float64) Option {
	return func(r *Resolver) {
		for name, w := range overrides {
			r.weights[name] = w
		}
	}
}

// WithSingleFlight toggles collapsing of concurrent lookups for one barcode
func WithSingleFlight(enabled bool) Option {
	return func(r *Resolver) { r.singleFlight = enabled }
}

func WithLogger(l *logger.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// New builds a Resolver that tries srcs in the given order
func New(srcs []sources.Source, store cache.Cache, opts ...Option) *Resolver {
	weights := make(map[string]float64, len(DefaultWeights))
	for name, w := range DefaultWeights {
		weights[name] = w
	}
	r := &Resolver{
		sources:       srcs,
		store:         store,
		now:           time.Now,
		ttl:           DefaultTTL,
		sourceTimeout: DefaultSourceTimeout,
		threshold:     DefaultQualityThreshold,
		weights:       weights,
		singleFlight:  true,
		log:           logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the first accepted record for barcode. On failure the
// returned Result carries the reason and err is a *ValidationError,
// ErrExhausted or the context error.
func (r *Resolver) Resolve(ctx context.Context, barcode string) (models.Result, error) {
	if err := ValidateBarcode(barcode); err != nil {
		r.metrics.resolution(outcomeInvalid)
		return models.Failure(err.Error()), err
	}

	start := time.Now()
	defer func() { r.metrics.observe(time.Since(start)) }()

	if !r.singleFlight {
		return r.resolve(ctx, barcode)
	}

	// The shared flight outlives any single caller; each caller still stops
	// waiting when its own context ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := r.group.DoChan(barcode, func() (any, error) {
		return r.resolve(flightCtx, barcode)
	})
	select {
	case <-ctx.Done():
		r.metrics.resolution(outcomeCanceled)
		return models.Failure(ctx.Err().Error()), ctx.Err()
	case res := <-ch:
		return res.Val.(models.Result), res.Err
	}
}

func (r *Resolver) resolve(ctx context.Context, barcode string) (models.Result, error) {
	log := r.log.With("barcode", barcode)

	if res, ok := r.cached(ctx, barcode, log); ok {
		r.metrics.resolution(outcomeCacheHit)
		return res, nil
	}

	for _, src := range r.sources {
		if err := ctx.Err(); err != nil {
			r.metrics.resolution(outcomeCanceled)
			return models.Failure(err.Error()), err
		}
		name := src.Name()

		rec, err := r.attempt(ctx, src, barcode)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				r.metrics.resolution(outcomeCanceled)
				return models.Failure(ctxErr.Error()), ctxErr
			}
			outcome := classify(err)
			r.metrics.attempt(name, outcome)
			switch outcome {
			case attemptNotFound, attemptMissingCredentials:
				log.Debug("source skipped", "source", name, "outcome", outcome, "error", err)
			default:
				log.Warn("source failed", "source", name, "outcome", outcome, "error", err)
			}
			continue
		}

		score := TrustScore(rec, name, r.weights)
		incomplete := IsIncomplete(rec)
		if score < r.threshold || incomplete {
			r.metrics.attempt(name, attemptRejected)
			log.Info("result below threshold",
				"source", name,
				"outcome", attemptRejected,
				"trust_score", score,
				"incomplete", incomplete,
			)
			continue
		}

		res := models.Result{
			Success:    true,
			Record:     rec,
			Source:     name,
			TrustScore: score,
			Incomplete: false,
		}
		entry := models.CacheEntry{Barcode: barcode, Result: res, CapturedAt: r.now()}
		if err := r.store.Set(context.WithoutCancel(ctx), entry); err != nil {
			log.Error("cache write failed", "source", name, "error", err)
		}
		r.metrics.attempt(name, attemptAccepted)
		r.metrics.resolution(outcomeAccepted)
		log.Info("resolved", "source", name, "outcome", attemptAccepted, "trust_score", score)
		return res, nil
	}

	r.metrics.resolution(outcomeExhausted)
	log.Warn("all sources exhausted", "sources", len(r.sources))
	return models.Failure(ErrExhausted.Error()), ErrExhausted
}

// cached returns a live cache entry. Expired entries are deleted here and
// backend errors degrade to a miss.
func (r *Resolver) cached(ctx context.Context, barcode string, log *logger.Logger) (models.Result, bool) {
	entry, ok, err := r.store.Get(ctx, barcode)
	if err != nil {
		r.metrics.cacheLookup("error")
		log.Warn("cache read failed", "error", err)
		return models.Result{}, false
	}
	if !ok {
		r.metrics.cacheLookup("miss")
		return models.Result{}, false
	}
	if age := entry.Age(r.now()); age >= r.ttl {
		r.metrics.cacheLookup("expired")
		log.Debug("cache entry expired", "age", age.String())
		if err := r.store.Delete(ctx, barcode); err != nil {
			log.Warn("cache delete failed", "error", err)
		}
		return models.Result{}, false
	}
	r.metrics.cacheLookup("hit")
	return entry.Result, true
}

type lookupResult struct {
	rec *models.FoodRecord
	err error
}

// attempt runs one source under its own timeout. A source that ignores its
// context is abandoned when the timeout fires.
func (r *Resolver) attempt(ctx context.Context, src sources.Source, barcode string) (*models.FoodRecord, error) {
	sctx, cancel := context.WithTimeout(ctx, r.sourceTimeout)
	defer cancel()

	done := make(chan lookupResult, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- lookupResult{err: fmt.Errorf("%w: %v", errSourcePanic, p)}
			}
		}()
		rec, err := src.Lookup(sctx, barcode)
		if err == nil && rec == nil {
			err = sources.ErrNotFound
		}
		done <- lookupResult{rec: rec, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", errSourceTimeout, r.sourceTimeout, res.err)
		}
		return res.rec, res.err
	case <-sctx.Done():
		if errors.Is(sctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", errSourceTimeout, r.sourceTimeout)
		}
		return nil, sctx.Err()
	}
}

func classify(err error) string {
	switch {
	case errors.Is(err, sources.ErrNotFound):
		return attemptNotFound
	case errors.Is(err, sources.ErrMissingCredentials):
		return attemptMissingCredentials
	case errors.Is(err, errSourceTimeout), errors.Is(err, context.DeadlineExceeded):
		return attemptTimeout
	default:
		return attemptError
	}
}

// ClearCache empties the cache unconditionally
func (r *Resolver) ClearCache(ctx context.Context) error {
	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	r.log.Info("cache cleared")
	return nil
}

// CacheStats reports the cached barcodes in ascending order
func (r *Resolver) CacheStats(ctx context.Context) (models.CacheStats, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	if keys == nil {
		keys = []string{}
	}
	return models.CacheStats{Size: len(keys), Keys: keys}, nil
}

// SourceInfo describes one link of the chain
type SourceInfo struct {
	sources.Info
	Position int     `json:"position"`
	Weight   float64 `json:"weight"`
}

// Sources lists the chain in the order it is tried
func (r *Resolver) Sources() []SourceInfo {
	out := make([]SourceInfo, 0, len(r.sources))
	for i, src := range r.sources {
		info, ok := sources.Catalog[src.Name()]
		if !ok {
			info = sources.Info{Name: src.Name()}
		}
		out = append(out, SourceInfo{
			Info:     info,
			Position: i + 1,
			Weight:   baseWeight(src.Name(), r.weights),
		})
	}
	return out
}
