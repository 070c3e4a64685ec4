package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sugarcypher/sweetguard/internal/cache"
	"github.com/sugarcypher/sweetguard/internal/config"
	"github.com/sugarcypher/sweetguard/internal/database"
	"github.com/sugarcypher/sweetguard/internal/logger"
	"github.com/sugarcypher/sweetguard/internal/ml"
	"github.com/sugarcypher/sweetguard/internal/resolver"
	"github.com/sugarcypher/sweetguard/internal/server"
	"github.com/sugarcypher/sweetguard/internal/sources"
)

func main() {
	configPath := flag.String("config", config.GetConfigPath(), "path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	l, err := logger.New(cfg.Log.Mode, cfg.Server.Debug)
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer l.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, l); err != nil {
		l.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, l *logger.Logger) error {
	// Scan history, and the cache when the sqlite backend is selected
	db, err := database.NewSQLiteDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	store, closeStore, err := openCache(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	chain := sources.DefaultChain(cfg.Sources, &http.Client{})
	res := resolver.New(chain, store,
		resolver.WithTTL(cfg.CacheTTL()),
		resolver.WithSourceTimeout(cfg.SourceTimeout()),
		resolver.WithQualityThreshold(cfg.Resolver.QualityThreshold),
		resolver.WithSourceWeights(cfg.Resolver.SourceWeights),
		resolver.WithSingleFlight(!cfg.Resolver.DisableSingleFlight),
		resolver.WithLogger(l),
		resolver.WithMetrics(resolver.NewMetrics(reg)),
	)
	for _, info := range res.Sources() {
		l.Info("source enabled", "position", info.Position, "name", info.Name, "weight", info.Weight)
	}

	model, err := ml.NewModel(cfg.ML)
	if err != nil {
		return fmt.Errorf("create ML model: %w", err)
	}
	if err := model.Load(ctx); err != nil {
		return fmt.Errorf("load ML model: %w", err)
	}
	defer model.Close()

	srv := server.New(res, db, model, l,
		server.WithRegistry(reg),
		server.WithShutdownTimeout(cfg.ShutdownTimeout()),
	)
	return srv.Start(ctx, cfg.Server.Port, cfg.Server.StaticDir)
}

// openCache builds the configured cache backend. The returned func releases
// any connection the backend owns.
func openCache(ctx context.Context, cfg *config.Config, db database.DB) (cache.Cache, func(), error) {
	noop := func() {}
	switch cfg.Cache.Backend {
	case "sqlite":
		return cache.NewSQLite(db), noop, nil
	case "redis":
		r := cfg.Cache.Redis
		rdb, err := cache.DialRedis(ctx, r.Addr, r.Password, r.DB)
		if err != nil {
			return nil, noop, fmt.Errorf("connect to redis: %w", err)
		}
		return cache.NewRedis(rdb, r.Prefix, cfg.CacheTTL()), func() { _ = rdb.Close() }, nil
	default:
		return cache.NewMemory(cfg.Cache.MaxEntries, cfg.CacheTTL()), noop, nil
	}
}
