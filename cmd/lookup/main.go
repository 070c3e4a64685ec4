// Command lookup resolves one barcode through the source chain and prints the
// result as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	"github.com/sugarcypher/sweetguard/internal/cache"
	"github.com/sugarcypher/sweetguard/internal/config"
	"github.com/sugarcypher/sweetguard/internal/logger"
	"github.com/sugarcypher/sweetguard/internal/models"
	"github.com/sugarcypher/sweetguard/internal/resolver"
	"github.com/sugarcypher/sweetguard/internal/sources"
	"github.com/sugarcypher/sweetguard/internal/sugar"
)

type output struct {
	Barcode string `json:"barcode"`
	models.Result
	Sugar *sugar.Assessment `json:"sugar,omitempty"`
}

func main() {
	configPath := flag.String("config", "", "optional configuration file; defaults and environment credentials are used otherwise")
	noMock := flag.Bool("no-mock", false, "exclude the mock database from the chain")
	verbose := flag.Bool("v", false, "log every source attempt to stderr")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <barcode>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, *configPath, flag.Arg(0), *noMock, *verbose))
}

func run(ctx context.Context, configPath, barcode string, noMock, verbose bool) int {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		cfg = loaded
	}
	if noMock {
		cfg.Sources.Mock.Disabled = true
	}

	log := logger.Nop()
	if verbose {
		l, err := logger.New("dev", true)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer l.Sync()
		log = l
	}

	res := resolver.New(
		sources.DefaultChain(cfg.Sources, &http.Client{}),
		cache.NewMemory(1, cfg.CacheTTL()),
		resolver.WithSourceTimeout(cfg.SourceTimeout()),
		resolver.WithQualityThreshold(cfg.Resolver.QualityThreshold),
		resolver.WithSourceWeights(cfg.Resolver.SourceWeights),
		resolver.WithLogger(log),
	)

	result, err := res.Resolve(ctx, barcode)
	if err != nil {
		result = models.Failure(err.Error())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(output{Barcode: barcode, Result: result, Sugar: sugar.ForRecord(result.Record)}); encErr != nil {
		fmt.Fprintln(os.Stderr, encErr)
		return 1
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, resolver.ErrValidation):
		return 2
	default:
		return 1
	}
}
