package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/maltedev/store-price-compare/internal/app"
	"github.com/maltedev/store-price-compare/internal/config"
	"github.com/maltedev/store-price-compare/internal/logger"
)

func main() {
	var (
		product = flag.String("product", "", "Product to search for")
		stores  = flag.String("stores", "", "Comma separated store ids (default: all known stores)")
		engine  = flag.String("engine", "", "Page engine: playwright, rod or http (overrides BROWSER_ENGINE)")
		persist = flag.Bool("persist", false, "Store the result in the configured history")
		list    = flag.Bool("list", false, "List known stores and exit")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *engine != "" {
		cfg.Browser.Engine = strings.ToLower(*engine)
	}
	cfg.Engine.PersistOnCompare = *persist

	log := logger.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	if *list {
		registry, err := app.BuildRegistry(cfg.Scraper.StoresFile)
		if err != nil {
			log.Error("failed to load stores", "error", err)
			os.Exit(1)
		}
		for _, id := range registry.IDs() {
			fmt.Println(id)
		}
		return
	}

	if *product == "" {
		fmt.Fprintln(os.Stderr, "Please provide a product with -product")
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(cfg, log, *product, *stores))
}

// run returns the process exit code: 0 with offers, 2 without, 1 on error.
func run(cfg *config.Config, log *slog.Logger, product, stores string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		return 1
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("failed to release resources", "error", err)
		}
	}()

	storeIDs := application.Registry.IDs()
	if stores != "" {
		storeIDs = nil
		for _, s := range strings.Split(stores, ",") {
			if s = strings.TrimSpace(s); s != "" {
				storeIDs = append(storeIDs, s)
			}
		}
	}

	result, err := application.Engine.Compare(ctx, product, storeIDs)
	if err != nil {
		log.Error("comparison failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		log.Error("failed to write result", "error", err)
		return 1
	}

	if result.ValidOfferCount == 0 {
		return 2
	}
	return 0
}
