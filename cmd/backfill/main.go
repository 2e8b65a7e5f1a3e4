// cmd/backfill/main.go
//
// One-shot historical backfill for a single make/model, writing to the
// primary store and settling the tracker row.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/lotlens/backend/internal/backfill"
	"github.com/lotlens/backend/internal/config"
	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/fetch"
	"github.com/lotlens/backend/internal/repositories"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/pkg/logger"
)

func main() {
	makeName := flag.String("make", "", "vehicle make (required)")
	model := flag.String("model", "", "vehicle model (required)")
	months := flag.Int("months", 0, "history window; 0 uses the configured default")
	platform := flag.String("platform", string(domain.PlatformBringATrailer), "platform to search")
	flag.Parse()

	if *makeName == "" || *model == "" {
		flag.Usage()
		os.Exit(2)
	}

	_ = godotenv.Load()

	cfg, err := config.Load("configs")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if *months <= 0 {
		*months = cfg.Backfill.Months
	}
	appLog := logger.New(cfg.App.Debug)

	p, err := parsers.ForPlatform(domain.Platform(*platform))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	store, err := repositories.ConnectPostgres(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer store.Close()

	fetcher := fetch.New(fetch.Config{
		UserAgent:     cfg.Scraping.UserAgent,
		Timeout:       cfg.Backfill.Timeout.Std(),
		MaxRetries:    cfg.Scraping.MaxRetries,
		RateLimitWait: cfg.Scraping.RateLimitWait.Std(),
	}, appLog)

	tracker := backfill.NewTracker(store, appLog)
	scraper := backfill.NewHistoricalScraper(fetcher, cfg.Backfill.MaxPages, cfg.Backfill.PageDelay.Std(), appLog)
	runner := backfill.NewRunner(scraper, tracker, store, store, *months, appLog)

	key := domain.NormalizedKey(*makeName, *model)
	stored, errs, err := runner.BackfillModel(ctx, p, key)
	if err != nil {
		log.Fatalf("backfill %s: %v", key, err)
	}
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, "warning:", e)
	}
	fmt.Printf("backfilled %s: %d auctions stored over %d months (%d warnings)\n",
		key, stored, *months, len(errs))
}
