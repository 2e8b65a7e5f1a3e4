// cmd/scrape/main.go
//
// One-shot scrape of a single platform, JSON to stdout. Operator tool; does
// not touch any store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/lotlens/backend/internal/cache"
	"github.com/lotlens/backend/internal/config"
	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/fetch"
	"github.com/lotlens/backend/internal/scraping"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/pkg/logger"
)

func main() {
	platform := flag.String("platform", string(domain.PlatformBringATrailer),
		"platform to scrape: bring-a-trailer | cars-and-bids | collecting-cars")
	details := flag.Bool("details", false, "enrich listings from their detail pages")
	maxDetails := flag.Int("max-details", 5, "detail-page budget when -details is set")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load("configs")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	appLog := logger.New(cfg.App.Debug)

	p, err := parsers.ForPlatform(domain.Platform(*platform))
	if err != nil {
		log.Fatal(err)
	}

	fetcher := fetch.New(fetch.Config{
		UserAgent:     cfg.Scraping.UserAgent,
		Timeout:       cfg.Scraping.Timeout.Std(),
		MaxRetries:    cfg.Scraping.MaxRetries,
		RateLimitWait: cfg.Scraping.RateLimitWait.Std(),
	}, appLog)
	scraper := scraping.NewScraper(fetcher, cache.New[[]domain.Listing](cfg.Scraping.CacheTTL.Std()), appLog)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	listings, errs, err := scraper.ScrapePlatform(ctx, p, scraping.Options{
		ScrapeDetails: *details,
		MaxDetails:    *maxDetails,
		ForceRefresh:  true,
	})
	if err != nil {
		log.Fatalf("scrape %s: %v", p.Platform(), err)
	}
	for _, e := range errs {
		fmt.Fprintln(os.Stderr, "warning:", e)
	}

	out, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		log.Fatalf("marshal listings: %v", err)
	}
	fmt.Println(string(out))
	appLog.Info("scraped %d listings from %s (%d warnings)", len(listings), p.Platform(), len(errs))
}
