// cmd/api/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/lotlens/backend/internal/api/handlers"
	"github.com/lotlens/backend/internal/backfill"
	"github.com/lotlens/backend/internal/cache"
	"github.com/lotlens/backend/internal/config"
	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/fetch"
	"github.com/lotlens/backend/internal/repositories"
	"github.com/lotlens/backend/internal/scraping"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/internal/services"
	"github.com/lotlens/backend/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("configs")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	appLog := logger.New(cfg.App.Debug)

	store, err := repositories.ConnectPostgres(context.Background(), cfg.Database.URL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer store.Close()

	liveFetcher := fetch.New(fetch.Config{
		UserAgent:     cfg.Scraping.UserAgent,
		Timeout:       cfg.Scraping.Timeout.Std(),
		MaxRetries:    cfg.Scraping.MaxRetries,
		RateLimitWait: cfg.Scraping.RateLimitWait.Std(),
	}, appLog)
	// Historical result pages are heavier than live indexes.
	histFetcher := fetch.New(fetch.Config{
		UserAgent:     cfg.Scraping.UserAgent,
		Timeout:       cfg.Backfill.Timeout.Std(),
		MaxRetries:    cfg.Scraping.MaxRetries,
		RateLimitWait: cfg.Scraping.RateLimitWait.Std(),
	}, appLog)

	scraper := scraping.NewScraper(liveFetcher, cache.New[[]domain.Listing](cfg.Scraping.CacheTTL.Std()), appLog)
	tracker := backfill.NewTracker(store, appLog)
	histScraper := backfill.NewHistoricalScraper(histFetcher, cfg.Backfill.MaxPages, cfg.Backfill.PageDelay.Std(), appLog)
	runner := backfill.NewRunner(histScraper, tracker, store, store, cfg.Backfill.Months, appLog)

	historyParser, err := parsers.ForPlatform(domain.PlatformBringATrailer)
	if err != nil {
		log.Fatal(err)
	}

	deps := services.PipelineDeps{
		Scraper:       scraper,
		Runner:        runner,
		Tracker:       tracker,
		Listings:      store,
		History:       store,
		Stats:         store,
		Parsers:       parsers.All(),
		HistoryParser: historyParser,
		Log:           appLog,
	}
	if secondary := repositories.NewSecondaryClient(cfg.Secondary.BaseURL, cfg.Secondary.APIKey, cfg.Secondary.Table); secondary.Enabled() {
		deps.Secondary = secondary
	} else {
		appLog.Warn("secondary store not configured; mirroring disabled")
	}

	pipeline := services.NewPipeline(deps, scraping.Options{
		ScrapeDetails: cfg.Scraping.ScrapeDetails,
		MaxDetails:    cfg.Scraping.MaxDetailPages,
	}, cfg.Backfill.ModelsPerRun, cfg.Backfill.MinBudget.Std())

	cronHandler := handlers.NewCronHandler(pipeline, cfg.Cron.Secret, cfg.Cron.Budget.Std(), appLog)
	listingsHandler := handlers.NewListingsHandler(store, appLog)

	r := mux.NewRouter()
	r.HandleFunc("/health", handlers.HandleHealth).Methods("GET")
	r.HandleFunc("/api/cron/run", cronHandler.HandleRun).Methods("POST")
	r.HandleFunc("/api/listings", listingsHandler.HandleList).Methods("GET")

	addr := fmt.Sprintf(":%d", cfg.App.Port)
	appLog.Info("%s listening on %s (%s)", cfg.App.Name, addr, cfg.App.Env)
	log.Fatal(http.ListenAndServe(addr, r))
}
