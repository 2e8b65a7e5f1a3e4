// internal/backfill/runner.go
package backfill

import (
	"context"
	"fmt"

	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/repositories"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/pkg/logger"
)

// Runner executes one model's historical backfill end to end: scrape, dedup
// against storage, persist, record price points, and settle the tracker row.
type Runner struct {
	scraper *HistoricalScraper
	tracker *Tracker
	store   repositories.HistoricalStore
	history repositories.PriceHistoryStore
	log     *logger.Logger
	months  int
}

func NewRunner(scraper *HistoricalScraper, tracker *Tracker, store repositories.HistoricalStore,
	history repositories.PriceHistoryStore, months int, log *logger.Logger) *Runner {
	return &Runner{
		scraper: scraper,
		tracker: tracker,
		store:   store,
		history: history,
		log:     log,
		months:  months,
	}
}

// BackfillModel scrapes and stores one model's sold history. The tracker
// moves to BACKFILLED only after a successful scrape AND store; a scrape
// failure or a wholesale store failure marks it FAILED instead, keeping the
// model eligible for retry next run.
func (r *Runner) BackfillModel(ctx context.Context, p parsers.Parser, key domain.ModelKey) (int, []string, error) {
	res, err := r.scraper.FetchHistoricalAuctions(ctx, p, key, r.months)
	if err != nil {
		r.markFailed(ctx, key, err)
		return 0, nil, err
	}

	stored, storeErrs, err := r.storeHistoricalAuctions(ctx, res.Auctions)
	errs := append(res.Errors, storeErrs...)
	if err != nil {
		r.markFailed(ctx, key, err)
		return stored, errs, err
	}

	if err := r.tracker.MarkBackfilled(ctx, key, stored); err != nil {
		return stored, errs, fmt.Errorf("mark %s backfilled: %w", key, err)
	}
	r.log.Info("backfilled %s: %d auctions stored", key, stored)
	return stored, errs, nil
}

func (r *Runner) markFailed(ctx context.Context, key domain.ModelKey, cause error) {
	if err := r.tracker.MarkFailed(ctx, key, cause); err != nil {
		r.log.Error("mark %s failed: %v", key, err)
	}
}

// storeHistoricalAuctions dedupes against rows already in storage, inserts
// the rest, and records one price point per stored auction. Individual row
// failures are collected; a failed dedup lookup or an insert pass that
// stored nothing at all is returned as an error so the caller does not
// settle the model on an unreachable store.
func (r *Runner) storeHistoricalAuctions(ctx context.Context, auctions []domain.HistoricalAuction) (int, []string, error) {
	if len(auctions) == 0 {
		return 0, nil, nil
	}

	ids := make([]string, 0, len(auctions))
	for _, a := range auctions {
		ids = append(ids, a.ExternalID)
	}
	existing, err := r.store.ExistingAuctionIDs(ctx, ids)
	if err != nil {
		return 0, nil, fmt.Errorf("lookup existing auctions: %w", err)
	}

	stored := 0
	insertFailures := 0
	var errs []string
	for _, a := range auctions {
		if existing[a.ExternalID] {
			continue
		}
		if _, err := r.store.InsertAuction(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("store %s: %v", a.ExternalID, err))
			insertFailures++
			continue
		}
		stored++
		if _, err := r.history.RecordPricePoint(ctx, a.ExternalID, a.SoldPrice, a.AuctionDate); err != nil {
			errs = append(errs, fmt.Sprintf("price point %s: %v", a.ExternalID, err))
		}
	}
	if insertFailures > 0 && stored == 0 {
		return 0, errs, fmt.Errorf("store auctions: all %d inserts failed", insertFailures)
	}
	return stored, errs, nil
}
