// internal/backfill/historical.go
package backfill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/fetch"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/pkg/logger"
)

// HistoricalScraper walks a platform's sold-results pages for one model,
// bounded by a page budget and a time-window cutoff.
type HistoricalScraper struct {
	fetcher   *fetch.Fetcher
	log       *logger.Logger
	maxPages  int
	pageDelay time.Duration
	now       func() time.Time
	sleep     func(context.Context, time.Duration) error
}

// Result is everything one historical scrape gathered. Errors holds
// per-page and per-listing problems that did not abort the scrape.
type Result struct {
	Auctions   []domain.HistoricalAuction
	Errors     []string
	TotalFound int
}

func NewHistoricalScraper(fetcher *fetch.Fetcher, maxPages int, pageDelay time.Duration, log *logger.Logger) *HistoricalScraper {
	return &HistoricalScraper{
		fetcher:   fetcher,
		log:       log,
		maxPages:  maxPages,
		pageDelay: pageDelay,
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

// FetchHistoricalAuctions scrapes up to months of sold results for a model.
// Pages are walked strictly in order: the date-cutoff early exit relies on
// results getting monotonically older. A first-page failure aborts the whole
// model; later failures return what was gathered.
func (h *HistoricalScraper) FetchHistoricalAuctions(ctx context.Context, p parsers.Parser, key domain.ModelKey, months int) (*Result, error) {
	cutoff := h.now().AddDate(0, -months, 0)
	query := strings.TrimSpace(key.Make + " " + key.Model)
	res := &Result{}
	byID := map[string]int{}

	for page := 1; page <= h.maxPages; page++ {
		if page > 1 {
			if err := h.sleep(ctx, h.pageDelay); err != nil {
				return res, err
			}
		}

		pageURL := p.ResultsURL(query, page)
		html, err := h.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if page == 1 {
				// No partial progress is possible without the first page.
				return nil, fmt.Errorf("historical %s %s page 1: %w", p.Platform(), key, err)
			}
			res.Errors = append(res.Errors, fmt.Sprintf("page %d: %v", page, err))
			return res, nil
		}

		auctions, pageErrs := h.parseResultsPage(p, html)
		res.Errors = append(res.Errors, pageErrs...)
		if len(auctions) == 0 {
			break
		}
		res.TotalFound += len(auctions)

		reachedCutoff := false
		for _, a := range auctions {
			if a.AuctionDate.Before(cutoff) {
				reachedCutoff = true
				continue
			}
			// Duplicate ids across pages keep the larger price observation.
			if idx, ok := byID[a.ExternalID]; ok {
				if a.SoldPrice > res.Auctions[idx].SoldPrice {
					res.Auctions[idx] = a
				}
				continue
			}
			byID[a.ExternalID] = len(res.Auctions)
			res.Auctions = append(res.Auctions, a)
		}
		if reachedCutoff {
			break
		}
	}

	h.log.Info("historical %s %s: %d auctions within window (%d found, %d errors)",
		p.Platform(), key, len(res.Auctions), res.TotalFound, len(res.Errors))
	return res, nil
}

// parseResultsPage parses each sold card independently; one bad listing is
// recorded and skipped rather than aborting the page.
func (h *HistoricalScraper) parseResultsPage(p parsers.Parser, html string) ([]domain.HistoricalAuction, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []string{fmt.Sprintf("parse results html: %v", err)}
	}

	var auctions []domain.HistoricalAuction
	var errs []string
	now := h.now()

	doc.Find(p.CardSelector()).Each(func(i int, sel *goquery.Selection) {
		l := p.ParseCard(sel)
		if l == nil {
			return
		}
		l.ScrapedAt = now
		a := domain.HistoricalFromListing(l)
		if a == nil {
			errs = append(errs, fmt.Sprintf("result card %s: missing sale price or date", l.ExternalID))
			return
		}
		auctions = append(auctions, *a)
	})

	return auctions, errs
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
