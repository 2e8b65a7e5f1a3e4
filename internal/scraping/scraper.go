// internal/scraping/scraper.go
package scraping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotlens/backend/internal/cache"
	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/fetch"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/pkg/logger"
)

// Options control one scrape of a platform's live listings.
type Options struct {
	// ScrapeDetails enables detail-page enrichment for up to MaxDetails
	// listings. The cap is a cost budget, not a correctness constraint.
	ScrapeDetails bool
	MaxDetails    int
	// ForceRefresh bypasses the result cache for both read and write.
	ForceRefresh bool
}

// Scraper fetches a platform's live-auction index and turns it into
// normalized listings, memoizing parsed pages in a TTL cache.
type Scraper struct {
	fetcher *fetch.Fetcher
	cache   *cache.Cache[[]domain.Listing]
	log     *logger.Logger
	now     func() time.Time
}

func NewScraper(fetcher *fetch.Fetcher, c *cache.Cache[[]domain.Listing], log *logger.Logger) *Scraper {
	return &Scraper{fetcher: fetcher, cache: c, log: log, now: time.Now}
}

// ScrapePlatform returns the platform's current listings plus per-item error
// summaries. A failed index fetch is fatal for the platform; individual card
// or detail failures are recorded and skipped.
func (s *Scraper) ScrapePlatform(ctx context.Context, p parsers.Parser, opts Options) ([]domain.Listing, []string, error) {
	indexURL := p.ListingsURL()

	if !opts.ForceRefresh {
		if cached, ok := s.cache.Get(indexURL); ok {
			s.log.Debug("cache hit for %s (%d listings)", indexURL, len(cached))
			return cached, nil, nil
		}
	}

	html, err := s.fetcher.Fetch(ctx, indexURL)
	if err != nil {
		return nil, nil, fmt.Errorf("scrape %s index: %w", p.Platform(), err)
	}

	listings, errs := s.parseIndex(p, html)
	s.log.Info("scraped %d listings from %s", len(listings), p.Platform())

	if opts.ScrapeDetails {
		var detailErrs []string
		listings, detailErrs = s.Enrich(ctx, p, listings, opts.MaxDetails)
		errs = append(errs, detailErrs...)
	}

	if !opts.ForceRefresh {
		s.cache.Put(indexURL, listings)
	}
	return listings, errs, nil
}

func (s *Scraper) parseIndex(p parsers.Parser, html string) ([]domain.Listing, []string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, []string{fmt.Sprintf("%s: parse index html: %v", p.Platform(), err)}
	}

	var listings []domain.Listing
	var errs []string
	now := s.now()

	doc.Find(p.CardSelector()).Each(func(i int, sel *goquery.Selection) {
		l := p.ParseCard(sel)
		if l == nil {
			// Cards without identity fields are dropped, never synthesized.
			s.log.Debug("%s: dropped card %d (missing title or link)", p.Platform(), i)
			return
		}
		l.ScrapedAt = now
		l.ResolveStatus(now)
		if err := l.Validate(); err != nil {
			errs = append(errs, err.Error())
			return
		}
		listings = append(listings, *l)
	})

	return listings, errs
}
