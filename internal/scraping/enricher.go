// internal/scraping/enricher.go
package scraping

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/scraping/parsers"
)

// Enrich fetches detail pages for up to maxDetails listings and overlays the
// richer fields onto each summary. Enrichment is strictly additive: a failed
// detail fetch or parse leaves the summary record untouched.
func (s *Scraper) Enrich(ctx context.Context, p parsers.Parser, listings []domain.Listing, maxDetails int) ([]domain.Listing, []string) {
	var errs []string

	for i := range listings {
		if i >= maxDetails {
			break
		}
		l := &listings[i]

		html, err := s.fetcher.Fetch(ctx, l.URL)
		if err != nil {
			errs = append(errs, fmt.Sprintf("detail %s: %v", l.ExternalID, err))
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			errs = append(errs, fmt.Sprintf("detail %s: parse html: %v", l.ExternalID, err))
			continue
		}

		l.ApplyDetail(p.ParseDetail(doc))
		if err := l.Validate(); err != nil {
			// Detail data made the record invalid; report it but keep the
			// merged listing rather than dropping summary data.
			errs = append(errs, fmt.Sprintf("detail %s: %v", l.ExternalID, err))
		}
	}

	return listings, errs
}
