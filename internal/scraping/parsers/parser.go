// internal/scraping/parsers/parser.go
package parsers

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotlens/backend/internal/domain"
)

// ErrUnsupportedHost is returned by ForURL for hostnames no parser handles.
var ErrUnsupportedHost = errors.New("parsers: unsupported host")

// Parser turns one platform's HTML into normalized records. ParseCard
// returns nil for cards missing their identity fields (title, detail link);
// such cards are dropped, never synthesized. ParseDetail returns a partial
// record whose zero fields are ignored when merged onto a summary.
type Parser interface {
	Platform() domain.Platform

	// ListingsURL is the live-auctions index page.
	ListingsURL() string
	// ResultsURL is page n of the sold-results search for a query.
	ResultsURL(query string, page int) string

	// CardSelector matches one listing card on an index or results page.
	CardSelector() string

	ParseCard(sel *goquery.Selection) *domain.Listing
	ParseDetail(doc *goquery.Document) *domain.Listing
}

// All returns one parser per supported platform, with production base URLs.
func All() []Parser {
	return []Parser{NewBringATrailer(), NewCarsAndBids(), NewCollectingCars()}
}

// ForURL dispatches on the URL's hostname.
func ForURL(raw string) (Parser, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsers: bad url %q: %w", raw, err)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch {
	case strings.HasSuffix(host, "bringatrailer.com"):
		return NewBringATrailer(), nil
	case strings.HasSuffix(host, "carsandbids.com"):
		return NewCarsAndBids(), nil
	case strings.HasSuffix(host, "collectingcars.com"):
		return NewCollectingCars(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedHost, host)
}

// ForPlatform returns the parser for a platform tag.
func ForPlatform(p domain.Platform) (Parser, error) {
	for _, parser := range All() {
		if parser.Platform() == p {
			return parser, nil
		}
	}
	return nil, fmt.Errorf("parsers: unknown platform %q", p)
}
