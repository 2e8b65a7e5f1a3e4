// internal/scraping/parsers/collectingcars.go
package parsers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotlens/backend/internal/domain"
)

// CollectingCars parses collectingcars.com. Odometer readings here are
// usually kilometers; the unit comes straight from the page text.
type CollectingCars struct {
	BaseURL string
}

func NewCollectingCars() *CollectingCars {
	return &CollectingCars{BaseURL: "https://collectingcars.com"}
}

func (c *CollectingCars) Platform() domain.Platform { return domain.PlatformCollectingCars }

func (c *CollectingCars) ListingsURL() string { return c.BaseURL + "/for-sale" }

func (c *CollectingCars) ResultsURL(query string, page int) string {
	return fmt.Sprintf("%s/sold/search?q=%s&page=%d", c.BaseURL, url.QueryEscape(query), page)
}

func (c *CollectingCars) CardSelector() string {
	return ".vehicle-card, .lot-card"
}

func (c *CollectingCars) ParseCard(sel *goquery.Selection) *domain.Listing {
	title := firstText(sel, ".card-title a", ".card-title", "h3 a")
	href := firstAttr(sel, "href", "a.card-link", ".card-title a", "a")
	if title == "" || href == "" {
		return nil
	}

	listingURL := absURL(c.BaseURL, href)
	externalID := domain.ExternalID(c.Platform(), listingURL)
	if externalID == "" {
		return nil
	}

	l := &domain.Listing{
		ExternalID: externalID,
		Platform:   c.Platform(),
		URL:        listingURL,
		Title:      title,
	}
	l.Year, l.Make, l.Model, l.Trim = parseTitle(title)

	badge := strings.ToLower(firstText(sel, ".badge--sold", ".card-status"))
	switch {
	case strings.Contains(badge, "sold"):
		l.Status = domain.StatusSold
		l.CurrentBid = parsePrice(firstText(sel, ".sold-price", ".card-price"))
		if v := firstAttr(sel, "datetime", "time"); v != "" {
			l.EndTime = parseTimestamp(v)
		}
	case strings.Contains(badge, "no sale"), strings.Contains(badge, "unsold"):
		l.Status = domain.StatusNoSale
		l.CurrentBid = parsePrice(firstText(sel, ".card-price"))
		if v := firstAttr(sel, "datetime", "time"); v != "" {
			l.EndTime = parseTimestamp(v)
		}
	default:
		l.CurrentBid = parsePrice(firstText(sel, ".current-bid-value", ".card-price"))
		if v := firstAttr(sel, "datetime", "time"); v != "" {
			l.EndTime = parseTimestamp(v)
		}
	}

	if bids := firstText(sel, ".bid-count", ".card-bids"); bids != "" {
		l.BidCount = parseBidCount(bids)
	}

	if sub := firstText(sel, ".card-subtitle", ".card-meta"); sub != "" {
		l.Mileage, l.MileageUnit = parseMileage(sub)
	}

	if img := firstAttr(sel, "src", ".card-image img", "img"); img != "" {
		l.Images = []string{absURL(c.BaseURL, img)}
	}

	return l
}

func (c *CollectingCars) ParseDetail(doc *goquery.Document) *domain.Listing {
	d := &domain.Listing{}

	if title := firstText(doc.Selection, "h1.lot-title", "h1"); title != "" {
		d.Year, d.Make, d.Model, d.Trim = parseTitle(title)
	}

	// Spec list items read "Odometer: 45,000 km" / "Transmission: Manual".
	doc.Find(".specs-list li, .lot-specs li").Each(func(_ int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		key, val, ok := strings.Cut(text, ":")
		if !ok {
			return
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)
		if val == "" {
			return
		}
		switch key {
		case "odometer", "mileage":
			d.Mileage, d.MileageUnit = parseMileage(val)
		case "vin", "chassis number":
			d.VIN = strings.ToUpper(val)
		case "transmission", "gearbox":
			if tr := parseTransmission(val); tr != "" {
				d.Transmission = tr
			} else {
				d.Transmission = val
			}
		case "engine":
			d.Engine = val
		case "exterior colour", "exterior color":
			d.ExteriorColor = val
		case "interior colour", "interior color":
			d.InteriorColor = val
		}
	})

	if bid := firstText(doc.Selection, ".current-bid-value", ".bid-value"); bid != "" {
		d.CurrentBid = parsePrice(bid)
	}
	if bids := firstText(doc.Selection, ".bid-count"); bids != "" {
		d.BidCount = parseBidCount(bids)
	}

	banner := strings.ToLower(firstText(doc.Selection, ".lot-status", ".result-banner"))
	switch {
	case strings.Contains(banner, "sold"):
		d.Status = domain.StatusSold
	case strings.Contains(banner, "no sale"), strings.Contains(banner, "unsold"):
		d.Status = domain.StatusNoSale
	}

	d.EndTime = resolveEndTime(doc,
		attrCandidate{"time[datetime]", "datetime"},
		attrCandidate{".auction-timer", "data-end"},
	)

	var paras []string
	doc.Find("#description p, .lot-description p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	d.Description = strings.Join(paras, "\n\n")
	d.SellerNotes = firstText(doc.Selection, ".seller-summary", ".seller-notes")

	doc.Find(".lot-gallery img, .gallery img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			d.Images = append(d.Images, absURL(c.BaseURL, src))
		}
	})

	return d
}
