// internal/scraping/parsers/bringatrailer.go
package parsers

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotlens/backend/internal/domain"
)

// BringATrailer parses bringatrailer.com. BaseURL is overridable for tests.
type BringATrailer struct {
	BaseURL string
}

func NewBringATrailer() *BringATrailer {
	return &BringATrailer{BaseURL: "https://bringatrailer.com"}
}

func (b *BringATrailer) Platform() domain.Platform { return domain.PlatformBringATrailer }

func (b *BringATrailer) ListingsURL() string { return b.BaseURL + "/auctions/" }

func (b *BringATrailer) ResultsURL(query string, page int) string {
	return fmt.Sprintf("%s/search/?s=%s&result=sold&page=%d", b.BaseURL, url.QueryEscape(query), page)
}

func (b *BringATrailer) CardSelector() string {
	return ".listing-card, .auctions-item"
}

var batVINRe = regexp.MustCompile(`(?i)chassis:?\s*([A-Z0-9-]+)`)

func (b *BringATrailer) ParseCard(sel *goquery.Selection) *domain.Listing {
	title := firstText(sel, ".listing-card-title a", "h3 a", ".title a", "h3")
	href := firstAttr(sel, "href", ".listing-card-title a", "a.listing-card-link", "h3 a", "a")
	if title == "" || href == "" {
		return nil
	}

	listingURL := absURL(b.BaseURL, href)
	externalID := domain.ExternalID(b.Platform(), listingURL)
	if externalID == "" {
		return nil
	}

	l := &domain.Listing{
		ExternalID: externalID,
		Platform:   b.Platform(),
		URL:        listingURL,
		Title:      title,
	}
	l.Year, l.Make, l.Model, l.Trim = parseTitle(title)

	result := firstText(sel, ".item-results", ".listing-result")
	lower := strings.ToLower(result)
	switch {
	case strings.Contains(lower, "sold for"):
		l.Status = domain.StatusSold
		l.CurrentBid = parsePrice(result)
		l.EndTime = scanSoldDateText(result)
	case strings.Contains(lower, "bid to"):
		l.Status = domain.StatusNoSale
		l.CurrentBid = parsePrice(result)
		l.EndTime = scanSoldDateText(result)
	default:
		// Live card: current bid and countdown. Status stays unset and is
		// resolved later against the end time.
		l.CurrentBid = parsePrice(firstText(sel, ".bid-formatted", ".current-bid .amount", ".bid-value"))
		if v := firstAttr(sel, "data-until", ".countdown-clock", ".listing-countdown"); v != "" {
			l.EndTime = parseTimestamp(v)
		}
	}

	if bids := firstText(sel, ".number-bids", ".listing-stats .bids"); bids != "" {
		l.BidCount = parseBidCount(bids)
	}

	excerpt := firstText(sel, ".item-excerpt", ".listing-excerpt", "p.excerpt")
	if excerpt != "" {
		l.Mileage, l.MileageUnit = parseMileage(excerpt)
		for _, chunk := range strings.Split(excerpt, ",") {
			if tr := parseTransmission(chunk); tr != "" {
				l.Transmission = tr
				break
			}
		}
	}

	if img := firstAttr(sel, "src", ".thumbnail img", "img"); img != "" {
		l.Images = []string{absURL(b.BaseURL, img)}
	}

	return l
}

func (b *BringATrailer) ParseDetail(doc *goquery.Document) *domain.Listing {
	d := &domain.Listing{}

	if title := firstText(doc.Selection, "h1.post-title", "h1.listing-title", "h1"); title != "" {
		d.Year, d.Make, d.Model, d.Trim = parseTitle(title)
	}

	// BaT lists the car's facts as free-text bullets; each bullet carries
	// one attribute, which keeps the transmission/odometer guard effective.
	doc.Find(".listing-essentials-item, .essentials li").Each(func(_ int, item *goquery.Selection) {
		text := strings.TrimSpace(item.Text())
		if text == "" {
			return
		}
		if m := batVINRe.FindStringSubmatch(text); m != nil {
			d.VIN = strings.ToUpper(m[1])
			return
		}
		if d.Mileage == nil {
			if mi, unit := parseMileage(text); mi != nil {
				d.Mileage = mi
				d.MileageUnit = unit
				return
			}
		}
		if d.Transmission == "" {
			if tr := parseTransmission(text); tr != "" {
				d.Transmission = tr
				return
			}
		}
		lower := strings.ToLower(text)
		switch {
		case d.Engine == "" && (strings.Contains(lower, "engine") || strings.Contains(lower, "liter") || strings.Contains(lower, "-liter")):
			d.Engine = text
		case d.ExteriorColor == "" && strings.Contains(lower, "paint"):
			d.ExteriorColor = strings.TrimSpace(strings.TrimSuffix(text, "Paint"))
		case d.InteriorColor == "" && strings.Contains(lower, "upholstery"):
			d.InteriorColor = strings.TrimSpace(strings.TrimSuffix(text, "Upholstery"))
		}
	})

	if bid := firstText(doc.Selection, ".current-bid .bid-value", ".bid-value", ".listing-available-bid"); bid != "" {
		d.CurrentBid = parsePrice(bid)
	}
	if bids := firstText(doc.Selection, ".number-bids", ".listing-stats .bids"); bids != "" {
		d.BidCount = parseBidCount(bids)
	}

	result := firstText(doc.Selection, ".listing-available-sold", ".listing-result")
	lower := strings.ToLower(result)
	switch {
	case strings.Contains(lower, "sold for"):
		d.Status = domain.StatusSold
		d.CurrentBid = parsePrice(result)
	case strings.Contains(lower, "bid to"):
		d.Status = domain.StatusNoSale
	}

	d.EndTime = resolveEndTime(doc,
		attrCandidate{"time[datetime]", "datetime"},
		attrCandidate{".countdown-clock", "data-until"},
		attrCandidate{".listing-available-countdown", "data-until"},
	)

	var paras []string
	doc.Find(".post-excerpt p, .listing-description p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	d.Description = strings.Join(paras, "\n\n")
	d.SellerNotes = firstText(doc.Selection, ".listing-seller-notes", ".seller-notes")

	doc.Find(".gallery img, .carousel img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			d.Images = append(d.Images, absURL(b.BaseURL, src))
		}
	})
	if len(d.Images) == 0 {
		if og := firstAttr(doc.Selection, "content", `meta[property="og:image"]`); og != "" {
			d.Images = []string{og}
		}
	}

	return d
}
