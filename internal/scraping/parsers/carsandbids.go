// internal/scraping/parsers/carsandbids.go
package parsers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lotlens/backend/internal/domain"
)

// CarsAndBids parses carsandbids.com. Unlike BaT, detail pages expose a
// structured quick-facts list, so most vehicle fields come from dt/dd pairs.
type CarsAndBids struct {
	BaseURL string
}

func NewCarsAndBids() *CarsAndBids {
	return &CarsAndBids{BaseURL: "https://carsandbids.com"}
}

func (c *CarsAndBids) Platform() domain.Platform { return domain.PlatformCarsAndBids }

func (c *CarsAndBids) ListingsURL() string { return c.BaseURL + "/" }

func (c *CarsAndBids) ResultsURL(query string, page int) string {
	return fmt.Sprintf("%s/past-auctions/?q=%s&page=%d", c.BaseURL, url.QueryEscape(query), page)
}

func (c *CarsAndBids) CardSelector() string {
	return ".auction-item, li.auction-card"
}

func (c *CarsAndBids) ParseCard(sel *goquery.Selection) *domain.Listing {
	title := firstText(sel, ".auction-title a", "h2 a", ".title a")
	href := firstAttr(sel, "href", ".auction-title a", "a.auction-link", "a")
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

	result := firstText(sel, ".auction-result", ".past-result")
	lower := strings.ToLower(result)
	switch {
	case strings.Contains(lower, "sold for"):
		l.Status = domain.StatusSold
		l.CurrentBid = parsePrice(result)
		l.EndTime = scanSoldDateText(result)
	case strings.Contains(lower, "reserve not met"), strings.Contains(lower, "bid to"):
		l.Status = domain.StatusNoSale
		l.CurrentBid = parsePrice(result)
		l.EndTime = scanSoldDateText(result)
	default:
		l.CurrentBid = parsePrice(firstText(sel, ".high-bid .bid-value", ".current-bid", ".bid-value"))
		if v := firstAttr(sel, "data-ends", ".time-left", ".countdown"); v != "" {
			l.EndTime = parseTimestamp(v)
		}
	}

	if bids := firstText(sel, ".num-bids", ".bid-count"); bids != "" {
		l.BidCount = parseBidCount(bids)
	}

	// Subtitle reads like "~45,000 Miles, 6-Speed Manual, Unmodified".
	if sub := firstText(sel, ".auction-subtitle", "p.subtitle"); sub != "" {
		l.Mileage, l.MileageUnit = parseMileage(sub)
		for _, chunk := range strings.Split(sub, ",") {
			if tr := parseTransmission(chunk); tr != "" {
				l.Transmission = tr
				break
			}
		}
	}

	if img := firstAttr(sel, "src", ".preview img", "img"); img != "" {
		l.Images = []string{absURL(c.BaseURL, img)}
	}

	return l
}

func (c *CarsAndBids) ParseDetail(doc *goquery.Document) *domain.Listing {
	d := &domain.Listing{}

	if title := firstText(doc.Selection, "h1.auction-title", "h1"); title != "" {
		d.Year, d.Make, d.Model, d.Trim = parseTitle(title)
	}

	facts := map[string]string{}
	doc.Find(".quick-facts dl dt, .quick-facts dt").Each(func(_ int, dt *goquery.Selection) {
		key := strings.ToLower(strings.TrimSpace(dt.Text()))
		val := strings.TrimSpace(dt.NextFiltered("dd").Text())
		if key != "" && val != "" {
			facts[key] = val
		}
	})

	if v := facts["make"]; v != "" {
		d.Make = v
	}
	if v := facts["model"]; v != "" {
		d.Model = v
	}
	if v := facts["vin"]; v != "" {
		d.VIN = strings.ToUpper(v)
	}
	if v := facts["mileage"]; v != "" {
		d.Mileage, d.MileageUnit = parseMileage(v)
		if d.Mileage == nil {
			// Bare numbers in the facts list are miles.
			if n := parseBidCount(v); n > 0 {
				d.Mileage = &n
				d.MileageUnit = domain.UnitMiles
			}
		}
	}
	if v := facts["transmission"]; v != "" {
		if tr := parseTransmission(v); tr != "" {
			d.Transmission = tr
		} else {
			d.Transmission = v
		}
	}
	if v := facts["engine"]; v != "" {
		d.Engine = v
	}
	if v := facts["exterior color"]; v != "" {
		d.ExteriorColor = v
	}
	if v := facts["interior color"]; v != "" {
		d.InteriorColor = v
	}

	if bid := firstText(doc.Selection, ".current-bid .bid-value", ".bid-value"); bid != "" {
		d.CurrentBid = parsePrice(bid)
	}
	if bids := firstText(doc.Selection, ".num-bids", ".bid-count"); bids != "" {
		d.BidCount = parseBidCount(bids)
	}

	result := firstText(doc.Selection, ".auction-result", ".ended-result")
	lower := strings.ToLower(result)
	switch {
	case strings.Contains(lower, "sold for"):
		d.Status = domain.StatusSold
		d.CurrentBid = parsePrice(result)
	case strings.Contains(lower, "reserve not met"):
		d.Status = domain.StatusNoSale
	}

	d.EndTime = resolveEndTime(doc,
		attrCandidate{"time[datetime]", "datetime"},
		attrCandidate{".time-left", "data-ends"},
	)

	var paras []string
	doc.Find(".detail-body p, .auction-description p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			paras = append(paras, t)
		}
	})
	d.Description = strings.Join(paras, "\n\n")
	d.SellerNotes = firstText(doc.Selection, ".dougs-take", ".seller-notes")

	doc.Find(".gall-int img, .gallery img").Each(func(_ int, img *goquery.Selection) {
		if src, ok := img.Attr("src"); ok && src != "" {
			d.Images = append(d.Images, absURL(c.BaseURL, src))
		}
	})

	return d
}
