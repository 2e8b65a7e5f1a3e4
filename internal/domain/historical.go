// internal/domain/historical.go
package domain

import "time"

// HistoricalAuction is a completed sale observed during a historical
// backfill. Unlike Listing it always carries a resolved sale date and price.
type HistoricalAuction struct {
	ExternalID  string      `json:"external_id"`
	Platform    Platform    `json:"platform"`
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	Make        string      `json:"make"`
	Model       string      `json:"model"`
	Year        int         `json:"year"`
	SoldPrice   float64     `json:"sold_price"`
	AuctionDate time.Time   `json:"auction_date"`
	Mileage     *int        `json:"mileage,omitempty"`
	MileageUnit MileageUnit `json:"mileage_unit,omitempty"`
	ScrapedAt   time.Time   `json:"scraped_at"`
}

// HistoricalFromListing converts a sold listing card into a historical
// auction record. Returns nil when the card lacks a sale price or date.
func HistoricalFromListing(l *Listing) *HistoricalAuction {
	if l == nil || l.Status != StatusSold || l.CurrentBid == nil || l.EndTime == nil {
		return nil
	}
	return &HistoricalAuction{
		ExternalID:  l.ExternalID,
		Platform:    l.Platform,
		URL:         l.URL,
		Title:       l.Title,
		Make:        l.Make,
		Model:       l.Model,
		Year:        l.Year,
		SoldPrice:   *l.CurrentBid,
		AuctionDate: *l.EndTime,
		Mileage:     l.Mileage,
		MileageUnit: l.MileageUnit,
		ScrapedAt:   l.ScrapedAt,
	}
}
