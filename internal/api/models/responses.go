// internal/api/models/responses.go
package models

import (
	"time"

	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/services"
)

// CronResponse wraps one pipeline run for the cron trigger endpoint.
type CronResponse struct {
	Run *services.RunSummary `json:"run"`
}

// ListingResponse is the read-API shape of a listing. Mileage is reported in
// canonical kilometers alongside the raw scraped value.
type ListingResponse struct {
	ExternalID   string     `json:"external_id"`
	Platform     string     `json:"platform"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Make         string     `json:"make,omitempty"`
	Model        string     `json:"model,omitempty"`
	Year         int        `json:"year,omitempty"`
	MileageKM    *int       `json:"mileage_km,omitempty"`
	Transmission string     `json:"transmission,omitempty"`
	CurrentBid   *float64   `json:"current_bid,omitempty"`
	BidCount     int        `json:"bid_count"`
	Status       string     `json:"status"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	ScrapedAt    time.Time  `json:"scraped_at"`
}

type ListingsResponse struct {
	Count    int               `json:"count"`
	Listings []ListingResponse `json:"listings"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func FromListing(l domain.Listing) ListingResponse {
	return ListingResponse{
		ExternalID:   l.ExternalID,
		Platform:     string(l.Platform),
		URL:          l.URL,
		Title:        l.Title,
		Make:         l.Make,
		Model:        l.Model,
		Year:         l.Year,
		MileageKM:    l.MileageKM(),
		Transmission: l.Transmission,
		CurrentBid:   l.CurrentBid,
		BidCount:     l.BidCount,
		Status:       string(l.Status),
		EndTime:      l.EndTime,
		ScrapedAt:    l.ScrapedAt,
	}
}

func FromListings(in []domain.Listing) ListingsResponse {
	out := ListingsResponse{Count: len(in), Listings: make([]ListingResponse, 0, len(in))}
	for _, l := range in {
		out.Listings = append(out.Listings, FromListing(l))
	}
	return out
}
