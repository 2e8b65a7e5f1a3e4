// internal/domain/listing.go
package domain

import (
	"fmt"
	"math"
	"net/url"
	"path"
	"strings"
	"time"
)

// Platform identifies one of the supported auction sites.
type Platform string

const (
	PlatformBringATrailer  Platform = "bring-a-trailer"
	PlatformCarsAndBids    Platform = "cars-and-bids"
	PlatformCollectingCars Platform = "collecting-cars"
)

// IDPrefix returns the short prefix used when deriving external ids.
func (p Platform) IDPrefix() string {
	switch p {
	case PlatformBringATrailer:
		return "bat"
	case PlatformCarsAndBids:
		return "cab"
	case PlatformCollectingCars:
		return "cc"
	}
	return ""
}

func (p Platform) Valid() bool {
	return p.IDPrefix() != ""
}

// ListingStatus is the auction lifecycle state of a listing.
type ListingStatus string

const (
	StatusActive     ListingStatus = "ACTIVE"
	StatusEndingSoon ListingStatus = "ENDING_SOON"
	StatusEnded      ListingStatus = "ENDED"
	StatusSold       ListingStatus = "SOLD"
	StatusNoSale     ListingStatus = "NO_SALE"
)

type MileageUnit string

const (
	UnitMiles MileageUnit = "miles"
	UnitKM    MileageUnit = "km"
)

const kmPerMile = 1.609344

// Listing is one scraped auction snapshot, normalized across platforms.
// Pointer fields distinguish "absent" from zero.
type Listing struct {
	ExternalID string   `json:"external_id"`
	Platform   Platform `json:"platform"`
	URL        string   `json:"url"`
	Title      string   `json:"title"`

	Make          string      `json:"make"`
	Model         string      `json:"model"`
	Year          int         `json:"year"`
	Trim          string      `json:"trim,omitempty"`
	VIN           string      `json:"vin,omitempty"`
	Mileage       *int        `json:"mileage,omitempty"`
	MileageUnit   MileageUnit `json:"mileage_unit,omitempty"`
	Transmission  string      `json:"transmission,omitempty"`
	Engine        string      `json:"engine,omitempty"`
	ExteriorColor string      `json:"exterior_color,omitempty"`
	InteriorColor string      `json:"interior_color,omitempty"`

	CurrentBid  *float64      `json:"current_bid,omitempty"`
	BidCount    int           `json:"bid_count"`
	Status      ListingStatus `json:"status,omitempty"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	Images      []string      `json:"images,omitempty"`
	Description string        `json:"description,omitempty"`
	SellerNotes string        `json:"seller_notes,omitempty"`

	ScrapedAt time.Time `json:"scraped_at"`
}

// ExternalID derives the stable, platform-prefixed identifier for a listing
// URL. The id comes from the last path segment (the slug), so re-scraping the
// same listing always resolves to the same id.
func ExternalID(p Platform, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	slug := path.Base(strings.TrimRight(u.Path, "/"))
	if ext := path.Ext(slug); ext != "" {
		slug = strings.TrimSuffix(slug, ext)
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" || slug == "." || slug == "/" {
		return ""
	}
	return p.IDPrefix() + "-" + slug
}

// Validate checks the invariants every stored listing must hold.
func (l *Listing) Validate() error {
	if l.Title == "" {
		return fmt.Errorf("listing %s: empty title", l.URL)
	}
	if l.URL == "" || l.ExternalID == "" {
		return fmt.Errorf("listing %q: missing identity fields", l.Title)
	}
	if !l.Platform.Valid() {
		return fmt.Errorf("listing %s: unknown platform %q", l.ExternalID, l.Platform)
	}
	if l.CurrentBid != nil && *l.CurrentBid <= 0 {
		return fmt.Errorf("listing %s: non-positive bid %.2f", l.ExternalID, *l.CurrentBid)
	}
	if l.BidCount < 0 {
		return fmt.Errorf("listing %s: negative bid count", l.ExternalID)
	}
	if l.Mileage != nil && *l.Mileage < 0 {
		return fmt.Errorf("listing %s: negative mileage", l.ExternalID)
	}
	// Pre-1981 vehicles predate the 17-character VIN standard.
	if l.VIN != "" && l.Year >= 1981 && len(l.VIN) != 17 {
		return fmt.Errorf("listing %s: VIN %q is not 17 characters", l.ExternalID, l.VIN)
	}
	return nil
}

// MileageKM returns the mileage converted to kilometers, rounded to the
// nearest whole km. Values already in km pass through unchanged.
func (l *Listing) MileageKM() *int {
	if l.Mileage == nil {
		return nil
	}
	if l.MileageUnit == UnitKM {
		v := *l.Mileage
		return &v
	}
	km := int(math.Round(float64(*l.Mileage) * kmPerMile))
	return &km
}

// ResolveStatus fills in a status the parser could not determine from site
// markers, by comparing the end time against now. Listings ending within the
// next 24 hours are ENDING_SOON.
func (l *Listing) ResolveStatus(now time.Time) {
	if l.Status != "" {
		return
	}
	if l.EndTime == nil {
		l.Status = StatusActive
		return
	}
	switch {
	case l.EndTime.Before(now):
		l.Status = StatusEnded
	case l.EndTime.Sub(now) < 24*time.Hour:
		l.Status = StatusEndingSoon
	default:
		l.Status = StatusActive
	}
}

// ApplyDetail overlays fields parsed from a listing's own page onto the
// summary record. Zero-valued detail fields never erase summary data; bid
// count only moves forward.
func (l *Listing) ApplyDetail(d *Listing) {
	if d == nil {
		return
	}
	if d.Make != "" {
		l.Make = d.Make
	}
	if d.Model != "" {
		l.Model = d.Model
	}
	if d.Year != 0 {
		l.Year = d.Year
	}
	if d.Trim != "" {
		l.Trim = d.Trim
	}
	if d.VIN != "" {
		l.VIN = d.VIN
	}
	if d.Mileage != nil {
		l.Mileage = d.Mileage
		l.MileageUnit = d.MileageUnit
	}
	if d.Transmission != "" {
		l.Transmission = d.Transmission
	}
	if d.Engine != "" {
		l.Engine = d.Engine
	}
	if d.ExteriorColor != "" {
		l.ExteriorColor = d.ExteriorColor
	}
	if d.InteriorColor != "" {
		l.InteriorColor = d.InteriorColor
	}
	if d.CurrentBid != nil {
		l.CurrentBid = d.CurrentBid
	}
	if d.BidCount > l.BidCount {
		l.BidCount = d.BidCount
	}
	if d.Status != "" {
		l.Status = d.Status
	}
	if d.EndTime != nil {
		l.EndTime = d.EndTime
	}
	if len(d.Images) > 0 {
		l.Images = d.Images
	}
	if d.Description != "" {
		l.Description = d.Description
	}
	if d.SellerNotes != "" {
		l.SellerNotes = d.SellerNotes
	}
}

// ModelKey is the (make, model) pair the backfill tracker keys on.
type ModelKey struct {
	Make  string `json:"make"`
	Model string `json:"model"`
}

func (k ModelKey) String() string {
	return k.Make + " " + k.Model
}

// NormalizedKey lowercases and trims a make/model pair so that "Porsche"
// and "porsche " collapse to the same tracker row.
func NormalizedKey(mk, model string) ModelKey {
	return ModelKey{
		Make:  strings.ToLower(strings.TrimSpace(mk)),
		Model: strings.ToLower(strings.TrimSpace(model)),
	}
}
