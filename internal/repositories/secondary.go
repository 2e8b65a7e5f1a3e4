// internal/repositories/secondary.go
package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lotlens/backend/internal/domain"
)

// SecondaryClient mirrors listings into a hosted REST store with
// PostgREST-style upserts keyed by (source, source_id). Writes here are
// best-effort; callers treat failures as non-fatal.
type SecondaryClient struct {
	baseURL string
	apiKey  string
	table   string
	client  *http.Client
}

func NewSecondaryClient(baseURL, apiKey, table string) *SecondaryClient {
	if table == "" {
		table = "listings"
	}
	return &SecondaryClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		table:   table,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether the client was configured with a target.
func (c *SecondaryClient) Enabled() bool { return c != nil && c.baseURL != "" }

type secondaryRow struct {
	Source        string     `json:"source"`
	SourceID      string     `json:"source_id"`
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Make          string     `json:"make,omitempty"`
	Model         string     `json:"model,omitempty"`
	Year          int        `json:"year,omitempty"`
	MileageKM     *int       `json:"mileage_km,omitempty"`
	Transmission  string     `json:"transmission,omitempty"`
	VIN           string     `json:"vin,omitempty"`
	CurrentBid    *float64   `json:"current_bid,omitempty"`
	BidCount      int        `json:"bid_count"`
	Status        string     `json:"status,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	ExteriorColor string     `json:"exterior_color,omitempty"`
	InteriorColor string     `json:"interior_color,omitempty"`
	ScrapedAt     time.Time  `json:"scraped_at"`
}

func (c *SecondaryClient) UpsertListing(ctx context.Context, l domain.Listing) error {
	row := secondaryRow{
		Source:        string(l.Platform),
		SourceID:      l.ExternalID,
		URL:           l.URL,
		Title:         l.Title,
		Make:          l.Make,
		Model:         l.Model,
		Year:          l.Year,
		MileageKM:     l.MileageKM(),
		Transmission:  l.Transmission,
		VIN:           l.VIN,
		CurrentBid:    l.CurrentBid,
		BidCount:      l.BidCount,
		Status:        string(l.Status),
		EndTime:       l.EndTime,
		ExteriorColor: l.ExteriorColor,
		InteriorColor: l.InteriorColor,
		ScrapedAt:     l.ScrapedAt,
	}

	body, err := json.Marshal([]secondaryRow{row})
	if err != nil {
		return fmt.Errorf("marshal secondary row %s: %w", l.ExternalID, err)
	}

	url := fmt.Sprintf("%s/rest/v1/%s?on_conflict=source,source_id", c.baseURL, c.table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("secondary request %s: %w", l.ExternalID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Prefer", "resolution=merge-duplicates")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("secondary upsert %s: %w", l.ExternalID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("secondary upsert %s: status %d: %s", l.ExternalID, resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
