// internal/repositories/interfaces.go
package repositories

import (
	"context"
	"time"

	"github.com/lotlens/backend/internal/domain"
)

// ListingStore is the primary relational sink for live listings.
type ListingStore interface {
	// UpsertListing writes a listing keyed by external id, updating mutable
	// fields on conflict, and returns the row id.
	UpsertListing(ctx context.Context, l domain.Listing) (int64, error)
	// ActiveListings returns listings currently ACTIVE or ENDING_SOON.
	ActiveListings(ctx context.Context) ([]domain.Listing, error)
	// CloseListing moves a listing to a terminal status.
	CloseListing(ctx context.Context, externalID string, status domain.ListingStatus) error
	RecentListings(ctx context.Context, limit int) ([]domain.Listing, error)
}

// HistoricalStore persists backfilled sold auctions.
type HistoricalStore interface {
	// ExistingAuctionIDs filters ids down to the ones already stored.
	ExistingAuctionIDs(ctx context.Context, ids []string) (map[string]bool, error)
	InsertAuction(ctx context.Context, a domain.HistoricalAuction) (int64, error)
}

// PriceHistoryStore appends bid observations. Points are keyed by
// (external id, minute-rounded timestamp); RecordPricePoint reports whether
// a new point was written or the bucket already had one.
type PriceHistoryStore interface {
	RecordPricePoint(ctx context.Context, externalID string, price float64, at time.Time) (bool, error)
}

// BackfillStateStore holds the per-model backfill state machine. Every
// mutation is an atomic upsert keyed by (make, model) so overlapping runs
// cannot lose updates.
type BackfillStateStore interface {
	// GetState returns nil when the pair has never been seen.
	GetState(ctx context.Context, key domain.ModelKey) (*domain.BackfillState, error)
	MarkPending(ctx context.Context, key domain.ModelKey) error
	MarkBackfilled(ctx context.Context, key domain.ModelKey, auctionCount int, at time.Time) error
	MarkFailed(ctx context.Context, key domain.ModelKey, errMsg string) error
	// PendingModels returns models still needing backfill (PENDING or FAILED).
	PendingModels(ctx context.Context, limit int) ([]domain.BackfillState, error)
}

// MarketStatsStore recomputes per-model aggregates from stored sales.
type MarketStatsStore interface {
	// RecomputeMarketStats returns the number of make/model groups updated.
	RecomputeMarketStats(ctx context.Context) (int, error)
}

// SecondaryStore is the hosted REST sink. Failures here are non-fatal and
// never roll back primary writes.
type SecondaryStore interface {
	UpsertListing(ctx context.Context, l domain.Listing) error
}
