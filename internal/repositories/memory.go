// internal/repositories/memory.go
package repositories

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/lotlens/backend/internal/domain"
)

// MemoryStore implements every store interface in memory. It backs the
// pipeline tests and doubles as the reference for upsert semantics. Not safe
// for concurrent use; the pipeline is sequential by design.
type MemoryStore struct {
	nextID    int64
	listings  map[string]memListing
	auctions  map[string]domain.HistoricalAuction
	points    map[string]map[time.Time]float64
	states    map[domain.ModelKey]*domain.BackfillState
	statOrder []domain.ModelKey

	// FailUpserts makes UpsertListing error, for error-isolation tests.
	FailUpserts bool
	// FailAuctionWrites makes the historical-store methods error, for
	// backfill failure-path tests.
	FailAuctionWrites bool
}

type memListing struct {
	id        int64
	listing   domain.Listing
	createdAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listings: map[string]memListing{},
		auctions: map[string]domain.HistoricalAuction{},
		points:   map[string]map[time.Time]float64{},
		states:   map[domain.ModelKey]*domain.BackfillState{},
	}
}

func (m *MemoryStore) UpsertListing(_ context.Context, l domain.Listing) (int64, error) {
	if m.FailUpserts {
		return 0, context.DeadlineExceeded
	}
	if existing, ok := m.listings[l.ExternalID]; ok {
		// Creation-only fields survive the update.
		existing.listing = l
		m.listings[l.ExternalID] = existing
		return existing.id, nil
	}
	m.nextID++
	m.listings[l.ExternalID] = memListing{id: m.nextID, listing: l, createdAt: l.ScrapedAt}
	return m.nextID, nil
}

func (m *MemoryStore) ActiveListings(_ context.Context) ([]domain.Listing, error) {
	var out []domain.Listing
	for _, entry := range m.listings {
		switch entry.listing.Status {
		case domain.StatusActive, domain.StatusEndingSoon:
			out = append(out, entry.listing)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExternalID < out[j].ExternalID })
	return out, nil
}

func (m *MemoryStore) CloseListing(_ context.Context, externalID string, status domain.ListingStatus) error {
	entry, ok := m.listings[externalID]
	if !ok {
		return nil
	}
	entry.listing.Status = status
	m.listings[externalID] = entry
	return nil
}

func (m *MemoryStore) RecentListings(_ context.Context, limit int) ([]domain.Listing, error) {
	var out []domain.Listing
	for _, entry := range m.listings {
		out = append(out, entry.listing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScrapedAt.After(out[j].ScrapedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Listing returns a stored listing by external id, for test assertions.
func (m *MemoryStore) Listing(externalID string) (domain.Listing, bool) {
	entry, ok := m.listings[externalID]
	return entry.listing, ok
}

func (m *MemoryStore) ExistingAuctionIDs(_ context.Context, ids []string) (map[string]bool, error) {
	if m.FailAuctionWrites {
		return nil, errors.New("historical store unavailable")
	}
	out := map[string]bool{}
	for _, id := range ids {
		if _, ok := m.auctions[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertAuction(_ context.Context, a domain.HistoricalAuction) (int64, error) {
	if m.FailAuctionWrites {
		return 0, errors.New("historical store unavailable")
	}
	m.auctions[a.ExternalID] = a
	m.nextID++
	return m.nextID, nil
}

// AuctionCount reports how many historical auctions are stored.
func (m *MemoryStore) AuctionCount() int { return len(m.auctions) }

func (m *MemoryStore) RecordPricePoint(_ context.Context, externalID string, price float64, at time.Time) (bool, error) {
	bucket := at.UTC().Truncate(time.Minute)
	if m.points[externalID] == nil {
		m.points[externalID] = map[time.Time]float64{}
	}
	if _, ok := m.points[externalID][bucket]; ok {
		return false, nil
	}
	m.points[externalID][bucket] = price
	return true, nil
}

// PricePoints returns the number of points stored for a listing.
func (m *MemoryStore) PricePoints(externalID string) int { return len(m.points[externalID]) }

func (m *MemoryStore) GetState(_ context.Context, key domain.ModelKey) (*domain.BackfillState, error) {
	state, ok := m.states[key]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *MemoryStore) MarkPending(_ context.Context, key domain.ModelKey) error {
	now := time.Now()
	if state, ok := m.states[key]; ok {
		state.Status = domain.BackfillPending
		state.UpdatedAt = now
		return nil
	}
	m.states[key] = &domain.BackfillState{
		Make:      key.Make,
		Model:     key.Model,
		Status:    domain.BackfillPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.statOrder = append(m.statOrder, key)
	return nil
}

func (m *MemoryStore) MarkBackfilled(_ context.Context, key domain.ModelKey, count int, at time.Time) error {
	state, ok := m.states[key]
	if !ok {
		state = &domain.BackfillState{Make: key.Make, Model: key.Model, CreatedAt: at}
		m.states[key] = state
		m.statOrder = append(m.statOrder, key)
	}
	state.Status = domain.BackfillDone
	state.BackfilledAt = &at
	state.AuctionCount = count
	state.ErrorMessage = ""
	state.UpdatedAt = at
	return nil
}

func (m *MemoryStore) MarkFailed(_ context.Context, key domain.ModelKey, errMsg string) error {
	now := time.Now()
	state, ok := m.states[key]
	if !ok {
		state = &domain.BackfillState{Make: key.Make, Model: key.Model, CreatedAt: now}
		m.states[key] = state
		m.statOrder = append(m.statOrder, key)
	}
	state.Status = domain.BackfillFailed
	state.ErrorMessage = errMsg
	state.UpdatedAt = now
	return nil
}

func (m *MemoryStore) PendingModels(_ context.Context, limit int) ([]domain.BackfillState, error) {
	var out []domain.BackfillState
	for _, key := range m.statOrder {
		state := m.states[key]
		if state.NeedsBackfill() {
			out = append(out, *state)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) RecomputeMarketStats(_ context.Context) (int, error) {
	groups := map[domain.ModelKey]bool{}
	for _, a := range m.auctions {
		groups[domain.NormalizedKey(a.Make, a.Model)] = true
	}
	return len(groups), nil
}
