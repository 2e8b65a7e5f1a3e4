// internal/repositories/postgres.go
package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lotlens/backend/internal/domain"
)

// PostgresStore is the primary relational store. It implements every store
// interface except SecondaryStore; schema is migrations/schema.sql.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// ConnectPostgres opens a connection pool and verifies it with a ping.
func ConnectPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const listingColumns = `external_id, platform, url, title, make, model, year, trim, vin,
	mileage, mileage_unit, transmission, engine, exterior_color, interior_color,
	current_bid, bid_count, status, end_time, images, description, seller_notes, scraped_at`

func (s *PostgresStore) UpsertListing(ctx context.Context, l domain.Listing) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		         $16, $17, $18, $19, $20, $21, $22, $23)
		 ON CONFLICT (external_id) DO UPDATE SET
		     url = EXCLUDED.url,
		     title = EXCLUDED.title,
		     make = EXCLUDED.make,
		     model = EXCLUDED.model,
		     year = EXCLUDED.year,
		     trim = EXCLUDED.trim,
		     vin = EXCLUDED.vin,
		     mileage = EXCLUDED.mileage,
		     mileage_unit = EXCLUDED.mileage_unit,
		     transmission = EXCLUDED.transmission,
		     engine = EXCLUDED.engine,
		     exterior_color = EXCLUDED.exterior_color,
		     interior_color = EXCLUDED.interior_color,
		     current_bid = EXCLUDED.current_bid,
		     bid_count = EXCLUDED.bid_count,
		     status = EXCLUDED.status,
		     end_time = EXCLUDED.end_time,
		     images = EXCLUDED.images,
		     description = EXCLUDED.description,
		     seller_notes = EXCLUDED.seller_notes,
		     scraped_at = EXCLUDED.scraped_at,
		     updated_at = NOW()
		 RETURNING id`,
		l.ExternalID, string(l.Platform), l.URL, l.Title, l.Make, l.Model, l.Year,
		l.Trim, l.VIN, l.Mileage, string(l.MileageUnit), l.Transmission, l.Engine,
		l.ExteriorColor, l.InteriorColor, l.CurrentBid, l.BidCount, string(l.Status),
		l.EndTime, l.Images, l.Description, l.SellerNotes, l.ScrapedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert listing %s: %w", l.ExternalID, err)
	}
	return id, nil
}

func (s *PostgresStore) ActiveListings(ctx context.Context) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE status IN ('ACTIVE', 'ENDING_SOON')
		 ORDER BY external_id`)
	if err != nil {
		return nil, fmt.Errorf("query active listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

func (s *PostgresStore) CloseListing(ctx context.Context, externalID string, status domain.ListingStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE listings SET status = $1, updated_at = NOW() WHERE external_id = $2`,
		string(status), externalID)
	if err != nil {
		return fmt.Errorf("close listing %s: %w", externalID, err)
	}
	return nil
}

func (s *PostgresStore) RecentListings(ctx context.Context, limit int) ([]domain.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings
		 ORDER BY scraped_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent listings: %w", err)
	}
	defer rows.Close()
	return scanListings(rows)
}

func scanListings(rows pgx.Rows) ([]domain.Listing, error) {
	var out []domain.Listing
	for rows.Next() {
		var l domain.Listing
		var platform, unit, status string
		err := rows.Scan(&l.ExternalID, &platform, &l.URL, &l.Title, &l.Make, &l.Model,
			&l.Year, &l.Trim, &l.VIN, &l.Mileage, &unit, &l.Transmission, &l.Engine,
			&l.ExteriorColor, &l.InteriorColor, &l.CurrentBid, &l.BidCount, &status,
			&l.EndTime, &l.Images, &l.Description, &l.SellerNotes, &l.ScrapedAt)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.Platform = domain.Platform(platform)
		l.MileageUnit = domain.MileageUnit(unit)
		l.Status = domain.ListingStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ExistingAuctionIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	existing := map[string]bool{}
	if len(ids) == 0 {
		return existing, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT external_id FROM historical_auctions WHERE external_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("query existing auctions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan auction id: %w", err)
		}
		existing[id] = true
	}
	return existing, rows.Err()
}

func (s *PostgresStore) InsertAuction(ctx context.Context, a domain.HistoricalAuction) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO historical_auctions
		     (external_id, platform, url, title, make, model, year,
		      sold_price, auction_date, mileage, mileage_unit, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (external_id) DO UPDATE SET
		     sold_price = GREATEST(historical_auctions.sold_price, EXCLUDED.sold_price)
		 RETURNING id`,
		a.ExternalID, string(a.Platform), a.URL, a.Title, a.Make, a.Model, a.Year,
		a.SoldPrice, a.AuctionDate, a.Mileage, string(a.MileageUnit), a.ScrapedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert auction %s: %w", a.ExternalID, err)
	}
	return id, nil
}

// RecordPricePoint stores one observation per listing per minute. The insert
// is conflict-gated rather than check-then-insert so overlapping runs cannot
// race in a duplicate.
func (s *PostgresStore) RecordPricePoint(ctx context.Context, externalID string, price float64, at time.Time) (bool, error) {
	bucket := at.UTC().Truncate(time.Minute)
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (external_id, price, observed_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (external_id, observed_at) DO NOTHING`,
		externalID, price, bucket)
	if err != nil {
		return false, fmt.Errorf("record price point %s: %w", externalID, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) GetState(ctx context.Context, key domain.ModelKey) (*domain.BackfillState, error) {
	var st domain.BackfillState
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT make, model, status, backfilled_at, auction_count, error_message, created_at, updated_at
		 FROM backfill_states WHERE make = $1 AND model = $2`,
		key.Make, key.Model,
	).Scan(&st.Make, &st.Model, &status, &st.BackfilledAt, &st.AuctionCount,
		&st.ErrorMessage, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get backfill state %s: %w", key, err)
	}
	st.Status = domain.BackfillStatus(status)
	return &st, nil
}

func (s *PostgresStore) MarkPending(ctx context.Context, key domain.ModelKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO backfill_states (make, model, status)
		 VALUES ($1, $2, 'PENDING')
		 ON CONFLICT (make, model) DO UPDATE SET
		     status = 'PENDING',
		     updated_at = NOW()`,
		key.Make, key.Model)
	if err != nil {
		return fmt.Errorf("mark %s pending: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) MarkBackfilled(ctx context.Context, key domain.ModelKey, auctionCount int, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO backfill_states (make, model, status, backfilled_at, auction_count)
		 VALUES ($1, $2, 'BACKFILLED', $3, $4)
		 ON CONFLICT (make, model) DO UPDATE SET
		     status = 'BACKFILLED',
		     backfilled_at = $3,
		     auction_count = $4,
		     error_message = '',
		     updated_at = NOW()`,
		key.Make, key.Model, at, auctionCount)
	if err != nil {
		return fmt.Errorf("mark %s backfilled: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, key domain.ModelKey, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO backfill_states (make, model, status, error_message)
		 VALUES ($1, $2, 'FAILED', $3)
		 ON CONFLICT (make, model) DO UPDATE SET
		     status = 'FAILED',
		     error_message = $3,
		     updated_at = NOW()`,
		key.Make, key.Model, errMsg)
	if err != nil {
		return fmt.Errorf("mark %s failed: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) PendingModels(ctx context.Context, limit int) ([]domain.BackfillState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT make, model, status, backfilled_at, auction_count, error_message, created_at, updated_at
		 FROM backfill_states
		 WHERE status <> 'BACKFILLED'
		 ORDER BY created_at
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending models: %w", err)
	}
	defer rows.Close()

	var out []domain.BackfillState
	for rows.Next() {
		var st domain.BackfillState
		var status string
		err := rows.Scan(&st.Make, &st.Model, &status, &st.BackfilledAt,
			&st.AuctionCount, &st.ErrorMessage, &st.CreatedAt, &st.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan backfill state: %w", err)
		}
		st.Status = domain.BackfillStatus(status)
		out = append(out, st)
	}
	return out, rows.Err()
}

// RecomputeMarketStats rebuilds per-model aggregates from sold history in one
// statement; the affected-row count is the number of model groups touched.
func (s *PostgresStore) RecomputeMarketStats(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO market_stats (make, model, sale_count, avg_price, min_price, max_price, last_sale_date, computed_at)
		 SELECT lower(make), lower(model), COUNT(*), AVG(sold_price), MIN(sold_price), MAX(sold_price), MAX(auction_date), NOW()
		 FROM historical_auctions
		 WHERE make <> '' AND model <> ''
		 GROUP BY lower(make), lower(model)
		 ON CONFLICT (make, model) DO UPDATE SET
		     sale_count = EXCLUDED.sale_count,
		     avg_price = EXCLUDED.avg_price,
		     min_price = EXCLUDED.min_price,
		     max_price = EXCLUDED.max_price,
		     last_sale_date = EXCLUDED.last_sale_date,
		     computed_at = EXCLUDED.computed_at`)
	if err != nil {
		return 0, fmt.Errorf("recompute market stats: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
