// internal/services/pipeline.go
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lotlens/backend/internal/backfill"
	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/repositories"
	"github.com/lotlens/backend/internal/scraping"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/pkg/logger"
)

// RunSummary is the per-step accounting for one pipeline run. The cron
// endpoint returns it verbatim; partial failures land in Errors without
// flipping the HTTP status.
type RunSummary struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Refreshed       int  `json:"refreshed"`
	Discovered      int  `json:"discovered"`
	Written         int  `json:"written"`
	PricePoints     int  `json:"price_points"`
	NewModels       int  `json:"new_models"`
	Backfilled      int  `json:"backfilled"`
	AuctionsStored  int  `json:"auctions_stored"`
	StatsGroups     int  `json:"stats_groups"`
	BackfillSkipped bool `json:"backfill_skipped"`

	Errors  []string `json:"errors"`
	Success bool     `json:"success"`
}

// PipelineDeps wires the orchestrator. HistoryParser is the platform used
// for historical sold-search backfills.
type PipelineDeps struct {
	Scraper       *scraping.Scraper
	Runner        *backfill.Runner
	Tracker       *backfill.Tracker
	Listings      repositories.ListingStore
	Secondary     repositories.SecondaryStore
	History       repositories.PriceHistoryStore
	Stats         repositories.MarketStatsStore
	Parsers       []parsers.Parser
	HistoryParser parsers.Parser
	Log           *logger.Logger
}

// Pipeline sequences one cron run: refresh ended listings, scrape every
// platform, write both stores, record price points, identify new models,
// backfill a bounded number of them if budget remains, and recompute stats.
// Each step's failures are accumulated; no step aborts the ones after it.
type Pipeline struct {
	deps PipelineDeps
	now  func() time.Time

	scrapeOpts   scraping.Options
	modelsPerRun int
	minBudget    time.Duration
}

func NewPipeline(deps PipelineDeps, opts scraping.Options, modelsPerRun int, minBudget time.Duration) *Pipeline {
	return &Pipeline{
		deps:         deps,
		now:          time.Now,
		scrapeOpts:   opts,
		modelsPerRun: modelsPerRun,
		minBudget:    minBudget,
	}
}

// Run executes the full pipeline. The deadline is a soft budget: nothing in
// flight is aborted, but optional work (backfill) is skipped when the
// remaining time is below the safety threshold.
func (p *Pipeline) Run(ctx context.Context, deadline time.Time) *RunSummary {
	sum := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		Errors:    []string{},
	}
	p.deps.Log.Info("pipeline run %s started (deadline %s)", sum.RunID, deadline.Format(time.RFC3339))

	p.refreshEndedListings(ctx, sum)

	listings := p.scrapeAllPlatforms(ctx, sum)
	sum.Discovered = len(listings)

	p.writeListings(ctx, listings, sum)
	p.recordPricePoints(ctx, listings, sum)
	p.identifyNewModels(ctx, listings, sum)
	p.runBackfills(ctx, deadline, sum)
	p.recomputeStats(ctx, sum)

	sum.FinishedAt = p.now()
	sum.Success = len(sum.Errors) == 0
	p.deps.Log.Info("pipeline run %s finished: %d discovered, %d written, %d backfilled, %d errors",
		sum.RunID, sum.Discovered, sum.Written, sum.Backfilled, len(sum.Errors))
	return sum
}

// refreshEndedListings closes active listings whose end time has passed.
func (p *Pipeline) refreshEndedListings(ctx context.Context, sum *RunSummary) {
	active, err := p.deps.Listings.ActiveListings(ctx)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("load active listings: %v", err))
		return
	}
	now := p.now()
	for _, l := range active {
		if l.EndTime == nil || !l.EndTime.Before(now) {
			continue
		}
		if err := p.deps.Listings.CloseListing(ctx, l.ExternalID, domain.StatusEnded); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("close %s: %v", l.ExternalID, err))
			continue
		}
		sum.Refreshed++
	}
}

func (p *Pipeline) scrapeAllPlatforms(ctx context.Context, sum *RunSummary) []domain.Listing {
	var all []domain.Listing
	for _, parser := range p.deps.Parsers {
		listings, errs, err := p.deps.Scraper.ScrapePlatform(ctx, parser, p.scrapeOpts)
		sum.Errors = append(sum.Errors, errs...)
		if err != nil {
			// One platform's index failure never blocks the others.
			sum.Errors = append(sum.Errors, err.Error())
			continue
		}
		all = append(all, listings...)
	}
	return all
}

// writeListings upserts every listing into the primary store and mirrors it
// to the secondary one. Secondary failures never roll back primary writes.
func (p *Pipeline) writeListings(ctx context.Context, listings []domain.Listing, sum *RunSummary) {
	for _, l := range listings {
		if _, err := p.deps.Listings.UpsertListing(ctx, l); err != nil {
			sum.Errors = append(sum.Errors, err.Error())
			continue
		}
		sum.Written++

		if p.deps.Secondary == nil {
			continue
		}
		if err := p.deps.Secondary.UpsertListing(ctx, l); err != nil {
			p.deps.Log.Warn("secondary write %s: %v", l.ExternalID, err)
			sum.Errors = append(sum.Errors, err.Error())
		}
	}
}

func (p *Pipeline) recordPricePoints(ctx context.Context, listings []domain.Listing, sum *RunSummary) {
	for _, l := range listings {
		if l.CurrentBid == nil {
			continue
		}
		inserted, err := p.deps.History.RecordPricePoint(ctx, l.ExternalID, *l.CurrentBid, l.ScrapedAt)
		if err != nil {
			sum.Errors = append(sum.Errors, err.Error())
			continue
		}
		if inserted {
			sum.PricePoints++
		}
	}
}

func (p *Pipeline) identifyNewModels(ctx context.Context, listings []domain.Listing, sum *RunSummary) {
	identified, err := p.deps.Tracker.IdentifyAndMarkNewModels(ctx, listings)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("identify new models: %v", err))
	}
	sum.NewModels = len(identified)
}

// runBackfills works through pending models while the deadline allows. The
// budget check repeats before every model so a slow scrape stops the loop
// rather than overshooting the run.
func (p *Pipeline) runBackfills(ctx context.Context, deadline time.Time, sum *RunSummary) {
	if deadline.Sub(p.now()) < p.minBudget {
		p.deps.Log.Info("skipping backfill: %s remaining, need %s", deadline.Sub(p.now()), p.minBudget)
		sum.BackfillSkipped = true
		return
	}

	pending, err := p.deps.Tracker.PendingModels(ctx, p.modelsPerRun)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("load pending models: %v", err))
		return
	}

	for _, state := range pending {
		if deadline.Sub(p.now()) < p.minBudget {
			p.deps.Log.Info("stopping backfill early: deadline approaching")
			sum.BackfillSkipped = true
			return
		}
		stored, errs, err := p.deps.Runner.BackfillModel(ctx, p.deps.HistoryParser, state.Key())
		sum.Errors = append(sum.Errors, errs...)
		if err != nil {
			sum.Errors = append(sum.Errors, err.Error())
			continue
		}
		sum.Backfilled++
		sum.AuctionsStored += stored
	}
}

func (p *Pipeline) recomputeStats(ctx context.Context, sum *RunSummary) {
	groups, err := p.deps.Stats.RecomputeMarketStats(ctx)
	if err != nil {
		sum.Errors = append(sum.Errors, fmt.Sprintf("recompute market stats: %v", err))
		return
	}
	sum.StatsGroups = groups
}
