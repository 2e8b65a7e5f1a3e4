package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotlens/backend/internal/backfill"
	"github.com/lotlens/backend/internal/cache"
	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/fetch"
	"github.com/lotlens/backend/internal/repositories"
	"github.com/lotlens/backend/internal/scraping"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/pkg/logger"
)

const liveIndexPage = `<html><body>
<div class="listing-card">
	<h3 class="listing-card-title"><a href="/listing/1972-datsun-240z/">1972 Datsun 240Z</a></h3>
	<span class="bid-formatted">$12,500</span>
</div>
<div class="listing-card">
	<h3 class="listing-card-title"><a href="/listing/1990-mazda-miata/">1990 Mazda Miata</a></h3>
	<span class="bid-formatted">$8,000</span>
</div>
</body></html>`

// fakeSecondary counts mirrored writes and can be told to fail.
type fakeSecondary struct {
	upserts int32
	fail    bool
}

func (f *fakeSecondary) UpsertListing(context.Context, domain.Listing) error {
	if f.fail {
		return errors.New("secondary store unreachable")
	}
	atomic.AddInt32(&f.upserts, 1)
	return nil
}

// newPipelineSite serves both the live index and the sold-results search so
// one server backs the whole run.
func newPipelineSite(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/auctions/":
			fmt.Fprint(w, liveIndexPage)
		case r.URL.Path == "/search/":
			if r.URL.Query().Get("page") != "1" {
				fmt.Fprint(w, "<html><body></body></html>")
				return
			}
			slug := strings.ReplaceAll(r.URL.Query().Get("s"), " ", "-") + "-result"
			soldOn := time.Now().AddDate(0, -1, 0).Format("January 2, 2006")
			fmt.Fprintf(w, `<html><body><div class="listing-card">
				<h3 class="listing-card-title"><a href="/listing/%s/">1972 Datsun 240Z</a></h3>
				<div class="item-results">Sold for $21,000 on %s</div>
			</div></body></html>`, slug, soldOn)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

type pipelineFixture struct {
	pipeline  *Pipeline
	store     *repositories.MemoryStore
	secondary *fakeSecondary
}

func newPipelineFixture(t *testing.T, baseURL string) *pipelineFixture {
	t.Helper()
	log := logger.New(false)
	f := fetch.New(fetch.Config{MaxRetries: 1, RetryBase: time.Millisecond}, log)
	store := repositories.NewMemoryStore()
	secondary := &fakeSecondary{}

	scraper := scraping.NewScraper(f, cache.New[[]domain.Listing](time.Hour), log)
	tracker := backfill.NewTracker(store, log)
	hist := backfill.NewHistoricalScraper(f, 3, time.Millisecond, log)
	runner := backfill.NewRunner(hist, tracker, store, store, 12, log)
	p := &parsers.BringATrailer{BaseURL: baseURL}

	pipeline := NewPipeline(PipelineDeps{
		Scraper:       scraper,
		Runner:        runner,
		Tracker:       tracker,
		Listings:      store,
		Secondary:     secondary,
		History:       store,
		Stats:         store,
		Parsers:       []parsers.Parser{p},
		HistoryParser: p,
		Log:           log,
	}, scraping.Options{}, 3, 90*time.Second)

	return &pipelineFixture{pipeline: pipeline, store: store, secondary: secondary}
}

func TestPipelineRun_FullPass(t *testing.T) {
	srv := newPipelineSite(t)
	fx := newPipelineFixture(t, srv.URL)

	sum := fx.pipeline.Run(context.Background(), time.Now().Add(10*time.Minute))

	assert.True(t, sum.Success, "errors: %v", sum.Errors)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 2, sum.Discovered)
	assert.Equal(t, 2, sum.Written)
	assert.Equal(t, 2, sum.PricePoints)
	assert.Equal(t, 2, sum.NewModels)
	assert.Equal(t, 2, sum.Backfilled)
	assert.Equal(t, 2, sum.AuctionsStored)
	assert.False(t, sum.BackfillSkipped)
	assert.Equal(t, int32(2), atomic.LoadInt32(&fx.secondary.upserts))

	// Both discovered models end the run settled.
	state, err := fx.store.GetState(context.Background(), domain.ModelKey{Make: "datsun", Model: "240z"})
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, domain.BackfillDone, state.Status)
}

func TestPipelineRun_PricePointsIdempotentPerMinute(t *testing.T) {
	srv := newPipelineSite(t)
	fx := newPipelineFixture(t, srv.URL)
	ctx := context.Background()

	first := fx.pipeline.Run(ctx, time.Now().Add(10*time.Minute))
	assert.Equal(t, 2, first.PricePoints)

	// The cached index returns the same snapshot, so the same minute bucket
	// is hit again and no new points are written.
	second := fx.pipeline.Run(ctx, time.Now().Add(10*time.Minute))
	assert.Equal(t, 0, second.PricePoints)
	assert.Equal(t, 0, second.NewModels, "settled models are not re-identified")
	assert.Equal(t, 0, second.Backfilled)
}

func TestPipelineRun_BackfillSkippedNearDeadline(t *testing.T) {
	srv := newPipelineSite(t)
	fx := newPipelineFixture(t, srv.URL)

	sum := fx.pipeline.Run(context.Background(), time.Now().Add(10*time.Second))

	assert.True(t, sum.BackfillSkipped)
	assert.Equal(t, 0, sum.Backfilled)

	// Models stay PENDING for the next run.
	state, err := fx.store.GetState(context.Background(), domain.ModelKey{Make: "datsun", Model: "240z"})
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, domain.BackfillPending, state.Status)
}

func TestPipelineRun_SecondaryFailureIsNonFatal(t *testing.T) {
	srv := newPipelineSite(t)
	fx := newPipelineFixture(t, srv.URL)
	fx.secondary.fail = true

	sum := fx.pipeline.Run(context.Background(), time.Now().Add(10*time.Minute))

	assert.Equal(t, 2, sum.Written, "primary writes survive secondary failures")
	assert.False(t, sum.Success)
	assert.NotEmpty(t, sum.Errors)

	_, ok := fx.store.Listing("bat-1972-datsun-240z")
	assert.True(t, ok)
}

func TestPipelineRun_UpsertFailuresDoNotAbortRun(t *testing.T) {
	srv := newPipelineSite(t)
	fx := newPipelineFixture(t, srv.URL)
	fx.store.FailUpserts = true

	sum := fx.pipeline.Run(context.Background(), time.Now().Add(10*time.Minute))

	assert.Equal(t, 2, sum.Discovered)
	assert.Equal(t, 0, sum.Written)
	assert.False(t, sum.Success)
	assert.Len(t, sum.Errors, 2)

	// Later steps still ran.
	assert.Equal(t, 2, sum.PricePoints)
	assert.Equal(t, 2, sum.NewModels)
}

func TestPipelineRun_ClosesExpiredListings(t *testing.T) {
	srv := newPipelineSite(t)
	fx := newPipelineFixture(t, srv.URL)
	ctx := context.Background()

	past := time.Now().Add(-2 * time.Hour)
	_, err := fx.store.UpsertListing(ctx, domain.Listing{
		ExternalID: "bat-1965-ford-mustang",
		Platform:   domain.PlatformBringATrailer,
		URL:        "https://bringatrailer.com/listing/1965-ford-mustang/",
		Title:      "1965 Ford Mustang",
		Status:     domain.StatusActive,
		EndTime:    &past,
	})
	require.NoError(t, err)

	sum := fx.pipeline.Run(ctx, time.Now().Add(10*time.Minute))

	assert.Equal(t, 1, sum.Refreshed)
	closed, ok := fx.store.Listing("bat-1965-ford-mustang")
	require.True(t, ok)
	assert.Equal(t, domain.StatusEnded, closed.Status)
}
