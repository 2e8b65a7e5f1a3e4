package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lotlens/backend/internal/api/models"
	"github.com/lotlens/backend/internal/backfill"
	"github.com/lotlens/backend/internal/cache"
	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/fetch"
	"github.com/lotlens/backend/internal/repositories"
	"github.com/lotlens/backend/internal/scraping"
	"github.com/lotlens/backend/internal/scraping/parsers"
	"github.com/lotlens/backend/internal/services"
	"github.com/lotlens/backend/pkg/logger"
)

// newIdlePipeline wires a pipeline with no platforms configured, so a run
// touches only the stores. Enough to exercise the HTTP contract.
func newIdlePipeline(store *repositories.MemoryStore) *services.Pipeline {
	log := logger.New(false)
	f := fetch.New(fetch.Config{MaxRetries: 1, RetryBase: time.Millisecond}, log)
	tracker := backfill.NewTracker(store, log)
	hist := backfill.NewHistoricalScraper(f, 1, time.Millisecond, log)
	runner := backfill.NewRunner(hist, tracker, store, store, 12, log)

	return services.NewPipeline(services.PipelineDeps{
		Scraper:       scraping.NewScraper(f, cache.New[[]domain.Listing](time.Hour), log),
		Runner:        runner,
		Tracker:       tracker,
		Listings:      store,
		History:       store,
		Stats:         store,
		Parsers:       []parsers.Parser{},
		HistoryParser: parsers.NewBringATrailer(),
		Log:           log,
	}, scraping.Options{}, 3, 90*time.Second)
}

func newCronHandler() *CronHandler {
	store := repositories.NewMemoryStore()
	return NewCronHandler(newIdlePipeline(store), "topsecret", time.Minute, logger.New(false))
}

func TestCron_RejectsMissingToken(t *testing.T) {
	h := newCronHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/cron/run", nil)
	rec := httptest.NewRecorder()

	h.HandleRun(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body models.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "unauthorized", body.Error)
}

func TestCron_RejectsWrongToken(t *testing.T) {
	h := newCronHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/cron/run", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()

	h.HandleRun(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCron_RunsPipelineWithValidToken(t *testing.T) {
	h := newCronHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/cron/run", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec := httptest.NewRecorder()

	h.HandleRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.CronResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.NotNil(t, body.Run)
	assert.NotEmpty(t, body.Run.RunID)
	assert.True(t, body.Run.Success)
	assert.Empty(t, body.Run.Errors)
}

func TestListings_ReturnsRecent(t *testing.T) {
	store := repositories.NewMemoryStore()
	for _, l := range []domain.Listing{
		{ExternalID: "bat-a", Platform: domain.PlatformBringATrailer, URL: "https://bringatrailer.com/listing/a/", Title: "A", Status: domain.StatusActive, ScrapedAt: time.Now()},
		{ExternalID: "cab-b", Platform: domain.PlatformCarsAndBids, URL: "https://carsandbids.com/auctions/b/", Title: "B", Status: domain.StatusSold, ScrapedAt: time.Now().Add(-time.Hour)},
	} {
		_, err := store.UpsertListing(context.Background(), l)
		require.NoError(t, err)
	}
	h := NewListingsHandler(store, logger.New(false))

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/listings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body models.ListingsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, "bat-a", body.Listings[0].ExternalID, "newest first")
}

func TestListings_LimitValidation(t *testing.T) {
	h := NewListingsHandler(repositories.NewMemoryStore(), logger.New(false))

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/listings?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/listings?limit=1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body models.ListingsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
}
