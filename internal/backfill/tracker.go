// internal/backfill/tracker.go
package backfill

import (
	"context"
	"fmt"
	"time"

	"github.com/lotlens/backend/internal/domain"
	"github.com/lotlens/backend/internal/repositories"
	"github.com/lotlens/backend/pkg/logger"
)

// Tracker drives the per-model backfill state machine. It is the sole
// producer of backfill work items: live-scrape discovery marks models
// PENDING here, and the runner consumes them later.
type Tracker struct {
	store repositories.BackfillStateStore
	log   *logger.Logger
	now   func() time.Time
}

func NewTracker(store repositories.BackfillStateStore, log *logger.Logger) *Tracker {
	return &Tracker{store: store, log: log, now: time.Now}
}

// NeedsBackfill is true for unknown models and for PENDING/FAILED rows.
// Only BACKFILLED settles a model.
func (t *Tracker) NeedsBackfill(ctx context.Context, key domain.ModelKey) (bool, error) {
	state, err := t.store.GetState(ctx, key)
	if err != nil {
		return false, fmt.Errorf("backfill state for %s: %w", key, err)
	}
	return state.NeedsBackfill(), nil
}

// IdentifyAndMarkNewModels dedupes the batch to unique make/model pairs and
// upserts each pair that still needs backfill to PENDING, returning the
// newly identified keys.
func (t *Tracker) IdentifyAndMarkNewModels(ctx context.Context, listings []domain.Listing) ([]domain.ModelKey, error) {
	seen := map[domain.ModelKey]bool{}
	var identified []domain.ModelKey

	for _, l := range listings {
		if l.Make == "" || l.Model == "" {
			continue
		}
		key := domain.NormalizedKey(l.Make, l.Model)
		if seen[key] {
			continue
		}
		seen[key] = true

		needs, err := t.NeedsBackfill(ctx, key)
		if err != nil {
			return identified, err
		}
		if !needs {
			continue
		}
		if err := t.store.MarkPending(ctx, key); err != nil {
			return identified, fmt.Errorf("mark %s pending: %w", key, err)
		}
		t.log.Info("new model pending backfill: %s", key)
		identified = append(identified, key)
	}

	return identified, nil
}

// MarkBackfilled records a successful backfill with the stored count.
func (t *Tracker) MarkBackfilled(ctx context.Context, key domain.ModelKey, count int) error {
	return t.store.MarkBackfilled(ctx, key, count, t.now())
}

// MarkFailed records the failure on the row itself so it is inspectable
// without logs; the model stays eligible for retry.
func (t *Tracker) MarkFailed(ctx context.Context, key domain.ModelKey, cause error) error {
	return t.store.MarkFailed(ctx, key, cause.Error())
}

// PendingModels lists models awaiting backfill, oldest first.
func (t *Tracker) PendingModels(ctx context.Context, limit int) ([]domain.BackfillState, error) {
	return t.store.PendingModels(ctx, limit)
}
