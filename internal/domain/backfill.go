// internal/domain/backfill.go
package domain

import "time"

// BackfillStatus is the state of one make/model's historical backfill.
type BackfillStatus string

const (
	BackfillPending BackfillStatus = "PENDING"
	BackfillDone    BackfillStatus = "BACKFILLED"
	BackfillFailed  BackfillStatus = "FAILED"
)

// BackfillState is one row of the per-model backfill state machine.
// PENDING -> BACKFILLED on success, PENDING|FAILED -> FAILED on error,
// FAILED -> BACKFILLED when a retry succeeds. BACKFILLED is terminal.
type BackfillState struct {
	Make         string         `json:"make"`
	Model        string         `json:"model"`
	Status       BackfillStatus `json:"status"`
	BackfilledAt *time.Time     `json:"backfilled_at,omitempty"`
	AuctionCount int            `json:"auction_count"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NeedsBackfill reports whether this model still requires a historical
// scrape. FAILED rows stay eligible so the next run retries them.
func (s *BackfillState) NeedsBackfill() bool {
	if s == nil {
		return true
	}
	return s.Status != BackfillDone
}

func (s *BackfillState) Key() ModelKey {
	return ModelKey{Make: s.Make, Model: s.Model}
}
