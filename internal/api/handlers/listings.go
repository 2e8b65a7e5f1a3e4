// internal/api/handlers/listings.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/lotlens/backend/internal/api/models"
	"github.com/lotlens/backend/internal/repositories"
	"github.com/lotlens/backend/pkg/logger"
)

const defaultListingLimit = 50

// ListingsHandler serves the read-only listings API from the primary store.
type ListingsHandler struct {
	store repositories.ListingStore
	log   *logger.Logger
}

func NewListingsHandler(store repositories.ListingStore, log *logger.Logger) *ListingsHandler {
	return &ListingsHandler{store: store, log: log}
}

// HandleList returns the most recently scraped listings, newest first.
func (h *ListingsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListingLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeJSON(w, http.StatusBadRequest, models.ErrorResponse{Error: "limit must be 1-500"})
			return
		}
		limit = n
	}

	listings, err := h.store.RecentListings(r.Context(), limit)
	if err != nil {
		h.log.Error("list listings: %v", err)
		writeJSON(w, http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load listings"})
		return
	}
	writeJSON(w, http.StatusOK, models.FromListings(listings))
}

// HandleHealth is the liveness probe.
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
