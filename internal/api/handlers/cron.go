// internal/api/handlers/cron.go
package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/lotlens/backend/internal/api/models"
	"github.com/lotlens/backend/internal/services"
	"github.com/lotlens/backend/pkg/logger"
)

// CronHandler triggers one pipeline run. Access is gated by a shared-secret
// bearer token; unauthorized calls do no work. Partial failures still return
// 200 with the error list in the body.
type CronHandler struct {
	pipeline *services.Pipeline
	secret   string
	budget   time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func NewCronHandler(pipeline *services.Pipeline, secret string, budget time.Duration, log *logger.Logger) *CronHandler {
	return &CronHandler{
		pipeline: pipeline,
		secret:   secret,
		budget:   budget,
		log:      log,
		now:      time.Now,
	}
}

func (h *CronHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.log.Warn("cron trigger rejected: bad or missing token")
		writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	deadline := h.now().Add(h.budget)
	sum := h.pipeline.Run(r.Context(), deadline)
	writeJSON(w, http.StatusOK, models.CronResponse{Run: sum})
}

func (h *CronHandler) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || h.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
