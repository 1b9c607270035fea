package handlers

import (
	"context"
	"net/http"
	"strconv"

	"meetup-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// PairHistory lists past pairs of a user
type PairHistory interface {
	ListByUserID(ctx context.Context, userID string, limit int) ([]*models.PairRecord, error)
}

// HistoryHandler serves the pair history audit trail
type HistoryHandler struct {
	history PairHistory
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history PairHistory) *HistoryHandler {
	return &HistoryHandler{
		history: history,
	}
}

// HistoryResponse wraps a page of pair records
type HistoryResponse struct {
	Pairs []*models.PairRecord `json:"pairs"`
}

// ListPairs handles GET /users/{user_id}/pairs
func (h *HistoryHandler) ListPairs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "user_id")

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := h.history.ListByUserID(ctx, userID, limit)
	if err != nil {
		log.Ctx(ctx).Error().
			Err(err).
			Str("user_id", userID).
			Msg("Failed to list pair history")
		respondError(w, "Failed to list pair history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*models.PairRecord{}
	}

	respondJSON(w, HistoryResponse{Pairs: records}, http.StatusOK)
}
