package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"meetup-backend/internal/models"
	"meetup-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PairHandler handles decisions on proposed pairs
type PairHandler struct {
	matchmaking *services.MatchmakingService
}

// NewPairHandler creates a new pair handler
func NewPairHandler(matchmaking *services.MatchmakingService) *PairHandler {
	return &PairHandler{
		matchmaking: matchmaking,
	}
}

// DecisionRequest represents the request body for submitting a decision
type DecisionRequest struct {
	PairID   string `json:"pairId"`
	UserID   string `json:"userId"`
	Decision string `json:"decision"`
}

// DecisionResponse carries either a non-terminal status or a terminal result
type DecisionResponse struct {
	Status string `json:"status,omitempty"`
	Result string `json:"result,omitempty"`
}

// PairStatusResponse is returned for a pair lookup
type PairStatusResponse struct {
	Status string           `json:"status"`
	Pair   *models.PairView `json:"pair,omitempty"`
}

// Decide handles POST /decision
func (h *PairHandler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	outcome, err := h.matchmaking.Decide(ctx, req.PairID, req.UserID, models.Decision(req.Decision))
	if err != nil {
		log.Ctx(ctx).Warn().
			Err(err).
			Str("pair_id", req.PairID).
			Str("user_id", req.UserID).
			Str("decision", req.Decision).
			Msg("Decision rejected")

		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrInvalidDecision):
			statusCode = http.StatusBadRequest
		case errors.Is(err, services.ErrNotParticipant):
			statusCode = http.StatusForbidden
		}

		respondError(w, err.Error(), statusCode)
		return
	}

	respondJSON(w, decisionResponse(outcome), http.StatusOK)
}

// GetPair handles GET /pairs/{pair_id}
func (h *PairHandler) GetPair(w http.ResponseWriter, r *http.Request) {
	pairID := chi.URLParam(r, "pair_id")

	view, ok := h.matchmaking.PairStatus(r.Context(), pairID)
	if !ok {
		respondJSON(w, PairStatusResponse{Status: string(models.OutcomeExpired)}, http.StatusOK)
		return
	}

	respondJSON(w, PairStatusResponse{Status: "PENDING", Pair: view}, http.StatusOK)
}

// decisionResponse puts terminal outcomes under "result" and the rest under "status"
func decisionResponse(outcome models.Outcome) DecisionResponse {
	if outcome.Terminal() {
		return DecisionResponse{Result: string(outcome)}
	}
	return DecisionResponse{Status: string(outcome)}
}
