package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"meetup-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PresenceHandler handles presence reports and departures
type PresenceHandler struct {
	matchmaking *services.MatchmakingService
}

// NewPresenceHandler creates a new presence handler
func NewPresenceHandler(matchmaking *services.MatchmakingService) *PresenceHandler {
	return &PresenceHandler{
		matchmaking: matchmaking,
	}
}

// PresenceRequest represents the request body for reporting presence.
// Coordinates are pointers so a missing field decodes to nil instead of 0.
type PresenceRequest struct {
	UserID string   `json:"userId"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
}

// PresenceResponse is returned for a presence report
type PresenceResponse struct {
	Status string `json:"status"`
	PairID string `json:"pairId,omitempty"`
}

// LeaveResponse is returned when a user leaves
type LeaveResponse struct {
	Status string `json:"status"`
	PairID string `json:"pairId,omitempty"`
	Result string `json:"result,omitempty"`
}

// ReportPresence handles POST /presence
func (h *PresenceHandler) ReportPresence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req PresenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	if req.Lat == nil || req.Lng == nil {
		respondError(w, "Invalid payload", http.StatusBadRequest)
		return
	}

	result, err := h.matchmaking.ReportPresence(ctx, req.UserID, *req.Lat, *req.Lng)
	if err != nil {
		if errors.Is(err, services.ErrInvalidPayload) {
			respondError(w, "Invalid payload", http.StatusBadRequest)
			return
		}
		log.Ctx(ctx).Error().
			Err(err).
			Str("user_id", req.UserID).
			Msg("Failed to report presence")
		respondError(w, "Internal error", http.StatusInternalServerError)
		return
	}

	respondJSON(w, PresenceResponse{
		Status: string(result.Status),
		PairID: result.PairID,
	}, http.StatusOK)
}

// Leave handles DELETE /presence/{user_id}
func (h *PresenceHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if userID == "" {
		respondError(w, "user_id is required", http.StatusBadRequest)
		return
	}

	result := h.matchmaking.Leave(r.Context(), userID)
	if !result.Found {
		respondJSON(w, LeaveResponse{Status: "NOT_FOUND"}, http.StatusOK)
		return
	}

	resp := LeaveResponse{Status: "LEFT", PairID: result.PairID}
	if result.Outcome != "" {
		resp.Result = string(result.Outcome)
	}
	respondJSON(w, resp, http.StatusOK)
}
