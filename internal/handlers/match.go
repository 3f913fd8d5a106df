package handlers

import (
	"net/http"

	"meetup-backend/internal/middleware"
	"meetup-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// MatchHandler handles match reads and consent
type MatchHandler struct {
	matchService *services.MatchService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchService *services.MatchService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
	}
}

// ListMine handles GET /api/match/me
func (h *MatchHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matchService.ListMine(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "list matches")
		return
	}
	respondJSON(w, http.StatusOK, matches)
}

// Get handles GET /api/match/{match_id}
func (h *MatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	match, err := h.matchService.Get(ctx, chi.URLParam(r, "match_id"), middleware.GetUserID(ctx))
	if err != nil {
		respondServiceError(w, r, err, "get match")
		return
	}
	respondJSON(w, http.StatusOK, match)
}

// Agree handles POST /api/match/{match_id}/agree
func (h *MatchHandler) Agree(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := h.matchService.Agree(ctx, chi.URLParam(r, "match_id"), middleware.GetUserID(ctx))
	if err != nil {
		respondServiceError(w, r, err, "agree to match")
		return
	}

	message := "Agreed, waiting for the other user"
	if result.Contact != nil {
		message = "Both agreed, contact shared"
	}

	body := map[string]interface{}{
		"message": message,
		"match":   result.Match,
	}
	if result.Contact != nil {
		body["contact"] = result.Contact
	}
	respondJSON(w, http.StatusOK, body)
}

// Contact handles GET /api/match/{match_id}/contact
func (h *MatchHandler) Contact(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	contact, err := h.matchService.Contact(ctx, chi.URLParam(r, "match_id"), middleware.GetUserID(ctx))
	if err != nil {
		respondServiceError(w, r, err, "get contact")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"contact": contact})
}
