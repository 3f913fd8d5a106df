package handlers

import (
	"net/http"

	"meetup-backend/internal/middleware"
	"meetup-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PlaceHandler handles place-related HTTP requests
type PlaceHandler struct {
	placeService *services.PlaceService
}

// NewPlaceHandler creates a new place handler
func NewPlaceHandler(placeService *services.PlaceService) *PlaceHandler {
	return &PlaceHandler{
		placeService: placeService,
	}
}

// ImageUploadRequest represents the request for an image upload URL
type ImageUploadRequest struct {
	ContentType string `json:"content_type"`
}

// List handles GET /api/places
func (h *PlaceHandler) List(w http.ResponseWriter, r *http.Request) {
	places, err := h.placeService.List(r.Context())
	if err != nil {
		respondServiceError(w, r, err, "list places")
		return
	}
	respondJSON(w, http.StatusOK, places)
}

// Get handles GET /api/places/{place_id}
func (h *PlaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	place, err := h.placeService.Get(r.Context(), chi.URLParam(r, "place_id"))
	if err != nil {
		respondServiceError(w, r, err, "get place")
		return
	}
	respondJSON(w, http.StatusOK, place)
}

// UploadImage handles POST /api/places/{place_id}/image
func (h *PlaceHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	placeID := chi.URLParam(r, "place_id")

	var req ImageUploadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response, err := h.placeService.UploadImage(ctx, placeID, req.ContentType)
	if err != nil {
		respondServiceError(w, r, err, "create image upload")
		return
	}

	log.Info().
		Str("user_id", middleware.GetUserID(ctx)).
		Str("place_id", placeID).
		Msg("Pre-signed URL generated")

	respondJSON(w, http.StatusOK, response)
}
