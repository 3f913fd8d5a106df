package handlers

import (
	"net/http"

	"meetup-backend/internal/middleware"
	"meetup-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// QueueHandler handles joining and leaving place queues
type QueueHandler struct {
	queueService *services.QueueService
}

// NewQueueHandler creates a new queue handler
func NewQueueHandler(queueService *services.QueueService) *QueueHandler {
	return &QueueHandler{
		queueService: queueService,
	}
}

// JoinRequest represents the request to join a place
type JoinRequest struct {
	PlaceID string `json:"place_id"`
}

// Join handles POST /api/queue and POST /api/match/request
func (h *QueueHandler) Join(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req JoinRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PlaceID == "" {
		respondError(w, "place_id is required", http.StatusBadRequest)
		return
	}

	result, err := h.queueService.Join(ctx, userID, req.PlaceID)
	if err != nil {
		respondServiceError(w, r, err, "join queue")
		return
	}

	if result.Matched() {
		respondJSON(w, http.StatusCreated, map[string]interface{}{
			"message": "Matched",
			"matched": true,
			"match":   result.Match,
		})
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Joined queue",
		"queue":   result.Queue,
	})
}

// ListMine handles GET /api/queue/me
func (h *QueueHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	entries, err := h.queueService.ListMine(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, r, err, "list queue")
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Withdraw handles DELETE /api/queue/{queue_id}
func (h *QueueHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	queueID := chi.URLParam(r, "queue_id")

	entry, err := h.queueService.Withdraw(ctx, queueID, userID)
	if err != nil {
		respondServiceError(w, r, err, "leave queue")
		return
	}

	log.Debug().Str("queue_id", entry.ID).Msg("Queue entry removed via API")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Left queue",
		"queue":   entry,
	})
}
