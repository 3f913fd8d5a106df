package handlers

import (
	"net/http"

	"meetup-backend/internal/middleware"
	"meetup-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// UserHandler handles user-related HTTP requests
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// PushTokenRequest carries an APNs device token; null clears it
type PushTokenRequest struct {
	PushToken *string `json:"push_token"`
}

// SetPushToken handles PUT /api/users/me/push-token
func (h *UserHandler) SetPushToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req PushTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.userService.SetPushToken(ctx, userID, req.PushToken); err != nil {
		respondServiceError(w, r, err, "update push token")
		return
	}

	log.Info().
		Str("user_id", userID).
		Bool("cleared", req.PushToken == nil).
		Msg("Push token updated")

	w.WriteHeader(http.StatusNoContent)
}
