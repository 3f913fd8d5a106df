package handlers

import (
	"net/http"
	"time"

	"meetup-backend/internal/middleware"
	"meetup-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles registration and sessions
type AuthHandler struct {
	userService  *services.UserService
	secureCookie bool
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(userService *services.UserService, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		userService:  userService,
		secureCookie: secureCookie,
	}
}

// LoginRequest represents the login form
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.userService.Register(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, err, "register")
		return
	}

	log.Info().
		Str("user_id", user.ID).
		Str("username", user.Username).
		Msg("User registered")

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Registration complete",
		"user":    user,
	})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, token, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(w, r, err, "log in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.userService.TokenTTL() / time.Second),
	})

	log.Info().Str("user_id", user.ID).Msg("User logged in")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Login successful",
		"user":    sessionUser{ID: user.ID, Username: user.Username},
		"token":   token,
	})
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		respondJSON(w, http.StatusOK, map[string]interface{}{"logged_in": false})
		return
	}

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"logged_in": false})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"logged_in": true,
		"user":      sessionUser{ID: user.ID, Username: user.Username},
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookie,
		MaxAge:   -1,
	})
	respondJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}
