package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/chat-auth-be/internal/auth"
	"github.com/isdelr/chat-auth-be/internal/metrics"
	"github.com/isdelr/chat-auth-be/internal/models"
	"github.com/isdelr/chat-auth-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AuthHandler handles HTTP requests for the authentication flows.
type AuthHandler struct {
	service services.AuthServiceProvider
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.AuthServiceProvider) *AuthHandler {
	return &AuthHandler{service: service}
}

// CredentialsPayload defines the structure for signup and login requests.
type CredentialsPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordPayload defines the structure for password change requests.
type ChangePasswordPayload struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type identityResponse struct {
	Message string          `json:"message"`
	User    models.Identity `json:"user"`
}

type profileResponse struct {
	User models.Profile `json:"user"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// Signup handles new account registration.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.service.Signup(r.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			metrics.RecordAuth("signup", metrics.OutcomeRejected)
			http.Error(w, "Email and password are required", http.StatusBadRequest)
			return
		}
		metrics.RecordAuth("signup", metrics.OutcomeError)
		log.Error().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	metrics.RecordAuth("signup", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusCreated, identityResponse{
		Message: "Registration successful. Please check your email for verification.",
		User:    user,
	})
}

// Login handles credential checks. Verified users get a session cookie;
// unverified users get 202 and a new verification email.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload CredentialsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	switch {
	case errors.Is(err, services.ErrValidation):
		metrics.RecordAuth("login", metrics.OutcomeRejected)
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrUserNotFound):
		metrics.RecordAuth("login", metrics.OutcomeRejected)
		http.Error(w, "User not found", http.StatusNotFound)
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		metrics.RecordAuth("login", metrics.OutcomeRejected)
		log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
		http.Error(w, "Invalid password", http.StatusUnauthorized)
		return
	case err != nil:
		metrics.RecordAuth("login", metrics.OutcomeError)
		log.Error().Err(err).Str("email", payload.Email).Msg("Login failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if res.Pending {
		metrics.RecordAuth("login", metrics.OutcomePending)
		writeJSON(w, http.StatusAccepted, identityResponse{
			Message: "Please verify your email",
			User:    res.User.Identity(),
		})
		return
	}

	metrics.RecordAuth("login", metrics.OutcomeSuccess)
	auth.SetSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, profileResponse{User: res.User.Profile()})
}

// CheckAuth resolves the session token passed as ?token= or in the cookie.
func (h *AuthHandler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.CheckAuth(r.Context(), auth.TokenFromRequest(r))
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		metrics.RecordAuth("check_auth", metrics.OutcomeRejected)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	case errors.Is(err, services.ErrUserNotFound):
		metrics.RecordAuth("check_auth", metrics.OutcomeRejected)
		http.Error(w, "User not found", http.StatusNotFound)
		return
	case err != nil:
		metrics.RecordAuth("check_auth", metrics.OutcomeError)
		log.Error().Err(err).Msg("Check auth failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	metrics.RecordAuth("check_auth", metrics.OutcomeSuccess)
	writeJSON(w, http.StatusOK, profileResponse{User: profile})
}

// IsVerified reports whether the account for ?email= is verified.
func (h *AuthHandler) IsVerified(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	verified, err := h.service.IsUserVerified(r.Context(), email)
	switch {
	case errors.Is(err, services.ErrValidation):
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("email", email).Msg("Failed to read verification state")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, verified)
}

// UserInfo returns the profile of the session's user.
func (h *AuthHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	profile, err := h.service.GetUserInfo(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			http.Error(w, "User not found", http.StatusNotFound)
			return
		}
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to load user info")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{User: profile})
}

// VerifyEmail consumes the token in the path. An expired token answers 202
// after a new email has been queued.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	switch {
	case errors.Is(err, services.ErrValidation):
		metrics.RecordAuth("verify_email", metrics.OutcomeRejected)
		http.Error(w, "Invalid token", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrTokenNotFound):
		metrics.RecordAuth("verify_email", metrics.OutcomeRejected)
		http.Error(w, "Invalid or already used token", http.StatusNotFound)
		return
	case err != nil:
		metrics.RecordAuth("verify_email", metrics.OutcomeError)
		log.Error().Err(err).Msg("Email verification failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if res.Resent {
		metrics.RecordAuth("verify_email", metrics.OutcomeResent)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("Verification email sent"))
		return
	}

	metrics.RecordAuth("verify_email", metrics.OutcomeSuccess)
	auth.SetSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, profileResponse{User: res.User.Profile()})
}

// ChangePassword handles changing the session user's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		log.Error().Msg("Could not retrieve user claims from context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var payload ChangePasswordPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.service.ChangePassword(r.Context(), claims.UserID, payload.CurrentPassword, payload.NewPassword)
	switch {
	case errors.Is(err, services.ErrValidation):
		http.Error(w, "Current and new password are required", http.StatusBadRequest)
		return
	case errors.Is(err, services.ErrInvalidCredentials):
		http.Error(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	case errors.Is(err, services.ErrUserNotFound):
		http.Error(w, "User not found", http.StatusNotFound)
		return
	case err != nil:
		log.Error().Err(err).Str("user_id", claims.UserID).Msg("Failed to change password")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}
