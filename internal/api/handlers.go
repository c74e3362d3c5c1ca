/**
 * @description
 * This file contains the HTTP handler functions for the access-service.
 * Handlers parse incoming requests, call the service layer, and write the
 * response. Service-layer error kinds are mapped onto HTTP statuses here;
 * internal detail never reaches the client.
 */
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matchpass/access-service/internal/app"
	"github.com/matchpass/access-service/internal/domain"
)

// Handler holds the application service and cookie settings.
type Handler struct {
	service      *app.Service
	cookieTTL    time.Duration
	secureCookie bool
}

// NewHandler creates a new Handler. secureCookie should be true in production
// so the auth cookie is only sent over TLS.
func NewHandler(service *app.Service, cookieTTL time.Duration, secureCookie bool) *Handler {
	return &Handler{service: service, cookieTTL: cookieTTL, secureCookie: secureCookie}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

// handleSignup creates a new account and starts a session.
func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || len(req.Password) < 8 {
		http.Error(w, "Email and a password of at least 8 characters are required", http.StatusBadRequest)
		return
	}

	user, token, err := h.service.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	setAuthCookie(w, token, h.cookieTTL, h.secureCookie)
	respondWithJSON(w, http.StatusCreated, authResponse{Token: token, User: user.Public()})
}

// handleLogin verifies credentials and starts a session.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	setAuthCookie(w, token, h.cookieTTL, h.secureCookie)
	respondWithJSON(w, http.StatusOK, authResponse{Token: token, User: user.Public()})
}

// handleLogout deletes the session cookie. The token itself stays valid until
// expiry; deleting the cookie is the whole logout.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	clearAuthCookie(w, h.secureCookie)
	w.WriteHeader(http.StatusNoContent)
}

// handleCreateCheckout starts a provider-hosted checkout session for a league.
func (h *Handler) handleCreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		LeagueID string `json:"league_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.LeagueID == "" {
		http.Error(w, "league_id is required", http.StatusBadRequest)
		return
	}

	url, err := h.service.CreateCheckout(r.Context(), userID, req.LeagueID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleCancelSubscription cancels one of the caller's subscriptions.
func (h *Handler) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	subscriptionID := chi.URLParam(r, "subscriptionID")
	if err := h.service.CancelSubscription(r.Context(), userID, subscriptionID); err != nil {
		writeServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleListSubscriptions returns the caller's active subscriptions with
// league data.
func (h *Handler) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	subscriptions, err := h.service.ListSubscriptions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, subscriptions)
}

// handleLeagueContent serves subscriber-only league data. The access gate is
// enforced here at the data boundary, not just in client routing.
func (h *Handler) handleLeagueContent(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	leagueID := chi.URLParam(r, "leagueID")
	league, err := h.service.AuthorizeLeagueAccess(r.Context(), userID, leagueID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, league)
}

// writeServiceError maps service-layer error kinds onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, domain.ErrEmailTaken):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrSubscriptionRequired):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, domain.ErrExternalFailure):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
