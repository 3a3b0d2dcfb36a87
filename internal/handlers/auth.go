package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/masala-table/api/internal/domain"
	"github.com/masala-table/api/internal/platform/auth"
	"github.com/masala-table/api/internal/platform/httpx"
	"github.com/masala-table/api/internal/services"
)

const maxAuthBodySize = 16 * 1024

// AuthHandlers exposes registration, login, and the refresh-token lifecycle.
type AuthHandlers struct {
	verifier auth.AccessTokenVerifier
	accounts services.AuthService
}

// NewAuthHandlers constructs handlers backed by the auth service.
func NewAuthHandlers(verifier auth.AccessTokenVerifier, accounts services.AuthService) *AuthHandlers {
	return &AuthHandlers{verifier: verifier, accounts: accounts}
}

// Routes wires the /auth endpoints onto the provided router. Profile and
// password change require a valid access token.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/refresh", h.refresh)
	r.Post("/logout", h.logout)

	r.Group(func(authed chi.Router) {
		if h.verifier != nil {
			authed.Use(auth.RequireAuth(h.verifier))
		}
		authed.Get("/me", h.me)
		authed.Post("/password", h.changePassword)
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type sessionResponse struct {
	User         *userPayload `json:"user,omitempty"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type userPayload struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	PointsBalance int64  `json:"points_balance"`
	CreatedAt     string `json:"created_at"`
}

func buildUserPayload(user domain.User) userPayload {
	return userPayload{
		ID:            user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Role:          user.Role,
		PointsBalance: user.PointsBalance,
		CreatedAt:     formatTime(user.CreatedAt),
	}
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req registerRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	user, pair, err := h.accounts.Register(ctx, services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	payload := buildUserPayload(user)
	writeJSONResponse(w, http.StatusCreated, sessionResponse{
		User:         &payload,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	user, pair, err := h.accounts.Login(ctx, req.Email, req.Password)
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}

	payload := buildUserPayload(user)
	writeJSONResponse(w, http.StatusOK, sessionResponse{
		User:         &payload,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	pair, err := h.accounts.Refresh(ctx, req.RefreshToken)
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, sessionResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.accounts.Logout(ctx, req.RefreshToken); err != nil {
		writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"logged_out": true,
		"at":         time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	user, err := h.accounts.Me(ctx, caller)
	if err != nil {
		writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]userPayload{"user": buildUserPayload(user)})
}

func (h *AuthHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller, ok := callerFromContext(ctx)
	if !ok {
		writeUnauthenticated(ctx, w)
		return
	}

	var req changePasswordRequest
	if err := decodeJSONBody(r, maxAuthBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	if err := h.accounts.ChangePassword(ctx, caller, req.CurrentPassword, req.NewPassword); err != nil {
		writeAuthError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]bool{"changed": true})
}

func writeAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrAuthInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrAuthEmailTaken):
		httpx.WriteError(ctx, w, httpx.NewError("email_taken", "email is already registered", http.StatusConflict))
	case errors.Is(err, services.ErrAuthInvalidCredentials):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "invalid email or password", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAuthInvalidToken):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_token", "refresh token is invalid or expired", http.StatusUnauthorized))
	case errors.Is(err, services.ErrAuthNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("account_not_found", "account not found", http.StatusNotFound))
	case errors.Is(err, services.ErrAuthUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("auth_service_unavailable", "auth service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("auth_error", "failed to process request", http.StatusInternalServerError))
	}
}
