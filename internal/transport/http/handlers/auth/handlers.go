package authhandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"staffbook/internal/domain/auth"
	"staffbook/internal/domain/listing"
	"staffbook/internal/platform/logger"
	"staffbook/internal/transport/http/api"
	"staffbook/internal/transport/http/middleware"
	"staffbook/internal/transport/http/shared"
)

type Handler struct {
	Service *auth.Service
	Views   *listing.Registry
}

func NewHandler(service *auth.Service, views *listing.Registry) *Handler {
	return &Handler{Service: service, Views: views}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.HandleLogin)
	r.Post("/auth/logout", h.HandleLogout)
	r.Get("/me", h.HandleMe)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload loginRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, reqID, err)
		return
	}
	v := shared.NewValidator()
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, reqID) {
		return
	}

	token, err := h.Service.Login(r.Context(), strings.TrimSpace(payload.Email), payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", reqID)
		return
	}
	if err != nil {
		logger.From(r.Context()).Error().Err(err).Msg("login failed")
		api.Fail(w, http.StatusInternalServerError, "session_error", "failed to start session", reqID)
		return
	}
	api.Success(w, token, reqID)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	if err := h.Service.Logout(r.Context(), user.SessionID); err != nil {
		logger.From(r.Context()).Warn().Err(err).Str("userId", user.UserID).Msg("logout session revoke failed")
	}
	if h.Views != nil {
		h.Views.Remove(user.SessionID)
	}
	api.Success(w, map[string]string{"status": "logged_out"}, reqID)
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	profile, err := h.Service.Profile(r.Context(), user.UserID)
	if errors.Is(err, auth.ErrNotFound) {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	if err != nil {
		logger.From(r.Context()).Error().Err(err).Msg("profile lookup failed")
		api.Fail(w, http.StatusInternalServerError, "profile_error", "failed to load profile", reqID)
		return
	}
	api.Success(w, map[string]any{
		"user":        profile,
		"permissions": auth.RolePermissions[user.Role],
	}, reqID)
}
