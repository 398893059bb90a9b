package settingshandler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"staffbook/internal/domain/auth"
	"staffbook/internal/domain/settings"
	"staffbook/internal/platform/logger"
	"staffbook/internal/transport/http/api"
	"staffbook/internal/transport/http/middleware"
	"staffbook/internal/transport/http/shared"
)

type Handler struct {
	Service *settings.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *settings.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	write := middleware.RequirePermission(auth.PermSettingsWrite, h.Perms)
	r.Route("/settings", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermSettingsRead, h.Perms)).Get("/", h.handleAll)
		r.With(write).Post("/{category}/options", h.handleAddOption)
		r.With(write).Delete("/{category}/options/{value}", h.handleRemoveOption)
	})
}

func (h *Handler) handleAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.Service.All(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, all, middleware.GetRequestID(r.Context()))
}

type optionRequest struct {
	Value string `json:"value"`
}

func (h *Handler) handleAddOption(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload optionRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, reqID, err)
		return
	}
	category := chi.URLParam(r, "category")
	if err := h.Service.AddOption(r.Context(), category, payload.Value); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondOptions(w, r, category, http.StatusCreated)
}

func (h *Handler) handleRemoveOption(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	value, err := url.PathUnescape(chi.URLParam(r, "value"))
	if err != nil {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "value", Reason: "must be a valid path segment"}})
		return
	}
	if err := h.Service.RemoveOption(r.Context(), category, value); err != nil {
		writeError(w, r, err)
		return
	}
	h.respondOptions(w, r, category, http.StatusOK)
}

func (h *Handler) respondOptions(w http.ResponseWriter, r *http.Request, category string, status int) {
	options, err := h.Service.Options(r.Context(), category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	data := map[string]any{"category": category, "options": options}
	if status == http.StatusCreated {
		api.Created(w, data, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, data, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, settings.ErrUnknownCategory):
		api.Fail(w, http.StatusNotFound, "unknown_category", "unknown settings category", reqID)
	case errors.Is(err, settings.ErrOptionNotFound):
		api.Fail(w, http.StatusNotFound, "option_not_found", "option not found", reqID)
	case errors.Is(err, settings.ErrDuplicateOption):
		api.Fail(w, http.StatusConflict, "duplicate_option", "option already exists", reqID)
	case errors.Is(err, settings.ErrBlankOption):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "value", Reason: err.Error()}})
	default:
		logger.From(r.Context()).Error().Err(err).Msg("settings request failed")
		api.Fail(w, http.StatusInternalServerError, "settings_failed", "request failed, please retry", reqID)
	}
}
