package selectionhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"staffbook/internal/domain/auth"
	"staffbook/internal/domain/listing"
	"staffbook/internal/platform/logger"
	"staffbook/internal/transport/http/api"
	"staffbook/internal/transport/http/middleware"
	"staffbook/internal/transport/http/shared"
)

// Handler drives the list session of the signed-in session: query, page,
// mode and record selection.
type Handler struct {
	Views  *listing.Registry
	Source listing.Source
	Perms  middleware.PermissionStore
}

func NewHandler(views *listing.Registry, source listing.Source, perms middleware.PermissionStore) *Handler {
	return &Handler{Views: views, Source: source, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/selection", func(r chi.Router) {
		r.Use(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms))
		r.Get("/", h.handleState)
		r.Put("/query", h.handleQuery)
		r.Put("/page", h.handlePage)
		r.Put("/mode", h.handleMode)
		r.Post("/toggle", h.handleToggle)
		r.Post("/select-all", h.handleSelectAll)
		r.Delete("/", h.handleClear)
	})
}

type state struct {
	Mode        listing.Mode  `json:"mode"`
	Query       listing.Query `json:"query"`
	Selected    []string      `json:"selected"`
	Count       int           `json:"count"`
	AllSelected bool          `json:"allSelected"`
	View        listing.View  `json:"view"`
}

// sync loads the latest snapshot of the session's collection into it.
func (h *Handler) sync(w http.ResponseWriter, r *http.Request) (*listing.Session, bool) {
	reqID := middleware.GetRequestID(r.Context())
	user, ok := middleware.GetUser(r.Context())
	if !ok || user.SessionID == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return nil, false
	}
	session := h.Views.Session(user.SessionID)
	if session.Mode() == listing.ModeRecycleBin {
		if err := middleware.Authorize(r.Context(), h.Perms, auth.PermRecycleRead); err != nil {
			middleware.FailAuthorization(w, r, err)
			return nil, false
		}
	}
	snap, err := h.Source.Snapshot(r.Context(), session.Collection())
	if err != nil {
		logger.From(r.Context()).Error().Err(err).Msg("selection snapshot failed")
		api.Fail(w, http.StatusInternalServerError, "snapshot_failed", "failed to load records", reqID)
		return nil, false
	}
	session.Apply(snap)
	return session, true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, session *listing.Session) {
	selected := session.Selected()
	api.Success(w, state{
		Mode:        session.Mode(),
		Query:       session.Query(),
		Selected:    selected,
		Count:       len(selected),
		AllSelected: session.IsAllSelected(),
		View:        session.View(),
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sync(w, r)
	if !ok {
		return
	}
	h.respond(w, r, session)
}

type queryRequest struct {
	Search  string            `json:"search"`
	Filters map[string]string `json:"filters"`
	Sort    *listing.Sort     `json:"sort"`
	Page    int               `json:"page"`
}

func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload queryRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, reqID, err)
		return
	}
	session, ok := h.sync(w, r)
	if !ok {
		return
	}
	err := session.SetQuery(listing.Query{Search: payload.Search, Filters: payload.Filters, Sort: payload.Sort, Page: payload.Page})
	if err != nil {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "query", Reason: err.Error()}})
		return
	}
	h.respond(w, r, session)
}

type pageRequest struct {
	Page int `json:"page"`
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	var payload pageRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, middleware.GetRequestID(r.Context()), err)
		return
	}
	session, ok := h.sync(w, r)
	if !ok {
		return
	}
	session.SetPage(payload.Page)
	h.respond(w, r, session)
}

type modeRequest struct {
	Mode listing.Mode `json:"mode"`
}

func (h *Handler) handleMode(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload modeRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, reqID, err)
		return
	}
	user, ok := middleware.GetUser(r.Context())
	if !ok || user.SessionID == "" {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	if err := h.Views.Session(user.SessionID).SetMode(payload.Mode); err != nil {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "mode", Reason: err.Error()}})
		return
	}
	session, ok := h.sync(w, r)
	if !ok {
		return
	}
	h.respond(w, r, session)
}

type toggleRequest struct {
	ID string `json:"id"`
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload toggleRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, reqID, err)
		return
	}
	v := shared.NewValidator()
	v.Required("id", payload.ID, "is required")
	if v.Reject(w, reqID) {
		return
	}
	session, ok := h.sync(w, r)
	if !ok {
		return
	}
	session.Toggle(payload.ID)
	h.respond(w, r, session)
}

func (h *Handler) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sync(w, r)
	if !ok {
		return
	}
	session.SelectAll()
	h.respond(w, r, session)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	session, ok := h.sync(w, r)
	if !ok {
		return
	}
	session.ClearSelection()
	h.respond(w, r, session)
}
