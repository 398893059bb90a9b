package employeeshandler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"staffbook/internal/domain/auth"
	"staffbook/internal/domain/employee"
	"staffbook/internal/domain/export"
	"staffbook/internal/domain/listing"
	"staffbook/internal/domain/settings"
	"staffbook/internal/platform/logger"
	"staffbook/internal/transport/http/api"
	"staffbook/internal/transport/http/middleware"
	"staffbook/internal/transport/http/shared"
)

const maxPageSize = 500

// MutationRecorder counts committed writes by kind.
type MutationRecorder interface {
	Mutation(kind string, n int)
}

type Handler struct {
	Gateway  *employee.Gateway
	Viewer   *listing.Viewer
	Views    *listing.Registry
	Exporter *export.Exporter
	Perms    middleware.PermissionStore
	Metrics  MutationRecorder
	PageSize int
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)
	write := middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)

	r.Route("/employees", func(r chi.Router) {
		r.With(read).Get("/", h.handleList)
		r.With(write).Post("/", h.handleCreate)
		r.With(write).Post("/bulk", h.handleBulkUpdate)
		r.With(middleware.RequirePermission(auth.PermEmployeesExport, h.Perms)).Post("/export", h.handleExport)
		r.Route("/{employeeID}", func(r chi.Router) {
			r.With(read).Get("/", h.handleGet)
			r.With(write).Patch("/", h.handleUpdate)
			r.With(write).Delete("/", h.handleSoftDelete)
		})
	})
	r.Route("/recycle-bin", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermRecycleRead, h.Perms)).Get("/", h.handleListDeleted)
		r.With(middleware.RequirePermission(auth.PermRecycleRead, h.Perms)).Get("/{employeeID}", h.handleGetDeleted)
		r.With(middleware.RequirePermission(auth.PermRecycleRestore, h.Perms)).Post("/{employeeID}/restore", h.handleRestore)
		r.With(middleware.RequirePermission(auth.PermRecyclePurge, h.Perms)).Delete("/{employeeID}", h.handlePurge)
	})
}

type listResponse struct {
	listing.View
	ViewName string `json:"view"`
	Version  uint64 `json:"version"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	lq := shared.ParseListQuery(r, h.pageSize(), maxPageSize)
	def, ok := listing.ViewByName(lq.View)
	if !ok || def.Collection != employee.CollectionActive {
		api.Fail(w, http.StatusBadRequest, "invalid_view", "unknown list view", middleware.GetRequestID(r.Context()))
		return
	}
	h.list(w, r, def, lq.Query)
}

func (h *Handler) handleListDeleted(w http.ResponseWriter, r *http.Request) {
	lq := shared.ParseListQuery(r, h.pageSize(), maxPageSize)
	h.list(w, r, listing.RecycleBinView, lq.Query)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, def listing.ViewDef, q listing.Query) {
	reqID := middleware.GetRequestID(r.Context())
	if err := def.Check(q); err != nil {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "query", Reason: err.Error()}})
		return
	}
	view, version, err := h.Viewer.Resolve(r.Context(), def, q)
	if err != nil {
		logger.From(r.Context()).Error().Err(err).Str("view", def.Name).Msg("list employees failed")
		api.Fail(w, http.StatusInternalServerError, "employee_list_failed", "failed to list employees", reqID)
		return
	}
	api.Success(w, listResponse{View: view, Version: version, ViewName: def.Name}, reqID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, employee.CollectionActive)
}

func (h *Handler) handleGetDeleted(w http.ResponseWriter, r *http.Request) {
	h.get(w, r, employee.CollectionDeleted)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request, collection string) {
	emp, err := h.Gateway.Get(r.Context(), collection, chi.URLParam(r, "employeeID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	id, err := h.Gateway.Create(r.Context(), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record("create", 1)
	api.Created(w, map[string]string{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	fields, ok := decodeFields(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "employeeID")
	if err := h.Gateway.Update(r.Context(), id, fields); err != nil {
		writeError(w, r, err)
		return
	}
	h.record("update", 1)
	emp, err := h.Gateway.Get(r.Context(), employee.CollectionActive, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	api.Success(w, emp, middleware.GetRequestID(r.Context()))
}

type bulkRequest struct {
	IDs       []string       `json:"ids"`
	Selection bool           `json:"selection"`
	Fields    map[string]any `json:"fields"`
}

// handleBulkUpdate writes the same fields to the listed ids or, with
// selection set, to the caller's current selection. Ids that are no longer
// active are reported as skipped; the selection itself is left alone.
func (h *Handler) handleBulkUpdate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload bulkRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, reqID, err)
		return
	}
	if err := employee.ValidatePayload(toAny(payload.Fields)); err != nil {
		shared.FailValidation(w, reqID, shared.SchemaIssues(err))
		return
	}
	ids := payload.IDs
	if payload.Selection {
		session, ok := h.session(r)
		if !ok {
			api.Fail(w, http.StatusBadRequest, "no_session", "selection requires a signed-in session", reqID)
			return
		}
		if session.Mode() != listing.ModeActive {
			api.Fail(w, http.StatusConflict, "wrong_mode", "selection belongs to the recycle bin", reqID)
			return
		}
		ids = session.Selected()
	}
	if len(ids) == 0 {
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "ids", Reason: "at least one record is required"}})
		return
	}

	result, err := h.Gateway.BulkUpdate(r.Context(), ids, shared.StringFields(payload.Fields))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.record("bulkUpdate", result.Updated)
	api.Success(w, result, reqID)
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "softDelete", h.Gateway.SoftDelete)
}

func (h *Handler) handleRestore(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "restore", h.Gateway.Restore)
}

func (h *Handler) handlePurge(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "purge", h.Gateway.Purge)
}

func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, kind string, fn func(context.Context, string) error) {
	id := chi.URLParam(r, "employeeID")
	if err := fn(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	h.record(kind, 1)
	api.Success(w, map[string]string{"id": id, "status": kind}, middleware.GetRequestID(r.Context()))
}

type exportRequest struct {
	Format        string            `json:"format"`
	Title         string            `json:"title"`
	View          string            `json:"view"`
	Columns       []string          `json:"columns"`
	CustomColumns []string          `json:"customColumns"`
	Search        string            `json:"search"`
	Filters       map[string]string `json:"filters"`
	Sort          string            `json:"sort"`
	Dir           string            `json:"dir"`
	IDs           []string          `json:"ids"`
}

// handleExport renders every record the query matches, in list order. When
// ids are given only those records are kept.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	var payload exportRequest
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, reqID, err)
		return
	}

	v := shared.NewValidator()
	format, err := export.ParseFormat(payload.Format)
	v.Err("format", err)
	columns, err := export.Columns(payload.Columns)
	v.Err("columns", err)
	custom := make([]string, 0, len(payload.CustomColumns))
	for _, c := range payload.CustomColumns {
		if c = strings.TrimSpace(c); c != "" {
			custom = append(custom, c)
		}
	}
	if len(columns) == 0 && len(custom) == 0 {
		v.Add("columns", export.ErrNoColumns.Error())
	}
	def, ok := listing.ViewByName(payload.View)
	if !ok {
		v.Add("view", "unknown list view")
	}
	q := listing.Query{Search: payload.Search, Filters: payload.Filters, Page: 1, PageSize: maxPageSize}
	if payload.Sort != "" {
		dir := listing.Asc
		if strings.EqualFold(payload.Dir, string(listing.Desc)) {
			dir = listing.Desc
		}
		q.Sort = &listing.Sort{Field: payload.Sort, Direction: dir}
	}
	if ok {
		v.Err("query", def.Check(q))
	}
	if v.Reject(w, reqID) {
		return
	}

	view, _, err := h.Viewer.Resolve(r.Context(), def, q)
	if err != nil {
		logger.From(r.Context()).Error().Err(err).Msg("export query failed")
		api.Fail(w, http.StatusInternalServerError, "export_failed", "export failed, please retry", reqID)
		return
	}
	rows := view.Visible
	if len(payload.IDs) > 0 {
		keep := make(map[string]struct{}, len(payload.IDs))
		for _, id := range payload.IDs {
			keep[id] = struct{}{}
		}
		filtered := rows[:0:0]
		for _, row := range rows {
			if _, ok := keep[row.ID]; ok {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	title := strings.TrimSpace(payload.Title)
	if title == "" {
		title = "Employees"
	}
	var buf bytes.Buffer
	if err := h.Exporter.Export(&buf, format, export.Request{Title: title, Rows: rows, Columns: columns, Custom: custom}); err != nil {
		logger.From(r.Context()).Error().Err(err).Str("format", string(format)).Msg("export failed")
		api.Fail(w, http.StatusInternalServerError, "export_failed", "export failed, please retry", reqID)
		return
	}

	filename := "employees-" + time.Now().UTC().Format("20060102-150405") + "." + string(format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("X-Export-Rows", strconv.Itoa(len(rows)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) session(r *http.Request) (*listing.Session, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user.SessionID == "" || h.Views == nil {
		return nil, false
	}
	return h.Views.Session(user.SessionID), true
}

func (h *Handler) record(kind string, n int) {
	if h.Metrics != nil {
		h.Metrics.Mutation(kind, n)
	}
}

func (h *Handler) pageSize() int {
	if h.PageSize > 0 {
		return h.PageSize
	}
	return listing.DefaultPageSize
}

func decodeFields(w http.ResponseWriter, r *http.Request) (map[string]string, bool) {
	reqID := middleware.GetRequestID(r.Context())
	var payload map[string]any
	if err := shared.DecodeJSON(r, &payload); err != nil {
		shared.FailPayload(w, reqID, err)
		return nil, false
	}
	if err := employee.ValidatePayload(toAny(payload)); err != nil {
		shared.FailValidation(w, reqID, shared.SchemaIssues(err))
		return nil, false
	}
	return shared.StringFields(payload), true
}

// toAny keeps a nil map an empty JSON object for the schema.
func toAny(m map[string]any) any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, employee.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", reqID)
	case errors.Is(err, employee.ErrEmptyPatch):
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: "fields", Reason: err.Error()}})
	case errors.Is(err, employee.ErrUnknownField):
		field := err.Error()[strings.LastIndex(err.Error(), ": ")+2:]
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: field, Reason: employee.ErrUnknownField.Error()}})
	case errors.Is(err, employee.ErrInvalidValue),
		errors.Is(err, settings.ErrInvalidOption):
		field, _, _ := strings.Cut(err.Error(), ":")
		shared.FailValidation(w, reqID, []shared.ValidationIssue{{Field: field, Reason: err.Error()}})
	case errors.Is(err, employee.ErrInvalidCollection):
		api.Fail(w, http.StatusBadRequest, "invalid_collection", "unknown collection", reqID)
	default:
		logger.From(r.Context()).Error().Err(err).Msg("employee request failed")
		api.Fail(w, http.StatusInternalServerError, "employee_write_failed", "request failed, please retry", reqID)
	}
}
