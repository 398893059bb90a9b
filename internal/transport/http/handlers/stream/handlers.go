package streamhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"staffbook/internal/domain/auth"
	"staffbook/internal/domain/employee"
	"staffbook/internal/platform/logger"
	"staffbook/internal/transport/http/api"
	"staffbook/internal/transport/http/middleware"
)

// Subscriber delivers projected snapshots of one collection until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, collection string) (<-chan employee.Snapshot, error)
}

// Gauge tracks open streams.
type Gauge interface {
	StreamOpened()
	StreamClosed()
}

// Handler serves collection snapshots as server-sent events: one "snapshot"
// event on connect and one after every committed change.
type Handler struct {
	Source    Subscriber
	Perms     middleware.PermissionStore
	Gauge     Gauge
	Heartbeat time.Duration
}

func NewHandler(source Subscriber, perms middleware.PermissionStore, gauge Gauge) *Handler {
	return &Handler{Source: source, Perms: perms, Gauge: gauge, Heartbeat: 25 * time.Second}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream/{collection}", h.handleStream)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	collection := chi.URLParam(r, "collection")
	if !employee.ValidCollection(collection) {
		api.Fail(w, http.StatusNotFound, "unknown_collection", "unknown collection", reqID)
		return
	}
	perm := auth.PermEmployeesRead
	if collection == employee.CollectionDeleted {
		perm = auth.PermRecycleRead
	}
	if err := middleware.Authorize(r.Context(), h.Perms, perm); err != nil {
		middleware.FailAuthorization(w, r, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Fail(w, http.StatusInternalServerError, "stream_unsupported", "streaming unsupported", reqID)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	snapshots, err := h.Source.Subscribe(ctx, collection)
	if err != nil {
		logger.From(ctx).Error().Err(err).Str("collection", collection).Msg("subscribe failed")
		api.Fail(w, http.StatusInternalServerError, "subscribe_failed", "failed to subscribe", reqID)
		return
	}
	if h.Gauge != nil {
		h.Gauge.StreamOpened()
		defer h.Gauge.StreamClosed()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := h.Heartbeat
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case snap, open := <-snapshots:
			if !open {
				return
			}
			if err := writeEvent(w, snap); err != nil {
				logger.From(ctx).Debug().Err(err).Msg("stream write failed")
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, snap employee.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Version, payload)
	return err
}
