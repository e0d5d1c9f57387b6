package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/rsahai/bizkeeper/internal/store"
	syncpkg "github.com/rsahai/bizkeeper/internal/sync"
)

// OnlineChecker reports current connectivity.
type OnlineChecker interface {
	IsOnline() bool
}

// SyncHandler exposes queue introspection and manual sync control.
type SyncHandler struct {
	store        *store.Manager
	engine       *syncpkg.Engine
	connectivity OnlineChecker
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(st *store.Manager, engine *syncpkg.Engine, connectivity OnlineChecker) *SyncHandler {
	return &SyncHandler{store: st, engine: engine, connectivity: connectivity}
}

// Register wires the sync routes onto mux.
func (h *SyncHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sync/status", h.Status)
	mux.HandleFunc("POST /api/sync/trigger", h.Trigger)
	mux.HandleFunc("GET /api/sync/failed", h.Failed)
	mux.HandleFunc("POST /api/sync/retry", h.Retry)
}

// Status handles GET /api/sync/status.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.store.PendingSyncCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	failed, err := h.store.FailedSyncCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	status := map[string]any{
		"online":  h.connectivity.IsOnline(),
		"pending": pending,
		"failed":  failed,
	}
	if last := h.engine.LastResult(); last != nil {
		status["last_sync"] = map[string]any{
			"finished_at": last.EndTime.Unix(),
			"duration_ms": last.Duration.Milliseconds(),
			"delivered":   last.Delivered,
			"evicted":     last.Evicted,
		}
	}
	writeJSON(w, http.StatusOK, status)
}

// Trigger handles POST /api/sync/trigger. The drain runs in the background;
// a drain already in flight makes this a no-op.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := h.engine.SyncWithServer(ctx); err != nil {
			log.Error().Err(err).Msg("triggered sync failed")
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
}

// Failed handles GET /api/sync/failed: items that exhausted their retry
// budget and were parked for inspection.
func (h *SyncHandler) Failed(w http.ResponseWriter, r *http.Request) {
	items, err := h.store.FailedSyncItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Retry handles POST /api/sync/retry: failed items move back to pending
// with a fresh retry budget.
func (h *SyncHandler) Retry(w http.ResponseWriter, r *http.Request) {
	moved, err := h.store.RetryFailedItems(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"requeued": moved})
}
