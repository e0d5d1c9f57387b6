package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rsahai/bizkeeper/internal/models"
	"github.com/rsahai/bizkeeper/internal/store"
	"github.com/rsahai/bizkeeper/internal/uuid"
)

// LocalHandler exposes the local store over REST for the desktop client.
// All reads and writes are purely local; sync happens in the background.
type LocalHandler struct {
	store *store.Manager
}

// NewLocalHandler creates a LocalHandler.
func NewLocalHandler(st *store.Manager) *LocalHandler {
	return &LocalHandler{store: st}
}

// Register wires the CRUD routes onto mux.
func (h *LocalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/local/{collection}", h.List)
	mux.HandleFunc("POST /api/local/{collection}", h.Create)
	mux.HandleFunc("GET /api/local/{collection}/{id}", h.Get)
	mux.HandleFunc("PATCH /api/local/{collection}/{id}", h.Update)
	mux.HandleFunc("DELETE /api/local/{collection}/{id}", h.Delete)
	mux.HandleFunc("PUT /api/cache/{collection}", h.Cache)
}

func (h *LocalHandler) collection(w http.ResponseWriter, r *http.Request) (store.Collection, bool) {
	col, err := store.ParseCollection(r.PathValue("collection"))
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return col, true
}

// List handles GET /api/local/{collection}.
func (h *LocalHandler) List(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	rows, err := h.store.Read(r.Context(), col)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": rows})
}

// Get handles GET /api/local/{collection}/{id}.
func (h *LocalHandler) Get(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	row, found, err := h.store.Get(r.Context(), col, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// validateCreate decodes the incoming document as its typed record and
// rejects ones missing required fields or carrying an unknown status.
func validateCreate(col store.Collection, raw []byte) error {
	var record interface{ Validate() error }
	switch col {
	case store.CollectionProjects:
		record = &models.Project{}
	case store.CollectionTasks:
		record = &models.Task{}
	case store.CollectionTimeEntries:
		record = &models.TimeEntry{}
	case store.CollectionInvoices:
		record = &models.Invoice{}
	case store.CollectionClients:
		record = &models.Client{}
	default:
		return nil
	}
	if err := json.Unmarshal(raw, record); err != nil {
		return fmt.Errorf("malformed %s document: %w", col, err)
	}
	return record.Validate()
}

// validateUpdate checks the fields a partial document is allowed to change.
// Only the status field is constrained; the rest of the payload is opaque.
func validateUpdate(col store.Collection, partial store.Row) error {
	status, ok := partial["status"].(string)
	if !ok || status == "" {
		return nil
	}
	valid := true
	switch col {
	case store.CollectionProjects:
		valid = models.ValidProjectStatus(status)
	case store.CollectionTasks:
		valid = models.ValidTaskStatus(status)
	case store.CollectionInvoices:
		valid = models.ValidInvoiceStatus(status)
	}
	if !valid {
		return fmt.Errorf("unknown %s status %q", col, status)
	}
	return nil
}

// Create handles POST /api/local/{collection}.
func (h *LocalHandler) Create(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	var data store.Row
	if err := json.Unmarshal(raw, &data); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := validateCreate(col, raw); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	// Client-assigned ids must be UUIDs; server-assigned ids arrive through
	// the cache endpoint instead.
	if id, ok := data["id"].(string); ok && id != "" {
		if err := uuid.Validate(id); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	id, err := h.store.Create(r.Context(), col, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// Update handles PATCH /api/local/{collection}/{id}. The body is a partial
// record; absent fields keep their current values.
func (h *LocalHandler) Update(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	var partial store.Row
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := validateUpdate(col, partial); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	found, err := h.store.Update(r.Context(), col, r.PathValue("id"), partial)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// Delete handles DELETE /api/local/{collection}/{id}.
func (h *LocalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	found, err := h.store.Delete(r.Context(), col, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// Cache handles PUT /api/cache/{collection}: it replaces the local
// collection with a server snapshot, marking every row synced.
func (h *LocalHandler) Cache(w http.ResponseWriter, r *http.Request) {
	col, ok := h.collection(w, r)
	if !ok {
		return
	}
	var rows []store.Row
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if err := h.store.CacheServerData(r.Context(), col, rows); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cached": len(rows)})
}
