package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/hyperengineering/daybook/internal/cache"
	"github.com/hyperengineering/daybook/internal/codec"
	"github.com/hyperengineering/daybook/internal/export"
	"github.com/hyperengineering/daybook/internal/index"
	"github.com/hyperengineering/daybook/internal/syncer"
	"github.com/hyperengineering/daybook/internal/types"
)

// Handler implements the local API handlers. The API is a thin shell over
// the coordinator: out-of-process consumers (renderers, chart drawers,
// shortcut dispatch) read and write entries through it instead of touching
// the cache database directly.
type Handler struct {
	coord    *syncer.Coordinator
	cache    *cache.Store
	index    *index.Index
	uploader export.Uploader
	apiKey   string
	version  string
}

// NewHandler creates a Handler. apiKey may be empty, which disables auth on
// the protected routes.
func NewHandler(co *syncer.Coordinator, c *cache.Store, ix *index.Index, up export.Uploader, apiKey, version string) *Handler {
	if up == nil {
		up = &export.NoopUploader{}
	}
	return &Handler{
		coord:    co,
		cache:    c,
		index:    ix,
		uploader: up,
		apiKey:   apiKey,
		version:  version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health returns liveness only; it never touches the cache or the remote.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": h.version,
	})
}

// statusResponse reports local storage and queue state.
type statusResponse struct {
	Version      string      `json:"version"`
	Entries      int         `json:"entries"`
	PendingDates []string    `json:"pending_dates"`
	Usage        types.Usage `json:"usage"`
	LastSyncAt   string      `json:"last_sync_at,omitempty"`
}

// Status handles GET /api/v1/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	pending, err := h.cache.PendingDates(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	usage, err := h.cache.Usage(r.Context())
	if err != nil {
		MapError(w, r, err)
		return
	}
	if pending == nil {
		pending = []string{}
	}

	// Recorded by the coordinator after each drain; absent until the first
	// sync completes.
	lastSync, err := h.cache.GetSetting(r.Context(), "last_sync_at")
	if err != nil && !errors.Is(err, cache.ErrNotFound) {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		Version:      h.version,
		Entries:      h.index.Len(),
		PendingDates: pending,
		Usage:        usage,
		LastSyncAt:   lastSync,
	})
}

// ListEntries handles GET /api/v1/entries?q=&page=. The query installs a
// search filter; the page number is clamped into range.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.index.SetQuery(q.Get("q"))

	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid page number %q", raw))
			return
		}
		h.index.SetPage(n)
	}

	writeJSON(w, http.StatusOK, h.index.Page())
}

// entryResponse is the wire form of an entry: the structured fields plus the
// encoded document, with sections keyed by their string identifiers
// ("s1" .. "s11", "s4:Health").
type entryResponse struct {
	Date          string            `json:"date"`
	SchemaVersion int               `json:"schema_version"`
	Scores        types.Scores      `json:"scores"`
	NetWorthDelta float64           `json:"net_worth_delta"`
	Sections      map[string]string `json:"sections"`
	Document      string            `json:"document"`
}

func toEntryResponse(e types.Entry) entryResponse {
	sections := make(map[string]string, len(e.Sections))
	for id, text := range e.Sections {
		sections[id.String()] = text
	}
	return entryResponse{
		Date:          e.Date,
		SchemaVersion: e.SchemaVersion,
		Scores:        e.Scores,
		NetWorthDelta: e.NetWorthDelta,
		Sections:      sections,
		Document:      codec.Encode(e),
	}
}

// GetEntry handles GET /api/v1/entries/{date}. Dates absent everywhere
// return a fresh empty entry, mirroring the open-a-new-day flow.
func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	entry, err := h.coord.Entry(r.Context(), date)
	if err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

// putEntryRequest accepts either a raw document or structured fields. A
// non-empty document wins; structured fields are ignored in that case.
type putEntryRequest struct {
	Document      string            `json:"document"`
	Scores        *types.Scores     `json:"scores"`
	NetWorthDelta *float64          `json:"net_worth_delta"`
	Sections      map[string]string `json:"sections"`
}

// PutEntry handles PUT /api/v1/entries/{date}. The write is local-only: the
// entry lands pending and the sync loop (or POST /sync) pushes it later.
func (h *Handler) PutEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	var req putEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var entry types.Entry
	if req.Document != "" {
		entry = codec.Decode(req.Document)
		entry.Date = date
	} else {
		// Start from the current entry so a partial structured update
		// does not blank the sections it omits.
		current, err := h.coord.Entry(r.Context(), date)
		if err != nil {
			MapError(w, r, err)
			return
		}
		entry = current
		if req.Scores != nil {
			entry.Scores = *req.Scores
		}
		if req.NetWorthDelta != nil {
			entry.NetWorthDelta = *req.NetWorthDelta
		}
		for key, text := range req.Sections {
			id, ok := codec.ParseSectionID(key)
			if !ok {
				WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Unknown section %q", key))
				return
			}
			entry.SetSection(id, text)
		}
	}

	if errs := codec.Validate(entry); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Entry failed validation", errs)
		return
	}

	if err := h.coord.Save(r.Context(), entry); err != nil {
		MapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryResponse(entry))
}

// DeleteEntry handles DELETE /api/v1/entries/{date}.
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	if err := h.coord.Delete(r.Context(), date); err != nil {
		MapError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Sync handles POST /api/v1/sync: one drain of the pending queue. An
// in-flight drain yields a report with skipped set, not an error. Partial
// failure still returns the report; the failed dates stay queued.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.coord.SyncAllPending(r.Context())
	if err != nil {
		slog.Warn("sync via api incomplete",
			"component", "api",
			"action", "sync_incomplete",
			"run_id", report.RunID,
			"error", err,
		)
	}
	writeJSON(w, http.StatusOK, report)
}

// Backup handles POST /api/v1/export/backup: writes a zip archive of all
// entries to the configured backup storage and returns a presigned download
// URL. Returns 503 when backup storage is not configured.
func (h *Handler) Backup(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := export.WriteArchive(r.Context(), h.cache, &buf); err != nil {
		MapError(w, r, err)
		return
	}

	exportID := ulid.Make().String()
	if err := h.uploader.Upload(r.Context(), exportID, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		MapError(w, r, err)
		return
	}

	url, expiry, err := h.uploader.PresignedURL(r.Context(), exportID)
	if errors.Is(err, export.ErrNotConfigured) {
		WriteProblem(w, r, http.StatusServiceUnavailable, "Backup storage is not configured")
		return
	}
	if err != nil {
		MapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"export_id":  exportID,
		"url":        url,
		"expires_at": expiry,
	})
}

// Export handles GET /api/v1/export: streams the full JSON export document.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="daybook-export.json"`)
	if err := export.WriteJSON(r.Context(), h.cache, w); err != nil {
		slog.Error("export failed",
			"component", "api",
			"action", "export_failed",
			"error", err,
		)
	}
}
