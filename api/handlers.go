package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/GoCodeAlone/marketplace/catalog"
	"github.com/GoCodeAlone/marketplace/config"
	"github.com/GoCodeAlone/marketplace/journal"
	"github.com/GoCodeAlone/marketplace/manifest"
	"github.com/GoCodeAlone/marketplace/plugin"
	"github.com/GoCodeAlone/marketplace/transport"
)

// Service is the operation surface the bridge exposes.
type Service interface {
	GetConfig() config.Config
	SetConfig(cfg config.Config) error
	Install(ctx context.Context, m *manifest.Manifest) plugin.Result
	Uninstall(ctx context.Context, m *manifest.Manifest) plugin.Result
	Update(ctx context.Context, m *manifest.Manifest) plugin.Result
	Restart() error
	IsOnline(ctx context.Context) bool
	OpenExternal(url string)
}

// History lists recorded operations.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	ForSlug(ctx context.Context, slug string, limit int) ([]journal.Entry, error)
}

const maxBodyBytes = 1 << 20

// Handler serves the bridge endpoints.
type Handler struct {
	service Service
	catalog *catalog.Controller
	history History
	logger  *slog.Logger
}

// NewHandler creates a Handler. history may be nil.
func NewHandler(service Service, ctrl *catalog.Controller, history History, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, catalog: ctrl, history: history, logger: logger}
}

// Catalog handles GET /api/v1/catalog.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.catalog.Snapshot())
}

// Item handles GET /api/v1/catalog/{slug}.
func (h *Handler) Item(w http.ResponseWriter, r *http.Request) {
	m, ok := h.catalog.Find(r.PathValue("slug"))
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown plugin")
		return
	}
	WriteJSON(w, http.StatusOK, m)
}

// Refresh handles POST /api/v1/catalog/refresh. Mirror lists and
// manifests are fetched again even when cached.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.catalog.Load(transport.Fresh(r.Context()))
	if err != nil && !errors.Is(err, catalog.ErrStale) {
		WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, h.catalog.Snapshot())
}

type viewRequest struct {
	Search    *string `json:"search"`
	Type      *string `json:"type"`
	Scope     *string `json:"scope"`
	Strategy  *string `json:"strategy"`
	Direction *string `json:"direction"`
	Columns   *string `json:"columns"`
	Density   *string `json:"density"`
	Page      *int    `json:"page"`
}

// View handles PUT /api/v1/catalog/view. Only the fields present change.
// An unknown preference value fails the whole request with 400. An out of
// range page is ignored.
func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Check the combined result first so a bad field changes nothing.
	next := h.service.GetConfig()
	overlay := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	overlay(&next.PluginType[0], req.Type)
	overlay(&next.PluginType[1], req.Scope)
	overlay(&next.SortOrder[0], req.Strategy)
	overlay(&next.SortOrder[1], req.Direction)
	overlay(&next.ListStyle[0], req.Columns)
	overlay(&next.ListStyle[1], req.Density)
	if err := next.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var persistErr error
	keep := func(err error) {
		if err != nil && persistErr == nil {
			persistErr = err
		}
	}
	if req.Search != nil {
		h.catalog.SetSearch(*req.Search)
	}
	if req.Type != nil {
		keep(h.catalog.SetTypeFilter(*req.Type))
	}
	if req.Scope != nil {
		keep(h.catalog.SetScope(*req.Scope))
	}
	if req.Strategy != nil {
		keep(h.catalog.SetStrategy(*req.Strategy))
	}
	if req.Direction != nil {
		keep(h.catalog.SetDirection(*req.Direction))
	}
	if req.Columns != nil || req.Density != nil {
		keep(h.catalog.SetListStyle(next.ListStyle[0], next.ListStyle[1]))
	}
	if req.Page != nil {
		h.catalog.GoTo(*req.Page)
	}
	if persistErr != nil {
		h.logger.Warn("view preferences not persisted", "err", persistErr)
	}
	WriteJSON(w, http.StatusOK, h.catalog.Snapshot())
}

// GetConfig handles GET /api/v1/config.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.service.GetConfig())
}

// SetConfig handles PUT /api/v1/config.
func (h *Handler) SetConfig(w http.ResponseWriter, r *http.Request) {
	var cfg config.Config
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cfg); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := cfg.Validate(); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := h.service.SetConfig(cfg)
	h.catalog.ApplyConfig(h.service.GetConfig())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// Operate handles POST /api/v1/plugins/{slug}/{op}.
func (h *Handler) Operate(w http.ResponseWriter, r *http.Request) {
	m, ok := h.catalog.Find(r.PathValue("slug"))
	if !ok {
		WriteError(w, http.StatusNotFound, "unknown plugin")
		return
	}
	var res plugin.Result
	switch r.PathValue("op") {
	case plugin.OpInstall:
		res = h.service.Install(r.Context(), m)
	case plugin.OpUninstall:
		res = h.service.Uninstall(r.Context(), m)
	case plugin.OpUpdate:
		res = h.service.Update(r.Context(), m)
	default:
		WriteError(w, http.StatusNotFound, "unknown operation")
		return
	}
	WriteResult(w, res)
}

// History handles GET /api/v1/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		WriteError(w, http.StatusNotImplemented, "history disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	var (
		entries []journal.Entry
		err     error
	)
	if slug := r.URL.Query().Get("slug"); slug != "" {
		entries, err = h.history.ForSlug(r.Context(), slug, limit)
	} else {
		entries, err = h.history.Recent(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("history query failed", "err", err)
		WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	WritePaginated(w, entries, len(entries), 1, len(entries))
}

// Online handles GET /api/v1/online.
func (h *Handler) Online(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]bool{"online": h.service.IsOnline(r.Context())})
}

// Open handles POST /api/v1/open.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil || req.URL == "" {
		WriteError(w, http.StatusBadRequest, "url is required")
		return
	}
	h.service.OpenExternal(req.URL)
	w.WriteHeader(http.StatusAccepted)
}

// Restart handles POST /api/v1/restart. The response is sent before the
// process is replaced.
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	go func() {
		if err := h.service.Restart(); err != nil {
			h.logger.Error("restart failed", "err", err)
		}
	}()
}
