package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/unichart/unichart/internal/catalog"
	"github.com/unichart/unichart/internal/curriculum"
	"github.com/unichart/unichart/internal/tracker"
	"github.com/unichart/unichart/internal/transfer"
)

// maxImportSize bounds user-supplied import files.
const maxImportSize = 4 << 20

type api struct {
	store   *tracker.Store
	catalog catalog.Catalog
	logger  *slog.Logger
	now     func() time.Time
}

func newAPI(store *tracker.Store, cat catalog.Catalog, logger *slog.Logger) *api {
	return &api{
		store:   store,
		catalog: cat,
		logger:  logger,
		now:     time.Now,
	}
}

// routes creates the HTTP router.
func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", handleHealthz)

	mux.HandleFunc("GET /api/snapshot", a.handleSnapshot)
	mux.HandleFunc("GET /api/registry", a.handleRegistry)
	mux.HandleFunc("GET /api/progress", a.handleProgress)

	mux.HandleFunc("POST /api/template/load", a.handleLoadTemplate)
	mux.HandleFunc("POST /api/template/save", a.handleSaveTemplate)
	mux.HandleFunc("POST /api/template/import", a.handleImportTemplate)
	mux.HandleFunc("DELETE /api/template/{id}", a.handleDeleteTemplate)

	mux.HandleFunc("POST /api/course/{id}/toggle", a.handleToggleCourse)
	mux.HandleFunc("POST /api/progress/reset", a.handleResetProgress)
	mux.HandleFunc("POST /api/progress/import", a.handleImportProgress)

	mux.HandleFunc("GET /api/export/template", a.handleExportTemplate)
	mux.HandleFunc("GET /api/export/progress", a.handleExportProgress)
	mux.HandleFunc("GET /api/export/progress.xlsx", a.handleExportWorkbook)

	mux.HandleFunc("GET /ws", a.handleWS)

	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (a *api) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.store.Snapshot())
}

func (a *api) handleRegistry(w http.ResponseWriter, r *http.Request) {
	if a.catalog == nil {
		respondJSON(w, http.StatusOK, []catalog.RegistryEntry{})
		return
	}
	reg, err := a.catalog.Registry(r.Context())
	if err != nil {
		a.logger.Error("registry fetch failed", "error", err)
		respondError(w, http.StatusBadGateway, "failed to load template registry")
		return
	}
	respondJSON(w, http.StatusOK, reg)
}

func (a *api) handleLoadTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := decodeBody(r, &req); err != nil || req.ID == "" {
		respondError(w, http.StatusBadRequest, "template id is required")
		return
	}

	if err := a.store.LoadTemplate(r.Context(), req.ID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("no template with id %q", req.ID))
			return
		}
		respondError(w, http.StatusBadGateway, "failed to load template")
		return
	}
	respondJSON(w, http.StatusOK, a.store.Snapshot())
}

func (a *api) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	tmpl, err := transfer.DecodeTemplate(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The store trusts its callers on this; duplicate titles must be
	// rejected before any mutation happens.
	if err := curriculum.ValidateTemplate(tmpl); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	id, err := a.store.SaveTemplateVersion(tmpl)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (a *api) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	tmpl, err := transfer.DecodeTemplate(body)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.store.ImportTemplate(tmpl); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, a.store.Snapshot())
}

func (a *api) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	a.store.DeleteCustomTemplate(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) handleToggleCourse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term int `json:"term"`
	}
	// An empty body means term 1.
	_ = decodeBody(r, &req)

	a.store.ToggleCourse(r.PathValue("id"), req.Term)
	respondJSON(w, http.StatusOK, a.store.Snapshot())
}

func (a *api) handleResetProgress(w http.ResponseWriter, r *http.Request) {
	a.store.ResetProgress()
	respondJSON(w, http.StatusOK, a.store.Snapshot())
}

func (a *api) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	snap := a.store.Snapshot()
	if snap.Template == nil {
		respondError(w, http.StatusConflict, "no template loaded")
		return
	}

	body, err := readBody(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	p, err := transfer.DecodeProgress(body, snap.Template.ID)
	if err != nil {
		if errors.Is(err, transfer.ErrTemplateMismatch) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	a.store.SetProgress(*p)
	respondJSON(w, http.StatusOK, a.store.Snapshot())
}

// groupView is one group's progress in the derived view.
type groupView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Passed   int    `json:"passed"`
	Required int    `json:"required"`
	Overflow int    `json:"overflow"`
	Percent  int    `json:"percent"`
}

func (a *api) handleProgress(w http.ResponseWriter, r *http.Request) {
	snap := a.store.Snapshot()
	if snap.Template == nil {
		respondError(w, http.StatusConflict, "no template loaded")
		return
	}

	groups := make([]groupView, 0, len(snap.Template.Groups))
	for _, g := range snap.Template.Groups {
		gp := curriculum.ComputeGroupProgress(snap.Template, snap.Progress, g.ID)
		groups = append(groups, groupView{
			ID:       g.ID,
			Title:    g.Title,
			Passed:   gp.Passed,
			Required: gp.Required,
			Overflow: gp.Overflow,
			Percent:  curriculum.CompletionPercent(gp.Passed, gp.Required),
		})
	}

	total := a.store.UnitsCompleted()
	respondJSON(w, http.StatusOK, map[string]any{
		"templateId":         snap.Template.ID,
		"unitsCompleted":     total,
		"totalUnitsRequired": snap.Template.TotalUnitsRequired,
		"completionPercent":  curriculum.CompletionPercent(total, snap.Template.TotalUnitsRequired),
		"unitsByCategory":    a.store.UnitsByCategory(),
		"groups":             groups,
		"availableCourses":   a.store.Available(),
	})
}

func (a *api) handleExportTemplate(w http.ResponseWriter, r *http.Request) {
	snap := a.store.Snapshot()
	if snap.Template == nil {
		respondError(w, http.StatusConflict, "no template loaded")
		return
	}

	data, err := transfer.EncodeTemplate(snap.Template)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode template")
		return
	}
	serveDownload(w, transfer.TemplateFilename(snap.Template), "application/json", data)
}

func (a *api) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	data, err := transfer.EncodeProgress(a.store.Snapshot().Progress)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to encode progress")
		return
	}
	serveDownload(w, transfer.ProgressFilename(a.now()), "application/json", data)
}

func (a *api) handleExportWorkbook(w http.ResponseWriter, r *http.Request) {
	snap := a.store.Snapshot()
	if snap.Template == nil {
		respondError(w, http.StatusConflict, "no template loaded")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", transfer.WorkbookFilename(a.now())))
	if err := transfer.WriteProgressWorkbook(w, snap.Template, snap.Progress); err != nil {
		a.logger.Error("workbook export failed", "error", err)
	}
}

// handleWS streams state snapshots: the current one on connect, then one
// per store mutation until the client goes away.
func (a *api) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	snapshots, cancel := a.store.Subscribe()
	defer cancel()

	if err := wsjson.Write(ctx, conn, a.store.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap, ok := <-snapshots:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			if err := wsjson.Write(ctx, conn, snap); err != nil {
				return
			}
		}
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(io.LimitReader(r.Body, maxImportSize)).Decode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, maxImportSize))
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func serveDownload(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}
