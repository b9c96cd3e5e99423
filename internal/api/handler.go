package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/hooklog/internal/config"
	"github.com/gyaneshwarpardhi/hooklog/internal/event"
	"github.com/gyaneshwarpardhi/hooklog/internal/projection"
)

// EventLog is the part of the event log the HTTP layer drives.
type EventLog interface {
	Append(payload json.RawMessage) event.Event
	Clear()
	List() []event.Event
	Latest(n int) []event.Event
	Stats() event.Stats
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	log        EventLog
	cfg        func() *config.Config
	persistErr func() error
	mux        *http.ServeMux
}

// New creates an HTTP handler and registers all routes. cfg is consulted per
// request so auth settings follow config reloads; the webhook path is fixed
// at construction. persistErr reports the last storage write error and may be nil.
func New(log EventLog, cfg func() *config.Config, persistErr func() error) http.Handler {
	h := &Handler{log: log, cfg: cfg, persistErr: persistErr, mux: http.NewServeMux()}

	secret := func() string { return h.cfg().Auth.Header }
	webhook := h.cfg().Server.WebhookPath

	h.mux.HandleFunc("POST "+webhook, requireAuth("webhook", secret, h.receiveEvent))

	h.mux.HandleFunc("GET /api/events", h.dashboardAuth(h.listEvents))
	h.mux.HandleFunc("GET /api/events/table", h.dashboardAuth(h.listRecords))
	h.mux.HandleFunc("GET /api/stats", h.dashboardAuth(h.stats))
	h.mux.HandleFunc("DELETE /api/events", h.dashboardAuth(h.clearEvents))

	h.mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
	})
	h.mux.HandleFunc("GET /dashboard", h.dashboardAuth(h.rawDashboard))
	h.mux.HandleFunc("GET /dashboard/table", h.dashboardAuth(h.tableDashboard))
	h.mux.HandleFunc("POST /dashboard/clear", h.dashboardAuth(h.clearFromDashboard))

	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return chain(h.mux, requestID, loggingMiddleware, recoverPanic)
}

// dashboardAuth applies the webhook secret to read/clear routes when
// auth.protect_dashboard is set.
func (h *Handler) dashboardAuth(next http.HandlerFunc) http.HandlerFunc {
	guarded := requireAuth("dashboard", func() string { return h.cfg().Auth.Header }, next)
	return func(w http.ResponseWriter, r *http.Request) {
		if h.cfg().Auth.ProtectDashboard {
			guarded(w, r)
			return
		}
		next(w, r)
	}
}

// POST {webhook_path} — accept one event from the connectivity platform.
func (h *Handler) receiveEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg().Server.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("read body: %s", err))
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	ev := h.log.Append(body)
	slog.Info("event received",
		"received_at", ev.ReceivedAt,
		"event_type", projection.GetPath(ev.Payload, "event_type.description", projection.Placeholder),
		"request_id", r.Header.Get(requestIDHeader),
	)
	writeText(w, http.StatusOK, "OK")
}

// GET /api/events?limit=N — newest N events, oldest first; all when limit is absent.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	n, ok := parseLimit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.log.Latest(n))
}

// GET /api/events/table — the same window, projected.
func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	n, ok := parseLimit(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, projection.ProjectAll(h.log.Latest(n)))
}

// GET /api/stats
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.log.Stats())
}

// DELETE /api/events
func (h *Handler) clearEvents(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()
	writeJSON(w, http.StatusOK, map[string]interface{}{"cleared": true})
}

// POST /dashboard/clear — form action from either dashboard page.
func (h *Handler) clearFromDashboard(w http.ResponseWriter, r *http.Request) {
	h.log.Clear()
	back := "/dashboard"
	if r.FormValue("view") == "table" {
		back = "/dashboard/table"
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — always 200; reports "degraded" while the last snapshot write failed.
// Events are still accepted into memory in that state.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	st := h.log.Stats()
	body := map[string]interface{}{
		"status":   "ready",
		"events":   st.Count,
		"capacity": st.Capacity,
	}
	if h.persistErr != nil {
		if err := h.persistErr(); err != nil {
			body["status"] = "degraded"
			body["persist_error"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit must be a non-negative integer, got %q", raw))
		return 0, false
	}
	return n, true
}
