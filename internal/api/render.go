package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"html"
	"html/template"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gyaneshwarpardhi/hooklog/internal/event"
	"github.com/gyaneshwarpardhi/hooklog/internal/projection"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"fmtTime":    fmtTime,
	"prettyJSON": prettyJSON,
	"cell":       cell,
}

var (
	rawPage   = parsePage("templates/raw.html")
	tablePage = parsePage("templates/table.html")
)

func parsePage(page string) *template.Template {
	return template.Must(template.New("").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", page))
}

type pageData struct {
	Title   string
	View    string
	Stats   event.Stats
	Events  []event.Event
	Records []projection.Record
}

// GET /dashboard — every retained event, newest first, payload as indented JSON.
func (h *Handler) rawDashboard(w http.ResponseWriter, r *http.Request) {
	events := h.log.List()
	slices.Reverse(events)
	h.render(w, rawPage, pageData{
		Title:  "Webhook events",
		View:   "raw",
		Stats:  h.log.Stats(),
		Events: events,
	})
}

// GET /dashboard/table — the projected view, newest first.
func (h *Handler) tableDashboard(w http.ResponseWriter, r *http.Request) {
	events := h.log.List()
	slices.Reverse(events)
	h.render(w, tablePage, pageData{
		Title:   "Webhook events (table)",
		View:    "table",
		Stats:   h.log.Stats(),
		Records: projection.ProjectAll(events),
	})
}

func (h *Handler) render(w http.ResponseWriter, t *template.Template, data pageData) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("render dashboard", "view", data.View, "err", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func fmtTime(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return projection.Placeholder
		}
		return t.Format(time.RFC3339)
	}
	return projection.Placeholder
}

func prettyJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// cell greys out placeholder values.
func cell(v string) template.HTML {
	if v == projection.Placeholder {
		return template.HTML(`<span class="na">` + html.EscapeString(v) + `</span>`)
	}
	return template.HTML(html.EscapeString(v))
}
