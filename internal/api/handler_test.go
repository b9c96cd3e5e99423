package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/hooklog/internal/config"
	"github.com/gyaneshwarpardhi/hooklog/internal/event"
	"github.com/gyaneshwarpardhi/hooklog/internal/eventlog"
	"github.com/gyaneshwarpardhi/hooklog/internal/projection"
	"github.com/gyaneshwarpardhi/hooklog/internal/store"
)

const secret = "Basic aW90OnNlY3JldA=="

type testServer struct {
	handler    http.Handler
	log        *eventlog.Log
	cfg        atomic.Pointer[config.Config]
	persistErr error
}

func newTestServer(t *testing.T, capacity int) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.cfg.Store(&config.Config{
		Server: config.ServerConf{WebhookPath: "/myapp", MaxBodyBytes: 1024},
		Auth:   config.AuthConf{Header: secret},
	})

	fs := store.NewFileStore(filepath.Join(t.TempDir(), "events.json"))
	ts.log = eventlog.Open(fs, store.NewPersister(fs), capacity)
	t.Cleanup(ts.log.Close)

	ts.handler = New(ts.log, ts.cfg.Load, func() error { return ts.persistErr })
	return ts
}

func (ts *testServer) do(method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) post(body string) *httptest.ResponseRecorder {
	return ts.do(http.MethodPost, "/myapp", body, map[string]string{"Authorization": secret})
}

func TestWebhook_RequiresAuthorization(t *testing.T) {
	ts := newTestServer(t, 10)

	cases := map[string]map[string]string{
		"missing": nil,
		"wrong":   {"Authorization": "Basic nope"},
		"prefix":  {"Authorization": secret[:10]},
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/myapp", `{"n":1}`, header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Unauthorized")
		})
	}
	assert.Empty(t, ts.log.List())
}

func TestWebhook_AppendsEvent(t *testing.T) {
	ts := newTestServer(t, 10)

	rec := ts.post(`{"event_type":{"description":"Data usage"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	events := ts.log.List()
	require.Len(t, events, 1)
	assert.JSONEq(t, `{"event_type":{"description":"Data usage"}}`, string(events[0].Payload))
}

func TestWebhook_EchoesRequestID(t *testing.T) {
	ts := newTestServer(t, 10)
	rec := ts.do(http.MethodPost, "/myapp", `{}`, map[string]string{"Authorization": secret, "X-Request-ID": "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestWebhook_BodyHandling(t *testing.T) {
	ts := newTestServer(t, 10)

	rec := ts.post(``)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, string(ts.log.List()[0].Payload), "empty body is an empty object")

	rec = ts.post(`{"broken":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.post(`{"pad":"` + strings.Repeat("x", 2048) + `"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	assert.Len(t, ts.log.List(), 1)
}

func TestWebhook_WrongMethod(t *testing.T) {
	ts := newTestServer(t, 10)
	rec := ts.do(http.MethodGet, "/myapp", "", map[string]string{"Authorization": secret})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWebhook_AuthFollowsConfigReload(t *testing.T) {
	ts := newTestServer(t, 10)
	cfg := *ts.cfg.Load()
	cfg.Auth.Header = "rotated"
	ts.cfg.Store(&cfg)

	assert.Equal(t, http.StatusUnauthorized, ts.post(`{}`).Code)
	rec := ts.do(http.MethodPost, "/myapp", `{}`, map[string]string{"Authorization": "rotated"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_ListEventsAndLimit(t *testing.T) {
	ts := newTestServer(t, 3)
	for _, body := range []string{`{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`} {
		require.Equal(t, http.StatusOK, ts.post(body).Code)
	}

	rec := ts.do(http.MethodGet, "/api/events", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []event.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 3)
	assert.JSONEq(t, `{"n":2}`, string(all[0].Payload))
	assert.JSONEq(t, `{"n":4}`, string(all[2].Payload))

	rec = ts.do(http.MethodGet, "/api/events?limit=1", "", nil)
	var latest []event.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	require.Len(t, latest, 1)
	assert.JSONEq(t, `{"n":4}`, string(latest[0].Payload))

	rec = ts.do(http.MethodGet, "/api/events?limit=-2", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Table(t *testing.T) {
	ts := newTestServer(t, 5)
	ts.post(`{"endpoint":{"name":"truck-7"}}`)

	rec := ts.do(http.MethodGet, "/api/events/table", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var records []projection.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "truck-7", records[0].EndpointName)
	assert.Equal(t, projection.Placeholder, records[0].Country)
}

func TestAPI_StatsAndClear(t *testing.T) {
	ts := newTestServer(t, 5)

	rec := ts.do(http.MethodGet, "/api/stats", "", nil)
	assert.JSONEq(t, `{"count":0,"capacity":5,"oldestTimestamp":null,"newestTimestamp":null}`, rec.Body.String())

	ts.post(`{"n":1}`)
	ts.post(`{"n":2}`)
	rec = ts.do(http.MethodGet, "/api/stats", "", nil)
	var st event.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 2, st.Count)
	require.NotNil(t, st.Oldest)
	require.NotNil(t, st.Newest)
	assert.False(t, st.Newest.Before(*st.Oldest))

	rec = ts.do(http.MethodDelete, "/api/events", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ts.log.List())

	rec = ts.do(http.MethodDelete, "/api/events", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ts.log.List())
}

func TestDashboard_Raw(t *testing.T) {
	ts := newTestServer(t, 5)

	rec := ts.do(http.MethodGet, "/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No events received yet.")

	ts.post(`{"first":true}`)
	ts.post(`{"second":"<script>alert(1)</script>"}`)
	rec = ts.do(http.MethodGet, "/dashboard", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "2 / 5 events retained")
	assert.NotContains(t, body, "<script>alert(1)</script>", "payload must be escaped")
	assert.Less(t, strings.Index(body, "second"), strings.Index(body, "first"), "newest event first")
}

func TestDashboard_Table(t *testing.T) {
	ts := newTestServer(t, 5)
	ts.post(`{"organisation":{"name":"Acme Fleet"}}`)
	ts.post(`not-json-is-rejected`)

	rec := ts.do(http.MethodGet, "/dashboard/table", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Acme Fleet")
	assert.Contains(t, body, `<span class="na">not available</span>`)
}

func TestDashboard_ClearRedirects(t *testing.T) {
	ts := newTestServer(t, 5)
	ts.post(`{}`)

	rec := ts.do(http.MethodPost, "/dashboard/clear", "view=table", map[string]string{"Content-Type": "application/x-www-form-urlencoded"})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/dashboard/table", rec.Header().Get("Location"))
	assert.Empty(t, ts.log.List())

	rec = ts.do(http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/dashboard", rec.Header().Get("Location"))
}

func TestDashboard_ProtectedWhenConfigured(t *testing.T) {
	ts := newTestServer(t, 5)
	cfg := *ts.cfg.Load()
	cfg.Auth.ProtectDashboard = true
	ts.cfg.Store(&cfg)

	for _, path := range []string{"/dashboard", "/dashboard/table", "/api/events", "/api/stats"} {
		assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, path, "", nil).Code, path)
		assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, path, "", map[string]string{"Authorization": secret}).Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, ts.do(http.MethodDelete, "/api/events", "", nil).Code)

	// Probes stay open.
	assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestProbes(t *testing.T) {
	ts := newTestServer(t, 5)

	rec := ts.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ready"`)

	ts.persistErr = errors.New("no space left on device")
	rec = ts.do(http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), "no space left on device")

	rec = ts.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hooklog_events_received_total")
}
