package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SmitUplenchwar2687/Beacon/internal/clock"
	"github.com/SmitUplenchwar2687/Beacon/internal/recorder"
	"github.com/SmitUplenchwar2687/Beacon/internal/session"
	"github.com/SmitUplenchwar2687/Beacon/internal/sink"
	"github.com/SmitUplenchwar2687/Beacon/internal/telemetry"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *Server
	http    *httptest.Server
	clock   *clock.VirtualClock
	uploads *sink.Memory
	rec     *recorder.Recorder
}

func newTestEnv(t *testing.T, mutate func(*Options), monitorOpts ...telemetry.Option) *testEnv {
	t.Helper()
	vc := clock.NewVirtualClock(epoch)
	uploads := sink.NewMemory(vc, 0)
	rec := recorder.New(nil)

	opts := Options{
		Clock:    vc,
		Sessions: session.NewRegistry(vc, nil, append([]telemetry.Option{telemetry.WithUploader(uploads)}, monitorOpts...)...),
		Recorder: rec,
		Uploads:  uploads,
	}
	if mutate != nil {
		mutate(&opts)
	}

	srv := New(opts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return &testEnv{srv: srv, http: ts, clock: vc, uploads: uploads, rec: rec}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.http.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) createSession(t *testing.T, user telemetry.UserInfo) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/api/sessions", user)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var info sessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	require.NotEmpty(t, info.ID)
	return info.ID
}

func (e *testEnv) report(t *testing.T, id string) telemetry.Report {
	t.Helper()
	resp := e.do(t, http.MethodGet, "/api/sessions/"+id+"/report", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var r telemetry.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&r))
	return r
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, epoch.Format(time.RFC3339), body["time"])
}

func TestServer_Dashboard(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
}

func TestServer_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/nonexistent", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
}

func TestServer_CreateSessionCapturesUser(t *testing.T) {
	env := newTestEnv(t, nil)
	user := telemetry.UserInfo{Screen: 390, Height: 844, Platform: "iPhone", UserAgent: "Safari", Language: "fr-FR"}

	id := env.createSession(t, user)

	assert.Equal(t, user, env.report(t, id).User)
	resp := env.do(t, http.MethodGet, "/api/sessions", nil)
	var list []sessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)
}

func TestServer_UnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodGet, "/api/sessions/missing/report", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_ResourceErrorEvent(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})

	resp := env.do(t, http.MethodPost, "/api/sessions/"+id+"/events", map[string]any{
		"type":   "error",
		"target": map[string]string{"local_name": "img", "src": "https://cdn.example.com/x.png"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	errs := env.report(t, id).Errors
	require.Len(t, errs, 1)
	assert.Equal(t, "img", errs[0].Type)
	assert.Equal(t, "https://cdn.example.com/x.png", errs[0].URL)
	assert.Contains(t, errs[0].Msg, "https://cdn.example.com/x.png")
}

func TestServer_ScriptAndRejectionEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})
	path := "/api/sessions/" + id + "/events"

	env.do(t, http.MethodPost, path, map[string]any{"type": "error", "message": "boom", "filename": "app.js", "line": 3, "column": 9})
	env.do(t, http.MethodPost, path, map[string]any{"type": "rejection", "reason": map[string]string{"message": "denied"}})

	errs := env.report(t, id).Errors
	require.Len(t, errs, 2)
	assert.Equal(t, telemetry.KindScript, errs[0].Kind)
	assert.Equal(t, 3, errs[0].Row)
	assert.Equal(t, 9, errs[0].Col)
	assert.Equal(t, telemetry.KindPromise, errs[1].Kind)
	assert.Equal(t, "denied", errs[1].Msg)
}

func TestServer_BadEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})
	path := "/api/sessions/" + id + "/events"

	resp := env.do(t, http.MethodPost, path, map[string]any{"type": "scroll"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodPost, env.http.URL+path, strings.NewReader("{not json"))
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestServer_AddAndClearErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})
	env.clock.Advance(3 * time.Second)

	resp := env.do(t, http.MethodPost, "/api/sessions/"+id+"/errors",
		telemetry.ErrorFields{Type: "script", Msg: "x", URL: "a.js", Row: 1, Col: 2})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	errs := env.report(t, id).Errors
	require.Len(t, errs, 1)
	assert.Equal(t, "x", errs[0].Msg)
	assert.True(t, errs[0].Time.Equal(epoch.Add(3*time.Second)))

	resp = env.do(t, http.MethodDelete, "/api/sessions/"+id+"/errors", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Empty(t, env.report(t, id).Errors)
}

func TestServer_TimingLoadAndReset(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})

	resp := env.do(t, http.MethodPost, "/api/sessions/"+id+"/timing", recorder.TimingPayload{
		Navigation: &telemetry.NavigationTiming{NavigationStart: 1000, DOMLoading: 1100, DOMComplete: 1500, LoadEventEnd: 1600},
		Resources:  []telemetry.ResourceEntry{{Name: "a.js", InitiatorType: "script", Duration: 7.891}},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	env.do(t, http.MethodPost, "/api/sessions/"+id+"/events", map[string]string{"type": "load"})
	assert.Nil(t, env.report(t, id).Performance, "snapshot is deferred")

	env.clock.Advance(0)
	r := env.report(t, id)
	require.NotNil(t, r.Performance)
	assert.Equal(t, int64(100), r.Performance.WhiteScreen)
	assert.Equal(t, int64(600), r.Performance.Load)
	require.Len(t, r.Resources.Script, 1)
	assert.Equal(t, 7.89, r.Resources.Script[0].Duration)

	env.do(t, http.MethodPost, "/api/sessions/"+id+"/reset", nil)
	assert.Zero(t, env.report(t, id).Resources.Len())
}

func TestServer_EmptyTiming(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})

	resp := env.do(t, http.MethodPost, "/api/sessions/"+id+"/timing", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_SetURLAndUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{Platform: "Linux"})

	resp := env.do(t, http.MethodPut, "/api/sessions/"+id+"/url", recorder.URLPayload{URL: "https://c.example.com/r"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "https://c.example.com/r", env.report(t, id).URL)

	env.do(t, http.MethodPost, "/api/sessions/"+id+"/errors", telemetry.ErrorFields{Msg: "x"})
	resp = env.do(t, http.MethodPost, "/api/sessions/"+id+"/upload", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	uploads := env.uploads.Uploads("https://c.example.com/r")
	require.Len(t, uploads, 1)
	assert.Len(t, uploads[0].Report.Errors, 1)

	resp = env.do(t, http.MethodGet, "/api/uploads", nil)
	var all []sink.Upload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&all))
	assert.Len(t, all, 1)
}

type brokenUploader struct{}

func (brokenUploader) Upload(context.Context, string, telemetry.Report) error {
	return errors.New("collector down")
}

func TestServer_UploadFailure(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.Sessions = session.NewRegistry(o.Clock, nil, telemetry.WithUploader(brokenUploader{}))
	})
	id := env.createSession(t, telemetry.UserInfo{})

	resp := env.do(t, http.MethodPost, "/api/sessions/"+id+"/upload", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestServer_DeleteSession(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})

	resp := env.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/report", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RecordsSessionEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{Platform: "Win32"})
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/events", map[string]any{"type": "rejection", "reason": "x"})
	env.do(t, http.MethodPost, "/api/sessions/"+id+"/reset", nil)

	records := env.rec.Records()
	require.Len(t, records, 3)
	assert.Equal(t, []recorder.Kind{recorder.KindSession, recorder.KindRejection, recorder.KindReset},
		[]recorder.Kind{records[0].Kind, records[1].Kind, records[2].Kind})
	for _, r := range records {
		assert.Equal(t, id, r.Session)
	}

	var user telemetry.UserInfo
	require.NoError(t, records[0].Decode(&user))
	assert.Equal(t, "Win32", user.Platform)
}

func TestServer_Admission(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.RateLimit = 1
		o.Burst = 2
	})

	for i := 0; i < 2; i++ {
		resp := env.do(t, http.MethodGet, "/api/sessions", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, "request %d within burst", i+1)
	}

	resp := env.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	resp = env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is not rate limited")

	env.clock.Advance(time.Second)
	resp = env.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "bucket refills on the injected clock")
}

func TestAdmission_PerClient(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	a := NewAdmission(1, 1, vc)

	ok, _ := a.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, retry := a.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, 1, retry)
	ok, _ = a.Allow("10.0.0.2")
	assert.True(t, ok, "clients have separate buckets")
	assert.Equal(t, 2, a.Len())

	unlimited := NewAdmission(0, 0, vc)
	for i := 0; i < 100; i++ {
		ok, _ := unlimited.Allow("x")
		require.True(t, ok)
	}
}

func TestServer_EvictsIdleSessions(t *testing.T) {
	env := newTestEnv(t, func(o *Options) {
		o.IdleTimeout = 10 * time.Minute
		o.RateLimit = 100
		o.Burst = 10
	})
	stale := env.createSession(t, telemetry.UserInfo{})
	busy := env.createSession(t, telemetry.UserInfo{})

	env.clock.Advance(6 * time.Minute)
	env.report(t, busy)
	env.clock.Advance(4 * time.Minute)

	resp := env.do(t, http.MethodGet, "/api/sessions/"+stale+"/report", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	env.report(t, busy)

	env.srv.mu.Lock()
	_, watched := env.srv.watchers[stale]
	env.srv.mu.Unlock()
	assert.False(t, watched, "evicted session is no longer streamed")

	env.clock.Advance(20 * time.Minute)
	assert.Zero(t, env.srv.sessions.Len())
	assert.Zero(t, env.srv.admission.Len(), "idle clients are forgotten")
}

func TestServer_ShutdownStopsJanitor(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	srv := New(Options{Clock: vc, IdleTimeout: time.Minute})
	assert.Equal(t, 1, vc.Pending())

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.Zero(t, vc.Pending())
	vc.Advance(time.Hour)
	assert.Zero(t, vc.Pending())
}

func TestAdmission_Sweep(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	a := NewAdmission(1, 1, vc)

	a.Allow("10.0.0.1")
	vc.Advance(time.Minute)
	a.Allow("10.0.0.2")

	assert.Equal(t, 1, a.Sweep(time.Minute))
	assert.Equal(t, 1, a.Len())
	assert.Zero(t, a.Sweep(0))

	ok, _ := a.Allow("10.0.0.1")
	assert.True(t, ok, "a swept client starts with a full bucket")
}

func TestServer_WebSocketStream(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})

	u, _ := url.Parse(env.http.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return env.srv.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	env.do(t, http.MethodPost, "/api/sessions/"+id+"/errors", telemetry.ErrorFields{Msg: "streamed"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second Frame
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))

	assert.Equal(t, FrameError, first.Type)
	assert.Equal(t, id, first.Session)
	require.NotNil(t, first.Error)
	assert.Equal(t, "streamed", first.Error.Msg)

	assert.Equal(t, FrameReport, second.Type)
	require.NotNil(t, second.Report)
	assert.Len(t, second.Report.Errors, 1)
}

func TestServer_SnapshotsAreThrottled(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.createSession(t, telemetry.UserInfo{})

	u, _ := url.Parse(env.http.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return env.srv.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	for i := 0; i < 5; i++ {
		env.do(t, http.MethodPost, "/api/sessions/"+id+"/errors", telemetry.ErrorFields{Msg: "burst"})
	}
	// Trailing snapshot once the one second window closes.
	env.clock.Advance(time.Second)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reports, errs int
	var last Frame
	for reports+errs < 7 {
		var f Frame
		require.NoError(t, conn.ReadJSON(&f))
		switch f.Type {
		case FrameError:
			errs++
		case FrameReport:
			reports++
			last = f
		}
	}
	assert.Equal(t, 5, errs)
	assert.Equal(t, 2, reports, "one leading and one trailing snapshot")
	assert.Len(t, last.Report.Errors, 5)
}
