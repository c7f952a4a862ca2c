package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metorial/minidash/internal/config"
	"github.com/metorial/minidash/internal/glances"
	"github.com/metorial/minidash/internal/models"
	"github.com/metorial/minidash/internal/openclaw"
	"github.com/metorial/minidash/internal/store"
	"github.com/metorial/minidash/internal/store/storetest"
)

type fakeCLI struct {
	mu        sync.Mutex
	probe     openclaw.Probe
	report    *openclaw.StatusReport
	statusErr error
	jobs      []models.CronJob
	cronErr   error
}

func (f *fakeCLI) Probe(ctx context.Context) openclaw.Probe {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probe
}

func (f *fakeCLI) Status(ctx context.Context) (*openclaw.StatusReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.probe.Installed {
		return nil, openclaw.ErrNotInstalled
	}
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.report, nil
}

func (f *fakeCLI) CronJobs(ctx context.Context) ([]models.CronJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.probe.Installed {
		return nil, openclaw.ErrNotInstalled
	}
	return f.jobs, f.cronErr
}

func (f *fakeCLI) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusErr = err
}

type fakeLister struct {
	conns []models.Connection
	err   error
}

func (f *fakeLister) List(ctx context.Context) ([]models.Connection, error) {
	return f.conns, f.err
}

type testEnv struct {
	api     *API
	seed    *storetest.Seeder
	cli     *fakeCLI
	lister  *fakeLister
	glances *httptest.Server
	now     time.Time
}

func notInstalled() *fakeCLI {
	return &fakeCLI{}
}

func installed(report *openclaw.StatusReport) *fakeCLI {
	return &fakeCLI{
		probe:  openclaw.Probe{Installed: true, Path: "/usr/local/bin/openclaw", Version: "2026.1.0"},
		report: report,
	}
}

// newTestEnv wires the API to a temporary history database, a fake Glances
// agent and fake CLI and connection sources.
func newTestEnv(t *testing.T, seed *storetest.Seeder, cli *fakeCLI, glancesHandler http.HandlerFunc, opts ...Option) *testEnv {
	t.Helper()

	if glancesHandler == nil {
		glancesHandler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}
	upstream := httptest.NewServer(glancesHandler)
	t.Cleanup(upstream.Close)

	db, err := store.Open(seed.Path, 5*time.Second)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	now := time.Now()
	lister := &fakeLister{}
	opts = append([]Option{WithClock(func() time.Time { return now }), WithHealthTimeout(time.Second)}, opts...)

	a := New(Deps{
		Store:       db,
		Glances:     glances.New(upstream.URL, time.Second),
		OpenClaw:    cli,
		Connections: lister,
		TTL:         config.Default().Cache,
	}, opts...)

	return &testEnv{api: a, seed: seed, cli: cli, lister: lister, glances: upstream, now: now}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.api.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return response
}

func sampleReport() *openclaw.StatusReport {
	count := 4
	return &openclaw.StatusReport{Sessions: openclaw.SessionSummary{
		Count: &count,
		Recent: []openclaw.SessionInfo{
			{Key: "agent:main:main", Model: "claude-sonnet-4-5", TotalTokens: 800, ContextTokens: 4000},
			{Key: "agent:cron:digest", Model: "gpt-4o", TotalTokens: 200},
		},
	}}
}

func TestHandleStatusLive(t *testing.T) {
	seed := storetest.New(t)
	env := newTestEnv(t, seed, installed(sampleReport()), nil)
	seed.Usage(env.now.Unix()-3600, 2, 1000)
	seed.Usage(env.now.Unix()-60, 4, 4500)

	w := env.get(t, "/api/openclaw")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Unexpected content type %q", ct)
	}

	response := decode(t, w)
	if response["installed"] != true || response["status"] != "running" {
		t.Errorf("Expected installed and running, got %v", response)
	}
	if response["sessions"] != 4.0 {
		t.Errorf("Expected 4 sessions, got %v", response["sessions"])
	}
	if response["tokens"] != 1000.0 {
		t.Errorf("Expected 1000 tokens, got %v", response["tokens"])
	}
	if response["tokens24h"] != 3500.0 {
		t.Errorf("Expected 3500 tokens in 24h, got %v", response["tokens24h"])
	}
	if response["model"] != "claude-sonnet-4-5" {
		t.Errorf("Expected main session model, got %v", response["model"])
	}
	if response["contextUsed"] != 20.0 {
		t.Errorf("Expected 20%% context used, got %v", response["contextUsed"])
	}
	if response["source"] != "live" {
		t.Errorf("Expected live source, got %v", response["source"])
	}
}

func TestHandleStatusServesLastKnownSnapshot(t *testing.T) {
	cli := installed(sampleReport())
	env := newTestEnv(t, storetest.New(t), cli, nil)

	if w := env.get(t, "/api/openclaw"); w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	cli.fail(errors.New("gateway timeout"))
	env.api.cache.Invalidate("openclaw:status")

	response := decode(t, env.get(t, "/api/openclaw"))
	if response["status"] != "down" || response["cached"] != true {
		t.Errorf("Expected cached down status, got %v", response)
	}
	if response["tokens"] != 1000.0 {
		t.Errorf("Expected last known tokens, got %v", response["tokens"])
	}
}

func TestHandleStatusFallsBackToHistory(t *testing.T) {
	seed := storetest.New(t)
	cli := installed(nil)
	cli.statusErr = errors.New("exit status 1")
	env := newTestEnv(t, seed, cli, nil)
	seed.Usage(env.now.Unix()-600, 3, 7000)

	response := decode(t, env.get(t, "/api/openclaw"))
	if response["source"] != "history" {
		t.Fatalf("Expected history source, got %v", response)
	}
	if response["sessions"] != 3.0 || response["tokens"] != 7000.0 {
		t.Errorf("Expected values from the latest sample, got %v", response)
	}
	if response["installed"] != true {
		t.Errorf("Expected installed from probe, got %v", response["installed"])
	}
}

func TestHandleStatusUnknown(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)

	response := decode(t, env.get(t, "/openclaw"))
	if response["installed"] != false || response["status"] != "unknown" {
		t.Errorf("Expected not installed and unknown, got %v", response)
	}
}

func TestHandleTokens24hCounterReset(t *testing.T) {
	seed := storetest.New(t)
	env := newTestEnv(t, seed, notInstalled(), nil)
	now := env.now.Unix()
	seed.Usage(now-7200, 1, 90000)
	seed.Usage(now-3600, 1, 200)
	seed.Usage(now-60, 1, 1200)
	seed.Usage(now-2*86400, 1, 5)

	response := decode(t, env.get(t, "/api/openclaw/history"))
	if response["tokens24h"] != 0.0 {
		t.Errorf("Expected reset to clamp to 0, got %v", response["tokens24h"])
	}
	if response["samples"] != 3.0 {
		t.Errorf("Expected 3 samples in window, got %v", response["samples"])
	}
	if history, ok := response["history"].([]interface{}); !ok || len(history) != 3 {
		t.Errorf("Expected 3 history entries, got %v", response["history"])
	}
}

func TestHandleTokens24hEmpty(t *testing.T) {
	env := newTestEnv(t, storetest.Empty(t), notInstalled(), nil)

	w := env.get(t, "/api/openclaw/history")
	if body := strings.TrimSpace(w.Body.String()); body != `{"tokens24h":0,"samples":0}` {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestHandleHistoryBogusRangeMatchesHour(t *testing.T) {
	seed := storetest.New(t)
	env := newTestEnv(t, seed, notInstalled(), nil)
	now := env.now.Unix()
	seed.Metric(now-7200, 5, 30, 40)
	seed.Metric(now-1800, 10, 31, 40)
	seed.Metric(now-60, 20, 32, 40)

	hour := env.get(t, "/api/history?range=1h").Body.String()
	bogus := env.get(t, "/api/history?range=bogus").Body.String()
	missing := env.get(t, "/history").Body.String()

	if hour != bogus || hour != missing {
		t.Errorf("Expected identical bodies:\n1h:    %s\nbogus: %s\nnone:  %s", hour, bogus, missing)
	}

	var response History
	if err := json.Unmarshal([]byte(hour), &response); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if response.Range != "1h" || response.Count != 2 {
		t.Errorf("Expected 2 rows for 1h, got %+v", response)
	}
}

func TestHandleHistoryDownsamplesLongRanges(t *testing.T) {
	seed := storetest.New(t)
	env := newTestEnv(t, seed, notInstalled(), nil)
	base := env.now.Unix() - 86400
	base -= base % 600
	for i := int64(0); i < 10; i++ {
		seed.Metric(base+i*60, float64(i), 50, 40)
	}

	response := decode(t, env.get(t, "/api/history?range=7d"))
	if response["count"] != 1.0 {
		t.Fatalf("Expected one 10 minute bucket, got %v", response["count"])
	}
	if response["bucketSeconds"] != 600.0 {
		t.Errorf("Expected 600s buckets, got %v", response["bucketSeconds"])
	}
	row := response["metrics"].([]interface{})[0].(map[string]interface{})
	if row["cpu"] != 4.5 {
		t.Errorf("Expected averaged cpu 4.5, got %v", row["cpu"])
	}
}

func TestHandleHistoryStoreFailure(t *testing.T) {
	env := newTestEnv(t, storetest.Empty(t), notInstalled(), nil)

	w := env.get(t, "/api/history?range=24h")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if body := strings.TrimSpace(w.Body.String()); body != `{"range":"24h","count":0,"metrics":[]}` {
		t.Errorf("Unexpected body %s", body)
	}
}

func TestHandleCron(t *testing.T) {
	next := int64(1700000000000)
	cli := installed(nil)
	cli.jobs = []models.CronJob{{ID: "j1", Name: "Digest", Enabled: true, Schedule: "0 7 * * *", NextRun: &next}}
	env := newTestEnv(t, storetest.New(t), cli, nil)

	response := decode(t, env.get(t, "/api/cron"))
	jobs := response["jobs"].([]interface{})
	if len(jobs) != 1 {
		t.Fatalf("Expected 1 job, got %d", len(jobs))
	}
	job := jobs[0].(map[string]interface{})
	if job["name"] != "Digest" || job["nextRun"] != 1700000000000.0 || job["lastRun"] != nil {
		t.Errorf("Unexpected job %v", job)
	}
}

func TestHandleCronUnavailable(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)

	if body := strings.TrimSpace(env.get(t, "/cron").Body.String()); body != `{"jobs":[]}` {
		t.Errorf("Expected empty jobs, got %s", body)
	}
}

func TestHandleTokensBreakdown(t *testing.T) {
	count := 1
	report := &openclaw.StatusReport{Sessions: openclaw.SessionSummary{
		Count:  &count,
		Recent: []openclaw.SessionInfo{{Key: "agent:main:main", Model: "claude-opus-4-1", TotalTokens: 1000}},
	}}
	env := newTestEnv(t, storetest.New(t), installed(report), nil)

	response := decode(t, env.get(t, "/api/tokens"))
	if response["input"] != 250.0 || response["output"] != 750.0 || response["total"] != 1000.0 {
		t.Errorf("Expected 250/750 split, got %v", response)
	}
	if response["pricingModel"] != "claude-opus-4" || response["estimated"] != true {
		t.Errorf("Unexpected pricing %v", response)
	}
	cost := response["cost"].(map[string]interface{})
	if cost["currency"] != "USD" || cost["total"] != 0.06 {
		t.Errorf("Unexpected cost %v", cost)
	}
}

func TestHandleTokensNotInstalled(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)

	response := decode(t, env.get(t, "/tokens"))
	if response["total"] != 0.0 || response["estimateLabel"] != "OpenClaw not installed" {
		t.Errorf("Expected zeroed breakdown, got %v", response)
	}
}

func TestHandleConnections(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)
	env.lister.conns = []models.Connection{{Process: "node", Host: "1.2.3.4", Port: 443}}

	response := decode(t, env.get(t, "/api/connections"))
	conns := response["connections"].([]interface{})
	if len(conns) != 1 || conns[0].(map[string]interface{})["host"] != "1.2.3.4" {
		t.Errorf("Unexpected connections %v", conns)
	}
}

func TestHandleConnectionsFailure(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)
	env.lister.err = errors.New("lsof: permission denied")

	if body := strings.TrimSpace(env.get(t, "/connections").Body.String()); body != `{"connections":[]}` {
		t.Errorf("Expected empty connections, got %s", body)
	}
}

func processListHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/processlist" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func TestHandleProcessesFlagsAnomalies(t *testing.T) {
	seed := storetest.New(t)
	env := newTestEnv(t, seed, notInstalled(), processListHandler(`[
		{"pid": 10, "name": "node", "cpu_percent": 10, "memory_info": {"rss": 104857600}},
		{"pid": 11, "name": "postgres", "cpu_percent": 10, "memory_info": {"rss": 104857600}}
	]`))
	now := env.now.Unix()
	for i := int64(1); i <= 6; i++ {
		seed.Process(now-i*300, "node", 4, 100)
		seed.Process(now-i*300, "postgres", 6, 100)
	}

	response := decode(t, env.get(t, "/api/processes"))
	if response["hasHistory"] != true {
		t.Error("Expected hasHistory")
	}

	procs := response["processes"].([]interface{})
	if len(procs) != 2 {
		t.Fatalf("Expected 2 processes, got %d", len(procs))
	}
	anomalies := map[string]interface{}{}
	for _, p := range procs {
		m := p.(map[string]interface{})
		anomalies[m["name"].(string)] = m["anomaly"]
	}
	if anomalies["node"] != "cpu_high" {
		t.Errorf("Expected node cpu_high, got %v", anomalies["node"])
	}
	if anomalies["postgres"] != nil {
		t.Errorf("Expected postgres null anomaly, got %v", anomalies["postgres"])
	}
	if flagged := response["anomalies"].([]interface{}); len(flagged) != 1 {
		t.Errorf("Expected 1 anomaly, got %d", len(flagged))
	}
}

func TestHandleProcessesWithoutGlances(t *testing.T) {
	seed := storetest.New(t)
	env := newTestEnv(t, seed, notInstalled(), nil)
	seed.Process(env.now.Unix()-60, "node", 4, 100)

	w := env.get(t, "/processes")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	response := decode(t, w)
	procs := response["processes"].([]interface{})
	if len(procs) != 1 || procs[0].(map[string]interface{})["historical"] != true {
		t.Errorf("Expected historical listing, got %v", procs)
	}
}

func TestHandleHealthUninitializedDatabase(t *testing.T) {
	env := newTestEnv(t, storetest.Empty(t), notInstalled(), func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hostname": "mini"}`))
	})

	response := decode(t, env.get(t, "/api/health"))
	if response["status"] != "ok" {
		t.Errorf("Expected ok, got %v", response["status"])
	}

	checks := response["checks"].(map[string]interface{})
	database := checks["database"].(map[string]interface{})
	if database["ok"] != true || database["initialized"] != false {
		t.Errorf("Expected ok uninitialized database, got %v", database)
	}
	openclawCheck := checks["openclaw"].(map[string]interface{})
	if openclawCheck["ok"] != true || openclawCheck["installed"] != false {
		t.Errorf("Expected optional openclaw to be ok, got %v", openclawCheck)
	}
	if checks["api"].(map[string]interface{})["ok"] != true {
		t.Error("Expected api ok")
	}
}

func TestHandleHealthDegraded(t *testing.T) {
	cli := installed(nil)
	cli.statusErr = errors.New("gateway closed")
	env := newTestEnv(t, storetest.New(t), cli, nil)

	response := decode(t, env.get(t, "/health"))
	if response["status"] != "degraded" {
		t.Errorf("Expected degraded, got %v", response["status"])
	}
	checks := response["checks"].(map[string]interface{})
	if checks["glances"].(map[string]interface{})["ok"] != false {
		t.Error("Expected glances check to fail")
	}
	if checks["openclaw"].(map[string]interface{})["error"] != "gateway closed" {
		t.Errorf("Expected openclaw error, got %v", checks["openclaw"])
	}
}

func TestGlancesProxy(t *testing.T) {
	var upstreamCalls atomic.Int32
	env := newTestEnv(t, storetest.New(t), notInstalled(), func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
		if r.URL.Path != "/cpu" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"total":12.5,"user":8.1}`))
	})

	w := env.get(t, "/api/glances/cpu")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Body.String() != `{"total":12.5,"user":8.1}` {
		t.Errorf("Expected verbatim upstream body, got %s", w.Body.String())
	}
	if w.Header().Get("Content-Type") != "application/json; charset=utf-8" {
		t.Errorf("Expected upstream content type, got %s", w.Header().Get("Content-Type"))
	}

	if w := env.get(t, "/glances/cpu"); w.Code != http.StatusOK {
		t.Errorf("Expected bare alias to work, got %d", w.Code)
	}
	if upstreamCalls.Load() != 1 {
		t.Errorf("Expected cached second request, got %d upstream calls", upstreamCalls.Load())
	}

	for _, path := range []string{"/api/glances/foo", "/api/glances/", "/api/glances/cpu/extra"} {
		w := env.get(t, path)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
	}
	if upstreamCalls.Load() != 1 {
		t.Errorf("Unknown endpoints must not reach upstream, got %d calls", upstreamCalls.Load())
	}
}

func TestGlancesProxyUpstreamDown(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)

	w := env.get(t, "/api/glances/mem")
	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", w.Code)
	}
	if decode(t, w)["error"] != "Glances unavailable" {
		t.Error("Expected Glances unavailable error")
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)

	tests := []struct {
		origin string
		host   string
		allow  bool
	}{
		{"http://evil.example", "localhost:8888", false},
		{"http://localhost:3000", "192.168.1.5:8888", true},
		{"http://127.0.0.1:5173", "mini.local:8888", true},
		{"http://[::1]:8080", "mini.local:8888", true},
		{"http://mini.local:8888", "mini.local:8888", true},
		{"http://MINI.local", "mini.local:8888", true},
		{"http://mini.local.evil.example", "mini.local:8888", false},
		{"null", "localhost:8888", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/quote", nil)
		req.Host = tt.host
		req.Header.Set("Origin", tt.origin)
		w := httptest.NewRecorder()
		env.api.Handler().ServeHTTP(w, req)

		got := w.Header().Get("Access-Control-Allow-Origin")
		if tt.allow && got != tt.origin {
			t.Errorf("Origin %s on %s: expected allowed, got %q", tt.origin, tt.host, got)
		}
		if !tt.allow && got != "" {
			t.Errorf("Origin %s on %s: expected no CORS header, got %q", tt.origin, tt.host, got)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)

	for _, path := range []string{"/api/health", "/nowhere"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		env.api.Handler().ServeHTTP(w, req)

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected status 405, got %d", path, w.Code)
		}
		if decode(t, w)["error"] != "Method not allowed" {
			t.Errorf("%s: unexpected error envelope", path)
		}
	}
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)

	for _, path := range []string{"/", "/api", "/api/", "/api/nope", "/apicron", "/api/cron/", "/api/api/cron"} {
		w := env.get(t, path)
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected status 404, got %d", path, w.Code)
			continue
		}
		if decode(t, w)["error"] != "Not found" {
			t.Errorf("%s: unexpected error envelope", path)
		}
	}
}

func TestPanicRecovery(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)
	env.api.routes["/boom"] = func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}

	w := env.get(t, "/api/boom")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	response := decode(t, w)
	if response["error"] != "Internal server error" || response["detail"] != "kaboom" {
		t.Errorf("Unexpected envelope %v", response)
	}

	if w := env.get(t, "/api/quote"); w.Code != http.StatusOK {
		t.Errorf("Expected server to keep serving, got %d", w.Code)
	}
}

func TestHandleQuote(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil, WithRandom(func(n int) int { return 5 }))

	response := decode(t, env.get(t, "/api/quote"))
	if response["text"] != quotes[5].Text || response["author"] != quotes[5].Author {
		t.Errorf("Unexpected quote %v", response)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, storetest.New(t), notInstalled(), nil)

	w := env.get(t, "/api/quote")
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("Expected generated UUID, got %q", w.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/quote", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w = httptest.NewRecorder()
	env.api.Handler().ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc-123" {
		t.Errorf("Expected request id to be echoed, got %q", w.Header().Get("X-Request-ID"))
	}
}
