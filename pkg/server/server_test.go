package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"crescendo-hq/turnstile/pkg/admission/policy"
	"crescendo-hq/turnstile/pkg/config"
	"crescendo-hq/turnstile/pkg/journal"
)

func boolPtr(v bool) *bool {
	return &v
}

// newTestConfig returns a defaulted configuration pointing at the given
// upstream, with the journal disabled so tests do not write databases.
func newTestConfig(upstreamURL string) *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.UpstreamURL = upstreamURL
	cfg.Journal.Enabled = boolPtr(false)
	return cfg
}

// newUpstream starts a test upstream that answers 200 "upstream-ok" and
// counts the requests that reach it.
func newUpstream(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("upstream-ok"))
	}))
	t.Cleanup(upstream.Close)

	return upstream, &hits
}

func mustNewServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	return srv
}

func doGet(handler http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

// ===== Construction =====

func TestNewServer_NilConfig(t *testing.T) {
	if _, err := NewServer(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNewServer_InvalidUpstream(t *testing.T) {
	cfg := newTestConfig("not-a-url")

	if _, err := NewServer(cfg); err == nil {
		t.Fatal("expected error for invalid upstream URL")
	}
}

func TestNewServer_UnknownPolicyReference(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Admission.Routes = map[string]policy.Spec{
		"/api/search": {Name: "burst"},
	}

	_, err := NewServer(cfg)
	if err == nil {
		t.Fatal("expected error for unknown policy reference")
	}
	if !strings.Contains(err.Error(), "policy table") {
		t.Errorf("error = %q, want mention of the policy table", err.Error())
	}
}

// ===== Request flow =====

func TestServer_ProxiesAdmittedRequests(t *testing.T) {
	upstream, hits := newUpstream(t)
	srv := mustNewServer(t, newTestConfig(upstream.URL))

	w := doGet(srv.Handler(), "/api/anything")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "upstream-ok" {
		t.Errorf("body = %q, want %q", got, "upstream-ok")
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", hits.Load())
	}

	wantLimit := strconv.Itoa(policy.Standard.MaxRequests)
	if got := w.Header().Get("X-RateLimit-Limit"); got != wantLimit {
		t.Errorf("X-RateLimit-Limit = %q, want %q", got, wantLimit)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestServer_RejectsOverQuota(t *testing.T) {
	upstream, hits := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Admission.DefaultPolicy = policy.Spec{
		Inline: &policy.Policy{Window: time.Hour, MaxRequests: 2},
	}

	srv := mustNewServer(t, cfg)
	handler := srv.Handler()

	for i := 0; i < 2; i++ {
		if w := doGet(handler, "/api/search"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := doGet(handler, "/api/search")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on rejection")
	}
	if got := w.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want %q", got, "0")
	}
	if hits.Load() != 2 {
		t.Errorf("upstream hits = %d, want 2 (rejection must not reach upstream)", hits.Load())
	}
}

func TestServer_TierHeaderSelectsOverride(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Admission.Tiers = map[string]policy.Spec{
		"gold": {Inline: &policy.Policy{Window: time.Hour, MaxRequests: 100}},
	}

	srv := mustNewServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	req.Header.Set(config.DefaultTierHeader, "gold")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want %q", got, "100")
	}
}

func TestServer_BypassedClientSkipsQuota(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Admission.DefaultPolicy = policy.Spec{
		Inline: &policy.Policy{Window: time.Hour, MaxRequests: 1},
	}
	// httptest.NewRequest stamps this peer address on every request.
	cfg.Admission.Identity.Bypass = append(cfg.Admission.Identity.Bypass, "192.0.2.1")

	srv := mustNewServer(t, cfg)
	handler := srv.Handler()

	for i := 0; i < 3; i++ {
		w := doGet(handler, "/api/search")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
		if got := w.Header().Get("X-RateLimit-Limit"); got != "" {
			t.Errorf("request %d: bypassed request carries quota header %q", i+1, got)
		}
	}
}

// ===== Probe and telemetry routes =====

func TestServer_ProbesBypassAdmission(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Admission.DefaultPolicy = policy.Spec{
		Inline: &policy.Policy{Window: time.Hour, MaxRequests: 1},
	}

	srv := mustNewServer(t, cfg)
	handler := srv.Handler()

	// Burn the whole budget.
	if w := doGet(handler, "/api/search"); w.Code != http.StatusOK {
		t.Fatalf("warmup status = %d, want 200", w.Code)
	}
	if w := doGet(handler, "/api/search"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}

	if w := doGet(handler, "/healthz"); w.Code != http.StatusOK {
		t.Errorf("/healthz status = %d, want 200", w.Code)
	}
	if w := doGet(handler, "/readyz"); w.Code != http.StatusOK {
		t.Errorf("/readyz status = %d, want 200", w.Code)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)

	srv, err := NewServerWithOptions(cfg, Options{Version: "1.2.3"})
	if err != nil {
		t.Fatalf("NewServerWithOptions failed: %v", err)
	}
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})

	w := doGet(srv.Handler(), config.DefaultMetricsPath)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "turnstile_build_info") {
		t.Error("metrics output missing turnstile_build_info")
	}
}

func TestServer_MetricsDisabledFallsThroughToProxy(t *testing.T) {
	upstream, hits := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Telemetry.Metrics.Enabled = boolPtr(false)

	srv := mustNewServer(t, cfg)

	w := doGet(srv.Handler(), config.DefaultMetricsPath)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Body.String(); got != "upstream-ok" {
		t.Errorf("body = %q, want the upstream response", got)
	}
	if hits.Load() != 1 {
		t.Errorf("upstream hits = %d, want 1", hits.Load())
	}
}

// ===== Policy reload =====

func TestServer_ApplyPolicies(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Admission.DefaultPolicy = policy.Spec{
		Inline: &policy.Policy{Window: time.Hour, MaxRequests: 1},
	}

	srv := mustNewServer(t, cfg)
	handler := srv.Handler()

	if w := doGet(handler, "/api/search"); w.Code != http.StatusOK {
		t.Fatalf("warmup status = %d, want 200", w.Code)
	}
	if w := doGet(handler, "/api/search"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("over-quota status = %d, want 429", w.Code)
	}

	next := newTestConfig(upstream.URL)
	next.Admission.DefaultPolicy = policy.Spec{
		Inline: &policy.Policy{Window: time.Hour, MaxRequests: 100},
	}
	if err := srv.ApplyPolicies(next); err != nil {
		t.Fatalf("ApplyPolicies failed: %v", err)
	}

	// The handler built before the swap must see the new table.
	w := doGet(handler, "/api/search")
	if w.Code != http.StatusOK {
		t.Fatalf("post-reload status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("X-RateLimit-Limit"); got != "100" {
		t.Errorf("X-RateLimit-Limit = %q, want %q", got, "100")
	}
}

func TestServer_ApplyPolicies_InvalidConfigKeepsTable(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Admission.DefaultPolicy = policy.Spec{
		Inline: &policy.Policy{Window: time.Hour, MaxRequests: 1},
	}

	srv := mustNewServer(t, cfg)
	handler := srv.Handler()

	if w := doGet(handler, "/api/search"); w.Code != http.StatusOK {
		t.Fatalf("warmup status = %d, want 200", w.Code)
	}

	broken := newTestConfig(upstream.URL)
	broken.Admission.DefaultPolicy = policy.Spec{Name: "no-such-policy"}
	if err := srv.ApplyPolicies(broken); err == nil {
		t.Fatal("expected error for unresolvable policy")
	}

	// The old table still governs.
	if w := doGet(handler, "/api/search"); w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 under the previous table", w.Code)
	}
}

// ===== Lifecycle =====

func waitRunning(t *testing.T, srv *Server) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.IsRunning() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server did not report running")
}

func TestServer_StartAndContextCancel(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Server.ListenAddress = "127.0.0.1:0"

	srv := mustNewServer(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(ctx)
	}()

	waitRunning(t, srv)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after context cancel")
	}

	if srv.IsRunning() {
		t.Error("server still reports running after shutdown")
	}
}

func TestServer_StopTriggersShutdown(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Server.ListenAddress = "127.0.0.1:0"

	srv := mustNewServer(t, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(context.Background())
	}()

	waitRunning(t, srv)
	srv.Stop()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after Stop")
	}
}

func TestServer_DoubleStart(t *testing.T) {
	upstream, _ := newUpstream(t)
	cfg := newTestConfig(upstream.URL)
	cfg.Server.ListenAddress = "127.0.0.1:0"

	srv := mustNewServer(t, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(context.Background())
	}()

	waitRunning(t, srv)

	if err := srv.Start(context.Background()); err == nil {
		t.Error("expected error from second Start")
	}

	srv.Stop()
	select {
	case <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_ShutdownWithoutStart(t *testing.T) {
	upstream, _ := newUpstream(t)
	srv, err := NewServer(newTestConfig(upstream.URL))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown of a never-started server failed: %v", err)
	}
}

// ===== Journal integration =====

func TestServer_JournalRecordsRejections(t *testing.T) {
	upstream, _ := newUpstream(t)
	dbPath := filepath.Join(t.TempDir(), "journal.db")

	cfg := newTestConfig(upstream.URL)
	cfg.Admission.DefaultPolicy = policy.Spec{
		Inline: &policy.Policy{Window: time.Hour, MaxRequests: 1},
	}
	cfg.Journal.Enabled = boolPtr(true)
	cfg.Journal.Path = dbPath

	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	handler := srv.Handler()
	if w := doGet(handler, "/api/search"); w.Code != http.StatusOK {
		t.Fatalf("warmup status = %d, want 200", w.Code)
	}
	if w := doGet(handler, "/api/search"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", w.Code)
	}

	// Shutdown flushes the recorder before closing the store.
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	store, err := journal.NewSQLiteStore(&journal.SQLiteConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("reopening journal store failed: %v", err)
	}
	defer store.Close()

	records, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("journal records = %d, want 1", len(records))
	}
	if records[0].Allowed {
		t.Error("journaled record should be a rejection")
	}
	if records[0].Identity != "192.0.2.1" {
		t.Errorf("journaled identity = %q, want %q", records[0].Identity, "192.0.2.1")
	}
}
