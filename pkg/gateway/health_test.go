package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"crescendo-hq/turnstile/pkg/telemetry/health"
)

// ===== Liveness Tests =====

func TestHealthHandler_ReportsOK(t *testing.T) {
	handler := NewHealthHandler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want %q", body["status"], "ok")
	}
	if _, ok := body["timestamp"].(float64); !ok {
		t.Errorf("timestamp missing or not a number: %v", body["timestamp"])
	}
}

func TestHealthHandler_RejectsNonGET(t *testing.T) {
	handler := NewHealthHandler()

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

// ===== Readiness Tests =====

func TestReadyHandler_ReadyWhenChecksPass(t *testing.T) {
	checker := health.New(0)
	checker.RegisterCheck("store", func(ctx context.Context) error { return nil })

	handler := NewReadyHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("status = %q, want %q", body["status"], "ready")
	}
	checks, ok := body["checks"].(map[string]interface{})
	if !ok {
		t.Fatalf("checks section missing: %v", body)
	}
	store, ok := checks["store"].(map[string]interface{})
	if !ok {
		t.Fatalf("store check missing: %v", checks)
	}
	if store["status"] != "ok" {
		t.Errorf("store status = %q, want %q", store["status"], "ok")
	}
}

func TestReadyHandler_NotReadyWhenCheckFails(t *testing.T) {
	checker := health.New(0)
	checker.RegisterCheck("store", func(ctx context.Context) error {
		return errors.New("store down")
	})

	handler := NewReadyHandler(checker)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if body["status"] != "not_ready" {
		t.Errorf("status = %q, want %q", body["status"], "not_ready")
	}
	checks := body["checks"].(map[string]interface{})
	store := checks["store"].(map[string]interface{})
	if store["status"] != "unhealthy" {
		t.Errorf("store status = %q, want %q", store["status"], "unhealthy")
	}
	if store["message"] != "store down" {
		t.Errorf("store message = %q, want %q", store["message"], "store down")
	}
}

func TestReadyHandler_RejectsNonGET(t *testing.T) {
	handler := NewReadyHandler(health.New(0))

	req := httptest.NewRequest(http.MethodDelete, "/readyz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}
