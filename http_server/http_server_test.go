package http_server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/medata/medrecords/config"
)

func testServer(t *testing.T) *HTTPServer {
	t.Helper()
	cfg := &config.Config{
		APIKey:     "test_api_key",
		HTTPPort:   "0",
		TablePKMap: config.DefaultTablePKMap(),
	}
	return NewHTTPServer(cfg, nil, nil)
}

func doReq(s *HTTPServer, method, target, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheckNoAuth(t *testing.T) {
	s := testServer(t)
	rec := doReq(s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
	if _, ok := body["timestamp"]; !ok {
		t.Fatal("health body missing timestamp")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	s := testServer(t)
	for _, target := range []string{
		"/api/v1/patients/P1",
		"/api/v1/patients/P1/lab_results",
	} {
		rec := doReq(s, http.MethodGet, target, "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s without key: expected 401, got %d", target, rec.Code)
		}
		rec = doReq(s, http.MethodGet, target, "wrong_key")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s with wrong key: expected 401, got %d", target, rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Invalid API key") {
			t.Fatalf("unexpected 401 body: %s", rec.Body.String())
		}
	}
}

func TestAdminRejectsUnknownTable(t *testing.T) {
	s := testServer(t)
	rec := doReq(s, http.MethodPost, "/admin/tables/nope/export", "test_api_key")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unknown table") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestAdminRejectsMalformedBody(t *testing.T) {
	s := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/admin/tables/lab_results/export", strings.NewReader("{not json"))
	req.Header.Set("X-API-Key", "test_api_key")
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	s := testServer(t)
	rec := doReq(s, http.MethodPost, "/admin/tables/lab_results/verify", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
