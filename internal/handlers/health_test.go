package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHealthChecker(t *testing.T) {
	t.Parallel()

	healthy := func(ctx context.Context) error { return nil }
	failing := func(ctx context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		mode       string
		checks     map[string]Check
		wantStatus int
		wantHealth string
		wantChecks map[string]string
	}{
		{
			name:       "basic mode skips checks",
			checks:     map[string]Check{"database": failing},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
		},
		{
			name:       "extended mode all healthy",
			mode:       "extended",
			checks:     map[string]Check{"database": healthy, "redis": healthy, "queue": healthy},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy", "queue": "healthy"},
		},
		{
			name:       "extended mode with failing dependency",
			mode:       "extended",
			checks:     map[string]Check{"database": healthy, "queue": failing},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantChecks: map[string]string{"database": "healthy", "queue": "unhealthy: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker()
			for name, check := range tt.checks {
				h.AddCheck(name, check)
			}
			h.AddCheck("ignored", nil)

			path := "/healthz"
			if tt.mode != "" {
				path += "?mode=" + tt.mode
			}
			w := httptest.NewRecorder()
			h.HealthCheck(w, httptest.NewRequest("GET", path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Status != tt.wantHealth || resp.Timestamp == "" {
				t.Errorf("Unexpected response %+v", resp)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Fatalf("Expected checks %v, got %v", tt.wantChecks, resp.Checks)
			}
			for name, want := range tt.wantChecks {
				if resp.Checks[name] != want {
					t.Errorf("Check %s = %q, want %q", name, resp.Checks[name], want)
				}
			}
		})
	}
}

func TestOpenAPIHandler(t *testing.T) {
	t.Parallel()

	h := NewOpenAPIHandler()

	w := httptest.NewRecorder()
	h.ServeYAML(w, httptest.NewRequest("GET", "/api/v1/openapi.yaml", nil))
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/api/v1/plan") {
		t.Errorf("Expected YAML spec, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeJSON(w, httptest.NewRequest("GET", "/api/v1/openapi.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var doc map[string]any
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatalf("Expected JSON spec: %v", err)
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok || paths["/api/v1/reminders/{id}/duration"] == nil {
		t.Errorf("Expected duration path in spec, got %v", doc["paths"])
	}
}
