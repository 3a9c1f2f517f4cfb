package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/benvon/smart-reminders/internal/request"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		method        string
		path          string
		handlerStatus int
		wantLevel     zapcore.Level
	}{
		{name: "GET request", method: "GET", path: "/healthz", handlerStatus: http.StatusOK, wantLevel: zapcore.InfoLevel},
		{name: "POST request", method: "POST", path: "/api/v1/reminders", handlerStatus: http.StatusAccepted, wantLevel: zapcore.InfoLevel},
		{name: "404 request", method: "GET", path: "/notfound", handlerStatus: http.StatusNotFound, wantLevel: zapcore.InfoLevel},
		{name: "500 request", method: "GET", path: "/boom", handlerStatus: http.StatusInternalServerError, wantLevel: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zapcore.DebugLevel)
			var seenID string
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenID = request.RequestIDFromContext(r.Context())
				w.WriteHeader(tt.handlerStatus)
			})

			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()
			Logging(zap.New(core))(handler).ServeHTTP(w, req)

			resp := w.Result()
			defer func() {
				_ = resp.Body.Close()
			}()

			if resp.StatusCode != tt.handlerStatus {
				t.Errorf("Expected status %d, got %d", tt.handlerStatus, resp.StatusCode)
			}
			if seenID == "" || resp.Header.Get(request.RequestIDHeader) != seenID {
				t.Errorf("Expected request id in context and response header, got %q / %q", seenID, resp.Header.Get(request.RequestIDHeader))
			}

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected one http_request entry, got %d", len(entries))
			}
			entry := entries[0]
			if entry.Level != tt.wantLevel {
				t.Errorf("Expected level %s, got %s", tt.wantLevel, entry.Level)
			}
			fields := entry.ContextMap()
			if fields["path"] != tt.path || fields["status_code"] != int64(tt.handlerStatus) {
				t.Errorf("Unexpected fields %v", fields)
			}
		})
	}
}

func TestLogging_KeepsCallerRequestID(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("test"))
	})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set(request.RequestIDHeader, "trace-me")
	w := httptest.NewRecorder()
	Logging(nil)(handler).ServeHTTP(w, req)

	if got := w.Header().Get(request.RequestIDHeader); got != "trace-me" {
		t.Errorf("Expected caller request id, got %q", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected implicit 200, got %d", w.Code)
	}
}
