package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bridgebot/bridgebot/internal/handlers"
)

func TestServerRegistersPing(t *testing.T) {
	t.Parallel()

	srv := NewServer(slog.Default(), ":0", handlers.NewPingHandler(slog.Default()), nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestServerUnknownRouteIs404(t *testing.T) {
	t.Parallel()

	srv := NewServer(slog.Default(), ":0", handlers.NewPingHandler(slog.Default()), nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}
