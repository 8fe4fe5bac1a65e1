package core

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/manolocortes/evTrak/internal/config"
	"github.com/manolocortes/evTrak/internal/types"
)

func TestRequestIDMiddleware_GeneratesID(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured == "" {
		t.Error("expected a generated request id in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != captured {
		t.Errorf("response header %q does not match context id %q", got, captured)
	}
}

func TestRequestIDMiddleware_HonorsInboundHeader(t *testing.T) {
	var captured string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = types.GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req_inbound")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if captured != "req_inbound" {
		t.Errorf("expected inbound id to be honored, got %q", captured)
	}
	if got := rec.Header().Get("X-Request-ID"); got != "req_inbound" {
		t.Errorf("expected inbound id echoed, got %q", got)
	}
}

func TestRecoverer_CatchesPanic(t *testing.T) {
	srv, err := NewServer(&config.Config{Environment: "local"}, slog.Default())
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}

	var resp APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("unexpected error code %q", resp.Error.Code)
	}
}

func TestRecoverer_PassesThroughNormally(t *testing.T) {
	srv, err := NewServer(&config.Config{Environment: "local"}, slog.Default())
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}

	handler := srv.Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
}

func TestResponseCapture_StatusCode(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    int
	}{
		{
			"explicit WriteHeader",
			func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) },
			http.StatusTeapot,
		},
		{
			"implicit 200 via Write",
			func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) },
			http.StatusOK,
		},
		{
			"first status wins",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
				_, _ = w.Write([]byte("ok"))
			},
			http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rc := &responseCapture{ResponseWriter: rec, statusCode: http.StatusOK}
			tt.handler(rc, httptest.NewRequest(http.MethodGet, "/", nil))

			if rc.statusCode != tt.want {
				t.Errorf("expected captured status %d, got %d", tt.want, rc.statusCode)
			}
		})
	}
}

func TestRequestLogger_PropagatesResponse(t *testing.T) {
	handler := RequestLogger(slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("created"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/shuttles", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Body.String() != "created" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}
