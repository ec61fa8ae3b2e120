package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type fixedCount int

func (c fixedCount) Len() int { return int(c) }

func TestNewRouter_Healthz(t *testing.T) {
	router := NewRouter(&RouterConfig{Store: fixedCount(3), Logger: quietLogger()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp.Status != "ok" || resp.Keys != 3 {
		t.Errorf("health = %+v", resp)
	}
	if resp.Version == "" {
		t.Error("version should be reported")
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "memkv_keys 0\n")
	})
	router := NewRouter(&RouterConfig{Metrics: metrics, Logger: quietLogger()})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "memkv_keys") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestNewRouter_NotFound(t *testing.T) {
	router := NewRouter(&RouterConfig{Logger: quietLogger()})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/metrics", http.StatusNotFound},
		{http.MethodGet, "/sessions", http.StatusNotFound},
		{http.MethodPost, "/healthz", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestServer_StartShutdown(t *testing.T) {
	router := NewRouter(&RouterConfig{Store: fixedCount(0), Logger: quietLogger()})
	s := New("127.0.0.1:0", router, quietLogger())

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
}

func TestServer_StartBindError(t *testing.T) {
	first := New("127.0.0.1:0", http.NotFoundHandler(), quietLogger())
	if err := first.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { first.Shutdown(context.Background()) })

	second := New(first.Addr().String(), http.NotFoundHandler(), quietLogger())
	if err := second.Start(); err == nil {
		second.Shutdown(context.Background())
		t.Fatal("Start() on a bound address should fail")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	s := New("127.0.0.1:0", http.NotFoundHandler(), quietLogger())
	if err := s.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown error: %v", err)
	}
	if s.Addr() != nil {
		t.Error("Addr() before Start should be nil")
	}
}
