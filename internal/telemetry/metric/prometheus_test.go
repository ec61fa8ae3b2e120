package metric

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.CommandsTotal == nil || r.CommandDuration == nil {
		t.Error("command metrics not initialized")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
}

func TestHandler_RuntimeMetrics(t *testing.T) {
	body := scrape(t, Handler())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestCommandMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordCommand("GET", "ok", time.Millisecond)
	r.RecordCommand("GET", "ok", 2*time.Millisecond)
	r.RecordCommand("SET", "error", time.Millisecond)
	r.IncProtocolErrors()

	body := scrape(t, r.Handler())

	for _, want := range []string{
		`memkv_commands_total{command="GET",status="ok"} 2`,
		`memkv_commands_total{command="SET",status="error"} 1`,
		`memkv_command_duration_seconds_count{command="GET"} 2`,
		"memkv_protocol_errors_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestConnectionMetrics(t *testing.T) {
	r := NewRegistry()

	r.ConnOpened()
	r.ConnOpened()
	r.ConnClosed()
	r.ConnRejected()

	body := scrape(t, r.Handler())

	for _, want := range []string{
		"memkv_connections_active 1",
		"memkv_connections_accepted_total 2",
		"memkv_connections_rejected_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestStorageMetrics(t *testing.T) {
	r := NewRegistry()

	r.AddKeysExpired(3)
	r.AddKeysExpired(0)
	r.ObserveSnapshotSave(10*time.Millisecond, 2048, nil)
	r.ObserveSnapshotSave(0, 0, errors.New("disk full"))
	r.SetSnapshotLoadedKeys(7)

	body := scrape(t, r.Handler())

	for _, want := range []string{
		"memkv_keys_expired_total 3",
		`memkv_snapshot_saves_total{result="ok"} 1`,
		`memkv_snapshot_saves_total{result="error"} 1`,
		"memkv_snapshot_save_duration_seconds_count 1",
		"memkv_snapshot_size_bytes 2048",
		"memkv_snapshot_loaded_keys 7",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry

	// None of these should panic.
	r.RecordCommand("PING", "ok", time.Millisecond)
	r.IncProtocolErrors()
	r.ConnOpened()
	r.ConnClosed()
	r.ConnRejected()
	r.AddKeysExpired(1)
	r.ObserveSnapshotSave(time.Second, 1, nil)
	r.SetSnapshotLoadedKeys(1)
	r.MustRegister(NewCollector(nil))

	if r.Handler() == nil {
		t.Error("Handler() on nil registry returned nil")
	}
}
