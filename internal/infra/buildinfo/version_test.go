package buildinfo

import (
	"encoding/json"
	"log/slog"
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	tests := []struct {
		name  string
		value string
	}{
		{"Version", info.Version},
		{"Commit", info.Commit},
		{"BuildTime", info.BuildTime},
		{"GoVersion", info.GoVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Errorf("%s field should not be empty", tt.name)
			}
		})
	}

	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestInfo_String(t *testing.T) {
	info := Info{Version: "v1.2.3", Commit: "abc123", BuildTime: "2026-01-01", GoVersion: "go1.24.0"}

	want := "v1.2.3 (abc123) built at 2026-01-01 with go1.24.0"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestInfo_JSON(t *testing.T) {
	data, err := json.Marshal(Info{Version: "v1", Commit: "c", BuildTime: "b", GoVersion: "g"})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"build_time":"b"`) {
		t.Errorf("JSON = %s", data)
	}
}

func TestInfo_LogValue(t *testing.T) {
	v := Info{Version: "v1", Commit: "c", GoVersion: "g"}.LogValue()
	if v.Kind() != slog.KindGroup {
		t.Fatalf("LogValue kind = %v, want group", v.Kind())
	}
	if n := len(v.Group()); n != 3 {
		t.Errorf("LogValue has %d attrs, want 3", n)
	}
}
