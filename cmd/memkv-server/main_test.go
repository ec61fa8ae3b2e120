package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/memkv-go/internal/telemetry/logger"
)

// captureOverrides parses args with the server flags and returns the
// resulting overrides without starting the server.
func captureOverrides(t *testing.T, args ...string) map[string]any {
	t.Helper()

	var got map[string]any
	app := &cli.App{
		Flags: serverFlags(),
		Action: func(c *cli.Context) error {
			got = flagOverrides(c)
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"memkv-server"}, args...)))
	return got
}

func TestFlagOverrides_OnlySetFlags(t *testing.T) {
	got := captureOverrides(t, "--dir", "/tmp/redis-files", "--dbfilename", "dump.rdb", "--port", "6380")

	assert.Equal(t, map[string]any{
		"storage.dir":        "/tmp/redis-files",
		"storage.dbfilename": "dump.rdb",
		"server.redis.port":  6380,
	}, got)
}

func TestFlagOverrides_None(t *testing.T) {
	assert.Empty(t, captureOverrides(t))
}

func TestFlagOverrides_Duration(t *testing.T) {
	got := captureOverrides(t, "--save-interval", "30s")
	assert.Equal(t, 30*time.Second, got["storage.save_interval"])
}

func TestFlagKeys_Known(t *testing.T) {
	names := make(map[string]bool)
	for _, f := range serverFlags() {
		names[f.Names()[0]] = true
	}
	for name := range flagKeys {
		assert.True(t, names[name], "flag %q has no definition", name)
	}
}

func TestLoadConfig_Layers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memkv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  redis:
    port: 7000
storage:
  dbfilename: from-file.rdb
  save_interval: 1m
`), 0644))
	t.Setenv("MEMKV_LOG__LEVEL", "debug")

	cfg, err := loadConfig(path, map[string]any{"storage.dbfilename": "from-flag.rdb"})
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Server.Redis.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Redis.Addr)
	assert.Equal(t, "from-flag.rdb", cfg.Storage.DBFilename)
	assert.Equal(t, time.Minute, cfg.Storage.SaveInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := loadConfig("", map[string]any{"server.redis.port": 0})
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestReloadLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memkv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0644))

	logger.SetLevel("info")
	t.Cleanup(func() { logger.SetLevel("info") })

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	reloadLogLevel(path, nil, quiet)
	assert.Equal(t, "warn", logger.GetLevel())

	// An invalid file leaves the level untouched.
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\n"), 0644))
	reloadLogLevel(path, nil, quiet)
	assert.Equal(t, "warn", logger.GetLevel())
}

func TestRun_StartsAndStops(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, "", map[string]any{
			"server.redis.port":  freePort(t),
			"storage.dir":        dir,
			"storage.dbfilename": "dump.rdb",
			"log.level":          "error",
		})
	}()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	// Shutdown writes a final snapshot for the durable backend.
	_, err := os.Stat(filepath.Join(dir, "dump.rdb"))
	assert.NoError(t, err)
}

func freePort(t *testing.T) int {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}
