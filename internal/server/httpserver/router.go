package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yndnr/memkv-go/internal/infra/buildinfo"
)

// KeyCounter reports the number of stored keys.
type KeyCounter interface {
	Len() int
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Metrics serves the Prometheus exposition.
	Metrics http.Handler

	// Store backs the health report.
	Store KeyCounter

	// Logger for request logging.
	Logger *slog.Logger
}

// NewRouter creates the admin router.
//
//	GET /metrics  Prometheus metrics
//	GET /healthz  liveness with key count and build version
func NewRouter(cfg *RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	mux.Handle("GET /healthz", healthHandler(cfg.Store))

	// Order: Recover -> RequestID -> AccessLog -> mux
	return Chain(mux, Recover(logger), RequestID(), AccessLog(logger))
}

type healthResponse struct {
	Status  string `json:"status"`
	Keys    int    `json:"keys"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

func healthHandler(store KeyCounter) http.Handler {
	info := buildinfo.Get()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:  "ok",
			Version: info.Version,
			Commit:  info.Commit,
		}
		if store != nil {
			resp.Keys = store.Len()
		}
		writeJSON(w, http.StatusOK, resp)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
