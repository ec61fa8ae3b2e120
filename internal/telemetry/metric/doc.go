// Package metric provides Prometheus metrics for memkv.
//
// Metrics live on a private registry (not the prometheus default) so tests can
// create isolated instances:
//
//   - prometheus.go: Registry with command, connection and snapshot metrics
//   - collector.go: scrape-time key count
//
// The /metrics endpoint is served by internal/server/httpserver.
package metric
