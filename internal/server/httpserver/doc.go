// Package httpserver serves the memkv admin endpoints.
//
// The server is optional and only runs when server.http.addr is set. It
// exposes Prometheus metrics on /metrics and a JSON liveness report on
// /healthz.
package httpserver
