package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newMetricsServer builds the /metrics endpoint the teacher's
// cmd/service/main.go exposes the same way (50-mini-service-all-features):
// promhttp.Handler against the default registry internal/metrics.New
// already registered into.
func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux}
}
