package gc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

// MetricFunc returns a map of metric name -> value, the same shape
// the teacher's internal/runtime/metrics_exporter.go collectors use.
type MetricFunc func() map[string]float64

// Collectors returns this Runtime's own MetricFunc set: GC pass
// count, bytes reclaimed by the last pass, and the current size of
// each registry list. A host embedding additional collectors merges
// this map with its own before calling StartMetricsServer.
func (rt *Runtime) Collectors() map[string]MetricFunc {
	return map[string]MetricFunc{
		"gc": func() map[string]float64 {
			return map[string]float64{
				"runs":              float64(rt.gcRuns),
				"bytes_reclaimed":   float64(rt.bytesReclaimedLast),
				"bytes_freed_total": float64(rt.bytesFreedTotal),
				"live_cells":        float64(rt.LiveCount()),
				"tentative_cells":   float64(rt.TentativeCount()),
				"pending_free":      float64(rt.PendingFreeCount()),
				"threshold":         float64(rt.GCThreshold()),
			}
		},
	}
}

// StartMetricsServer starts a minimal text-exposition endpoint for
// metrics on addr, aggregating every collector under "/metrics" in a
// deterministic name order. Grounded on
// internal/runtime/metrics_exporter.go's StartMetricsServer; the
// TLS and bearer-auth variants that file also exposes are not carried
// over — this core has no transport/auth layer in scope (see
// SPEC_FULL.md's DOMAIN STACK section).
func StartMetricsServer(addr string, collectors map[string]MetricFunc) (string, func(ctx context.Context) error, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		names := make([]string, 0, len(collectors))
		for name := range collectors {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			fn := collectors[name]
			if fn == nil {
				continue
			}

			snapshot := fn()
			keys := make([]string, 0, len(snapshot))
			for k := range snapshot {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			for _, k := range keys {
				fmt.Fprintf(w, "%s %g\n", sanitizeMetricToken(name+"_"+k), snapshot[k])
			}
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, err
	}

	bound := ln.Addr().String()
	go func() { _ = srv.Serve(ln) }()

	stop := func(ctx context.Context) error { return srv.Shutdown(ctx) }

	return bound, stop, nil
}

func sanitizeMetricToken(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_' || r == ':':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	return b.String()
}
