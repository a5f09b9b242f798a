package gc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"
)

// StatsSnapshot is the JSON body served by /gc/stats.
type StatsSnapshot struct {
	Phase              string `json:"phase"`
	LiveCells          int    `json:"live_cells"`
	TentativeCells     int    `json:"tentative_cells"`
	PendingFree        int    `json:"pending_free"`
	GCRuns             uint64 `json:"gc_runs"`
	BytesReclaimedLast uint64 `json:"bytes_reclaimed_last"`
	BytesFreedTotal    uint64 `json:"bytes_freed_total"`
	GCThreshold        uint64 `json:"gc_threshold"`
	BytesInUse         uint64 `json:"bytes_in_use"`
}

// Stats builds the current StatsSnapshot.
func (rt *Runtime) Stats() StatsSnapshot {
	return StatsSnapshot{
		Phase:              rt.Phase().String(),
		LiveCells:          rt.LiveCount(),
		TentativeCells:     rt.TentativeCount(),
		PendingFree:        rt.PendingFreeCount(),
		GCRuns:             rt.gcRuns,
		BytesReclaimedLast: uint64(rt.bytesReclaimedLast),
		BytesFreedTotal:    uint64(rt.bytesFreedTotal),
		GCThreshold:        uint64(rt.GCThreshold()),
		BytesInUse:         uint64(rt.alloc.BytesInUse()),
	}
}

// SnapshotWriter is satisfied by *snapshot.Writer; gc cannot import
// internal/snapshot (that package imports gc for Runtime/Context), so
// StartDebugHTTP takes the capability as a narrow interface instead.
type SnapshotWriter interface {
	WriteTo(w http.ResponseWriter, rt *Runtime) error
}

// StartDebugHTTP starts a lightweight HTTP server exposing diagnostic
// endpoints for a running Runtime:
//
//	GET  /gc/stats     -> JSON StatsSnapshot
//	POST /gc/run       -> triggers RunGC synchronously, returns the
//	                      resulting StatsSnapshot
//	GET  /gc/snapshot  -> streams a .heapsnapshot JSON document via sw
//
// Grounded on internal/runtime/debug_http.go's StartDebugHTTP
// (net/http mux, json.NewEncoder with escaping disabled, one handler
// per concern) — retargeted from actor-system inspection endpoints to
// GC/snapshot-writer ones.
func StartDebugHTTP(rt *Runtime, sw SnapshotWriter, addr string) (func(ctx context.Context) error, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/gc/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(rt.Stats())
	})

	mux.HandleFunc("/gc/run", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}

		rt.RunGC()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		_ = enc.Encode(rt.Stats())
	})

	mux.HandleFunc("/gc/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if sw == nil {
			http.Error(w, "snapshot writer not configured", http.StatusNotImplemented)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := sw.WriteTo(w, rt); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	go func() { _ = srv.Serve(ln) }()

	return func(ctx context.Context) error { return srv.Shutdown(ctx) }, nil
}
