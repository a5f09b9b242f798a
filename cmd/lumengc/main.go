// Command lumengc hosts the GC core standalone: it builds a small
// object graph (one context plus plain objects), runs the collector, starts
// the diagnostic HTTP endpoints, and dumps a heap snapshot. Grounded
// on the teacher's own flag-driven cmd/ texture (cmd/orizon-profile),
// trimmed to this runtime's own knobs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumen-lang/lumen/internal/allocator"
	"github.com/lumen-lang/lumen/internal/gc"
	"github.com/lumen-lang/lumen/internal/memstat"
	"github.com/lumen-lang/lumen/internal/snapshot"
)

func main() {
	var (
		arenaSize   = flag.Uint64("arena", 1<<20, "initial arena size in bytes")
		gcThreshold = flag.Uint64("threshold", 256<<10, "GC trigger threshold in bytes (0 disables auto-GC)")
		debugAddr   = flag.String("debug-addr", "", "address for /gc/stats, /gc/run, /gc/snapshot (empty disables)")
		metricsAddr = flag.String("metrics-addr", "", "address for the /metrics endpoint (empty disables)")
		snapshotDir = flag.String("snapshot-dir", "", "directory to write a .heapsnapshot file to on exit (empty disables)")
		runOnce     = flag.Bool("run-gc", false, "force one synchronous collection before exiting")
	)
	flag.Parse()

	ar := allocator.NewArena(uintptr(*arenaSize))
	rt := gc.NewRuntime(ar.FuncTable(), gc.WithGCThreshold(uintptr(*gcThreshold)))

	ctx := buildDemoGraph(rt)

	if *metricsAddr != "" {
		addr, stop, err := gc.StartMetricsServer(*metricsAddr, rt.Collectors())
		if err != nil {
			fmt.Fprintf(os.Stderr, "lumengc: metrics server: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("metrics listening on %s\n", addr)
		defer stop(context.Background())
	}

	var snapWriter gc.SnapshotWriter = &snapshot.Writer{Context: ctx}

	if *debugAddr != "" {
		stop, err := gc.StartDebugHTTP(rt, snapWriter, *debugAddr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lumengc: debug server: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("debug endpoints listening on %s\n", *debugAddr)
		defer stop(context.Background())
	}

	if *runOnce {
		rt.RunGC()
	}

	printStats(rt)

	if *snapshotDir != "" {
		path, err := snapshot.DumpHeapSnapshot(rt, ctx, *snapshotDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lumengc: snapshot: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("heap snapshot written to %s\n", path)
	}

	if *debugAddr == "" && *metricsAddr == "" {
		return
	}

	waitForShutdown()
}

// buildDemoGraph sets up one context with a global object holding an
// acyclic chain (the shape collector_test.go's chain test exercises)
// and a two-object reference cycle, so the diagnostic endpoints and the
// snapshot always have something nontrivial to show.
func buildDemoGraph(rt *gc.Runtime) *gc.Context {
	ctx := rt.NewContext()

	global := rt.NewObject(nil, 0, nil)
	ctx.Global = global

	chainTail := rt.NewObject(nil, 0, nil)
	chainHead := rt.NewObject(nil, 0, nil)
	chainHead.Props = []gc.PropertySlot{{Kind: gc.PropValue, Value: gc.GCValue{Cell: chainTail}}}
	rt.Retain(chainTail)

	emitterA, emitterB := buildCycle(rt)

	global.Props = []gc.PropertySlot{
		{Kind: gc.PropValue, Value: gc.GCValue{Cell: chainHead}},
		{Kind: gc.PropValue, Value: gc.GCValue{Cell: emitterA}},
	}
	rt.Retain(chainHead)
	rt.Retain(emitterA)
	rt.Release(emitterB) // only emitterA keeps the cycle alive via a mutual property

	return ctx
}

// buildCycle returns two objects that each hold the other via a
// property: a two-node cycle, between scenario 2's self-cycle and
// scenario 3's three-cell cycle.
func buildCycle(rt *gc.Runtime) (a, b *gc.Object) {
	a = rt.NewObject(nil, 0, nil)
	b = rt.NewObject(nil, 0, nil)

	a.Props = []gc.PropertySlot{{Kind: gc.PropValue, Value: gc.GCValue{Cell: b}}}
	b.Props = []gc.PropertySlot{{Kind: gc.PropValue, Value: gc.GCValue{Cell: a}}}
	rt.Retain(b)
	rt.Retain(a)

	return a, b
}

func printStats(rt *gc.Runtime) {
	s := rt.Stats()
	fmt.Printf("phase=%s live=%d tentative=%d pending_free=%d gc_runs=%d bytes_in_use=%d\n",
		s.Phase, s.LiveCells, s.TentativeCells, s.PendingFree, s.GCRuns, s.BytesInUse)

	stat := memstat.Compute(rt)
	fmt.Printf("memstat: %+v\n", stat)
}

func waitForShutdown() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	<-sig
	fmt.Println("shutting down")
	time.Sleep(50 * time.Millisecond)
}
