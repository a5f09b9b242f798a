package snapshot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/lumen-lang/lumen/internal/allocator"
	"github.com/lumen-lang/lumen/internal/gc"
)

func newTestRuntime(t *testing.T) *gc.Runtime {
	t.Helper()
	ar := allocator.NewArena(64 * 1024)
	return gc.NewRuntime(ar.FuncTable())
}

func buildChain(t *testing.T) (*gc.Runtime, *gc.Context, *gc.Object, *gc.Object, *gc.Object) {
	t.Helper()

	rt := newTestRuntime(t)
	ctx := rt.NewContext()

	a := rt.NewObject(nil, 0, nil)
	b := rt.NewObject(nil, 0, nil)
	c := rt.NewObject(nil, 0, nil)

	a.Props = make([]gc.PropertySlot, 1)
	a.SetValue(rt, 0, gc.GCValue{Cell: b})
	b.Props = make([]gc.PropertySlot, 1)
	b.SetValue(rt, 0, gc.GCValue{Cell: c})

	ctx.Global = a
	rt.Retain(a)

	return rt, ctx, a, b, c
}

// TestSnapshotChain is scenario 6 (§8): a Context plus a three-object
// chain a->b->c must produce a snapshot with at least 4 nodes, a node
// 0 typed "object" and named "global", a directed path of property
// edges from the Context through a, b, c, and every to_node divisible
// by 5 and in range.
func TestSnapshotChain(t *testing.T) {
	rt, ctx, a, b, c := buildChain(t)

	doc := BuildSnapshot(rt, ctx)

	nodeCount := len(doc.Nodes) / nodeFieldCount
	if nodeCount < 4 {
		t.Fatalf("expected >= 4 nodes, got %d", nodeCount)
	}

	if doc.Nodes[0] != int64(NodeObject) {
		t.Fatalf("expected node 0 typed object, got type %d", doc.Nodes[0])
	}
	if rootName := doc.Strings[doc.Nodes[1]]; rootName != "global" {
		t.Fatalf(`expected node 0 named "global", got %q`, rootName)
	}

	for i := 0; i+2 < len(doc.Edges); i += edgeFieldCount {
		toNode := doc.Edges[i+2]
		if toNode%nodeFieldCount != 0 {
			t.Fatalf("edge to_node %d not divisible by %d", toNode, nodeFieldCount)
		}
		if toNode < 0 || int(toNode) >= nodeCount*nodeFieldCount {
			t.Fatalf("edge to_node %d out of range (node_count=%d)", toNode, nodeCount)
		}
	}

	// Resolve the actual node index BuildSnapshot assigned each cell
	// (synthetic grouping nodes are interned in between ordinary ones,
	// so this cannot be re-derived by guessing allocation order) and
	// confirm a property/context edge exists from each link to the next.
	d := buildDumpContext(rt, ctx)
	rootIdx, _ := d.nodeIdx.lookup(ctx)
	aIdx, _ := d.nodeIdx.lookup(a)
	bIdx, _ := d.nodeIdx.lookup(b)
	cIdx, _ := d.nodeIdx.lookup(c)

	if !edgeExists(d, rootIdx, aIdx) {
		t.Fatal("expected an edge from the Context to a")
	}
	if !edgeExists(d, aIdx, bIdx) {
		t.Fatal("expected an edge from a to b")
	}
	if !edgeExists(d, bIdx, cIdx) {
		t.Fatal("expected an edge from b to c")
	}
}

// edgeExists reports whether d recorded an edge from fromIdx to
// toIdx, using edgeFrom's per-edge origin tracking rather than
// assuming anything about block layout.
func edgeExists(d *dumpContext, fromIdx, toIdx int) bool {
	want := int64(toIdx * nodeFieldCount)
	for i, from := range d.edgeFrom {
		if from == fromIdx && d.edges[i*edgeFieldCount+2] == want {
			return true
		}
	}
	return false
}

// TestSnapshotJSONRoundTrip is §8 P6: the document must parse back as
// valid JSON with matching node/edge counts.
func TestSnapshotJSONRoundTrip(t *testing.T) {
	rt := newTestRuntime(t)
	ctx := rt.NewContext()
	a := rt.NewObject(nil, 0, nil)
	ctx.Global = a
	rt.Retain(a)

	doc := BuildSnapshot(rt, ctx)

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Document
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.Snapshot.NodeCount != len(decoded.Nodes)/nodeFieldCount {
		t.Fatalf("node_count %d does not match nodes array length %d", decoded.Snapshot.NodeCount, len(decoded.Nodes)/nodeFieldCount)
	}
	if decoded.Snapshot.EdgeCount != len(decoded.Edges)/edgeFieldCount {
		t.Fatalf("edge_count %d does not match edges array length %d", decoded.Snapshot.EdgeCount, len(decoded.Edges)/edgeFieldCount)
	}
}

// TestBuildSnapshotVisitsContextOnce guards against double-counting
// the root Context's edges: WalkLive also reaches ctx as an ordinary
// live cell, and BuildSnapshot must recognize it as already visited.
func TestBuildSnapshotVisitsContextOnce(t *testing.T) {
	rt, ctx, _, _, _ := buildChain(t)

	doc := BuildSnapshot(rt, ctx)

	count := 0
	for i := 0; i+2 < len(doc.Edges); i += edgeFieldCount {
		if doc.Edges[i+2] == 5 { // node index 1 (a) * nodeFieldCount
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one edge from Context to a, found %d (root visited twice?)", count)
	}
}

func TestFilenameFormat(t *testing.T) {
	when, err := time.Parse(time.RFC3339Nano, "2026-07-31T15:04:05.123Z")
	if err != nil {
		t.Fatalf("parse fixture time: %v", err)
	}

	ts := filenameFor(when)
	want := "Heap.20260731.150405.123.heapsnapshot"
	if ts != want {
		t.Fatalf("filenameFor = %q, want %q", ts, want)
	}
}

func TestCheckCompatible(t *testing.T) {
	ok, err := CheckCompatible(">=1.0.0, <2.0.0")
	if err != nil {
		t.Fatalf("CheckCompatible: %v", err)
	}
	if !ok {
		t.Fatalf("expected FormatVersion %s to satisfy >=1.0.0, <2.0.0", FormatVersion)
	}

	ok, err = CheckCompatible(">=2.0.0")
	if err != nil {
		t.Fatalf("CheckCompatible: %v", err)
	}
	if ok {
		t.Fatalf("expected FormatVersion %s not to satisfy >=2.0.0", FormatVersion)
	}
}
