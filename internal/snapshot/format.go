// Package snapshot implements the heap-snapshot writer (§4.4): a
// traversal of a Runtime's live cells, rooted at one Context, that builds an
// interned node/edge/string table and serializes it as a JSON
// document compatible with a browser heap-profiler.
//
// Grounded on the teacher's debug_http.go JSON-over-net/http texture
// (compact encoder, escaping disabled) for the output format, and on
// other_examples' junjiewwang-perf-analysis/internal/parser/hprof
// package — a real heap-dump parser with its own incoming/outgoing
// reference maps and interned field names — for the node/edge/string
// table shape, without porting its dominator-tree retained-size
// machinery (§4.4 only needs self_size per node).
package snapshot

// NodeType is one of the fourteen node kinds the inspector format
// enumerates (§4.4 meta block).
type NodeType uint8

const (
	NodeHidden NodeType = iota
	NodeArray
	NodeString
	NodeObject
	NodeCode
	NodeClosure
	NodeRegexp
	NodeNumber
	NodeNative
	NodeSynthetic
	NodeConcatenatedString
	NodeSlicedString
	NodeSymbol
	NodeBigint
)

var nodeTypeNames = []string{
	"hidden",
	"array",
	"string",
	"object",
	"code",
	"closure",
	"regexp",
	"number",
	"native",
	"synthetic",
	"concatenated string",
	"sliced string",
	"symbol",
	"bigint",
}

// EdgeType mirrors gc.EdgeKind's seven variants (context, element,
// property, internal, hidden, shortcut, weak) by ordinal — the gc
// package owns the enumeration itself (classdesc.go) so a
// ClassDescriptor's SnapshotWalker can report edge kinds without
// internal/gc importing its own consumer.
type EdgeType uint8

const (
	EdgeContext EdgeType = iota
	EdgeElement
	EdgeProperty
	EdgeInternal
	EdgeHidden
	EdgeShortcut
	EdgeWeak
)

var edgeTypeNames = []string{
	"context",
	"element",
	"property",
	"internal",
	"hidden",
	"shortcut",
	"weak",
}

// nodeFieldCount and edgeFieldCount give the flat-array strides
// node_fields/edge_fields establish (§4.4): every node occupies 5
// consecutive ints, every edge 3. to_node multiplies a node index by
// nodeFieldCount, matching the inspector's convention.
const (
	nodeFieldCount = 5
	edgeFieldCount = 3
)

// metaBlock is the "meta" object every heap snapshot document opens
// with: field layouts plus the type enumerations so a generic viewer
// can decode nodes/edges without hardcoding this format's specifics.
type metaBlock struct {
	NodeFields []string   `json:"node_fields"`
	NodeTypes  [][]string `json:"node_types"`
	EdgeFields []string   `json:"edge_fields"`
	EdgeTypes  [][]string `json:"edge_types"`
}

func newMetaBlock() metaBlock {
	return metaBlock{
		NodeFields: []string{"type", "name", "id", "self_size", "edge_count"},
		NodeTypes: [][]string{
			nodeTypeNames,
			{"string"},
			{"number"},
			{"number"},
			{"number"},
		},
		EdgeFields: []string{"type", "name_or_index", "to_node"},
		EdgeTypes: [][]string{
			edgeTypeNames,
			{"string_or_number"},
			{"node"},
		},
	}
}

// snapshotHeader is the document's top-level "snapshot" object:
// meta block plus the node/edge counts a viewer needs before it has
// parsed the flat arrays.
type snapshotHeader struct {
	Meta      metaBlock `json:"meta"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
}

// Document is the full serialized heap snapshot (§4.4): a meta-and-
// count header, the flat nodes/edges int arrays, and the interned
// strings table name/name_or_index fields reference by index.
type Document struct {
	Snapshot snapshotHeader `json:"snapshot"`
	Nodes    []int64        `json:"nodes"`
	Edges    []int64        `json:"edges"`
	Strings  []string       `json:"strings"`
}
