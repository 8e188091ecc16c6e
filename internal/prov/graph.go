// Package prov holds the provenance graph model and the operations that
// assemble a final graph out of independently built subgraphs: combination,
// deduplication, double-agent resolution and pseudonymization.
package prov

import (
	"fmt"
	"sort"
	"strings"
)

// NodeKind partitions nodes into the three provenance classes.
type NodeKind int

const (
	KindEntity NodeKind = iota
	KindActivity
	KindAgent
)

func (k NodeKind) String() string {
	switch k {
	case KindEntity:
		return "entity"
	case KindActivity:
		return "activity"
	case KindAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// RelationType is the fixed relation vocabulary.
type RelationType string

const (
	Generation     RelationType = "wasGeneratedBy"
	Usage          RelationType = "used"
	Derivation     RelationType = "wasDerivedFrom"
	Invalidation   RelationType = "wasInvalidatedBy"
	Attribution    RelationType = "wasAttributedTo"
	Association    RelationType = "wasAssociatedWith"
	Communication  RelationType = "wasInformedBy"
	Membership     RelationType = "hadMember"
	Specialization RelationType = "specializationOf"
)

// Attr is a single key/value pair in a node or relation attribute bag.
// Bags are ordered slices rather than maps so that merge order and output
// order stay deterministic.
type Attr struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Node is one provenance node instance. Before deduplication a graph may
// hold several instances carrying the same ID; afterwards IDs are unique.
type Node struct {
	ID    string   `json:"id"`
	Kind  NodeKind `json:"kind"`
	Type  string   `json:"type"`
	Attrs []Attr   `json:"attrs,omitempty"`
}

// Attr returns the first value recorded for key and whether it was present.
func (n Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// fingerprint is a stable value identity for one node instance, used to
// sort instances when comparing graphs as sets.
func (n Node) fingerprint() string {
	var b strings.Builder
	b.WriteString(n.ID)
	fmt.Fprintf(&b, "|%d|%s", n.Kind, n.Type)
	for _, a := range n.Attrs {
		fmt.Fprintf(&b, "|%s=%s", a.Key, a.Value)
	}
	return b.String()
}

// Relation is a directed, typed edge between two node identifiers.
// Relations carry no identity beyond their value.
type Relation struct {
	Type   RelationType `json:"type"`
	Source string       `json:"source"`
	Target string       `json:"target"`
	Attrs  []Attr       `json:"attrs,omitempty"`
}

// key is the exact-equality fingerprint used for relation deduplication.
func (r Relation) key() string {
	var b strings.Builder
	b.WriteString(string(r.Type))
	b.WriteByte('|')
	b.WriteString(r.Source)
	b.WriteByte('|')
	b.WriteString(r.Target)
	for _, a := range r.Attrs {
		fmt.Fprintf(&b, "|%s=%s", a.Key, a.Value)
	}
	return b.String()
}

// AttrConflict records a merge conflict observed during deduplication.
// The first-seen value is kept, the later one is dropped and logged here.
type AttrConflict struct {
	NodeID  string `json:"node_id"`
	Key     string `json:"key"`
	Kept    string `json:"kept"`
	Dropped string `json:"dropped"`
}

// AgentMerge is the audit record of one double-agent cluster merge.
type AgentMerge struct {
	Canonical string   `json:"canonical"`
	Merged    []string `json:"merged"`
	Names     []string `json:"names"`
	Emails    []string `json:"emails"`
}

// Graph is the accumulating provenance graph. It has exactly one writer at
// any time; subgraphs built in parallel are merged only through Combine.
type Graph struct {
	Nodes     []Node     `json:"nodes"`
	Relations []Relation `json:"relations"`

	// Audit metadata filled in by Dedupe and ResolveDoubleAgents.
	Conflicts []AttrConflict `json:"conflicts,omitempty"`
	Merges    []AgentMerge   `json:"merges,omitempty"`
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Entity appends an entity node instance and returns its identifier.
func (g *Graph) Entity(id, typ string, attrs ...Attr) string {
	g.Nodes = append(g.Nodes, Node{ID: id, Kind: KindEntity, Type: typ, Attrs: attrs})
	return id
}

// Activity appends an activity node instance and returns its identifier.
func (g *Graph) Activity(id, typ string, attrs ...Attr) string {
	g.Nodes = append(g.Nodes, Node{ID: id, Kind: KindActivity, Type: typ, Attrs: attrs})
	return id
}

// Agent appends an agent node instance and returns its identifier.
func (g *Graph) Agent(id, typ string, attrs ...Attr) string {
	g.Nodes = append(g.Nodes, Node{ID: id, Kind: KindAgent, Type: typ, Attrs: attrs})
	return id
}

// Relate appends a relation between two node identifiers.
func (g *Graph) Relate(typ RelationType, source, target string, attrs ...Attr) {
	g.Relations = append(g.Relations, Relation{Type: typ, Source: source, Target: target, Attrs: attrs})
}

// NodesOfKind returns all node instances of the given kind in insertion order.
func (g *Graph) NodesOfKind(kind NodeKind) []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

// Node looks up the first instance carrying id.
func (g *Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// Stats counts nodes per type tag and relations per relation type.
type Stats struct {
	Elements  map[string]int
	Relations map[RelationType]int
}

// Stats tallies the graph contents for reporting.
func (g *Graph) Stats() Stats {
	s := Stats{Elements: map[string]int{}, Relations: map[RelationType]int{}}
	for _, n := range g.Nodes {
		s.Elements[n.Type]++
	}
	for _, r := range g.Relations {
		s.Relations[r.Type]++
	}
	return s
}

// normalized returns sorted copies of the node and relation sets, used for
// order-independent graph comparison.
func (g *Graph) normalized() ([]Node, []Relation) {
	nodes := make([]Node, len(g.Nodes))
	copy(nodes, g.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].fingerprint() < nodes[j].fingerprint() })
	rels := make([]Relation, len(g.Relations))
	copy(rels, g.Relations)
	sort.Slice(rels, func(i, j int) bool { return rels[i].key() < rels[j].key() })
	return nodes, rels
}

// Equal reports whether two graphs contain the same node and relation sets,
// ignoring insertion order.
func (g *Graph) Equal(other *Graph) bool {
	an, ar := g.normalized()
	bn, br := other.normalized()
	if len(an) != len(bn) || len(ar) != len(br) {
		return false
	}
	for i := range an {
		if !nodeEqual(an[i], bn[i]) {
			return false
		}
	}
	for i := range ar {
		if ar[i].key() != br[i].key() {
			return false
		}
	}
	return true
}

func nodeEqual(a, b Node) bool {
	if a.ID != b.ID || a.Kind != b.Kind || a.Type != b.Type || len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for i := range a.Attrs {
		if a.Attrs[i] != b.Attrs[i] {
			return false
		}
	}
	return true
}
