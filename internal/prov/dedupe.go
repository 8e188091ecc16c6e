package prov

import (
	"fmt"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/logging"
)

// Dedupe collapses all node instances sharing an identifier into one node
// whose attribute bag is the union of every instance's attributes. On a
// conflicting value for the same key the first-seen value wins and the
// conflict is recorded on the graph, never raised as an error. Relations are
// then deduplicated by exact (type, source, target, attrs) equality.
//
// Dedupe is idempotent: applying it to its own output changes nothing.
//
// A relation endpoint that resolves to no node after collapsing is a defect
// in a sub-model builder, not a data-quality issue, and is returned as a
// fatal internal error.
func Dedupe(g *Graph) (*Graph, error) {
	out := NewGraph()
	out.Conflicts = append(out.Conflicts, g.Conflicts...)
	out.Merges = append(out.Merges, g.Merges...)

	index := make(map[string]int, len(g.Nodes))
	for _, inst := range g.Nodes {
		at, seen := index[inst.ID]
		if !seen {
			index[inst.ID] = len(out.Nodes)
			merged := Node{ID: inst.ID, Kind: inst.Kind, Type: inst.Type}
			merged.Attrs = append(merged.Attrs, inst.Attrs...)
			out.Nodes = append(out.Nodes, merged)
			continue
		}
		node := &out.Nodes[at]
		if node.Kind != inst.Kind {
			return nil, gperrors.Internalf(
				"node %q emitted both as %s and as %s", inst.ID, node.Kind, inst.Kind)
		}
		mergeAttrs(node, inst, out)
	}

	seen := make(map[string]struct{}, len(g.Relations))
	for _, r := range g.Relations {
		k := r.key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Relations = append(out.Relations, r)
	}

	if err := checkEndpoints(out, index); err != nil {
		return nil, err
	}

	logging.Debug("deduplicated graph",
		"nodes_in", len(g.Nodes), "nodes_out", len(out.Nodes),
		"relations_in", len(g.Relations), "relations_out", len(out.Relations))
	return out, nil
}

// mergeAttrs unions inst's attributes into node, first value wins per key.
func mergeAttrs(node *Node, inst Node, g *Graph) {
	for _, attr := range inst.Attrs {
		prev, present := node.Attr(attr.Key)
		if !present {
			node.Attrs = append(node.Attrs, attr)
			continue
		}
		if prev != attr.Value && attr.Value != "" {
			g.Conflicts = append(g.Conflicts, AttrConflict{
				NodeID: node.ID, Key: attr.Key, Kept: prev, Dropped: attr.Value,
			})
		}
	}
}

func checkEndpoints(g *Graph, index map[string]int) error {
	for _, r := range g.Relations {
		if _, ok := index[r.Source]; !ok {
			return dangling(r, r.Source)
		}
		if _, ok := index[r.Target]; !ok {
			return dangling(r, r.Target)
		}
	}
	return nil
}

func dangling(r Relation, endpoint string) error {
	return gperrors.Internalf(
		"dangling relation endpoint %q in %s", endpoint,
		fmt.Sprintf("%s(%s -> %s)", r.Type, r.Source, r.Target))
}
