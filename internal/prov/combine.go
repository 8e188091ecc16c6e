package prov

// Combine unions subgraphs into one graph without any semantic merging.
// Every node and relation instance is preserved exactly as produced, so the
// result may carry several instances of the same identifier; resolving those
// is the deduplicator's job. The union is commutative and associative over
// the node and relation sets.
func Combine(subgraphs ...*Graph) *Graph {
	out := NewGraph()
	for _, sg := range subgraphs {
		if sg == nil {
			continue
		}
		out.Nodes = append(out.Nodes, sg.Nodes...)
		out.Relations = append(out.Relations, sg.Relations...)
		out.Conflicts = append(out.Conflicts, sg.Conflicts...)
		out.Merges = append(out.Merges, sg.Merges...)
	}
	return out
}
