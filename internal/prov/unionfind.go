package prov

// unionFind is a disjoint-set over agent identifiers. It turns the locally
// defined pairwise match predicate into a globally transitive equivalence
// relation: agents matched only through an intermediary still land in one
// cluster.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind(ids []string) *unionFind {
	uf := &unionFind{
		parent: make(map[string]string, len(ids)),
		rank:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		uf.parent[id] = id
	}
	return uf
}

func (uf *unionFind) find(id string) string {
	root := id
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	// path compression
	for uf.parent[id] != root {
		uf.parent[id], id = root, uf.parent[id]
	}
	return root
}

func (uf *unionFind) union(a, b string) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	if uf.rank[ra] < uf.rank[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	if uf.rank[ra] == uf.rank[rb] {
		uf.rank[ra]++
	}
}

// clusters groups all ids by their root, preserving no particular order.
func (uf *unionFind) clusters() map[string][]string {
	out := make(map[string][]string)
	for id := range uf.parent {
		root := uf.find(id)
		out[root] = append(out[root], id)
	}
	return out
}
