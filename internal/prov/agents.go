package prov

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/logging"
)

// MatchPolicy decides whether two agent identities belong to the same human.
// Matching is pairwise and need not be transitive; the resolver closes it
// transitively via union-find, accepting over-merging as the cost of the
// chosen policy.
type MatchPolicy struct {
	kind      policyKind
	threshold float64
}

type policyKind int

const (
	policyExactEmail policyKind = iota
	policyExactName
	policyEmailOrName
	policySimilarity
)

// Policy names accepted by ParsePolicy.
const (
	PolicyExactEmail  = "exact-email"
	PolicyExactName   = "exact-name"
	PolicyEmailOrName = "email-or-name"
	// Similarity policies are written "similarity:<threshold>", e.g.
	// "similarity:0.85".
	policySimilarityPrefix = "similarity:"
)

// ParsePolicy resolves a policy name from configuration. An unknown name is
// a configuration error and must abort the run before any graph work.
func ParsePolicy(name string) (MatchPolicy, error) {
	switch name {
	case PolicyExactEmail:
		return MatchPolicy{kind: policyExactEmail}, nil
	case PolicyExactName:
		return MatchPolicy{kind: policyExactName}, nil
	case PolicyEmailOrName:
		return MatchPolicy{kind: policyEmailOrName}, nil
	}
	if rest, ok := strings.CutPrefix(name, policySimilarityPrefix); ok {
		threshold, err := strconv.ParseFloat(rest, 64)
		if err != nil || threshold <= 0 || threshold > 1 {
			return MatchPolicy{}, gperrors.Configf("invalid similarity threshold %q", rest)
		}
		return MatchPolicy{kind: policySimilarity, threshold: threshold}, nil
	}
	return MatchPolicy{}, gperrors.Configf("unknown agent match policy %q", name)
}

// String returns the configuration spelling of the policy.
func (p MatchPolicy) String() string {
	switch p.kind {
	case policyExactEmail:
		return PolicyExactEmail
	case policyExactName:
		return PolicyExactName
	case policyEmailOrName:
		return PolicyEmailOrName
	case policySimilarity:
		return fmt.Sprintf("%s%g", policySimilarityPrefix, p.threshold)
	}
	return "unknown"
}

type identity struct {
	id    string
	name  string
	email string
}

// Match applies the pairwise predicate. Empty fields never match: an agent
// with no email cannot be email-equal to anything.
func (p MatchPolicy) match(a, b identity) bool {
	sameEmail := a.email != "" && a.email == b.email
	sameName := a.name != "" && a.name == b.name
	switch p.kind {
	case policyExactEmail:
		return sameEmail
	case policyExactName:
		return sameName
	case policyEmailOrName:
		return sameEmail || sameName
	case policySimilarity:
		return similarity(a.name, b.name) >= p.threshold ||
			similarity(a.email, b.email) >= p.threshold
	}
	return false
}

// similarity is a normalized Levenshtein ratio in [0, 1].
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}

// ResolveDoubleAgents clusters agent nodes that represent the same human
// under different aliases and merges each cluster into one canonical agent.
// The input must already be deduplicated (unique identifiers); the output
// must be deduplicated again by the caller, since rerouting relations onto
// canonical agents creates value-identical duplicates.
//
// The canonical agent of a cluster is the one with the lexicographically
// smallest identifier. It absorbs the attributes of every merged agent and
// gains aliases/alias_names/alias_emails audit attributes. Clusters of size
// one pass through untouched.
func ResolveDoubleAgents(g *Graph, policy MatchPolicy) *Graph {
	agents := g.NodesOfKind(KindAgent)
	identities := make([]identity, 0, len(agents))
	byID := make(map[string]Node, len(agents))
	for _, a := range agents {
		name, _ := a.Attr(AttrName)
		email, _ := a.Attr(AttrEmail)
		identities = append(identities, identity{id: a.ID, name: name, email: strings.ToLower(email)})
		byID[a.ID] = a
	}

	uf := newUnionFind(agentIDs(identities))
	for i := 0; i < len(identities); i++ {
		for j := i + 1; j < len(identities); j++ {
			if policy.match(identities[i], identities[j]) {
				uf.union(identities[i].id, identities[j].id)
			}
		}
	}

	out := NewGraph()
	out.Conflicts = append(out.Conflicts, g.Conflicts...)
	out.Merges = append(out.Merges, g.Merges...)
	for _, n := range g.Nodes {
		if n.Kind != KindAgent {
			out.Nodes = append(out.Nodes, n)
		}
	}

	reroute := make(map[string]string, len(agents))
	for _, members := range uf.clusters() {
		sort.Strings(members)
		canonical := members[0]
		for _, m := range members {
			reroute[m] = canonical
		}
		merged := mergeCluster(byID, members)
		out.Nodes = append(out.Nodes, merged.node)
		if len(members) > 1 {
			out.Merges = append(out.Merges, merged.audit)
			logging.Info("merged double agents",
				"canonical", canonical, "aliases", len(members)-1, "policy", policy.String())
		}
	}

	for _, r := range g.Relations {
		r.Source = rerouted(reroute, r.Source)
		r.Target = rerouted(reroute, r.Target)
		out.Relations = append(out.Relations, r)
	}
	return out
}

func agentIDs(ids []identity) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.id
	}
	return out
}

func rerouted(m map[string]string, id string) string {
	if to, ok := m[id]; ok {
		return to
	}
	return id
}

type clusterMerge struct {
	node  Node
	audit AgentMerge
}

// mergeCluster builds the canonical agent node for a sorted member list.
func mergeCluster(byID map[string]Node, members []string) clusterMerge {
	canonical := byID[members[0]]
	node := Node{ID: canonical.ID, Kind: KindAgent, Type: canonical.Type}
	node.Attrs = append(node.Attrs, canonical.Attrs...)

	audit := AgentMerge{Canonical: canonical.ID}
	names := map[string]struct{}{}
	emails := map[string]struct{}{}
	for _, m := range members {
		agent := byID[m]
		if name, ok := agent.Attr(AttrName); ok && name != "" {
			names[name] = struct{}{}
		}
		if email, ok := agent.Attr(AttrEmail); ok && email != "" {
			emails[strings.ToLower(email)] = struct{}{}
		}
		if m == canonical.ID {
			continue
		}
		audit.Merged = append(audit.Merged, m)
		for _, attr := range agent.Attrs {
			if _, present := node.Attr(attr.Key); !present {
				node.Attrs = append(node.Attrs, attr)
			}
		}
	}
	audit.Names = sortedKeys(names)
	audit.Emails = sortedKeys(emails)

	if len(members) > 1 {
		node.Attrs = append(node.Attrs,
			KV("aliases", strings.Join(audit.Merged, " ")),
			KV("alias_names", strings.Join(audit.Names, ";")),
			KV("alias_emails", strings.Join(audit.Emails, ";")))
	}
	return clusterMerge{node: node, audit: audit}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
