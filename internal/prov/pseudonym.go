package prov

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/logging"
)

// Pseudonymize replaces the identifying attributes of every agent node with
// keyed digests. The digest is an HMAC-SHA256 of the original value, so the
// same (name, email) pair under the same key yields the same pseudonym in
// every run, which keeps longitudinal studies possible without exposing
// identity. Node identifiers, non-agent nodes and all relation topology are
// left untouched.
//
// Pseudonymization must run after double-agent resolution, never before:
// resolution depends on genuine name/email equality that the digests
// destroy. A graph without agent nodes passes through unchanged.
func Pseudonymize(g *Graph, key []byte) (*Graph, error) {
	if len(key) == 0 {
		return nil, gperrors.Security("pseudonymization requested without a key")
	}

	out := NewGraph()
	out.Conflicts = append(out.Conflicts, g.Conflicts...)
	out.Merges = append(out.Merges, g.Merges...)
	out.Relations = append(out.Relations, g.Relations...)

	replaced := 0
	for _, n := range g.Nodes {
		if n.Kind != KindAgent {
			out.Nodes = append(out.Nodes, n)
			continue
		}
		out.Nodes = append(out.Nodes, pseudonymizeAgent(n, key))
		replaced++
	}

	logging.Debug("pseudonymized agents", "agents", replaced)
	return out, nil
}

// pseudonymizeAgent rebuilds one agent with digested identifying attributes.
// Only name, email and the alias audit attributes are replaced; role and
// type tags survive as-is.
func pseudonymizeAgent(n Node, key []byte) Node {
	out := Node{ID: n.ID, Kind: n.Kind, Type: n.Type}
	for _, attr := range n.Attrs {
		switch attr.Key {
		case AttrName, AttrEmail, "aliases", "alias_names", "alias_emails":
			if attr.Value != "" {
				attr.Value = Pseudonym(key, attr.Value)
			}
		}
		out.Attrs = append(out.Attrs, attr)
	}
	return out
}

// Pseudonym is the deterministic keyed digest behind agent pseudonymization.
func Pseudonym(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
