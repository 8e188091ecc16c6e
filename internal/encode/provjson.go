package encode

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/prov"
)

// WriteJSON emits the graph as a PROV-JSON document. Node attribute
// bags become string maps; relations become numbered blank-node
// records grouped by relation name.
func WriteJSON(w io.Writer, g *prov.Graph) error {
	doc := map[string]any{}

	entities := map[string]map[string]string{}
	activities := map[string]map[string]string{}
	agents := map[string]map[string]string{}
	for _, n := range g.Nodes {
		bag := map[string]string{"prov:type": n.Type}
		for _, a := range n.Attrs {
			bag[a.Key] = a.Value
		}
		switch n.Kind {
		case prov.KindEntity:
			entities[n.ID] = bag
		case prov.KindActivity:
			activities[n.ID] = bag
		case prov.KindAgent:
			agents[n.ID] = bag
		}
	}
	if len(entities) > 0 {
		doc["entity"] = entities
	}
	if len(activities) > 0 {
		doc["activity"] = activities
	}
	if len(agents) > 0 {
		doc["agent"] = agents
	}

	counter := 0
	for _, r := range g.Relations {
		args, ok := relationArgs[r.Type]
		if !ok {
			return gperrors.Internalf("relation type %q has no encoding", r.Type)
		}
		counter++
		record := map[string]string{
			args[0]: r.Source,
			args[1]: r.Target,
		}
		for _, a := range r.Attrs {
			record[a.Key] = a.Value
		}

		group, ok := doc[string(r.Type)].(map[string]map[string]string)
		if !ok {
			group = map[string]map[string]string{}
			doc[string(r.Type)] = group
		}
		group[fmt.Sprintf("_:n%d", counter)] = record
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return gperrors.Storage(err, "failed to write prov-json document")
	}
	return nil
}
