package encode

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/prov"
)

// WriteN emits the graph in PROV-N notation. Identifiers are written
// in angle brackets since the natural-key encoding is not a qualified
// name.
func WriteN(w io.Writer, g *prov.Graph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "document")

	for _, n := range g.Nodes {
		attrs := attrList(n.Type, n.Attrs)
		switch n.Kind {
		case prov.KindEntity:
			fmt.Fprintf(bw, "  entity(<%s>, %s)\n", n.ID, attrs)
		case prov.KindActivity:
			fmt.Fprintf(bw, "  activity(<%s>, -, -, %s)\n", n.ID, attrs)
		case prov.KindAgent:
			fmt.Fprintf(bw, "  agent(<%s>, %s)\n", n.ID, attrs)
		}
	}

	for _, r := range g.Relations {
		if _, ok := relationArgs[r.Type]; !ok {
			return gperrors.Internalf("relation type %q has no encoding", r.Type)
		}
		if len(r.Attrs) > 0 {
			fmt.Fprintf(bw, "  %s(<%s>, <%s>, %s)\n", r.Type, r.Source, r.Target, attrList("", r.Attrs))
		} else {
			fmt.Fprintf(bw, "  %s(<%s>, <%s>)\n", r.Type, r.Source, r.Target)
		}
	}

	fmt.Fprintln(bw, "endDocument")

	if err := bw.Flush(); err != nil {
		return gperrors.Storage(err, "failed to write prov-n document")
	}
	return nil
}

func attrList(typ string, attrs []prov.Attr) string {
	var parts []string
	if typ != "" {
		parts = append(parts, fmt.Sprintf("prov:type=%q", typ))
	}
	for _, a := range attrs {
		parts = append(parts, fmt.Sprintf("%s=%q", a.Key, a.Value))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
