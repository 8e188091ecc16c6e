package encode

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/prov"
)

// Conventional PROV visualization shapes and fills.
var dotStyles = map[prov.NodeKind]struct{ shape, fill string }{
	prov.KindEntity:   {"ellipse", "#FFFC87"},
	prov.KindActivity: {"box", "#9FB1FC"},
	prov.KindAgent:    {"house", "#FED37F"},
}

// WriteDOT emits the graph for Graphviz rendering.
func WriteDOT(w io.Writer, g *prov.Graph) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "digraph provenance {")
	fmt.Fprintln(bw, "  rankdir=BT;")
	fmt.Fprintln(bw, "  node [style=filled];")

	for _, n := range g.Nodes {
		style := dotStyles[n.Kind]
		fmt.Fprintf(bw, "  %s [shape=%s, fillcolor=%q, label=%s];\n",
			dotQuote(n.ID), style.shape, style.fill, dotQuote(dotLabel(n)))
	}

	for _, r := range g.Relations {
		fmt.Fprintf(bw, "  %s -> %s [label=%q];\n",
			dotQuote(r.Source), dotQuote(r.Target), string(r.Type))
	}

	fmt.Fprintln(bw, "}")

	if err := bw.Flush(); err != nil {
		return gperrors.Storage(err, "failed to write dot document")
	}
	return nil
}

// dotLabel keeps node boxes readable: the type tag plus the natural
// key, not the full attribute bag.
func dotLabel(n prov.Node) string {
	return n.Type + "\n" + n.ID
}

func dotQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return `"` + s + `"`
}
