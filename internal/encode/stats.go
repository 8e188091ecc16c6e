package encode

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/prov"
)

type statRow struct {
	Category string
	Name     string
	Count    int
}

func statRows(g *prov.Graph) []statRow {
	stats := g.Stats()

	var rows []statRow
	byKind := map[prov.NodeKind]int{}
	for _, n := range g.Nodes {
		byKind[n.Kind]++
	}
	for _, kind := range []prov.NodeKind{prov.KindEntity, prov.KindActivity, prov.KindAgent} {
		rows = append(rows, statRow{"node", kind.String(), byKind[kind]})
	}

	var types []string
	for t := range stats.Elements {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		rows = append(rows, statRow{"type", t, stats.Elements[t]})
	}

	var relations []string
	for t := range stats.Relations {
		relations = append(relations, string(t))
	}
	sort.Strings(relations)
	for _, t := range relations {
		rows = append(rows, statRow{"relation", t, stats.Relations[prov.RelationType(t)]})
	}

	rows = append(rows,
		statRow{"total", "nodes", len(g.Nodes)},
		statRow{"total", "relations", len(g.Relations)},
		statRow{"audit", "attribute conflicts", len(g.Conflicts)},
		statRow{"audit", "agent merges", len(g.Merges)},
	)
	return rows
}

// WriteStats prints graph statistics, either as an aligned table or
// as CSV.
func WriteStats(w io.Writer, g *prov.Graph, asCSV bool) error {
	rows := statRows(g)

	if asCSV {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"category", "name", "count"}); err != nil {
			return gperrors.Storage(err, "failed to write stats csv")
		}
		for _, r := range rows {
			if err := cw.Write([]string{r.Category, r.Name, strconv.Itoa(r.Count)}); err != nil {
				return gperrors.Storage(err, "failed to write stats csv")
			}
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return gperrors.Storage(err, "failed to write stats csv")
		}
		return nil
	}

	bw := bufio.NewWriter(w)
	tw := tabwriter.NewWriter(bw, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tNAME\tCOUNT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Category, r.Name, r.Count)
	}
	if err := tw.Flush(); err != nil {
		return gperrors.Storage(err, "failed to write stats table")
	}
	if err := bw.Flush(); err != nil {
		return gperrors.Storage(err, "failed to write stats table")
	}
	return nil
}
