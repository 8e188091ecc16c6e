// Package encode turns an assembled provenance graph into its output
// representations: PROV-JSON, PROV-N, Graphviz DOT and statistics
// tables, plus an export path into Neo4j.
package encode

import (
	"io"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/prov"
)

// Format names accepted by Write.
const (
	FormatPROVJSON = "prov-json"
	FormatPROVN    = "prov-n"
	FormatDOT      = "dot"
	FormatStats    = "stats"
	FormatStatsCSV = "stats-csv"
)

// Write encodes g in the named format onto w.
func Write(w io.Writer, g *prov.Graph, format string) error {
	switch format {
	case FormatPROVJSON:
		return WriteJSON(w, g)
	case FormatPROVN:
		return WriteN(w, g)
	case FormatDOT:
		return WriteDOT(w, g)
	case FormatStats:
		return WriteStats(w, g, false)
	case FormatStatsCSV:
		return WriteStats(w, g, true)
	default:
		return gperrors.Configf("unknown output format %q", format)
	}
}

// relationArgs names the two positional arguments of each relation in
// the PROV vocabulary, in source then target order.
var relationArgs = map[prov.RelationType][2]string{
	prov.Generation:     {"prov:entity", "prov:activity"},
	prov.Usage:          {"prov:activity", "prov:entity"},
	prov.Derivation:     {"prov:generatedEntity", "prov:usedEntity"},
	prov.Invalidation:   {"prov:entity", "prov:activity"},
	prov.Attribution:    {"prov:entity", "prov:agent"},
	prov.Association:    {"prov:activity", "prov:agent"},
	prov.Communication:  {"prov:informed", "prov:informant"},
	prov.Membership:     {"prov:collection", "prov:entity"},
	prov.Specialization: {"prov:specificEntity", "prov:generalEntity"},
}
