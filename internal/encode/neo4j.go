package encode

import (
	"context"
	"strings"
	"unicode"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/logging"
	"github.com/traceworks/gitprov/internal/prov"
)

// Neo4jExporter loads an assembled graph into Neo4j for interactive
// querying. Nodes are merged on their identifier, so re-exporting the
// same project updates in place.
type Neo4jExporter struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jExporter connects to the Neo4j instance at uri.
func NewNeo4jExporter(ctx context.Context, uri, username, password string) (*Neo4jExporter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, gperrors.Network(err, "failed to create neo4j driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, gperrors.Network(err, "failed to connect to neo4j at "+uri)
	}
	return &Neo4jExporter{driver: driver, database: "neo4j"}, nil
}

// Close shuts down the driver.
func (e *Neo4jExporter) Close(ctx context.Context) error {
	return e.driver.Close(ctx)
}

var kindLabels = map[prov.NodeKind]string{
	prov.KindEntity:   "Entity",
	prov.KindActivity: "Activity",
	prov.KindAgent:    "Agent",
}

// Export writes all nodes and relations of g.
func (e *Neo4jExporter) Export(ctx context.Context, g *prov.Graph) error {
	for kind, label := range kindLabels {
		var batch []map[string]any
		for _, n := range g.NodesOfKind(kind) {
			props := map[string]any{"type": n.Type}
			for _, a := range n.Attrs {
				props[propertyName(a.Key)] = a.Value
			}
			batch = append(batch, map[string]any{"id": n.ID, "props": props})
		}
		if len(batch) == 0 {
			continue
		}

		cypher := `
			UNWIND $batch AS row
			MERGE (n:` + label + ` {id: row.id})
			SET n += row.props
		`
		_, err := neo4j.ExecuteQuery(ctx, e.driver, cypher,
			map[string]any{"batch": batch},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(e.database))
		if err != nil {
			return gperrors.Network(err, "failed to export "+label+" nodes")
		}
		logging.Debug("exported nodes", "label", label, "count", len(batch))
	}

	byType := map[prov.RelationType][]map[string]any{}
	for _, r := range g.Relations {
		byType[r.Type] = append(byType[r.Type], map[string]any{
			"source": r.Source,
			"target": r.Target,
		})
	}

	for relType, batch := range byType {
		cypher := `
			UNWIND $batch AS row
			MATCH (a {id: row.source}), (b {id: row.target})
			MERGE (a)-[:` + relationshipName(relType) + `]->(b)
		`
		_, err := neo4j.ExecuteQuery(ctx, e.driver, cypher,
			map[string]any{"batch": batch},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(e.database))
		if err != nil {
			return gperrors.Network(err, "failed to export "+string(relType)+" relations")
		}
		logging.Debug("exported relations", "type", relType, "count", len(batch))
	}

	return nil
}

// relationshipName converts a relation type to the Cypher convention,
// e.g. wasGeneratedBy becomes WAS_GENERATED_BY.
func relationshipName(t prov.RelationType) string {
	var b strings.Builder
	for i, r := range string(t) {
		if unicode.IsUpper(r) && i > 0 {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// propertyName keeps Neo4j property keys plain.
func propertyName(key string) string {
	return strings.ReplaceAll(key, ":", "_")
}
