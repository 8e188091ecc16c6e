package encode

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceworks/gitprov/internal/prov"
)

func sampleGraph() *prov.Graph {
	g := prov.NewGraph()
	file := g.Entity(prov.FileID("main.go", "abc"), prov.TypeFile,
		prov.Attr{Key: prov.AttrName, Value: "main.go"})
	commit := g.Activity(prov.GitCommitID("abc"), prov.TypeGitCommit)
	author := g.Agent(prov.UserID("Alice", "alice@example.com"), prov.TypeUser,
		prov.Attr{Key: prov.AttrName, Value: "Alice"},
		prov.Attr{Key: prov.AttrEmail, Value: "alice@example.com"})

	g.Relate(prov.Generation, file, commit)
	g.Relate(prov.Attribution, file, author, prov.Attr{Key: prov.AttrRole, Value: prov.RoleAuthor})
	return g
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleGraph()))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	entities, ok := doc["entity"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, entities, 1)
	assert.Contains(t, doc, "activity")
	assert.Contains(t, doc, "agent")

	gens, ok := doc["wasGeneratedBy"].(map[string]any)
	require.True(t, ok)
	require.Len(t, gens, 1)
	for _, v := range gens {
		record := v.(map[string]any)
		assert.Equal(t, prov.GitCommitID("abc"), record["prov:activity"])
	}

	attrs, ok := doc["wasAttributedTo"].(map[string]any)
	require.True(t, ok)
	for _, v := range attrs {
		record := v.(map[string]any)
		assert.Equal(t, prov.RoleAuthor, record[prov.AttrRole])
	}
}

func TestWriteN(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteN(&buf, sampleGraph()))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "document\n"))
	assert.True(t, strings.HasSuffix(out, "endDocument\n"))
	assert.Contains(t, out, "entity(<"+prov.FileID("main.go", "abc")+">")
	assert.Contains(t, out, "activity(<"+prov.GitCommitID("abc")+">, -, -,")
	assert.Contains(t, out, "wasGeneratedBy(<")
	assert.Contains(t, out, `role="Author"`)
}

func TestWriteDOT(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDOT(&buf, sampleGraph()))
	out := buf.String()

	assert.Contains(t, out, "digraph provenance {")
	assert.Contains(t, out, "shape=ellipse")
	assert.Contains(t, out, "shape=box")
	assert.Contains(t, out, "shape=house")
	assert.Contains(t, out, `label="wasGeneratedBy"`)
}

func TestWriteStatsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, sampleGraph(), false))
	out := buf.String()

	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "entity")
	assert.Contains(t, out, "wasGeneratedBy")
}

func TestWriteStatsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, sampleGraph(), true))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	assert.Equal(t, "category,name,count", lines[0])
	assert.Contains(t, buf.String(), "total,nodes,3")
	assert.Contains(t, buf.String(), "total,relations,2")
}

func TestWriteDispatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleGraph(), FormatPROVJSON))
	assert.NotZero(t, buf.Len())

	err := Write(&buf, sampleGraph(), "yaml")
	require.Error(t, err)
}

func TestRelationshipName(t *testing.T) {
	assert.Equal(t, "WAS_GENERATED_BY", relationshipName(prov.Generation))
	assert.Equal(t, "USED", relationshipName(prov.Usage))
	assert.Equal(t, "HAD_MEMBER", relationshipName(prov.Membership))
}
