package graph

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphrag/internal/domain"
)

func testGraphFile() domain.GraphFile {
	return domain.GraphFile{
		File: domain.File{
			ID:         "/docs/a.txt",
			Path:       "/docs/a.txt",
			Filename:   "a.txt",
			SizeBytes:  42,
			ModifiedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
			MimeType:   "text/plain",
		},
		Document: domain.Document{
			ID:       "doc-1",
			Title:    "a.txt",
			DocType:  "txt",
			Language: "en",
			Source:   "/docs/a.txt",
		},
		Chunks: []domain.Chunk{
			{ID: "chunk-1", DocumentID: "doc-1", Index: 0, Text: "first", Embedding: []float32{0.1}, TokenCount: 1},
			{ID: "chunk-2", DocumentID: "doc-1", Index: 1, Text: "second", Embedding: []float32{0.2}, TokenCount: 1},
			{ID: "chunk-3", DocumentID: "doc-1", Index: 2, Text: "third", Embedding: []float32{0.3}, TokenCount: 1},
		},
		Entities: []domain.Entity{
			{ID: "alice", Label: "Person"},
			{ID: "acme", Label: "Organization"},
		},
		Mentions: []domain.ChunkMention{
			{ChunkID: "chunk-1", EntityID: "alice"},
			{ChunkID: "chunk-2", EntityID: "acme"},
		},
		Relations: []domain.Relation{
			{Subject: "alice", Predicate: "CEO_OF", Object: "acme"},
		},
	}
}

func TestFileStatementsOrder(t *testing.T) {
	stmts := fileStatements(testGraphFile())

	// 1 file + 1 document + 3 chunks + 2 chain edges + 2 entities +
	// 2 mentions + 1 relation.
	require.Len(t, stmts, 12)

	assert.True(t, strings.HasPrefix(stmts[0].cypher, "MERGE (f:File"))
	assert.Contains(t, stmts[1].cypher, "MERGE (d:Document")
	assert.Contains(t, stmts[1].cypher, "HAS_DOCUMENT")
	assert.Contains(t, stmts[2].cypher, "MERGE (c:Chunk")
	assert.Contains(t, stmts[2].cypher, "HAS_CHUNK")

	// The chain edge for a chunk follows the chunk itself, so both endpoints
	// already exist when the MATCH runs.
	assert.Contains(t, stmts[3].cypher, "MERGE (c:Chunk")
	assert.Contains(t, stmts[4].cypher, "NEXT_CHUNK")
	assert.Contains(t, stmts[5].cypher, "MERGE (c:Chunk")
	assert.Contains(t, stmts[6].cypher, "NEXT_CHUNK")

	assert.Contains(t, stmts[7].cypher, "MERGE (e:Entity")
	assert.Contains(t, stmts[8].cypher, "MERGE (e:Entity")
	assert.Contains(t, stmts[9].cypher, "MENTIONS")
	assert.Contains(t, stmts[10].cypher, "MENTIONS")
	assert.Contains(t, stmts[11].cypher, "RELATED_TO")
}

func TestFileStatementsChunkChain(t *testing.T) {
	stmts := fileStatements(testGraphFile())

	var chains []statement
	for _, st := range stmts {
		if strings.Contains(st.cypher, "NEXT_CHUNK") {
			chains = append(chains, st)
		}
	}
	require.Len(t, chains, 2)
	assert.Equal(t, "chunk-1", chains[0].params["prevId"])
	assert.Equal(t, "chunk-2", chains[0].params["nextId"])
	assert.Equal(t, "chunk-2", chains[1].params["prevId"])
	assert.Equal(t, "chunk-3", chains[1].params["nextId"])
}

func TestFileStatementsSingleChunkNoChain(t *testing.T) {
	g := testGraphFile()
	g.Chunks = g.Chunks[:1]
	for _, st := range fileStatements(g) {
		assert.NotContains(t, st.cypher, "NEXT_CHUNK")
	}
}

func TestFileStatementsEntityLabelOnCreateOnly(t *testing.T) {
	stmts := fileStatements(testGraphFile())

	entity := stmts[7]
	assert.Contains(t, entity.cypher, "ON CREATE SET e:Person")
	assert.Equal(t, "alice", entity.params["id"])
	assert.Equal(t, "Person", entity.params["label"])

	// The label property must not be part of an unconditional SET, otherwise
	// a later file could flip an existing entity's kind.
	assert.NotContains(t, strings.ReplaceAll(entity.cypher, "ON CREATE SET", ""), "SET e.label")
}

func TestFileStatementsRelationMatchesEndpoints(t *testing.T) {
	stmts := fileStatements(testGraphFile())

	rel := stmts[11]
	assert.Contains(t, rel.cypher, "MATCH (a:Entity {id: $subject})")
	assert.Contains(t, rel.cypher, "MATCH (b:Entity {id: $object})")
	assert.Contains(t, rel.cypher, "MERGE (a)-[r:RELATED_TO {type: $predicate}]->(b)")
	assert.Equal(t, "alice", rel.params["subject"])
	assert.Equal(t, "CEO_OF", rel.params["predicate"])
	assert.Equal(t, "acme", rel.params["object"])
}

func TestFileStatementsChunkParams(t *testing.T) {
	stmts := fileStatements(testGraphFile())

	chunk := stmts[2]
	assert.Equal(t, int64(0), chunk.params["index"])
	assert.Equal(t, int64(1), chunk.params["tokenCount"])
	assert.Equal(t, []float64{float64(float32(0.1))}, chunk.params["embedding"])
}

func TestFileStatementsDeterministic(t *testing.T) {
	g := testGraphFile()
	first := fileStatements(g)
	second := fileStatements(g)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].cypher, second[i].cypher)
		assert.Equal(t, first[i].params, second[i].params)
	}
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Person", "Person"},
		{"person", "Person"},
		{"ORGANIZATION", "ORGANIZATION"},
		{"weird label!", "Weirdlabel"},
		{"soft-ware 2.0", "Software"},
		{"", "Concept"},
		{"123", "Concept"},
		{"--", "Concept"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeLabel(tt.in), "label %q", tt.in)
	}
}

func TestEmbeddingParam(t *testing.T) {
	assert.Equal(t, []float64{0.5, 1.25, -2}, embeddingParam([]float32{0.5, 1.25, -2}))
	assert.Empty(t, embeddingParam(nil))
}
