package graph

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"graphrag/internal/domain"
)

// statement is one parameterized Cypher command inside a file transaction.
type statement struct {
	cypher string
	params map[string]any
}

// fileStatements renders the complete write set for one file in dependency
// order: file, document, chunks with their chain, entities, mentions,
// relations. Every command is a MERGE keyed on stable ids, so replaying the
// same payload is a no-op.
func fileStatements(g domain.GraphFile) []statement {
	stmts := make([]statement, 0, 2+2*len(g.Chunks)+len(g.Entities)+len(g.Mentions)+len(g.Relations))

	stmts = append(stmts, statement{
		cypher: "MERGE (f:File {id: $id}) " +
			"SET f.path = $path, f.filename = $filename, f.sizeBytes = $sizeBytes, " +
			"f.modifiedAt = $modifiedAt, f.mimeType = $mimeType",
		params: map[string]any{
			"id":         g.File.ID,
			"path":       g.File.Path,
			"filename":   g.File.Filename,
			"sizeBytes":  g.File.SizeBytes,
			"modifiedAt": g.File.ModifiedAt,
			"mimeType":   g.File.MimeType,
		},
	})

	stmts = append(stmts, statement{
		cypher: "MERGE (d:Document {id: $id}) " +
			"SET d.title = $title, d.docType = $docType, d.language = $language, d.source = $source " +
			"WITH d MATCH (f:File {id: $fileId}) MERGE (f)-[:HAS_DOCUMENT]->(d)",
		params: map[string]any{
			"id":       g.Document.ID,
			"title":    g.Document.Title,
			"docType":  g.Document.DocType,
			"language": g.Document.Language,
			"source":   g.Document.Source,
			"fileId":   g.File.ID,
		},
	})

	for i, ch := range g.Chunks {
		stmts = append(stmts, statement{
			cypher: "MERGE (c:Chunk {id: $id}) " +
				"SET c.documentId = $documentId, c.index = $index, c.text = $text, " +
				"c.tokenCount = $tokenCount, c.embedding = $embedding " +
				"WITH c MATCH (d:Document {id: $documentId}) MERGE (d)-[:HAS_CHUNK]->(c)",
			params: map[string]any{
				"id":         ch.ID,
				"documentId": ch.DocumentID,
				"index":      int64(ch.Index),
				"text":       ch.Text,
				"tokenCount": int64(ch.TokenCount),
				"embedding":  embeddingParam(ch.Embedding),
			},
		})
		if i > 0 {
			stmts = append(stmts, statement{
				cypher: "MATCH (a:Chunk {id: $prevId}) MATCH (b:Chunk {id: $nextId}) " +
					"MERGE (a)-[:NEXT_CHUNK]->(b)",
				params: map[string]any{
					"prevId": g.Chunks[i-1].ID,
					"nextId": ch.ID,
				},
			})
		}
	}

	for _, e := range g.Entities {
		// The secondary label is set only on create, so the first file to
		// introduce an entity fixes its kind for good.
		stmts = append(stmts, statement{
			cypher: fmt.Sprintf(
				"MERGE (e:Entity {id: $id}) ON CREATE SET e:%s, e.label = $label",
				sanitizeLabel(e.Label)),
			params: map[string]any{
				"id":    e.ID,
				"label": e.Label,
			},
		})
	}

	for _, m := range g.Mentions {
		stmts = append(stmts, statement{
			cypher: "MATCH (c:Chunk {id: $chunkId}) MATCH (e:Entity {id: $entityId}) " +
				"MERGE (c)-[:MENTIONS]->(e)",
			params: map[string]any{
				"chunkId":  m.ChunkID,
				"entityId": m.EntityID,
			},
		})
	}

	for _, r := range g.Relations {
		// MATCH instead of MERGE on the endpoints: a relation whose endpoint
		// was never extracted as an entity quietly creates nothing.
		stmts = append(stmts, statement{
			cypher: "MATCH (a:Entity {id: $subject}) MATCH (b:Entity {id: $object}) " +
				"MERGE (a)-[r:RELATED_TO {type: $predicate}]->(b)",
			params: map[string]any{
				"subject":   r.Subject,
				"predicate": r.Predicate,
				"object":    r.Object,
			},
		})
	}

	return stmts
}

// sanitizeLabel turns a free-form extraction label into a valid Cypher node
// label. Anything without letters falls back to Concept.
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Concept"
	}
	runes := []rune(b.String())
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// embeddingParam converts a vector into the float64 list form the driver
// serializes.
func embeddingParam(embedding []float32) []float64 {
	out := make([]float64, len(embedding))
	for i, v := range embedding {
		out[i] = float64(v)
	}
	return out
}

// WriteFileGraph persists one file's nodes and edges in a single write
// transaction. Either the whole payload lands or none of it does.
func (s *Store) WriteFileGraph(ctx context.Context, file domain.GraphFile) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	stmts := fileStatements(file)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range stmts {
			result, err := tx.Run(ctx, st.cypher, st.params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		s.log.Error("file graph write failed",
			zap.String("path", file.File.Path),
			zap.Error(err))
		return fmt.Errorf("write file graph: %w", err)
	}
	s.log.Debug("file graph written",
		zap.String("path", file.File.Path),
		zap.Int("chunks", len(file.Chunks)),
		zap.Int("entities", len(file.Entities)),
		zap.Int("relations", len(file.Relations)))
	return nil
}
