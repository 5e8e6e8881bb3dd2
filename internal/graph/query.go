package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"graphrag/internal/domain"
)

// SearchChunks runs vector similarity search over chunk embeddings and
// returns up to topK chunks ordered by descending score.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, topK int) ([]domain.SearchResult, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx,
			"CALL db.index.vector.queryNodes($index, $k, $embedding) YIELD node, score "+
				"RETURN node.id AS id, node.text AS text, node.embedding AS embedding, score "+
				"ORDER BY score DESC",
			map[string]any{
				"index":     VectorIndexName,
				"k":         int64(topK),
				"embedding": embeddingParam(embedding),
			})
		if err != nil {
			return nil, err
		}
		var out []domain.SearchResult
		for result.Next(ctx) {
			rec := result.Record()
			out = append(out, domain.SearchResult{
				ChunkID:   stringValue(rec, "id"),
				Text:      stringValue(rec, "text"),
				Score:     floatValue(rec, "score"),
				Embedding: floatsValue(rec, "embedding"),
			})
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return res.([]domain.SearchResult), nil
}

// MentionedEntities returns the distinct entities mentioned by any of the
// given chunks, ordered by id.
func (s *Store) MentionedEntities(ctx context.Context, chunkIDs []string) ([]domain.Entity, error) {
	if len(chunkIDs) == 0 {
		return nil, nil
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx,
			"MATCH (c:Chunk)-[:MENTIONS]->(e:Entity) WHERE c.id IN $chunkIds "+
				"RETURN DISTINCT e.id AS id, e.label AS label ORDER BY id",
			map[string]any{"chunkIds": chunkIDs})
		if err != nil {
			return nil, err
		}
		var out []domain.Entity
		for result.Next(ctx) {
			rec := result.Record()
			out = append(out, domain.Entity{
				ID:    stringValue(rec, "id"),
				Label: stringValue(rec, "label"),
			})
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("mentioned entities: %w", err)
	}
	return res.([]domain.Entity), nil
}

// RelationsAmong returns every RELATED_TO edge whose two endpoints are both
// in the given entity set. Edges leading outside the set are not expanded.
func (s *Store) RelationsAmong(ctx context.Context, entityIDs []string) ([]domain.Relation, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx,
			"MATCH (a:Entity)-[r:RELATED_TO]->(b:Entity) "+
				"WHERE a.id IN $entityIds AND b.id IN $entityIds "+
				"RETURN a.id AS subject, r.type AS predicate, b.id AS object",
			map[string]any{"entityIds": entityIDs})
		if err != nil {
			return nil, err
		}
		var out []domain.Relation
		for result.Next(ctx) {
			rec := result.Record()
			out = append(out, domain.Relation{
				Subject:   stringValue(rec, "subject"),
				Predicate: stringValue(rec, "predicate"),
				Object:    stringValue(rec, "object"),
			})
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("relations among entities: %w", err)
	}
	return res.([]domain.Relation), nil
}

// LogQuery records a retrieval call and links it to the chunks it matched,
// with the similarity score on each edge. One write transaction covers the
// query node and all of its edges.
func (s *Store) LogQuery(ctx context.Context, q domain.Query, matches []domain.SearchResult) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx,
			"MERGE (q:Query {id: $id}) SET q.question = $question, q.createdAt = $createdAt",
			map[string]any{
				"id":        q.ID,
				"question":  q.Question,
				"createdAt": q.CreatedAt,
			})
		if err != nil {
			return nil, err
		}
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}
		for _, m := range matches {
			result, err := tx.Run(ctx,
				"MATCH (q:Query {id: $id}) MATCH (c:Chunk {id: $chunkId}) "+
					"MERGE (q)-[r:MATCHED_CHUNK]->(c) SET r.score = $score",
				map[string]any{
					"id":      q.ID,
					"chunkId": m.ChunkID,
					"score":   m.Score,
				})
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
		return fmt.Errorf("log query: %w", err)
	}
	s.log.Debug("query logged",
		zap.String("query", q.ID),
		zap.Int("matches", len(matches)))
	return nil
}

// EntityCount is an entity with its mention count, for the listing endpoint.
type EntityCount struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Mentions int64  `json:"mentions"`
}

// ListEntities returns up to limit entities ordered by how often they are
// mentioned, most mentioned first.
func (s *Store) ListEntities(ctx context.Context, limit int) ([]EntityCount, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx,
			"MATCH (e:Entity) OPTIONAL MATCH (c:Chunk)-[:MENTIONS]->(e) "+
				"RETURN e.id AS id, e.label AS label, count(c) AS mentions "+
				"ORDER BY mentions DESC, id ASC LIMIT $limit",
			map[string]any{"limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		var out []EntityCount
		for result.Next(ctx) {
			rec := result.Record()
			out = append(out, EntityCount{
				ID:       stringValue(rec, "id"),
				Label:    stringValue(rec, "label"),
				Mentions: intValue(rec, "mentions"),
			})
		}
		return out, result.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	return res.([]EntityCount), nil
}

// SampleLink is one edge in a graph sample.
type SampleLink struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Predicate string `json:"predicate"`
}

// GraphSample is a bounded slice of the entity graph for visualization.
type GraphSample struct {
	Nodes []domain.Entity `json:"nodes"`
	Links []SampleLink    `json:"links"`
}

// Sample returns up to limit RELATED_TO edges together with their deduplicated
// endpoint nodes.
func (s *Store) Sample(ctx context.Context, limit int) (GraphSample, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	res, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx,
			"MATCH (a:Entity)-[r:RELATED_TO]->(b:Entity) "+
				"RETURN a.id AS sourceId, a.label AS sourceLabel, r.type AS predicate, "+
				"b.id AS targetId, b.label AS targetLabel LIMIT $limit",
			map[string]any{"limit": int64(limit)})
		if err != nil {
			return nil, err
		}
		sample := GraphSample{}
		seen := make(map[string]bool)
		addNode := func(id, label string) {
			if id == "" || seen[id] {
				return
			}
			seen[id] = true
			sample.Nodes = append(sample.Nodes, domain.Entity{ID: id, Label: label})
		}
		for result.Next(ctx) {
			rec := result.Record()
			source := stringValue(rec, "sourceId")
			target := stringValue(rec, "targetId")
			addNode(source, stringValue(rec, "sourceLabel"))
			addNode(target, stringValue(rec, "targetLabel"))
			sample.Links = append(sample.Links, SampleLink{
				Source:    source,
				Target:    target,
				Predicate: stringValue(rec, "predicate"),
			})
		}
		return sample, result.Err()
	})
	if err != nil {
		return GraphSample{}, fmt.Errorf("graph sample: %w", err)
	}
	return res.(GraphSample), nil
}
