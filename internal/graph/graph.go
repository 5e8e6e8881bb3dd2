// Package graph is the Neo4j-backed property graph store: per-file
// transactional upserts, the chunk embedding vector index, and the traversal
// reads used by retrieval and the API surface.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// VectorIndexName is the vector index over Chunk.embedding.
const VectorIndexName = "chunkEmbeddingIndex"

// Store wraps a Neo4j driver. Sessions are created per call, so a Store is
// safe for concurrent use.
type Store struct {
	driver neo4j.DriverWithContext
	uri    string
	log    *zap.Logger
}

// Config contains the connection settings for Neo4j.
type Config struct {
	URI      string
	Username string
	Password string
}

// NewStore connects to Neo4j and verifies connectivity before returning.
func NewStore(ctx context.Context, cfg Config, log *zap.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	log.Info("connected to neo4j", zap.String("uri", cfg.URI))
	return &Store{driver: driver, uri: cfg.URI, log: log}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// schemaStatements are idempotent and safe to run at every startup.
var schemaStatements = []string{
	"CREATE CONSTRAINT file_id IF NOT EXISTS FOR (f:File) REQUIRE f.id IS UNIQUE",
	"CREATE CONSTRAINT document_id IF NOT EXISTS FOR (d:Document) REQUIRE d.id IS UNIQUE",
	"CREATE CONSTRAINT chunk_id IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE",
	"CREATE CONSTRAINT entity_id IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE",
	"CREATE CONSTRAINT query_id IF NOT EXISTS FOR (q:Query) REQUIRE q.id IS UNIQUE",
}

// EnsureSchema creates the unique id constraints. Schema commands must run
// in auto-commit transactions, hence session.Run instead of ExecuteWrite.
func (s *Store) EnsureSchema(ctx context.Context) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	for _, stmt := range schemaStatements {
		result, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("create constraint: %w", err)
		}
	}
	s.log.Info("graph schema ensured", zap.Int("constraints", len(schemaStatements)))
	return nil
}

// EnsureVectorIndex creates the cosine vector index over chunk embeddings.
// The dimension cannot be parameterized in a schema command, so it is
// formatted into the statement.
func (s *Store) EnsureVectorIndex(ctx context.Context, dimensions int) error {
	stmt := fmt.Sprintf(
		"CREATE VECTOR INDEX %s IF NOT EXISTS FOR (c:Chunk) ON (c.embedding) "+
			"OPTIONS {indexConfig: {`vector.dimensions`: %d, `vector.similarity_function`: 'cosine'}}",
		VectorIndexName, dimensions)
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	result, err := session.Run(ctx, stmt, nil)
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	s.log.Info("vector index ensured",
		zap.String("index", VectorIndexName),
		zap.Int("dimensions", dimensions))
	return nil
}

// Info describes the store for the health endpoint.
type Info struct {
	URI       string `json:"uri"`
	Connected bool   `json:"connected"`
	Files     int64  `json:"files"`
	Documents int64  `json:"documents"`
	Chunks    int64  `json:"chunks"`
	Entities  int64  `json:"entities"`
	Queries   int64  `json:"queries"`
	Relations int64  `json:"relations"`
}

// Info reports connectivity and node/edge counts.
func (s *Store) Info(ctx context.Context) Info {
	info := Info{URI: s.uri}
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		s.log.Warn("neo4j connectivity check failed", zap.Error(err))
		return info
	}
	info.Connected = true

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)
	counts, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx,
			"RETURN count{ (:File) } AS files, count{ (:Document) } AS documents, "+
				"count{ (:Chunk) } AS chunks, count{ (:Entity) } AS entities, "+
				"count{ (:Query) } AS queries, count{ ()-[:RELATED_TO]->() } AS relations",
			nil)
		if err != nil {
			return nil, err
		}
		if !result.Next(ctx) {
			return nil, result.Err()
		}
		rec := result.Record()
		return []int64{
			intValue(rec, "files"),
			intValue(rec, "documents"),
			intValue(rec, "chunks"),
			intValue(rec, "entities"),
			intValue(rec, "queries"),
			intValue(rec, "relations"),
		}, nil
	})
	if err != nil {
		s.log.Warn("graph counts query failed", zap.Error(err))
		return info
	}
	c := counts.([]int64)
	info.Files, info.Documents, info.Chunks = c[0], c[1], c[2]
	info.Entities, info.Queries, info.Relations = c[3], c[4], c[5]
	return info
}

func stringValue(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func intValue(record *neo4j.Record, key string) int64 {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0
	}
	n, _ := v.(int64)
	return n
}

func floatValue(record *neo4j.Record, key string) float64 {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func floatsValue(record *neo4j.Record, key string) []float32 {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]float32, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			out = append(out, float32(f))
		}
	}
	return out
}
