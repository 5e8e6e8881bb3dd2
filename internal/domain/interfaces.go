package domain

import (
	"context"
	"fmt"
	"time"
)

// File represents a single file discovered under the ingestion root.
// Its ID is the filesystem path, so re-ingesting the same path overwrites
// rather than appends.
type File struct {
	ID         string
	Path       string
	Filename   string
	SizeBytes  int64
	ModifiedAt time.Time
	MimeType   string
}

// Document is the parsed text unit owned by exactly one File.
type Document struct {
	ID       string
	Title    string
	DocType  string
	Language string
	Source   string
}

// Chunk is a bounded, paragraph-aligned segment of a document and the unit
// of embedding and retrieval. Chunks of one document form a linear chain
// ordered by Index.
type Chunk struct {
	ID         string
	DocumentID string
	Index      int
	Text       string
	Embedding  []float32
	TokenCount int
}

// Entity is a graph-global node keyed by its canonical surface form.
// The label is fixed at first creation and never overwritten.
type Entity struct {
	ID    string
	Label string
}

// Relation is a directed subject-predicate-object edge between two entities,
// deduplicated by the whole triple.
type Relation struct {
	Subject   string
	Predicate string
	Object    string
}

// Extraction is the structured output of entity/relation extraction for one
// chunk of text.
type Extraction struct {
	Entities  []Entity
	Relations []Relation
}

// ChunkMention records that a chunk's text mentions an entity.
type ChunkMention struct {
	ChunkID  string
	EntityID string
}

// GraphFile is the complete, reconciled write payload for one file. It is
// persisted in a single transaction.
type GraphFile struct {
	File      File
	Document  Document
	Chunks    []Chunk
	Entities  []Entity
	Mentions  []ChunkMention
	Relations []Relation
}

// SearchResult is a chunk returned by vector similarity search.
type SearchResult struct {
	ChunkID   string
	Text      string
	Score     float64
	Embedding []float32
}

// Query is the audit record of one retrieval call.
type Query struct {
	ID        string
	Question  string
	CreatedAt time.Time
}

// IngestionSummary tallies the outcome of one ingestion run.
// FilesScanned == FilesIngested + FilesSkipped always holds.
type IngestionSummary struct {
	FilesScanned     int
	FilesIngested    int
	FilesSkipped     int
	ChunksCreated    int
	EntitiesCreated  int
	RelationsCreated int
}

// String renders the summary as the one-line report shown in the status
// message after a run.
func (s IngestionSummary) String() string {
	return fmt.Sprintf("Summary: %d files scanned, %d ingested, %d skipped. %d chunks, %d entities and %d relations created.",
		s.FilesScanned, s.FilesIngested, s.FilesSkipped,
		s.ChunksCreated, s.EntitiesCreated, s.RelationsCreated)
}

// Status is a snapshot of the process-wide ingestion state.
type Status struct {
	Busy     bool
	Message  string
	Progress float64
}

// Chunker splits raw document text into bounded-size segments.
type Chunker interface {
	Split(text string) []string
}

// Embedder converts a batch of texts into fixed-dimension vectors,
// preserving input order and length.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// Extractor converts text into a structured set of entities and relations.
// Malformed model output surfaces as an error; the caller substitutes an
// empty result rather than propagating it.
type Extractor interface {
	Extract(ctx context.Context, text string) (Extraction, error)
}

// Completer produces a natural-language answer from a question and the
// assembled context.
type Completer interface {
	Complete(ctx context.Context, question, contextText string) (string, error)
}

// GraphStore is the property-graph database boundary: transactional per-file
// upserts, vector similarity search over chunk embeddings, and the traversal
// reads used for context expansion and query logging.
type GraphStore interface {
	WriteFileGraph(ctx context.Context, file GraphFile) error
	SearchChunks(ctx context.Context, embedding []float32, topK int) ([]SearchResult, error)
	MentionedEntities(ctx context.Context, chunkIDs []string) ([]Entity, error)
	RelationsAmong(ctx context.Context, entityIDs []string) ([]Relation, error)
	LogQuery(ctx context.Context, q Query, matches []SearchResult) error
}

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	Ingest(ctx context.Context, root string) (IngestionSummary, error)
	Answer(ctx context.Context, question string, topK int) (string, []string, error)
}
