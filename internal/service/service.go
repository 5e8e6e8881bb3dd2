// Package service contains the application core: recursive directory
// ingestion into the knowledge graph and graph-augmented question answering.
package service

import (
	"go.uber.org/zap"

	"graphrag/internal/domain"
	"graphrag/internal/status"
)

// DefaultTopK is the number of chunks retrieved when the caller does not
// choose a count.
const DefaultTopK = 5

// Service wires the chunker, the model clients and the graph store into the
// two public operations, Ingest and Answer.
type Service struct {
	chunker   domain.Chunker
	embedder  domain.Embedder
	extractor domain.Extractor
	completer domain.Completer
	store     domain.GraphStore
	tracker   *status.Tracker
	log       *zap.Logger
}

func NewService(
	chunker domain.Chunker,
	embedder domain.Embedder,
	extractor domain.Extractor,
	completer domain.Completer,
	store domain.GraphStore,
	tracker *status.Tracker,
	log *zap.Logger,
) *Service {
	return &Service{
		chunker:   chunker,
		embedder:  embedder,
		extractor: extractor,
		completer: completer,
		store:     store,
		tracker:   tracker,
		log:       log,
	}
}
