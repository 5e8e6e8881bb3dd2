package service

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphrag/internal/domain"
)

// Ingest walks root recursively and ingests every eligible file into the
// knowledge graph, one transaction per file. A failing file is skipped and
// the run carries on; the returned summary tallies every discovered file
// exactly once.
func (s *Service) Ingest(ctx context.Context, root string) (domain.IngestionSummary, error) {
	info, err := os.Stat(root)
	if err != nil {
		return domain.IngestionSummary{}, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, root, err)
	}
	if !info.IsDir() {
		return domain.IngestionSummary{}, fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, root)
	}

	var summary domain.IngestionSummary
	var files []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.log.Warn("walk error, skipping entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return summary, fmt.Errorf("%w: walk %s: %v", domain.ErrInvalidInput, root, walkErr)
	}

	summary.FilesScanned = len(files)
	var eligibleFiles []string
	for _, path := range files {
		if eligible(path) {
			eligibleFiles = append(eligibleFiles, path)
			continue
		}
		s.log.Info("skipping file with unsupported extension", zap.String("path", path))
		summary.FilesSkipped++
	}

	total := len(eligibleFiles)
	s.log.Info("ingestion started",
		zap.String("root", root),
		zap.Int("files", summary.FilesScanned),
		zap.Int("eligible", total))
	if total == 0 {
		s.tracker.Set("No eligible files found", 0)
		return summary, nil
	}

	for i, path := range eligibleFiles {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		name := filepath.Base(path)
		s.tracker.Set(fmt.Sprintf("[%d/%d] Processing: %s...", i+1, total, name), fraction(i, total))

		counts, err := s.ingestFile(ctx, path, i, total)
		done := fraction(i+1, total)
		switch {
		case err != nil:
			summary.FilesSkipped++
			s.log.Warn("file ingestion failed", zap.String("path", path), zap.Error(err))
			s.tracker.Set(fmt.Sprintf("ERROR in %s: %v", path, err), done)
		case counts == nil:
			summary.FilesSkipped++
			s.tracker.Set(fmt.Sprintf("[%d/%d] Skipped: %s", i+1, total, name), done)
		default:
			summary.FilesIngested++
			summary.ChunksCreated += counts.chunks
			summary.EntitiesCreated += counts.entities
			summary.RelationsCreated += counts.relations
			s.tracker.Set(fmt.Sprintf("[%d/%d] Ingested: %s", i+1, total, name), done)
		}
	}

	s.log.Info("ingestion finished", zap.String("summary", summary.String()))
	return summary, nil
}

type fileCounts struct {
	chunks    int
	entities  int
	relations int
}

// ingestFile runs the whole pipeline for one file: read, chunk, embed in one
// batch, extract per chunk, reconcile, write one transaction. Returning nil
// counts with a nil error means a soft skip (unreadable or empty file); an
// error means the file failed mid-pipeline. Neither outcome stops the run.
func (s *Service) ingestFile(ctx context.Context, path string, index, total int) (*fileCounts, error) {
	text, err := readDocumentText(path)
	if err != nil {
		s.log.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
		return nil, nil
	}

	segments := s.chunker.Split(text)
	if len(segments) == 0 {
		s.log.Warn("file empty or without useful text", zap.String("path", path))
		return nil, nil
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	embeddings, err := s.embedder.Embed(ctx, segments)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embeddings) != len(segments) {
		return nil, fmt.Errorf("%w: got %d vectors for %d chunks",
			domain.ErrExtractionMismatch, len(embeddings), len(segments))
	}

	name := filepath.Base(path)
	file := domain.File{
		ID:         path,
		Path:       path,
		Filename:   name,
		SizeBytes:  stat.Size(),
		ModifiedAt: stat.ModTime().UTC(),
		MimeType:   mimeTypeFor(path),
	}
	doc := domain.Document{
		ID:       uuid.NewString(),
		Title:    name,
		DocType:  strings.TrimPrefix(fileExt(path), "."),
		Language: "en",
		Source:   path,
	}

	chunks := make([]domain.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = domain.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			Index:      i,
			Text:       seg,
			Embedding:  embeddings[i],
			TokenCount: len(strings.Fields(seg)),
		}
	}

	extractions := make([]domain.Extraction, len(chunks))
	for i, chunk := range chunks {
		s.tracker.Set(
			fmt.Sprintf("File '%s': extracting knowledge from chunk %d/%d...", name, i+1, len(chunks)),
			fraction(index, total))
		extraction, err := s.extractor.Extract(ctx, chunk.Text)
		if err != nil {
			s.log.Warn("extraction failed, substituting empty result",
				zap.String("path", path), zap.Int("chunk", i), zap.Error(err))
			extraction = domain.Extraction{}
		}
		extractions[i] = extraction
	}

	graphFile := reconcile(file, doc, chunks, extractions)
	if err := s.store.WriteFileGraph(ctx, graphFile); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGraphWrite, err)
	}

	s.log.Info("file ingested",
		zap.String("path", path),
		zap.Int("chunks", len(graphFile.Chunks)),
		zap.Int("entities", len(graphFile.Entities)),
		zap.Int("relations", len(graphFile.Relations)))
	return &fileCounts{
		chunks:    len(graphFile.Chunks),
		entities:  len(graphFile.Entities),
		relations: len(graphFile.Relations),
	}, nil
}

// reconcile merges per-chunk extraction results into one write payload.
// Within a file the last label seen for an entity id wins; relation triples
// and mentions are deduplicated exactly. Conflicts across files are left to
// the store's merge semantics, where the first writer's label sticks.
func reconcile(file domain.File, doc domain.Document, chunks []domain.Chunk, extractions []domain.Extraction) domain.GraphFile {
	labels := make(map[string]string)
	mentionSeen := make(map[domain.ChunkMention]bool)
	var mentions []domain.ChunkMention
	relationSeen := make(map[domain.Relation]bool)
	var relations []domain.Relation

	for i, extraction := range extractions {
		for _, e := range extraction.Entities {
			id := strings.TrimSpace(e.ID)
			if id == "" {
				continue
			}
			label := strings.TrimSpace(e.Label)
			if label == "" {
				label = "Concept"
			}
			labels[id] = label
			m := domain.ChunkMention{ChunkID: chunks[i].ID, EntityID: id}
			if !mentionSeen[m] {
				mentionSeen[m] = true
				mentions = append(mentions, m)
			}
		}
		for _, r := range extraction.Relations {
			rel := domain.Relation{
				Subject:   strings.TrimSpace(r.Subject),
				Predicate: strings.TrimSpace(r.Predicate),
				Object:    strings.TrimSpace(r.Object),
			}
			if rel.Subject == "" || rel.Predicate == "" || rel.Object == "" {
				continue
			}
			if !relationSeen[rel] {
				relationSeen[rel] = true
				relations = append(relations, rel)
			}
		}
	}

	entities := make([]domain.Entity, 0, len(labels))
	for id, label := range labels {
		entities = append(entities, domain.Entity{ID: id, Label: label})
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })

	return domain.GraphFile{
		File:      file,
		Document:  doc,
		Chunks:    chunks,
		Entities:  entities,
		Mentions:  mentions,
		Relations: relations,
	}
}

func fraction(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}
