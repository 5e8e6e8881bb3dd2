package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"graphrag/internal/domain"
)

const noInformationAnswer = "No relevant information was found in the documents to answer this question."

// Answer retrieves the topK most similar chunks for the question, expands
// them into the entities and relations they touch, and asks the completion
// model with the combined context. It returns the answer verbatim together
// with the sorted set of key entities behind it.
func (s *Service) Answer(ctx context.Context, question string, topK int) (string, []string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vectors, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return "", nil, fmt.Errorf("%w: embed question: %v", domain.ErrRetrieval, err)
	}
	if len(vectors) != 1 {
		return "", nil, fmt.Errorf("%w: got %d vectors for one question", domain.ErrRetrieval, len(vectors))
	}

	matches, err := s.store.SearchChunks(ctx, vectors[0], topK)
	if err != nil {
		return "", nil, fmt.Errorf("%w: search chunks: %v", domain.ErrRetrieval, err)
	}
	if len(matches) == 0 {
		return noInformationAnswer, nil, nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	chunkIDs := make([]string, len(matches))
	texts := make([]string, len(matches))
	for i, m := range matches {
		chunkIDs[i] = m.ChunkID
		texts[i] = m.Text
	}
	contextText := strings.Join(texts, "\n\n---\n\n")

	graphContext, entities, err := s.buildGraphContext(ctx, chunkIDs)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", domain.ErrRetrieval, err)
	}
	fullContext := contextText
	if graphContext != "" {
		fullContext = fmt.Sprintf("**Document Information:**\n%s\n\n**Relevant Graph Knowledge:**\n%s",
			contextText, graphContext)
	}

	// The query is logged before the completion call. An audit failure is
	// warned and dropped, never returned to the caller.
	q := domain.Query{ID: uuid.NewString(), Question: question, CreatedAt: time.Now().UTC()}
	if err := s.store.LogQuery(ctx, q, matches); err != nil {
		s.log.Warn("query log failed", zap.String("query", q.ID), zap.Error(err))
	}

	answer, err := s.completer.Complete(ctx, question, fullContext)
	if err != nil {
		return "", nil, fmt.Errorf("%w: complete answer: %v", domain.ErrRetrieval, err)
	}

	s.log.Info("question answered",
		zap.String("query", q.ID),
		zap.Int("chunks", len(matches)),
		zap.Int("entities", len(entities)))
	return answer, entities, nil
}

// buildGraphContext expands the retrieved chunks into the entities they
// mention and the relations among exactly that entity set, rendered as a
// text block. Both returns are empty when the chunks mention nothing.
func (s *Service) buildGraphContext(ctx context.Context, chunkIDs []string) (string, []string, error) {
	mentioned, err := s.store.MentionedEntities(ctx, chunkIDs)
	if err != nil {
		return "", nil, fmt.Errorf("mentioned entities: %w", err)
	}
	if len(mentioned) == 0 {
		return "", nil, nil
	}

	entityIDs := make([]string, len(mentioned))
	for i, e := range mentioned {
		entityIDs[i] = e.ID
	}
	sort.Strings(entityIDs)

	relations, err := s.store.RelationsAmong(ctx, entityIDs)
	if err != nil {
		return "", nil, fmt.Errorf("relations among entities: %w", err)
	}

	var b strings.Builder
	b.WriteString("The following key concepts were identified: ")
	b.WriteString(strings.Join(entityIDs, ", "))
	b.WriteString(".\n")
	if lines := renderRelations(relations); len(lines) > 0 {
		b.WriteString("\nRelations found between these concepts:\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String(), entityIDs, nil
}

// renderRelations puts the lexicographically smaller endpoint of each
// relation first, so an undirected fact stored in either direction renders
// as the same line, then deduplicates and sorts the lines.
func renderRelations(relations []domain.Relation) []string {
	seen := make(map[string]bool)
	var lines []string
	for _, r := range relations {
		lo, hi := r.Subject, r.Object
		if hi < lo {
			lo, hi = hi, lo
		}
		line := fmt.Sprintf("- %s %s %s", lo, r.Predicate, hi)
		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}
	sort.Strings(lines)
	return lines
}
