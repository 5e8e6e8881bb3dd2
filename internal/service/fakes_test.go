package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"graphrag/internal/chunker"
	"graphrag/internal/domain"
	"graphrag/internal/status"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(texts []string) ([][]float32, error)
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), texts...))
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(texts)
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(len(texts[i])), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

type fakeExtractor struct {
	calls int
	fn    func(text string) (domain.Extraction, error)
}

func (f *fakeExtractor) Extract(_ context.Context, text string) (domain.Extraction, error) {
	f.calls++
	if f.fn != nil {
		return f.fn(text)
	}
	return domain.Extraction{}, nil
}

type fakeCompleter struct {
	events      *[]string
	fn          func(question, contextText string) (string, error)
	calls       int
	lastContext string
}

func (f *fakeCompleter) Complete(_ context.Context, question, contextText string) (string, error) {
	f.calls++
	f.lastContext = contextText
	if f.events != nil {
		*f.events = append(*f.events, "complete")
	}
	if f.fn != nil {
		return f.fn(question, contextText)
	}
	return "the answer", nil
}

type fakeStore struct {
	events *[]string

	writes   []domain.GraphFile
	writeErr error

	search    []domain.SearchResult
	searchErr error
	lastTopK  int

	entities     []domain.Entity
	entitiesErr  error
	lastChunkIDs []string

	relations     []domain.Relation
	relationsErr  error
	lastEntityIDs []string

	logged        []domain.Query
	loggedMatches [][]domain.SearchResult
	logErr        error
}

func (f *fakeStore) WriteFileGraph(_ context.Context, g domain.GraphFile) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, g)
	return nil
}

func (f *fakeStore) SearchChunks(_ context.Context, _ []float32, topK int) ([]domain.SearchResult, error) {
	f.lastTopK = topK
	return f.search, f.searchErr
}

func (f *fakeStore) MentionedEntities(_ context.Context, chunkIDs []string) ([]domain.Entity, error) {
	f.lastChunkIDs = chunkIDs
	return f.entities, f.entitiesErr
}

func (f *fakeStore) RelationsAmong(_ context.Context, entityIDs []string) ([]domain.Relation, error) {
	f.lastEntityIDs = entityIDs
	return f.relations, f.relationsErr
}

func (f *fakeStore) LogQuery(_ context.Context, q domain.Query, matches []domain.SearchResult) error {
	if f.events != nil {
		*f.events = append(*f.events, "log")
	}
	f.logged = append(f.logged, q)
	f.loggedMatches = append(f.loggedMatches, matches)
	return f.logErr
}

type testRig struct {
	svc       *Service
	embedder  *fakeEmbedder
	extractor *fakeExtractor
	completer *fakeCompleter
	store     *fakeStore
	tracker   *status.Tracker
	events    []string
}

func newRig(maxChunkChars int) *testRig {
	rig := &testRig{
		embedder:  &fakeEmbedder{},
		extractor: &fakeExtractor{},
		completer: &fakeCompleter{},
		store:     &fakeStore{},
		tracker:   status.NewTracker(),
	}
	rig.completer.events = &rig.events
	rig.store.events = &rig.events
	rig.svc = NewService(
		chunker.NewParagraphChunker(maxChunkChars),
		rig.embedder,
		rig.extractor,
		rig.completer,
		rig.store,
		rig.tracker,
		zap.NewNop(),
	)
	return rig
}
