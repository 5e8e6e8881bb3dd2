// Package httpapi exposes ingestion, retrieval and graph inspection over a
// JSON HTTP API. It owns the busy gate: a new ingestion run is rejected with
// 409 while one is in flight.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"graphrag/internal/domain"
	"graphrag/internal/graph"
	"graphrag/internal/status"
)

const (
	entityListLimit  = 200
	graphSampleLimit = 50
)

// GraphReader is the read-only slice of the graph store the API serves
// directly: entity listings, visualization samples and health info.
type GraphReader interface {
	ListEntities(ctx context.Context, limit int) ([]graph.EntityCount, error)
	Sample(ctx context.Context, limit int) (graph.GraphSample, error)
	Info(ctx context.Context) graph.Info
}

type Handler struct {
	rag     domain.RAGService
	graphs  GraphReader
	tracker *status.Tracker
	log     *zap.Logger

	browserURL string

	mu         sync.Mutex
	currentDir string

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

func NewHandler(rag domain.RAGService, graphs GraphReader, tracker *status.Tracker, neo4jURI string, log *zap.Logger) *Handler {
	return &Handler{
		rag:        rag,
		graphs:     graphs,
		tracker:    tracker,
		log:        log,
		browserURL: browserURL(neo4jURI),
		shutdownCh: make(chan struct{}),
	}
}

// ShutdownRequested is closed once a shutdown request has been accepted.
func (h *Handler) ShutdownRequested() <-chan struct{} {
	return h.shutdownCh
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(corsMiddleware)
	r.Route("/api", func(api chi.Router) {
		api.Post("/list-directory", h.handleListDirectory)
		api.Post("/select-directory", h.handleSelectDirectory)
		api.Post("/ingest", h.handleIngest)
		api.Post("/rag-query", h.handleRAGQuery)
		api.Get("/status", h.handleStatus)
		api.Get("/entities", h.handleListEntities)
		api.Get("/graph-data", h.handleGraphData)
		api.Get("/neo4j-info", h.handleNeo4jInfo)
		api.Post("/shutdown", h.handleShutdown)
	})
	return r
}

type dirPayload struct {
	Path string `json:"path"`
}

func (h *Handler) handleListDirectory(w http.ResponseWriter, r *http.Request) {
	var payload dirPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	path := payload.Path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "cannot determine home directory"})
			return
		}
		path = home
	}
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "path is not a valid directory"})
		return
	}
	tree, err := buildFileTree(path)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (h *Handler) handleSelectDirectory(w http.ResponseWriter, r *http.Request) {
	var payload dirPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if info, err := os.Stat(payload.Path); err != nil || !info.IsDir() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "path is not a valid directory"})
		return
	}
	h.mu.Lock()
	h.currentDir = payload.Path
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"message": "Directory selected for ingestion."})
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	root := h.currentDir
	h.mu.Unlock()
	if root == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "select a directory first"})
		return
	}
	if !h.tracker.TryStart("Starting ingestion...") {
		writeJSON(w, http.StatusConflict, map[string]any{"error": "an ingestion run is already in progress"})
		return
	}
	go h.runIngestion(root)
	w.WriteHeader(http.StatusAccepted)
}

// runIngestion drives one background run and releases the busy gate when it
// ends, whatever the outcome.
func (h *Handler) runIngestion(root string) {
	summary, err := h.rag.Ingest(context.Background(), root)
	if err != nil {
		h.log.Error("ingestion run failed", zap.String("root", root), zap.Error(err))
		h.tracker.Finish(fmt.Sprintf("Ingestion error: %v", err))
		return
	}
	h.tracker.Finish(fmt.Sprintf("Ingestion complete! %s", summary))
}

type ragQueryPayload struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type ragQueryResponse struct {
	Answer      string   `json:"answer"`
	KeyEntities []string `json:"key_entities"`
}

func (h *Handler) handleRAGQuery(w http.ResponseWriter, r *http.Request) {
	var payload ragQueryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	answer, entities, err := h.rag.Answer(r.Context(), payload.Question, payload.TopK)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		h.log.Error("rag query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if entities == nil {
		entities = []string{}
	}
	writeJSON(w, http.StatusOK, ragQueryResponse{Answer: answer, KeyEntities: entities})
}

type statusResponse struct {
	IsBusy   bool    `json:"is_busy"`
	Message  string  `json:"message"`
	Progress float64 `json:"progress"`
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := h.tracker.Snapshot()
	writeJSON(w, http.StatusOK, statusResponse{
		IsBusy:   snap.Busy,
		Message:  snap.Message,
		Progress: snap.Progress,
	})
}

func (h *Handler) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities, err := h.graphs.ListEntities(r.Context(), entityListLimit)
	if err != nil {
		h.log.Error("entity listing failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	if entities == nil {
		entities = []graph.EntityCount{}
	}
	writeJSON(w, http.StatusOK, entities)
}

type graphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Group string `json:"group"`
}

type graphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

type graphData struct {
	Nodes []graphNode `json:"nodes"`
	Edges []graphEdge `json:"edges"`
}

func (h *Handler) handleGraphData(w http.ResponseWriter, r *http.Request) {
	sample, err := h.graphs.Sample(r.Context(), graphSampleLimit)
	if err != nil {
		h.log.Error("graph sample failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	data := graphData{Nodes: []graphNode{}, Edges: []graphEdge{}}
	for _, n := range sample.Nodes {
		group := n.Label
		if group == "" {
			group = "Entity"
		}
		data.Nodes = append(data.Nodes, graphNode{ID: n.ID, Label: n.ID, Group: group})
	}
	for _, l := range sample.Links {
		data.Edges = append(data.Edges, graphEdge{Source: l.Source, Target: l.Target, Label: l.Predicate})
	}
	writeJSON(w, http.StatusOK, data)
}

func (h *Handler) handleNeo4jInfo(w http.ResponseWriter, r *http.Request) {
	info := h.graphs.Info(r.Context())
	if !info.Connected {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "neo4j is unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"browser_url": h.browserURL,
		"info":        info,
	})
}

func (h *Handler) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	h.log.Info("shutdown requested")
	h.shutdownOnce.Do(func() { close(h.shutdownCh) })
	w.WriteHeader(http.StatusOK)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// browserURL maps the configured bolt URI to the Neo4j browser address on
// the same host.
func browserURL(neo4jURI string) string {
	u, err := url.Parse(neo4jURI)
	if err != nil || u.Hostname() == "" {
		return "http://localhost:7474"
	}
	return fmt.Sprintf("http://%s:7474", u.Hostname())
}
