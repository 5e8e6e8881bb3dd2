package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"graphrag/internal/chunker"
	"graphrag/internal/config"
	"graphrag/internal/graph"
	"graphrag/internal/llm/openai"
	"graphrag/internal/service"
	"graphrag/internal/status"
	"graphrag/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, root string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/graphrag/config.yaml if not provided)")
	flag.StringVar(&root, "root", "", "Directory to ingest before opening the console (optional)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// The console owns the terminal, so structured logging is discarded in
	// this binary.
	logger := zap.NewNop()
	ctx := context.Background()

	store, err := graph.NewStore(ctx, graph.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
	}, logger)
	if err != nil {
		log.Fatalf("neo4j connection failed: %v", err)
	}
	defer store.Close(ctx)

	llm, err := openai.NewClient(openai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKeyEnv:      cfg.LLM.APIKeyEnv,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		ChatModel:      cfg.LLM.ChatModel,
		Dimensions:     cfg.LLM.Dimensions,
		Timeout:        time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
	})
	if err != nil {
		log.Fatalf("llm client init failed: %v", err)
	}

	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("schema setup failed: %v", err)
	}
	if err := store.EnsureVectorIndex(ctx, llm.Dimensions()); err != nil {
		log.Fatalf("vector index setup failed: %v", err)
	}

	svc := service.NewService(
		chunker.NewParagraphChunker(cfg.Ingest.MaxChunkChars),
		llm, llm, llm,
		store,
		status.NewTracker(),
		logger,
	)

	var summary string
	if root != "" {
		fmt.Printf("Ingesting %s...\n", root)
		result, err := svc.Ingest(ctx, root)
		if err != nil {
			log.Fatalf("ingest failed: %v", err)
		}
		summary = result.String()
	} else {
		info := store.Info(ctx)
		summary = fmt.Sprintf("Graph at %s: %d files, %d chunks, %d entities",
			cfg.Neo4j.URI, info.Files, info.Chunks, info.Entities)
	}

	m := tui.New(svc, summary)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}
