package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"graphrag/internal/chunker"
	"graphrag/internal/config"
	"graphrag/internal/graph"
	"graphrag/internal/httpapi"
	"graphrag/internal/llm/openai"
	"graphrag/internal/service"
	"graphrag/internal/status"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/graphrag/config.yaml if not provided)")
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

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	store, err := graph.NewStore(ctx, graph.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
	}, logger)
	if err != nil {
		logger.Fatal("neo4j connection failed", zap.Error(err))
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
		logger.Fatal("llm client init failed", zap.Error(err))
	}

	if err := store.EnsureSchema(ctx); err != nil {
		logger.Fatal("schema setup failed", zap.Error(err))
	}
	if err := store.EnsureVectorIndex(ctx, llm.Dimensions()); err != nil {
		logger.Fatal("vector index setup failed", zap.Error(err))
	}

	tracker := status.NewTracker()
	svc := service.NewService(
		chunker.NewParagraphChunker(cfg.Ingest.MaxChunkChars),
		llm, llm, llm,
		store,
		tracker,
		logger,
	)

	handler := httpapi.NewHandler(svc, store, tracker, cfg.Neo4j.URI, logger)
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: handler.Router(),
	}

	rootCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		logger.Info("http api listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case <-handler.ShutdownRequested():
			logger.Info("shutdown requested over http")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}
