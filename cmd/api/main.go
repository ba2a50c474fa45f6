package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"hairwise/internal/config"
	"hairwise/internal/handlers"
	"hairwise/internal/http"
	"hairwise/internal/llm"
	"hairwise/internal/rag"
	"hairwise/internal/storage"
	"hairwise/internal/vectorstore"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	chunkRepo := storage.NewChunkRepo(db)
	profileRepo := storage.NewProfileRepo(db)
	conversationRepo := storage.NewConversationRepo(db)
	productRepo := storage.NewProductRepo(db)

	ctx := context.Background()

	// Initialize Qdrant vector store
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		log.Fatalf("Failed to create Qdrant client: %v", err)
	}

	// Ensure collection exists with correct vector size
	if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
		log.Fatalf("Failed to ensure Qdrant collection: %v", err)
	}
	slog.Info("Qdrant collection ready", "collection", cfg.QdrantCollection, "vector_size", cfg.QdrantVectorSize)

	// Validate embedding client vector size (fail-fast)
	embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.LLMAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
	testEmbeddings, err := embedder.EmbedTexts(ctx, []string{"test"})
	if err != nil {
		log.Fatalf("Failed to validate embedding client: %v", err)
	}
	if len(testEmbeddings) == 0 || len(testEmbeddings[0]) != cfg.QdrantVectorSize {
		log.Fatalf("Embedding vector size mismatch: expected %d, got %d", cfg.QdrantVectorSize, len(testEmbeddings[0]))
	}
	slog.Info("Embedding client validated", "vector_size", cfg.QdrantVectorSize)

	// Create LLM clients (external service layer)
	llmClient := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModelName)
	var vision rag.ImageAnalyzer
	if cfg.VisionModelName != "" {
		vision = llm.NewVisionClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.VisionModelName)
	}

	// Assemble the advisory pipeline
	retriever := rag.NewRetriever(embedder, vectorStore, chunkRepo,
		cfg.QdrantCollection, cfg.RetrievalCandidates, cfg.RetrievalThreshold, cfg.RetrievalCount)
	matcher := rag.NewProductMatcher(embedder, vectorStore, productRepo,
		cfg.QdrantCollection, cfg.RetrievalCandidates, cfg.RetrievalThreshold, cfg.RetrievalCount)

	pipeline := rag.NewPipeline(rag.PipelineDeps{
		Classifier:    rag.NewClassifier(llmClient, cfg.ClassifyTimeout),
		Retriever:     retriever,
		Matcher:       matcher,
		Synthesizer:   rag.NewSynthesizer(llmClient),
		Gate:          rag.ProductGate{MaxChars: cfg.GateMaxChars, MaxWords: cfg.GateMaxWords},
		Vision:        vision,
		Profiles:      profileRepo,
		Conversations: conversationRepo,
		Messages:      conversationRepo,
		HistoryLimit:  cfg.HistoryLimit,
	})
	slog.Info("Advisory pipeline initialized")

	memory := rag.NewMemoryExtractor(llmClient, profileRepo, conversationRepo, conversationRepo)
	titles := rag.NewTitleGenerator(llmClient, conversationRepo)

	// Create router with dependencies
	deps := &http.Deps{
		ChatHandler:          handlers.NewChatHandler(pipeline, conversationRepo, conversationRepo, memory, titles),
		ConversationsHandler: handlers.NewConversationsHandler(conversationRepo, conversationRepo),
		HealthHandler:        handlers.NewHealthHandler(vectorStore, cfg.QdrantCollection),
		RateLimiter:          http.NewUserRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst),
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("LLM configuration", "base_url", cfg.LLMBaseURL, "model", cfg.LLMModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
