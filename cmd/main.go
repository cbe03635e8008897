package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/xhad/askdocs/pkg/agent"
	cfgPkg "github.com/xhad/askdocs/pkg/config"
	"github.com/xhad/askdocs/pkg/llm"
	"github.com/xhad/askdocs/pkg/rag"
	"github.com/xhad/askdocs/pkg/session"
	"github.com/xhad/askdocs/pkg/store"
	"github.com/xhad/askdocs/server"
)

func main() {
	var configPath string
	var addr string
	var dbURL string
	var provider string
	var model string

	flag.StringVar(&configPath, "config", "", "Path to config file")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.StringVar(&dbURL, "db-url", "", "PostgreSQL connection string (overrides config)")
	flag.StringVar(&provider, "provider", "", "LLM provider: openai or ollama (overrides config)")
	flag.StringVar(&model, "model", "", "LLM model to use (overrides config)")
	flag.Parse()

	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		color.Red("Failed to load config: %v", err)
		os.Exit(1)
	}

	if addr != "" {
		config.Server.Addr = addr
	}
	if dbURL != "" {
		config.Database.URL = dbURL
	}
	if provider != "" {
		config.LLM.Provider = provider
	}
	if model != "" {
		config.LLM.Model = model
	}

	if errs := config.Validate(); len(errs) > 0 {
		color.Red("Invalid configuration:")
		for _, e := range errs {
			color.Red("  - %s", e.Error())
		}
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(config, logger); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func run(config *cfgPkg.Config, logger *slog.Logger) error {
	ctx := context.Background()

	pool, err := store.Connect(ctx, config.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	searchStore, err := store.NewSearchStore(pool, store.SearchStoreConfig{
		ChunkTable:          config.Database.ChunkTable,
		DocumentTable:       config.Database.DocumentTable,
		VectorDim:           config.Database.VectorDim,
		MaxTopK:             config.RAG.MaxTopK,
		QueryTimeoutSeconds: config.Database.QueryTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize search store: %w", err)
	}

	sessionStore, err := store.NewSessionStore(pool, store.SessionStoreConfig{
		TableName:           config.Database.SessionTable,
		QueryTimeoutSeconds: config.Database.QueryTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Provider:       config.LLM.Provider,
		Model:          config.LLM.EmbeddingModel,
		BaseURL:        config.LLM.BaseURL,
		VectorDim:      config.Database.VectorDim,
		TimeoutSeconds: config.LLM.TimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}

	provider, err := llm.NewProviderWithConfig(llm.ProviderConfig{
		Provider:       config.LLM.Provider,
		Model:          config.LLM.Model,
		BaseURL:        config.LLM.BaseURL,
		MaxTokens:      config.LLM.MaxTokens,
		Temperature:    config.LLM.Temperature,
		TimeoutSeconds: config.LLM.TimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize provider: %w", err)
	}

	registry := rag.NewRegistry()
	if config.ToolCallingEnabled() {
		registry.Register(rag.NewSearchTool(embedder, searchStore, rag.SearchToolConfig{
			DefaultTopK:         config.RAG.DefaultTopK,
			MaxTopK:             config.RAG.MaxTopK,
			SimilarityThreshold: config.RAG.SimilarityThreshold,
		}, logger))
	}

	orchestrator := agent.New(provider, registry, agent.Config{
		MaxIterations: config.RAG.ToolCallingMaxIterations,
		ToolsEnabled:  config.ToolCallingEnabled() && registry.Len() > 0,
	}, logger)

	manager := session.NewManager(sessionStore, orchestrator, session.ManagerConfig{
		HistoryWindow: config.RAG.HistoryWindow,
	}, logger)

	srv := server.New(server.Config{
		Addr:      config.Server.Addr,
		RateLimit: config.Server.RateLimit,
		RateBurst: config.Server.RateBurst,
	}, sessionStore, manager, logger)

	color.Cyan("askdocs listening on %s (provider: %s, model: %s)",
		config.Server.Addr, config.LLM.Provider, config.LLM.Model)
	if !config.ToolCallingEnabled() {
		color.Yellow("tool calling disabled: answers will not consult the document corpus")
	}

	return srv.ListenAndServe()
}
