package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/vero-edu/pbas-assistant/internal/api"
	"github.com/vero-edu/pbas-assistant/internal/config"
	"github.com/vero-edu/pbas-assistant/internal/core"
	"github.com/vero-edu/pbas-assistant/internal/llm"
	"github.com/vero-edu/pbas-assistant/internal/retriever"
	"github.com/vero-edu/pbas-assistant/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, relying on environment variables")
	}

	configPath := flag.String("config", "config.yaml", "Path to config file")
	ingestFlag := flag.String("ingest", "", "Rebuild the semantic rule index from the given file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	dbStore, err := store.NewPostgres(cfg.Database.DSN(), logger.Named("store"))
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbStore.Close()

	llmService, err := llm.New(context.Background(), llm.Config{
		APIKey:         cfg.Gemini.APIKey,
		ChatModel:      cfg.Gemini.ChatModel,
		EmbeddingModel: cfg.Gemini.EmbeddingModel,
	}, logger.Named("llm"))
	if err != nil {
		logger.Fatal("Failed to initialize LLM service", zap.Error(err))
	}
	defer llmService.Close()

	ruleRetriever := retriever.New(dbStore, llmService, logger.Named("retriever"))

	if *ingestFlag != "" {
		logger.Info("Starting rule document ingestion", zap.String("file", *ingestFlag))
		count, err := ruleRetriever.IngestFromFile(context.Background(), *ingestFlag)
		if err != nil {
			logger.Fatal("Rule document ingestion failed", zap.Error(err))
		}
		logger.Info("Rule document ingestion complete, exiting", zap.Int("ingested", count))
		os.Exit(0)
	}

	pipeline := core.NewPipeline(dbStore, ruleRetriever, llmService,
		logger.Named("pipeline"), cfg.Chat.MemoryWindow, cfg.Chat.TopK)

	apiHandler := api.NewAPIHandler(pipeline, cfg.Auth.JWTSecret, logger.Named("api"))
	router := api.NewRouter(apiHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exiting gracefully")
}
