package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/agentcv/agentcv/internal/config"
	dbRedis "github.com/agentcv/agentcv/internal/db/redis"
	"github.com/agentcv/agentcv/internal/domain"
	logpkg "github.com/agentcv/agentcv/internal/logger"
	"github.com/agentcv/agentcv/internal/metrics"
	metadatarepo "github.com/agentcv/agentcv/internal/repository/metadata"
	"github.com/agentcv/agentcv/internal/transport/httpapi"
	openaiTransport "github.com/agentcv/agentcv/internal/transport/openai"
	chatuc "github.com/agentcv/agentcv/internal/usecase/chat"
	healthuc "github.com/agentcv/agentcv/internal/usecase/health"
	profileuc "github.com/agentcv/agentcv/internal/usecase/profilestore"
	retrievaluc "github.com/agentcv/agentcv/internal/usecase/retrieval"
	"github.com/agentcv/agentcv/internal/vectorindex/qdrant"
	"github.com/agentcv/agentcv/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting agentcv API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("qdrant_host", cfg.Qdrant.Host),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	index, err := qdrant.NewClient(qdrant.Config{
		Host:       cfg.Qdrant.Host,
		Port:       cfg.Qdrant.Port,
		UseTLS:     cfg.Qdrant.UseTLS,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		VectorDim:  cfg.Qdrant.VectorDim,
		HNSWEf:     cfg.Qdrant.HNSWEf,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to vector index", zap.Error(err))
	}
	defer func() { _ = index.Close() }()

	if err := index.EnsureCollection(ctx); err != nil {
		logger.Fatal("Failed to ensure collection", zap.Error(err))
	}

	// Register pipeline metrics explicitly (no init())
	metrics.RegisterPipelineMetrics()

	embedder := openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		DefaultModel: cfg.Embedding.DefaultModel,
		Logger:       logger,
	})
	completer := openaiTransport.NewCompleter(&openaiTransport.CompleterConfig{
		DefaultModel: cfg.Chat.DefaultModel,
		Temperature:  cfg.Chat.Temperature,
		Logger:       logger,
	})

	meta := metadatarepo.New(store, cfg.Storage.KeyPrefix)

	profileSvc := profileuc.New(meta, index, embedder, profileuc.Config{
		ChunkDefaults: domain.ChunkPolicy{
			Size:    cfg.Chunking.Size,
			Overlap: cfg.Chunking.Overlap,
		},
		DefaultModel: cfg.Embedding.DefaultModel,
		Workers:      cfg.Embedding.Workers,
		MaxBatchSize: cfg.Embedding.MaxBatchSize,
	}, logger)

	retrievalSvc := retrievaluc.New(embedder, index, cfg.Chat.TopK, logger)
	chatSvc := chatuc.New(meta, retrievalSvc, completer, logger)
	healthSvc := healthuc.New(store, index)

	server := httpapi.NewServer(profileSvc, chatSvc, meta, healthSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
