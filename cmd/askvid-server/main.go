// Package main provides the HTTP server for askvid.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"askvid/internal/agent"
	"askvid/internal/chunker"
	"askvid/internal/config"
	"askvid/internal/index"
	"askvid/internal/llm"
	"askvid/internal/metrics"
	"askvid/internal/ratelimit"
	"askvid/internal/server"
	"askvid/internal/vectorstore"
	"askvid/internal/vectorstore/memory"
	"askvid/internal/vectorstore/surreal"
	"askvid/internal/youtube"
)

func main() {
	wipeDB := flag.Bool("wipe", false, "wipe all indexed data on startup (testing only)")
	flag.Parse()

	cfg := config.Load()

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("failed to close log file", "error", err)
		}
	}()
	slog.SetDefault(logger)

	slog.Info("starting askvid-server", "port", cfg.Port, "backend", cfg.VectorBackend)

	mc := metrics.NewCollector()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := openStore(ctx, cfg, logger)
	cancel()
	if err != nil {
		slog.Error("failed to open vector store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			slog.Error("failed to close vector store", "error", err)
		}
	}()

	if *wipeDB || os.Getenv("ASKVID_WIPE_DB") == "true" {
		if wiper, ok := store.(interface{ WipeData(context.Context) error }); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err := wiper.WipeData(ctx)
			cancel()
			if err != nil {
				slog.Error("failed to wipe data", "error", err)
				os.Exit(1)
			}
			slog.Info("wiped indexed data")
		}
	}

	model, err := llm.NewModel(cfg, mc)
	if err != nil {
		slog.Error("failed to create LLM client", "error", err)
		os.Exit(1)
	}

	embedder, err := llm.NewEmbedder(cfg, mc)
	if err != nil {
		slog.Error("failed to create embedder", "error", err)
		os.Exit(1)
	}

	var compressor *index.Compressor
	if cfg.UseCompression {
		compressor = index.NewCompressor(model)
	}

	manager := index.NewManager(store, embedder, compressor, chunker.Config{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
	}, logger, mc)

	fetcher := youtube.NewFetcher(logger, mc)

	registry := agent.NewRegistry(&agent.Dependencies{
		Fetcher: fetcher,
		Index:   manager,
		Logger:  logger,
	})

	ag := agent.New(model, registry, cfg.MaxAgentSteps, logger)

	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(), cfg.RateLimit, cfg.RateWindow)
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	limiter.StartSweeper(sweepCtx, 5*time.Minute)

	srv := server.New(ag, limiter, mc, logger, server.Config{
		TrustProxy:  cfg.TrustProxy,
		TrustedHops: cfg.TrustedHops,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 300 * time.Second, // long-lived answer streams
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("ask endpoint available", "url", fmt.Sprintf("http://localhost:%s/api/ask", cfg.Port))

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// openStore builds the configured vector store backend.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (vectorstore.Store, error) {
	switch cfg.VectorBackend {
	case config.StoreSurreal:
		return surreal.NewStore(ctx, surreal.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
			Dimension: cfg.EmbedDimension,
		}, logger)
	case config.StoreMemory:
		return memory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
