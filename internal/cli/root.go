// Package cli provides the command-line interface for askvid.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"askvid/internal/agent"
	"askvid/internal/chunker"
	"askvid/internal/config"
	"askvid/internal/index"
	"askvid/internal/llm"
	"askvid/internal/metrics"
	"askvid/internal/vectorstore"
	"askvid/internal/vectorstore/memory"
	"askvid/internal/vectorstore/surreal"
	"askvid/internal/youtube"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and shared components
	cfg     config.Config
	mc      *metrics.Collector
	store   vectorstore.Store
	fetcher *youtube.Fetcher
	logger  *slog.Logger

	// Lazy-initialized LLM components
	embedder *llm.Embedder
	model    *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "askvid",
	Short: "Ask questions about video transcripts",
	Long: `Askvid fetches video transcripts, indexes them for semantic search,
and answers natural-language questions with timestamped citations.

Transcripts are chunked, embedded and stored in a vector index; answers
are synthesized by the configured LLM from the retrieved passages.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		cfg = config.Load()
		mc = metrics.NewCollector()

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		// CLI runs log to file only; stderr stays clean for output
		logWriter := io.Discard
		logger = config.SetupLoggerWithWriters(logWriter, openLogFile(cfg.LogFile), level)

		ctx := context.Background()
		var err error
		store, err = openStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open vector store: %w", err)
		}

		fetcher = youtube.NewFetcher(logger, mc)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			if err := store.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close vector store: %v\n", err)
			}
		}
	},
}

func openLogFile(path string) io.Writer {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return io.Discard
	}
	return f
}

func openStore(ctx context.Context, cfg config.Config) (vectorstore.Store, error) {
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

// getManager creates the index manager with lazy LLM initialization.
// Commands that need the chat model pass requireModel=true.
func getManager(requireModel bool) (*index.Manager, error) {
	if embedder == nil {
		var err error
		embedder, err = llm.NewEmbedder(cfg, mc)
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	}
	if requireModel && model == nil {
		var err error
		model, err = llm.NewModel(cfg, mc)
		if err != nil {
			return nil, fmt.Errorf("init model: %w", err)
		}
	}

	var compressor *index.Compressor
	if cfg.UseCompression {
		compressor = index.NewCompressor(model)
	}

	return index.NewManager(store, embedder, compressor, chunker.Config{
		ChunkSize: cfg.ChunkSize,
		Overlap:   cfg.ChunkOverlap,
	}, logger, mc), nil
}

// getAgent creates the question-answering agent.
func getAgent() (*agent.Agent, error) {
	manager, err := getManager(true)
	if err != nil {
		return nil, err
	}

	registry := agent.NewRegistry(&agent.Dependencies{
		Fetcher: fetcher,
		Index:   manager,
		Logger:  logger,
	})

	return agent.New(model, registry, cfg.MaxAgentSteps, logger), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(usageCmd)
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
