// Package main provides the one-shot document ingestion command.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"docchat/internal/config"
	"docchat/internal/embedding"
	"docchat/internal/ingest"
	"docchat/internal/loader"
	"docchat/internal/splitter"
	"docchat/internal/storage"
	"docchat/internal/vectorstore"
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load, chunk, embed and index documents",
	Long: `One-shot batch job that loads documents from the configured input
directory, splits them into overlapping chunks, generates embeddings via the
configured Azure OpenAI deployment, and writes the results to the Qdrant
collection and the SQLite catalog.

Configuration comes from environment variables (and an optional .env file);
see internal/config for the full list. Re-running appends new records: chunk
ids are freshly generated each run.`,
	RunE: runIngest,
}

func main() {
	// Load .env file if present (local development), ignore if missing
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	start := time.Now()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))

	fmt.Println("Starting ingestion...")
	fmt.Println()

	// 1. Open the SQLite catalog
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		_ = db.Close()
	}()
	if err := storage.Migrate(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	fmt.Printf("Catalog ready at %s\n", cfg.DBPath)

	// 2. Connect to Qdrant
	vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
	if err != nil {
		return fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	defer func() {
		_ = vectorStore.Close()
	}()
	fmt.Printf("Connected to Qdrant at %s\n", cfg.QdrantURL)

	// 3. Build the pipeline stages
	embedClient := embedding.NewClient(
		cfg.AzureOpenAIEndpoint,
		cfg.AzureOpenAIAPIKey,
		cfg.AzureOpenAIAPIVersion,
		cfg.EmbedDeployment,
	)
	embedder := embedding.NewEmbedder(
		embedClient,
		cfg.EmbedBatchSize,
		cfg.QdrantVectorSize,
		cfg.EmbedTimeout,
		embedding.RetryConfig{MaxElapsedTime: cfg.EmbedRetryMaxElapsed},
	)

	docLoader := loader.New(cfg.DataDir, nil)

	split, err := splitter.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return fmt.Errorf("failed to create splitter: %w", err)
	}

	pipeline := ingest.NewPipeline(
		docLoader,
		split,
		embedder,
		storage.NewDocumentRepo(db),
		storage.NewChunkRepo(db),
		vectorStore,
		cfg.QdrantCollection,
		cfg.QdrantVectorSize,
	)

	// 4. Run
	fmt.Println()
	fmt.Printf("Ingesting documents from %s...\n", cfg.DataDir)
	result, err := pipeline.Run(ctx)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	// 5. Print results
	fmt.Println()
	fmt.Println("Ingestion complete!")
	fmt.Printf("  Documents: %d\n", result.DocumentsLoaded)
	fmt.Printf("  Chunks: %d\n", result.ChunksCreated)
	fmt.Printf("  Points upserted: %d\n", result.PointsUpserted)
	if result.ChunksCreated > 0 {
		fmt.Printf("  Chunk sizes (runes): min=%d max=%d mean=%.1f p95=%d\n",
			result.ChunkSizes.Min, result.ChunkSizes.Max, result.ChunkSizes.Mean, result.ChunkSizes.P95)
	}
	fmt.Printf("  Duration: %s\n", result.Duration.Round(time.Millisecond))

	if count, err := vectorStore.Count(ctx, cfg.QdrantCollection); err == nil {
		fmt.Printf("  Collection %q now holds %d points\n", cfg.QdrantCollection, count)
	}

	fmt.Println()
	fmt.Printf("Total time: %s\n", time.Since(start).Round(time.Millisecond))

	return nil
}
