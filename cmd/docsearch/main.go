// Command docsearch drives the documentation retrieval pipeline.
//
// Usage:
//
//	docsearch ingest                       # crawl, chunk, embed, index
//	docsearch ingest -clear-checkpoint     # non-incremental re-run
//	docsearch search -query "..."          # run one search
//	docsearch search -validate             # canned validation sweep
//	docsearch version                      # show version info
//
// Run reports and search responses are written to stdout as JSON; logs go to
// stderr.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/atelier-ai/docsearch/checkpoint"
	"github.com/atelier-ai/docsearch/chunk"
	"github.com/atelier-ai/docsearch/config"
	"github.com/atelier-ai/docsearch/crawl"
	"github.com/atelier-ai/docsearch/embed"
	"github.com/atelier-ai/docsearch/ingest"
	"github.com/atelier-ai/docsearch/internal/metrics"
	"github.com/atelier-ai/docsearch/internal/retry"
	"github.com/atelier-ai/docsearch/retrieve"
	"github.com/atelier-ai/docsearch/vectordb"
)

// Build-time injected.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ingest":
		runIngest(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "version":
		fmt.Printf("docsearch %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	baseURL := fs.String("base-url", "", "Base URL to crawl (overrides DOCS_BASE_URL)")
	collection := fs.String("collection", "", "Collection name (overrides COLLECTION_NAME)")
	clearCheckpoint := fs.Bool("clear-checkpoint", false, "Clear checkpoint for a fresh run")
	logLevel := fs.String("log-level", "", "Logging level (debug, info, warn, error)")
	fs.Parse(args)

	cfg := loadConfig(*configPath, *logLevel)
	if *baseURL != "" {
		cfg.Crawl.BaseURL = *baseURL
	}
	if *collection != "" {
		cfg.Qdrant.Collection = *collection
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log.Level)
	defer logger.Sync()
	logger.Info("starting ingestion", zap.String("version", Version))

	crawler, err := crawl.NewCrawler(crawl.Config{
		BaseURL:           cfg.Crawl.BaseURL,
		RequestsPerSecond: cfg.Crawl.RequestsPerSecond,
		MaxPages:          cfg.Crawl.MaxPages,
	}, logger)
	if err != nil {
		logger.Fatal("invalid crawl config", zap.Error(err))
	}

	tokenizer := chunk.NewTiktokenTokenizer("")
	if err := tokenizer.InitErr(); err != nil {
		logger.Warn("exact token counting unavailable, using estimate", zap.Error(err))
	}
	chunker := chunk.NewChunker(cfg.Chunk.Size, cfg.Chunk.Overlap, tokenizer, logger)

	embedClient, store := buildClients(cfg, logger)
	cp := checkpoint.NewStore(cfg.Pipeline.CheckpointFile, logger)
	collector := metrics.NewCollector("docsearch", logger)

	pipeline := ingest.NewPipeline(crawler, chunker, embedClient, store, cp, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := pipeline.Run(ctx, *clearCheckpoint)
	if err != nil {
		logger.Error("pipeline failed", zap.Error(err))
		os.Exit(1)
	}

	printJSON(report)
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	query := fs.String("query", "", "Search query text")
	topK := fs.Int("top-k", 5, "Number of results to return (1-100)")
	threshold := fs.Float64("threshold", 0.0, "Minimum similarity score (0.0-1.0)")
	validate := fs.Bool("validate", false, "Run the canned validation sweep")
	output := fs.String("output", "", "Also write results to this JSON file")
	logLevel := fs.String("log-level", "", "Logging level (debug, info, warn, error)")
	fs.Parse(args)

	if !*validate && *query == "" {
		fmt.Fprintln(os.Stderr, "search requires -query or -validate")
		fs.Usage()
		os.Exit(1)
	}

	cfg := loadConfig(*configPath, *logLevel)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log.Level)
	defer logger.Sync()

	embedClient, store := buildClients(cfg, logger)
	collector := metrics.NewCollector("docsearch", logger)
	searcher := retrieve.NewSearcher(embedClient, store, collector, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if _, err := retrieve.ValidateIndex(ctx, store, logger); err != nil {
		logger.Error("index validation failed", zap.Error(err))
		os.Exit(1)
	}

	if *validate {
		sweep, err := searcher.RunValidation(ctx, nil, *topK)
		if err != nil {
			logger.Error("validation sweep failed", zap.Error(err))
			os.Exit(1)
		}
		printJSON(sweep)
		writeOutput(*output, sweep, logger)
		return
	}

	resp, err := searcher.Search(ctx, *query, *topK, *threshold)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid search request: %v\n", err)
		os.Exit(1)
	}

	printJSON(resp)
	writeOutput(*output, resp, logger)

	if resp.Status != "success" {
		os.Exit(1)
	}
}

// buildClients constructs the embedding client and vector store shared by
// both subcommands.
func buildClients(cfg *config.Config, logger *zap.Logger) (*embed.Client, *vectordb.QdrantStore) {
	provider := embed.NewCohereProvider(embed.CohereConfig{
		APIKey:  cfg.Cohere.APIKey,
		Model:   cfg.Cohere.Model,
		Timeout: cfg.Cohere.Timeout,
	})

	policy := retry.DefaultPolicy()
	policy.MaxRetries = cfg.Cohere.MaxRetries

	embedClient := embed.NewClient(provider, cfg.Cohere.BatchSize, policy, logger)

	store := vectordb.NewQdrantStore(vectordb.Config{
		URL:        cfg.Qdrant.URL,
		APIKey:     cfg.Qdrant.APIKey,
		Collection: cfg.Qdrant.Collection,
		VectorSize: cfg.Qdrant.VectorSize,
	}, logger)

	return embedClient, store
}

func loadConfig(path, logLevel string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
}

func writeOutput(path string, v any, logger *zap.Logger) {
	if path == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Error("failed to encode output file", zap.Error(err))
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logger.Error("failed to write output file", zap.String("path", path), zap.Error(err))
		return
	}
	logger.Info("results saved", zap.String("path", path))
}

func initLogger(level string) *zap.Logger {
	var lvl zapcore.Level
	switch level {
	case "debug":
		lvl = zapcore.DebugLevel
	case "info", "":
		lvl = zapcore.InfoLevel
	case "warn":
		lvl = zapcore.WarnLevel
	case "error":
		lvl = zapcore.ErrorLevel
	default:
		lvl = zapcore.InfoLevel
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(lvl),
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `docsearch - documentation retrieval pipeline

Usage:
  docsearch ingest [-config file] [-base-url url] [-collection name] [-clear-checkpoint] [-log-level level]
  docsearch search -query "text" [-top-k n] [-threshold t] [-output file]
  docsearch search -validate [-top-k n] [-output file]
  docsearch version
`)
}
