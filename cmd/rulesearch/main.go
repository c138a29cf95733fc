// Package main is the rulesearch CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/boardgamelab/rulesearch/internal/config"
	"github.com/boardgamelab/rulesearch/internal/embedding"
	"github.com/boardgamelab/rulesearch/internal/ingest"
	"github.com/boardgamelab/rulesearch/internal/models"
	"github.com/boardgamelab/rulesearch/internal/query"
	"github.com/boardgamelab/rulesearch/internal/server"
	"github.com/boardgamelab/rulesearch/internal/storage"
	"github.com/boardgamelab/rulesearch/internal/watcher"
	"github.com/boardgamelab/rulesearch/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

func main() {
	// Store credentials may live in a .env file during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "backfill":
		runBackfill()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("rulesearch version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Watch.Directory != "" {
		pipeline := components.Pipeline
		onDocument := func(path string) {
			doc, err := ingest.LoadDocument(path)
			if err != nil {
				logger.Warn("watch: document load failed", zap.String("path", path), zap.Error(err))
				return
			}
			gameName := watcher.GameNameFromPath(path)
			if _, err := pipeline.ProcessDocument(context.Background(), doc, gameName, models.DefaultGameVersion); err != nil {
				logger.Warn("watch: ingestion failed", zap.String("path", path), zap.Error(err))
				return
			}
			if _, err := pipeline.Backfill(context.Background()); err != nil {
				logger.Warn("watch: backfill failed", zap.String("path", path), zap.Error(err))
			}
		}
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(cfg.Watch.Directory, onDocument, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Engine,
		components.Pipeline,
		components.Store,
		&cfg.Server,
		&cfg.Search,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	gameVersion := fs.String("game-version", models.DefaultGameVersion, "version of the game")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 2 {
		fmt.Println("Usage: rulesearch ingest [flags] <file.json> <game-name>")
		os.Exit(1)
	}
	docPath := fs.Arg(0)
	gameName := strings.Join(fs.Args()[1:], " ")

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	doc, err := ingest.LoadDocument(docPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load document: %v\n", err)
		os.Exit(1)
	}

	report, err := components.Pipeline.ProcessDocument(context.Background(), doc, gameName, *gameVersion)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}

	if report.GameCreated {
		fmt.Printf("Created game: %s v%s (ID: %d)\n", report.Game.Name, report.Game.Version, report.Game.ID)
	} else {
		fmt.Printf("Found existing game: %s v%s (ID: %d)\n", report.Game.Name, report.Game.Version, report.Game.ID)
	}
	fmt.Printf("Pages with text: %d\n", report.PagesFound)
	fmt.Printf("Pages skipped:   %d\n", report.PagesSkipped)
	fmt.Printf("Rules inserted:  %d\n", report.RulesInserted)
	fmt.Println("Run \"rulesearch backfill\" to embed the new rules.")
}

func runBackfill() {
	fs := flag.NewFlagSet("backfill", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	report, err := components.Pipeline.Backfill(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backfill failed: %v\n", err)
		os.Exit(1)
	}
	if report.Candidates == 0 {
		fmt.Println("No rules need embedding.")
		return
	}
	fmt.Printf("Rules needing embeddings: %d\n", report.Candidates)
	fmt.Printf("Embedded:                 %d\n", report.Embedded)
	fmt.Printf("Failed:                   %d\n", report.Failed)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = direct storage access)")
	limit := fs.Int("limit", 5, "number of results")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: rulesearch search [flags] <query>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Println("Usage: rulesearch search [flags] <query>")
		os.Exit(1)
	}

	var (
		results []models.QueryResult
		err     error
	)
	if *serverURL != "" {
		results, err = searchViaHTTP(*serverURL, question, *limit)
	} else {
		var components *Components
		var logger *zap.Logger
		components, logger = mustInitialize(*configPath)
		defer components.Close()
		defer logger.Sync()
		results, err = components.Engine.Search(context.Background(), question, *limit)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	if len(results) == 0 {
		fmt.Println("No results found. Make sure embeddings have been created.")
		return
	}
	fmt.Printf("Top %d similar rules:\n", len(results))
	fmt.Println(strings.Repeat("=", 80))
	for i, r := range results {
		fmt.Printf("%d. Rule ID: %d | Game: %s | Similarity: %.3f\n", i+1, r.RuleID, r.GameName, r.Similarity)
		fmt.Printf("   Rule: %s\n", utils.Truncate(r.Rule, 300))
		fmt.Println(strings.Repeat("-", 80))
	}
}

func searchViaHTTP(serverURL, question string, limit int) ([]models.QueryResult, error) {
	body, err := json.Marshal(models.QueryRequest{Question: question, Limit: limit})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.QueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return response.Results, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	components, logger := mustInitialize(*configPath)
	defer components.Close()
	defer logger.Sync()

	ctx := context.Background()
	games, err := components.Store.CountGames(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count games failed: %v\n", err)
		os.Exit(1)
	}
	rules, err := components.Store.CountRules(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count rules failed: %v\n", err)
		os.Exit(1)
	}
	embedded, err := components.Store.CountEmbedded(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Count embedded failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("games:           %d\n", games)
	fmt.Printf("rules:           %d\n", rules)
	fmt.Printf("rules_embedded:  %d\n", embedded)
	fmt.Printf("rules_pending:   %d\n", rules-embedded)
}

// Components holds initialized services.
type Components struct {
	Store    storage.CorpusStore
	Embedder *embedding.Provider
	Engine   *query.Engine
	Pipeline *ingest.Pipeline
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func mustInitialize(configPath string) (*Components, *zap.Logger) {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return components, logger
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var (
		store storage.CorpusStore
		err   error
	)
	switch cfg.Store.Driver {
	case "postgres":
		store, err = storage.NewPostgresStore(context.Background(), storage.PostgresConfig{
			Host:       cfg.Store.Host,
			Database:   cfg.Store.Database,
			User:       cfg.Store.User,
			Password:   cfg.Store.Password,
			Port:       cfg.Store.Port,
			Dimensions: cfg.Embedding.Dimensions,
		})
	case "sqlite", "":
		store, err = storage.NewSQLiteStore(cfg.Store.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// The model is loaded lazily on first embed; callers pay the load cost
	// once per process. A failed load is sticky: every embed call fails with
	// the initialization error rather than degrading to garbage rankings.
	// The deterministic mock embedder is an explicit opt-in for development.
	embCfg := cfg.Embedding
	provider := embedding.NewProvider(func() (embedding.Embedder, error) {
		if embCfg.UseMock {
			logger.Warn("using deterministic mock embedder (embedding.use_mock)")
			return embedding.NewMockEmbedder(embCfg.Dimensions), nil
		}
		onnx, err := embedding.NewONNXEmbedder(embCfg.ModelPath, embCfg.Dimensions, embCfg.MaxTokens, embCfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return onnx, nil
	})

	pipelineOpts := []ingest.PipelineOption{ingest.WithLogger(logger)}
	engineOpts := []query.EngineOption{query.WithLogger(logger)}

	return &Components{
		Store:    store,
		Embedder: provider,
		Engine:   query.NewEngine(store, provider, engineOpts...),
		Pipeline: ingest.NewPipeline(store, provider, pipelineOpts...),
	}, nil
}

func printUsage() {
	fmt.Println(`rulesearch - Semantic search over board game rules

Usage:
  rulesearch server [flags]                        Start the HTTP server
  rulesearch ingest [flags] <file.json> <game>     Ingest a rules document
  rulesearch backfill [flags]                      Embed rules missing embeddings
  rulesearch search [flags] <query>                Search rules
  rulesearch status [flags]                        Show corpus counts
  rulesearch version                               Show version
  rulesearch help                                  Show this help

Server Flags:
  --config string    Config file path (default: config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string        Config file path
  --game-version string  Version of the game (default: 1.0)

Search Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL; empty uses direct storage access
  --limit int        Number of results (default: 5)

Environment:
  DB_HOST, DB_NAME, DB_USER, DB_PASSWORD, DB_PORT  Postgres connection
  DB_DRIVER                                        "sqlite" or "postgres"

Examples:
  rulesearch server
  rulesearch ingest rules.json "Dungeons & Dragons"
  rulesearch ingest --game-version 2.0 rules.json "My Game"
  rulesearch backfill
  rulesearch search "how to win"
  rulesearch search --limit 10 player movement
  rulesearch status`)
}
