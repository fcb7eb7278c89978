// Package main is the contexter CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/contexter/internal/answer"
	"github.com/hyperjump/contexter/internal/cli"
	"github.com/hyperjump/contexter/internal/config"
	"github.com/hyperjump/contexter/internal/embedding"
	"github.com/hyperjump/contexter/internal/models"
	"github.com/hyperjump/contexter/internal/rag"
	"github.com/hyperjump/contexter/internal/server"
	"github.com/hyperjump/contexter/internal/watcher"
	"github.com/hyperjump/contexter/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "~/.contexter/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, and a missing default file means built-in defaults.
// Returns the config and the path that was actually loaded ("" for built-in defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		path = homePath(path)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			cfg := config.Default()
			cfg.ExpandPaths(filepath.Dir(path))
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func homePath(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~/"))
}

func main() {
	// Secrets such as OPENAI_API_KEY may live in a .env next to the working directory.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("contexter version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// app bundles what a command needs after config load.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	service  *rag.Service
	embedder embedding.Embedder
}

func (a *app) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	_ = a.logger.Sync()
}

// newApp loads config and builds the service. debug forces debug logging.
func newApp(configPath string, debug bool) (*app, string, error) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		return nil, "", fmt.Errorf("create logger: %w", err)
	}
	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		return nil, "", fmt.Errorf("create embedder: %w", err)
	}
	generator, err := answer.New(&cfg.Generation, logger)
	if err != nil {
		_ = embedder.Close()
		return nil, "", fmt.Errorf("create generator: %w", err)
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		service:  rag.NewService(cfg, embedder, generator, logger),
		embedder: embedder,
	}, resolved, nil
}

func mustApp(configPath string, debug bool) (*app, string) {
	a, resolved, err := newApp(configPath, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	return a, resolved
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "re-ingest when files change in the sources directory (overrides config)")
	_ = fs.Parse(os.Args[2:])

	a, resolved := mustApp(*configPath, *debug)
	defer a.Close()
	logger := a.logger
	logger.Info("config loaded",
		zap.String("config_path", resolved),
		zap.String("sources_dir", a.cfg.Storage.SourcesDir),
		zap.String("index_dir", a.cfg.Storage.IndexDir),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var w *watcher.Watcher
	if a.cfg.Watch.Enabled || *watch {
		w = watcher.NewWatcher(a.cfg.Storage.SourcesDir, a.cfg.Extensions,
			func(ctx context.Context) {
				stats, err := a.service.IngestDefault(ctx)
				if err != nil {
					logger.Warn("watch ingestion failed", zap.Error(err))
					return
				}
				logger.Info("watch ingestion finished", zap.Int("total_chunks", stats.TotalChunks))
			},
			watcher.WithLogger(logger),
			watcher.WithDebounce(a.cfg.Watch.Debounce()),
		)
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		// Catch up on files that changed while the server was down.
		w.Trigger()
	}

	srv := server.NewServer(a.service, &a.cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	if w != nil {
		w.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	sources := fs.String("sources", "", "sources directory (default from config)")
	index := fs.String("index", "", "index directory (default from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	a, _ := mustApp(*configPath, false)
	defer a.Close()

	sourcesDir := orDefault(*sources, a.cfg.Storage.SourcesDir)
	indexDir := orDefault(*index, a.cfg.Storage.IndexDir)
	stats, err := a.service.Ingest(context.Background(), sourcesDir, indexDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteIngestStats(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runQuery() {
	args := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	index := fs.String("index", "", "index directory (default from config)")
	serverURL := fs.String("server", "", "ask a running server instead of reading the index directly")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: contexter query [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(args)

	question := buildQuery(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}

	if *serverURL != "" {
		reply, err := chatViaHTTP(*serverURL, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(reply)
		return
	}

	a, _ := mustApp(*configPath, false)
	defer a.Close()
	fmt.Println(a.service.Query(context.Background(), question, orDefault(*index, a.cfg.Storage.IndexDir)))
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: contexter search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Searches chunk texts of the knowledge base.
  • --mode keyword ranks by BM25 only (default).
  • --mode hybrid fuses keyword and vector similarity.
  • --fuzzy tolerates spelling mistakes. Without it, a query with no hits is retried fuzzily.
  • --rerank reorders hits by quoted phrases, source names and recency; "-term" drops hits.

Examples:
  contexter search vector index
  contexter search --mode hybrid "chunk overlap"
  contexter search --fuzzy embeding
  contexter search --rerank '"annual report" -draft'
`)
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "search through a running server instead of reading the index directly")
	limit := fs.Int("limit", 10, "number of results")
	mode := fs.String("mode", models.ModeKeyword, "search mode: keyword or hybrid")
	fuzzy := fs.Bool("fuzzy", false, "enable fuzzy matching for typo tolerance")
	rerank := fs.Bool("rerank", false, "re-rank hits by phrase, source name and recency")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(argsReorder(os.Args[2:]))

	queryStr := buildQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	q := &models.KeywordQuery{Query: queryStr, Limit: *limit, Mode: *mode, Fuzzy: *fuzzy, Rerank: *rerank}
	var search func(q *models.KeywordQuery) (*models.KeywordResponse, error)
	if *serverURL != "" {
		search = func(q *models.KeywordQuery) (*models.KeywordResponse, error) { return searchViaHTTP(*serverURL, q) }
	} else {
		a, _ := mustApp(*configPath, false)
		defer a.Close()
		search = func(q *models.KeywordQuery) (*models.KeywordResponse, error) {
			return a.service.Search(context.Background(), q)
		}
	}

	response, err := search(q)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	// Auto-retry with fuzzy if no results and fuzzy not already enabled
	if !q.Fuzzy && response.Total == 0 {
		q.Fuzzy = true
		if fuzzyResponse, fuzzyErr := search(q); fuzzyErr == nil && fuzzyResponse.Total > 0 {
			response = fuzzyResponse
		}
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	KnowledgeBase models.KnowledgeBaseStats `json:"knowledge_base"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the index directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var stats *models.KnowledgeBaseStats
	if *serverURL != "" {
		var status statusResponse
		if err := getJSON(*serverURL+"/api/v1/status", &status); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		stats = &status.KnowledgeBase
	} else {
		a, _ := mustApp(*configPath, false)
		defer a.Close()
		stats, err = a.service.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteStatus(os.Stdout, stats, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func chatViaHTTP(serverURL, question string) (string, error) {
	body, err := json.Marshal(models.ChatRequest{Message: question})
	if err != nil {
		return "", err
	}
	resp, err := http.Post(serverURL+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var out struct {
		Response string `json:"response"`
	}
	if err := decodeResponse(resp, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func searchViaHTTP(serverURL string, q *models.KeywordQuery) (*models.KeywordResponse, error) {
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("mode", q.Mode)
	params.Set("fuzzy", strconv.FormatBool(q.Fuzzy))
	if q.Rerank {
		params.Set("rerank", "true")
	}
	var response models.KeywordResponse
	if err := getJSON(serverURL+"/api/v1/search?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func getJSON(u string, v interface{}) error {
	resp, err := http.Get(u)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, v)
}

func decodeResponse(resp *http.Response, v interface{}) error {
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func printUsage() {
	fmt.Println(`contexter - Ask questions about your own documents

Usage:
  contexter server [flags]             Start the HTTP API
  contexter ingest [flags]             Ingest the sources directory into the knowledge base
  contexter query [flags] <question>   Answer a question from the knowledge base
  contexter search [flags] <query>     Keyword or hybrid search over chunk texts
  contexter status [flags]             Show knowledge base statistics
  contexter version                    Show version
  contexter help                       Show this help

Common Flags:
  --config string    Config file path (default: ~/.contexter/config.yaml, or ./config.yaml when present)

Server Flags:
  --debug            Enable debug logging
  --watch            Re-ingest when files change in the sources directory

Ingest Flags:
  --sources string   Sources directory (default from config)
  --index string     Index directory (default from config)
  --output string    Output format: text or json (default: text)

Query Flags:
  --index string     Index directory (default from config)
  --server string    Ask a running server, e.g. http://localhost:8000

Search Flags:
  --server string    Search through a running server
  --limit int        Number of results (default: 10)
  --mode string      keyword or hybrid (default: keyword)
  --fuzzy            Enable fuzzy matching for typo tolerance
  --rerank           Re-rank hits by phrase, source name and recency
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Read status from a running server
  --output string    Output format: text or json (default: text)

Environment:
  OPENAI_API_KEY     Enables model-written answers (and openai embeddings). Read from .env if present.

Examples:
  contexter ingest
  contexter query "What does the onboarding guide say about laptops?"
  contexter search --mode hybrid chunk overlap
  contexter status --output json
  contexter server --watch`)
}
