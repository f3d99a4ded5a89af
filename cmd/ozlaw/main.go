// Package main is the OzLaw CLI entry point.
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
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/ozlaw/internal/cli"
	"github.com/hyperjump/ozlaw/internal/config"
	"github.com/hyperjump/ozlaw/internal/errs"
	"github.com/hyperjump/ozlaw/internal/models"
	"github.com/hyperjump/ozlaw/internal/rag"
	"github.com/hyperjump/ozlaw/internal/server"
	"github.com/hyperjump/ozlaw/internal/storage"
	"github.com/hyperjump/ozlaw/internal/watcher"
	"github.com/hyperjump/ozlaw/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/ozlaw/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists, so running from a project directory uses that project's
// data and .env. Returns the config and the path that was actually loaded.
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
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("ozlaw version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads the config and builds a logger. server and watch log at info level;
// one-shot commands only log warnings unless debug is on.
func setup(configPath string, debugFlag, longRunning bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	var logger *zap.Logger
	if longRunning {
		logger, err = utils.NewLogger(debugMode)
	} else {
		logger, err = utils.NewCLILogger(debugMode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "also watch the data directory and ingest new files")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved))

	components, err := initializeComponents(cfg, logger, componentOptions{})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *watch {
		w := watcher.NewWatcher(cfg.Ingest.DataDir, cfg.Ingest.Extensions, cfg.Ingest.Recursive,
			components.Indexer, watcher.WithLogger(logger))
		if err := w.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go w.SyncExistingFiles()
		defer w.Stop()
	}

	srv := server.NewServer(
		components.Pipeline,
		components.Indexer,
		components.Registry,
		components.Store,
		cfg,
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
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves any flags (and their values) that appear after the positional
// arguments to the front so that flag.Parse sees them. Go's flag package stops at the
// first non-flag argument, so "ozlaw ask what is a tort --output json" would otherwise
// leave --output unparsed.
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

// buildQuestion joins all positional args with spaces so multi-word questions
// work the same with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	historyPath := fs.String("history", "", "JSON conversation history file; read before and updated after answering")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (default from config)")
	serverURL := fs.String("server", "", "ask a running server instead of opening the store directly")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	if question == "" {
		fmt.Println("Usage: ozlaw ask [flags] <question>")
		os.Exit(1)
	}

	history := models.History{}
	if *historyPath != "" {
		h, err := cli.LoadHistory(*historyPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load history: %v\n", err)
			os.Exit(1)
		}
		history = h
	}
	req := &models.AnswerRequest{Question: question, History: history, TopK: *topK}

	var resp *models.AnswerResponse
	if *serverURL != "" {
		r, err := askViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		resp = r
	} else {
		cfg, _, logger := setup(*configPath, *debug, false)
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger, componentOptions{})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		resp = answerLocally(context.Background(), components.Pipeline, req, logger)
	}

	if *historyPath != "" {
		if err := cli.SaveHistory(*historyPath, resp.History); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save history: %v\n", err)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, resp, cli.OutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
	if resp.ErrorKind != "" {
		os.Exit(1)
	}
}

// answerLocally runs the pipeline in process and shapes the result like the HTTP API does.
// The answer, including an error message, is always appended to the history.
func answerLocally(ctx context.Context, p *rag.Pipeline, req *models.AnswerRequest, logger *zap.Logger) *models.AnswerResponse {
	start := time.Now()
	_ = req.Validate()
	res, err := p.RunK(ctx, req.Question, req.History, req.TopK)
	if err != nil {
		kind := errs.KindOf(err)
		logger.Warn("answer failed", zap.String("kind", kind.String()), zap.Error(err))
		answer := rag.UserMessage(err)
		return &models.AnswerResponse{
			Answer:    answer,
			History:   req.History.Append(req.Question, answer),
			ErrorKind: kind.String(),
			QueryTime: time.Since(start).Milliseconds(),
		}
	}
	return &models.AnswerResponse{
		Answer:             res.Answer,
		History:            req.History.Append(req.Question, res.Answer),
		StandaloneQuestion: res.StandaloneQuestion,
		Sources:            server.ToSources(res.Sources),
		QueryTime:          time.Since(start).Milliseconds(),
	}
}

func askViaHTTP(serverURL string, req *models.AnswerRequest) (*models.AnswerResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/answer", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	var out models.AnswerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.Answer == "" {
		return nil, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return &out, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	force := fs.Bool("force", false, "re-ingest files even if they are unchanged")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	cfg, _, logger := setup(*configPath, *debug, false)
	defer logger.Sync()
	if err := missingKeyError(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	path := cfg.Ingest.DataDir
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	components, err := initializeComponents(cfg, logger, componentOptions{force: *force})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}

	report := &models.IngestReport{Ingested: []string{}}
	if info.IsDir() {
		report, err = components.Indexer.IngestDirectory(ctx, path, cfg.Ingest.Extensions)
		if err != nil && report == nil {
			fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		// Single file: no extension filter
		res, ferr := components.Indexer.IngestFile(ctx, path, nil)
		switch {
		case ferr != nil:
			report.Failed = append(report.Failed, models.FileError{Path: path, Kind: errs.KindOf(ferr).String(), Error: ferr.Error()})
		case res.Skipped:
			report.Skipped = append(report.Skipped, res.Path)
		default:
			report.Ingested = append(report.Ingested, res.Path)
			report.Chunks = res.Chunks
		}
	}
	if werr := cli.WriteIngestReport(os.Stdout, report, cli.OutputFormat(*outputFormat)); werr != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", werr)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion interrupted: %v\n", err)
		os.Exit(1)
	}
	if len(report.Failed) > 0 && len(report.Ingested) == 0 && len(report.Skipped) == 0 {
		os.Exit(1)
	}
}

func runWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := setup(*configPath, *debug, true)
	defer logger.Sync()
	if err := missingKeyError(cfg); err != nil {
		logger.Fatal("cannot watch without a provider", zap.Error(err))
	}
	dir := cfg.Ingest.DataDir
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	components, err := initializeComponents(cfg, logger, componentOptions{})
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	w := watcher.NewWatcher(dir, cfg.Ingest.Extensions, cfg.Ingest.Recursive, components.Indexer, watcher.WithLogger(logger))
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	w.SyncExistingFiles()
	<-ctx.Done()
	logger.Info("Shutting down...")
	w.Stop()
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Documents          int64                  `json:"documents"`
	Chunks             int64                  `json:"chunks"`
	VectorStoreEntries int                    `json:"vector_store_entries"`
	DiskUsageBytes     *int64                 `json:"disk_usage_bytes,omitempty"`
	Config             map[string]interface{} `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "server URL (empty = read the registry directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, logger := setup(*configPath, false, false)
		defer logger.Sync()
		res, err := localStatus(context.Background(), cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, &status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func localStatus(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*statusResponse, error) {
	components, err := initializeComponents(cfg, logger, componentOptions{})
	if err != nil {
		return nil, err
	}
	defer components.Close()
	docCount, err := components.Registry.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunkCount, err := components.Registry.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	status := &statusResponse{
		Documents:          docCount,
		Chunks:             chunkCount,
		VectorStoreEntries: components.Store.Count(),
		Config: map[string]interface{}{
			"vector_store_type": cfg.Storage.VectorStoreType,
			"vector_store_path": cfg.Storage.VectorStorePath,
			"database_path":     cfg.Storage.DatabasePath,
			"data_dir":          cfg.Ingest.DataDir,
			"chunk_size":        cfg.Chunking.ChunkSize,
			"chunk_overlap":     cfg.Chunking.ChunkOverlap,
			"embedding_model":   cfg.Embedding.Model,
			"llm_model":         cfg.LLM.Model,
			"top_k":             cfg.Retrieval.TopK,
			"api_key_present":   cfg.Provider.APIKey != "",
		},
	}
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.VectorStorePath, cfg.Storage.DatabasePath); err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "documents:             %d   # ingested documents in the registry\n", status.Documents)
	fmt.Fprintf(w, "chunks:                %d   # chunks recorded for those documents\n", status.Chunks)
	fmt.Fprintf(w, "vector_store_entries:  %d   # entries in the vector store (append-only)\n", status.VectorStoreEntries)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:      %d\n", *status.DiskUsageBytes)
	}
	if len(status.Config) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	for _, key := range []string{
		"vector_store_type", "vector_store_path", "database_path", "data_dir",
		"chunk_size", "chunk_overlap", "embedding_model", "llm_model", "top_k", "api_key_present",
	} {
		if v, ok := status.Config[key]; ok {
			fmt.Fprintf(w, "%-22s %v\n", key+":", v)
		}
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

// writeDefaultConfig writes a config with every default filled in. Paths stay relative so
// they resolve against the directory the file is written to.
func writeDefaultConfig(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])
	path := "config.yaml"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if err := writeDefaultConfig(path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s. Put OPENAI_API_KEY in a .env file next to it.\n", path)
}

func printUsage() {
	fmt.Println(`ozlaw - Question answering over legal documents

Usage:
  ozlaw server [flags]             Start the HTTP API
  ozlaw ingest [flags] [path]      Ingest a file or directory (default: ingest.data_dir)
  ozlaw ask [flags] <question>     Answer a question
  ozlaw watch [flags] [dir]        Ingest new and changed files as they appear
  ozlaw status [flags]             Show registry and vector store status
  ozlaw init [--force] [path]      Write a default config file (default: ./config.yaml)
  ozlaw version                    Show version
  ozlaw help                       Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml if present, else /usr/local/etc/ozlaw/config.yaml)
  --debug            Enable debug logging

Server Flags:
  --watch            Also watch ingest.data_dir

Ingest Flags:
  --force            Re-ingest unchanged files (the vector store does not deduplicate)
  --output string    Output format: text or json (default: text)

Ask Flags:
  --history string   JSON history file, read before and updated after answering
  --top-k int        Number of chunks to retrieve (default: retrieval.top_k)
  --server string    Ask a running server instead of opening the store directly
  --output string    Output format: text or json (default: text)

Status Flags:
  --server string    Server URL (empty = read the registry directly)
  --output string    Output format: text or json (default: text)

The OpenAI API key is read from the variable named by provider.api_key_env
(default OPENAI_API_KEY), after loading a .env file next to the config file.
Set embedding.provider to "mock" to run offline.

Examples:
  ozlaw ingest
  ozlaw ingest --force ./data/contracts
  ozlaw ask "What is the limitation period for breach of contract?"
  ozlaw ask --history session.json "And for negligence?"
  ozlaw status --output json
  ozlaw server --watch`)
}
