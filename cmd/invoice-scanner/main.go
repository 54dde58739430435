package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/invoice-scanner/internal/extraction"
	"github.com/zombor/invoice-scanner/internal/invoice"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// Values from .env never override the real environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cfg, fs, err := parseConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.ShowVersion {
		fmt.Println(version)
		return
	}
	if cfg.GeminiKey == "" {
		cfg.GeminiKey = os.Getenv("GEMINI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *Config) error {
	slog.Info("Initializing database...", "store", cfg.Store)
	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer db.Close()

	slog.Info("Initializing extraction engine...", "engine", cfg.Engine)
	engine, closeEngine, err := newEngine(cfg)
	if err != nil {
		return fmt.Errorf("initializing %s engine: %w", cfg.Engine, err)
	}
	defer closeEngine()

	client := extraction.NewClient(engine,
		extraction.WithPollInterval(cfg.PollInterval),
		extraction.WithMaxWait(cfg.MaxWait),
	)
	service := invoice.NewService(db, client, cfg.DefaultModel)

	spool, err := invoice.NewSpool(cfg.SpoolDir)
	if err != nil {
		return fmt.Errorf("initializing spool: %w", err)
	}

	server := invoice.NewServer(service, spool, invoice.BasicAuth{
		Username: cfg.AuthUser,
		Password: cfg.AuthPass,
	})
	server.SetMaxUploadSize(int64(cfg.MaxUploadMB) << 20)

	addr := fmt.Sprintf(":%d", cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if cfg.AuthUser != "" || cfg.AuthPass != "" {
		slog.Info("Basic auth enabled", "user", cfg.AuthUser)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.MaxWait+5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *Config) (invoice.DB, error) {
	switch cfg.Store {
	case "sqlite":
		return invoice.NewSQLiteDB(cfg.DBPath)
	case "postgres":
		return invoice.NewPostgresDB(cfg.PostgresDSN)
	default:
		return invoice.NewBoltDB(cfg.DBPath)
	}
}

// newEngine builds the configured engine and a func releasing its resources
func newEngine(cfg *Config) (extraction.Engine, func(), error) {
	images := extraction.ImageOptions{
		Enhance:      cfg.Enhance,
		MaxDimension: cfg.MaxImageSize,
	}

	var analyzer extraction.Analyzer
	switch cfg.Engine {
	case "azure":
		engine, err := extraction.NewAzure(extraction.AzureConfig{
			Endpoint:   cfg.AzureEndpoint,
			Key:        cfg.AzureKey,
			APIVersion: cfg.AzureAPIVersion,
		})
		if err != nil {
			return nil, nil, err
		}
		return engine, func() {}, nil
	case "gemini":
		gemini, err := extraction.NewGemini(cfg.GeminiKey, cfg.GeminiModel, images)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using Gemini", "model", cfg.GeminiModel)
		analyzer = gemini
	case "ollama":
		ollama, err := extraction.NewOllama(cfg.OllamaURL, cfg.OllamaModel, images)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("Using Ollama", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		analyzer = ollama
	default:
		return nil, nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}

	engine := extraction.NewAsyncEngine(analyzer, cfg.AnalyzeTimeout)
	return engine, func() {
		if err := engine.Close(); err != nil {
			slog.Warn("Failed to close analyzer", "error", err)
		}
	}, nil
}
