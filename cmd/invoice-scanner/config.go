package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/invoice-scanner/internal/extraction"
)

// envPrefix maps --azure-key to INVOICE_SCANNER_AZURE_KEY and so on
const envPrefix = "INVOICE_SCANNER"

// Config holds every setting of the server
type Config struct {
	Port int

	Engine          string
	AzureEndpoint   string
	AzureKey        string
	AzureAPIVersion string
	GeminiKey       string
	GeminiModel     string
	OllamaURL       string
	OllamaModel     string
	Enhance         bool
	MaxImageSize    int
	AnalyzeTimeout  time.Duration

	DefaultModel string
	PollInterval time.Duration
	MaxWait      time.Duration

	Store       string
	DBPath      string
	PostgresDSN string

	SpoolDir    string
	MaxUploadMB int
	AuthUser    string
	AuthPass    string

	LogFormat string
	LogLevel  string

	ShowVersion bool
}

// parseConfig reads flags and INVOICE_SCANNER_* environment variables
func parseConfig(args []string) (*Config, *ff.FlagSet, error) {
	fs := ff.NewFlagSet("invoice-scanner")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		engine          = fs.StringLong("engine", "azure", "Extraction engine: 'azure', 'gemini' or 'ollama'")
		azureEndpoint   = fs.StringLong("azure-endpoint", "", "Document Intelligence endpoint, e.g. https://<resource>.cognitiveservices.azure.com")
		azureKey        = fs.StringLong("azure-key", "", "Document Intelligence subscription key")
		azureAPIVersion = fs.StringLong("azure-api-version", extraction.DefaultAPIVersion, "Document Intelligence API version")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl, llama3.2-vision)")
		enhance         = fs.BoolLong("enhance", "Enhance contrast of scans before sending them to a vision model")
		maxImageSize    = fs.IntLong("max-image-size", 2048, "Largest image side in pixels sent to a vision model, 0 for no limit")
		analyzeTimeout  = fs.DurationLong("analyze-timeout", 2*time.Minute, "Timeout of a single vision model call")
		defaultModel    = fs.StringLong("model", extraction.ModelInvoice, "Default extraction model: prebuilt-invoice, prebuilt-receipt or prebuilt-read")
		pollInterval    = fs.DurationLong("poll-interval", time.Second, "Interval between operation status checks")
		maxWait         = fs.DurationLong("max-wait", 2*time.Minute, "Longest time to wait for an extraction to finish")
		store           = fs.StringLong("store", "bolt", "Invoice store: 'bolt', 'sqlite' or 'postgres'")
		dbPath          = fs.StringLong("db", "invoices.db", "Database file path for the bolt and sqlite stores")
		postgresDSN     = fs.StringLong("postgres-dsn", "", "PostgreSQL connection string for the postgres store")
		spoolDir        = fs.StringLong("spool", "", "Directory for uploads in progress (default: system temp dir)")
		maxUploadMB     = fs.IntLong("max-upload-mb", 50, "Maximum upload size in megabytes")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logFormat       = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		logLevel        = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix(envPrefix)); err != nil {
		return nil, fs, err
	}

	return &Config{
		Port:            *port,
		Engine:          *engine,
		AzureEndpoint:   *azureEndpoint,
		AzureKey:        *azureKey,
		AzureAPIVersion: *azureAPIVersion,
		GeminiKey:       *geminiKey,
		GeminiModel:     *geminiModel,
		OllamaURL:       *ollamaURL,
		OllamaModel:     *ollamaModel,
		Enhance:         *enhance,
		MaxImageSize:    *maxImageSize,
		AnalyzeTimeout:  *analyzeTimeout,
		DefaultModel:    *defaultModel,
		PollInterval:    *pollInterval,
		MaxWait:         *maxWait,
		Store:           *store,
		DBPath:          *dbPath,
		PostgresDSN:     *postgresDSN,
		SpoolDir:        *spoolDir,
		MaxUploadMB:     *maxUploadMB,
		AuthUser:        *authUser,
		AuthPass:        *authPass,
		LogFormat:       *logFormat,
		LogLevel:        *logLevel,
		ShowVersion:     *showVersion,
	}, fs, nil
}

var knownModels = map[string]bool{
	extraction.ModelInvoice: true,
	extraction.ModelReceipt: true,
	extraction.ModelRead:    true,
}

// Validate checks that the selected engine and store are fully configured
func (c *Config) Validate() error {
	var errs []error

	switch c.Engine {
	case "azure":
		if c.AzureEndpoint == "" {
			errs = append(errs, errors.New("--azure-endpoint is required for the azure engine"))
		}
		if c.AzureKey == "" {
			errs = append(errs, errors.New("--azure-key is required for the azure engine"))
		}
	case "gemini":
		if c.GeminiKey == "" {
			errs = append(errs, errors.New("--gemini-key is required for the gemini engine"))
		}
	case "ollama":
		if c.OllamaURL == "" {
			errs = append(errs, errors.New("--ollama-url is required for the ollama engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid engine %q: valid engines are azure, gemini or ollama", c.Engine))
	}

	switch c.Store {
	case "bolt", "sqlite":
		if c.DBPath == "" {
			errs = append(errs, fmt.Errorf("--db is required for the %s store", c.Store))
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("--postgres-dsn is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid store %q: valid stores are bolt, sqlite or postgres", c.Store))
	}

	if !knownModels[c.DefaultModel] {
		errs = append(errs, fmt.Errorf("invalid model %q", c.DefaultModel))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("--poll-interval must be positive"))
	}
	if c.MaxWait < c.PollInterval {
		errs = append(errs, errors.New("--max-wait must not be shorter than --poll-interval"))
	}
	if c.MaxUploadMB <= 0 {
		errs = append(errs, errors.New("--max-upload-mb must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("invalid log format %q: valid formats are text or json", c.LogFormat))
	}

	return errors.Join(errs...)
}

func parseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return l, fmt.Errorf("invalid log level %q", level)
	}
	return l, nil
}

// newLogger builds the process logger from the log flags
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	l, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: l}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
