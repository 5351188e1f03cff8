package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds OpenAI-compatible chat/completions client configuration.
type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration

	// LenientResponse re-validates after sanitizing a response that failed
	// strict schema validation instead of failing the extraction outright.
	LenientResponse bool
}

// Client implements llm.Extractor against an OpenAI-compatible endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}
