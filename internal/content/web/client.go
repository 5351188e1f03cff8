package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// Request identifies the page to fetch on behalf of one record.
type Request struct {
	URL           string `json:"url"`
	ArticleNumber string `json:"article_number"`
}

// Fetcher is the interface the worker pipeline depends on.
type Fetcher interface {
	FetchContent(ctx context.Context, req Request) (string, error)
}

// ContentCache stores fetched page content keyed by (url, article number).
// Every cache failure is soft; the fetch proceeds without it.
type ContentCache interface {
	Get(ctx context.Context, url, articleNumber string) (string, bool, error)
	Put(ctx context.Context, url, articleNumber, content string) error
}

// Config holds web-content service configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Retries int
}

// Client calls the web-content service over HTTP with bounded retries.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      ContentCache
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      nil,
		logger:     logger,
	}
}

// WithCache attaches a content cache consulted before the service call.
func (c *Client) WithCache(cache ContentCache) *Client {
	c.cache = cache
	return c
}

// FetchContent posts {url, article_number} to the web-content service and
// returns the page content. Cancellation of ctx aborts the in-flight
// request and is returned as ctx.Err() so the caller can distinguish it
// from an ordinary network failure.
func (c *Client) FetchContent(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	if c.cache != nil {
		if content, ok, err := c.cache.Get(ctx, req.URL, req.ArticleNumber); err != nil {
			c.logger.Warn("web.cache.get_failed", "url", req.URL, "error", err)
		} else if ok {
			c.logger.Debug("web.cache.hit", "url", req.URL, "content_len", len(content))
			return content, nil
		}
	}

	content, err := retry.DoWithData(
		func() (string, error) { return c.fetchOnce(ctx, req) },
		retry.Context(ctx),
		retry.Attempts(uint(c.cfg.Retries)),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("web.fetch.failed",
			"url", req.URL,
			"article_number", req.ArticleNumber,
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}

	if c.cache != nil && content != "" {
		if err := c.cache.Put(ctx, req.URL, req.ArticleNumber, content); err != nil {
			c.logger.Warn("web.cache.put_failed", "url", req.URL, "error", err)
		}
	}

	c.logger.Debug("web.fetch.ok",
		"url", req.URL,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) fetchOnce(ctx context.Context, req Request) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/content"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("web-content http error: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("web-content response body close error", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("web-content status %d: %s", resp.StatusCode, string(body))
	}

	var out struct {
		Success bool   `json:"success"`
		Content string `json:"content"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode web-content response: %w", err)
	}
	if !out.Success {
		if out.Error == "" {
			out.Error = "unspecified failure"
		}
		return "", fmt.Errorf("web-content service: %s", out.Error)
	}
	return out.Content, nil
}
