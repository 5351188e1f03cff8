package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mlindqvist/product-enricher/internal/batch"
	"github.com/mlindqvist/product-enricher/internal/common"
	"github.com/mlindqvist/product-enricher/internal/content/cache"
	"github.com/mlindqvist/product-enricher/internal/content/pdf"
	"github.com/mlindqvist/product-enricher/internal/content/web"
	"github.com/mlindqvist/product-enricher/internal/export"
	"github.com/mlindqvist/product-enricher/internal/llm/openai"
	repo "github.com/mlindqvist/product-enricher/internal/repository"
	"github.com/mlindqvist/product-enricher/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, pool, err := repo.Open(ctx, repo.Config{
		DSN:              cfg.Database.DSN,
		SQLitePath:       cfg.Database.SQLitePath,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)

	if err := repo.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	runsRepo, err := repo.NewRunRepository(db, logger)
	if err != nil {
		logger.Error("failed to prepare run repository", "error", err)
		os.Exit(1)
	}

	// Content sources
	pdfExtractor := pdf.NewExtractor(pdf.Config{
		Dir:       cfg.PDF.Dir,
		Pdftotext: cfg.PDF.Pdftotext,
		MaxFiles:  cfg.PDF.MaxFiles,
	}, logger)

	var fetcher web.Fetcher
	var contentCache *cache.Store
	if cfg.Web.BaseURL != "" {
		client := web.NewClient(web.Config{
			BaseURL: cfg.Web.BaseURL,
			Timeout: cfg.Web.Timeout,
			Retries: cfg.Web.Retries,
		}, logger)
		if cfg.Web.CachePath != "" {
			contentCache, err = cache.Open(cfg.Web.CachePath, 24*time.Hour, logger)
			if err != nil {
				logger.Warn("failed to open web content cache, continuing without", "error", err)
			} else {
				client = client.WithCache(contentCache)
			}
		}
		fetcher = client
	} else {
		logger.Warn("WEB_CONTENT_URL not set, web content fetching disabled")
	}
	if contentCache != nil {
		defer func() { _ = contentCache.Close() }()
	}

	llmClient := openai.NewClient(openai.Config{
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		APIKey:          cfg.LLM.APIKey,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout,
		LenientResponse: true,
	}, logger)

	// Orchestrator
	hub := server.NewProgressHub()
	worker := batch.NewWorker(pdfExtractor, fetcher, llmClient, logger)
	controller := batch.NewController(worker, logger,
		batch.WithRecorder(runsRepo),
		batch.WithObserver(hub.Publish),
		batch.WithItemTimeout(cfg.Batch.ItemTimeout),
	)

	exporter := export.NewService(logger)
	runsHandler := server.NewRunsHandler(controller, exporter, runsRepo, hub, logger)
	srv := server.NewServer(server.Config{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, runsHandler, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	controller.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
