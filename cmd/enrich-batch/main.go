package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mlindqvist/product-enricher/internal/batch"
	"github.com/mlindqvist/product-enricher/internal/common"
	"github.com/mlindqvist/product-enricher/internal/content/pdf"
	"github.com/mlindqvist/product-enricher/internal/content/web"
	"github.com/mlindqvist/product-enricher/internal/entity"
	"github.com/mlindqvist/product-enricher/internal/export"
	"github.com/mlindqvist/product-enricher/internal/ingest"
	"github.com/mlindqvist/product-enricher/internal/llm/openai"
	repo "github.com/mlindqvist/product-enricher/internal/repository"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		recordsPath = flag.String("records", "", "JSON file with the product records to enrich (required)")
		propsPath   = flag.String("props", "", "JSON file with the property schema (required)")
		out         = flag.String("out", "products.xlsx", "output XLSX file path")
		concurrency = flag.Int("concurrency", 0, "concurrent items (defaults to BATCH_CONCURRENCY)")
		noPDF       = flag.Bool("no-pdf", false, "skip the PDF extraction step")
		inmem       = flag.Bool("inmem", false, "use an in-memory run store")
	)
	flag.Parse()

	if *recordsPath == "" || *propsPath == "" {
		printError("Error: --records and --props are required\n")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.LLM.APIKey == "" {
		printError("Error: OPENAI_API_KEY is required\n")
		os.Exit(1)
	}
	if *concurrency <= 0 {
		*concurrency = cfg.Batch.Concurrency
	}

	records, properties, err := loadInput(*recordsPath, *propsPath)
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Run store (sqlite; in-memory when requested)
	dbCfg := repo.Config{SQLitePath: cfg.Database.SQLitePath}
	if *inmem {
		dbCfg.SQLitePath = ":memory:"
	}
	db, pool, err := repo.Open(ctx, dbCfg, logger)
	if err != nil {
		logger.Error("failed to open run store", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, pool, logger)
	runsRepo, err := repo.NewRunRepository(db, logger)
	if err != nil {
		logger.Error("failed to prepare run repository", "error", err)
		os.Exit(1)
	}

	pdfExtractor := pdf.NewExtractor(pdf.Config{
		Dir:       cfg.PDF.Dir,
		Pdftotext: cfg.PDF.Pdftotext,
		MaxFiles:  cfg.PDF.MaxFiles,
	}, logger)

	var fetcher web.Fetcher
	if cfg.Web.BaseURL != "" {
		fetcher = web.NewClient(web.Config{
			BaseURL: cfg.Web.BaseURL,
			Timeout: cfg.Web.Timeout,
			Retries: cfg.Web.Retries,
		}, logger)
	}

	llmClient := openai.NewClient(openai.Config{
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		APIKey:          cfg.LLM.APIKey,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout,
		LenientResponse: true,
	}, logger)

	worker := batch.NewWorker(pdfExtractor, fetcher, llmClient, logger)
	controller := batch.NewController(worker, logger,
		batch.WithRecorder(runsRepo),
		batch.WithItemTimeout(cfg.Batch.ItemTimeout),
	)

	normalized := ingest.NormalizeRecords(records, logger)
	if err := ingest.ValidateRecords(normalized); err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	run, err := controller.Start(ctx, normalized, entity.ExtractionConfig{
		Concurrency: *concurrency,
		PDFEnabled:  !*noPDF,
		WebEnabled:  true,
		Properties:  properties,
		Model:       cfg.LLM.Model,
	})
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(1)
	}

	// Ctrl-C stops the run; the controller marks the rest STOPPED and we
	// still export whatever completed.
	go func() {
		<-ctx.Done()
		run.Stop()
	}()

	<-run.Done()
	summary, _ := run.Summary()
	logger.Info("batch finished",
		"completed", summary.Completed,
		"failed", summary.Failed,
		"stopped", summary.Stopped,
		"cancelled", summary.Cancelled,
	)

	results := run.CompletedResults()
	if len(results) == 0 {
		printError("No completed results to export\n")
		os.Exit(1)
	}
	exporter := export.NewService(logger)
	data, err := exporter.ResultsXLSX(results, properties)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("write output file failed", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("wrote export", "path", *out, "rows", len(results))
	fmt.Printf("exported %d of %d products to %s\n", len(results), len(normalized), *out)
}

func loadInput(recordsPath, propsPath string) ([]entity.ProductRecord, []entity.PropertyField, error) {
	rb, err := os.ReadFile(recordsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read records: %w", err)
	}
	var records []entity.ProductRecord
	if err := json.Unmarshal(rb, &records); err != nil {
		return nil, nil, fmt.Errorf("parse records: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("no records in %s", recordsPath)
	}

	pb, err := os.ReadFile(propsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read properties: %w", err)
	}
	var properties []entity.PropertyField
	if err := json.Unmarshal(pb, &properties); err != nil {
		return nil, nil, fmt.Errorf("parse properties: %w", err)
	}
	if len(properties) == 0 {
		return nil, nil, fmt.Errorf("no properties in %s", propsPath)
	}
	return records, properties, nil
}
