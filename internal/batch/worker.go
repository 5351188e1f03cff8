package batch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mlindqvist/product-enricher/constants"
	"github.com/mlindqvist/product-enricher/internal/common"
	"github.com/mlindqvist/product-enricher/internal/content/web"
	"github.com/mlindqvist/product-enricher/internal/entity"
	"github.com/mlindqvist/product-enricher/internal/llm"
)

// PDFSource finds and extracts datasheet text for an article number.
type PDFSource interface {
	ExtractForArticle(ctx context.Context, articleNumber string) (text string, files []string, err error)
}

// Worker drives one product record through the content-gathering pipeline:
// PDF text, then web content, then a single AI extraction call. Every error
// that is not a cancellation stays confined to the item.
type Worker struct {
	pdf       PDFSource
	web       web.Fetcher
	extractor llm.Extractor
	logger    *slog.Logger
}

func NewWorker(pdfSource PDFSource, fetcher web.Fetcher, extractor llm.Extractor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{pdf: pdfSource, web: fetcher, extractor: extractor, logger: logger}
}

// Process runs the pipeline for one record, writing every transition to the
// store. runCtx is the run-wide cancellation signal; itemCtx additionally
// carries the per-item timeout.
func (w *Worker) Process(runCtx, itemCtx context.Context, store *StatusStore, rec entity.ProductRecord, cfg entity.ExtractionConfig) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("worker.panic", "id", rec.ID, "recovered", p)
			w.fail(store, rec.ID, fmt.Sprintf("unexpected error: %v", p), start)
		}
	}()

	store.Update(rec.ID, func(it entity.ItemState) entity.ItemState {
		it.Status = constants.ItemStatusSearching
		it.Progress = 10
		it.StatusDetail = "searching content sources"
		return it
	})

	// Step 1: PDF extraction. Skipped for synthesized article numbers and
	// soft on every failure.
	var pdfText string
	if cfg.PDFEnabled && w.pdf != nil && !strings.HasPrefix(rec.ArticleNumber, constants.AutoArticlePrefix) {
		text, files, err := w.pdf.ExtractForArticle(itemCtx, rec.ArticleNumber)
		if err != nil {
			if w.stoppedByCancel(runCtx, store, rec.ID) {
				return
			}
			w.logger.Warn("worker.pdf.failed", "id", rec.ID, "article_number", rec.ArticleNumber, "error", err)
		} else if text != "" {
			pdfText = text
			w.logger.Debug("worker.pdf.ok", "id", rec.ID, "files", len(files), "text_len", len(text))
		}
		store.Update(rec.ID, func(it entity.ItemState) entity.ItemState {
			it.Progress = 35
			if pdfText != "" {
				it.StatusDetail = fmt.Sprintf("found %d PDF file(s)", len(files))
			} else {
				it.StatusDetail = "no PDF files found"
			}
			return it
		})
	}

	// Step 2: web content. Soft on network failure, hard on cancellation.
	var webContent string
	if cfg.WebEnabled && w.web != nil && rec.URL != "" {
		store.Update(rec.ID, func(it entity.ItemState) entity.ItemState {
			it.Progress = 50
			it.StatusDetail = "fetching web content"
			return it
		})
		content, err := w.web.FetchContent(itemCtx, web.Request{URL: rec.URL, ArticleNumber: rec.ArticleNumber})
		if err != nil {
			if w.stoppedByCancel(runCtx, store, rec.ID) {
				return
			}
			w.logger.Warn("worker.web.failed", "id", rec.ID, "url", rec.URL, "error", err)
		} else {
			webContent = content
		}
	}

	// Step 3: fallback direct extraction when nothing was gathered locally
	// but a URL exists; the service fetches the page itself. Whitespace-only
	// content counts as nothing gathered.
	if strings.TrimSpace(pdfText) == "" && strings.TrimSpace(webContent) == "" {
		if rec.URL == "" {
			w.fail(store, rec.ID, common.ErrNoContent.Error(), start)
			return
		}
		store.Update(rec.ID, func(it entity.ItemState) entity.ItemState {
			it.Status = constants.ItemStatusExtracting
			it.Progress = 60
			it.StatusDetail = "extracting directly from URL"
			return it
		})
		result, _, err := w.extractor.ExtractProperties(itemCtx, llm.ExtractRequest{
			URL:           rec.URL,
			ProductName:   rec.ProductName,
			ArticleNumber: rec.ArticleNumber,
			Properties:    cfg.Properties,
			DirectFetch:   true,
			SourceLabels:  []string{string(constants.SourceWeb)},
		})
		if err != nil {
			if w.stoppedByCancel(runCtx, store, rec.ID) {
				return
			}
			w.fail(store, rec.ID, fmt.Sprintf("direct extraction failed: %v", err), start)
			return
		}
		w.complete(store, rec.ID, result, start)
		return
	}

	// Step 4: combined extraction over everything that was gathered.
	combined, labels := llm.BuildCombinedContent(pdfText, webContent)
	store.Update(rec.ID, func(it entity.ItemState) entity.ItemState {
		it.Status = constants.ItemStatusExtracting
		it.Progress = 60
		it.StatusDetail = "extracting properties from " + strings.Join(labels, "+")
		return it
	})

	result, _, err := w.extractor.ExtractProperties(itemCtx, llm.ExtractRequest{
		URL:             rec.URL,
		ProductName:     rec.ProductName,
		ArticleNumber:   rec.ArticleNumber,
		Properties:      cfg.Properties,
		PDFText:         pdfText,
		WebContent:      webContent,
		CombinedContent: combined,
		SourceLabels:    labels,
	})
	if err != nil {
		if w.stoppedByCancel(runCtx, store, rec.ID) {
			return
		}
		w.fail(store, rec.ID, fmt.Sprintf("extraction failed: %v", err), start)
		return
	}

	store.Update(rec.ID, func(it entity.ItemState) entity.ItemState {
		it.Progress = 75
		it.StatusDetail = "finalizing result"
		return it
	})
	w.complete(store, rec.ID, result, start)
}

// stoppedByCancel marks the item STOPPED when the run-wide signal fired.
// Per-item timeouts are not cancellations and fall through to FAILED.
func (w *Worker) stoppedByCancel(runCtx context.Context, store *StatusStore, id string) bool {
	if runCtx.Err() == nil {
		return false
	}
	store.Update(id, func(it entity.ItemState) entity.ItemState {
		it.Status = constants.ItemStatusStopped
		it.Progress = 100
		it.StatusDetail = "stopped"
		return it
	})
	return true
}

func (w *Worker) complete(store *StatusStore, id string, result entity.ExtractionResult, start time.Time) {
	store.Update(id, func(it entity.ItemState) entity.ItemState {
		it.Status = constants.ItemStatusCompleted
		it.Progress = 100
		it.StatusDetail = "done"
		it.Result = &result
		return it
	})
	w.logger.Info("worker.item.done",
		"id", id,
		"article_number", result.ArticleNumber,
		"source_labels", strings.Join(result.SourceLabels, ","),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

func (w *Worker) fail(store *StatusStore, id, message string, start time.Time) {
	store.Update(id, func(it entity.ItemState) entity.ItemState {
		it.Status = constants.ItemStatusFailed
		it.Progress = 100
		it.StatusDetail = "failed"
		it.Error = message
		return it
	})
	w.logger.Warn("worker.item.failed",
		"id", id,
		"error", message,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
