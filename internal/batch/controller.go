package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mlindqvist/product-enricher/internal/common"
	"github.com/mlindqvist/product-enricher/internal/entity"
)

// RunRecorder persists terminal runs. Implementations must tolerate being
// called with a background context after the run context was cancelled.
type RunRecorder interface {
	RecordRun(ctx context.Context, runID string, summary entity.RunSummary, results []entity.ExtractionResult) error
}

// Controller owns batch execution: it chunks records by the concurrency
// limit, launches one worker per record within a chunk, waits for the chunk
// to settle, and re-checks cancellation between every chunk and every
// worker launch. At most Config.Concurrency items are in flight at any
// instant.
type Controller struct {
	worker      *Worker
	recorder    RunRecorder
	observer    Observer
	onComplete  func(entity.RunSummary)
	itemTimeout time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	current *Run
}

type ControllerOption func(*Controller)

// WithRecorder persists every terminal run through r.
func WithRecorder(r RunRecorder) ControllerOption {
	return func(c *Controller) { c.recorder = r }
}

// WithObserver forwards every status-store publish to fn.
func WithObserver(fn Observer) ControllerOption {
	return func(c *Controller) { c.observer = fn }
}

// WithCompletionCallback fires fn exactly once per run, with the terminal
// summary.
func WithCompletionCallback(fn func(entity.RunSummary)) ControllerOption {
	return func(c *Controller) { c.onComplete = fn }
}

// WithItemTimeout bounds each item's pipeline; expiry fails the item, it is
// not a cancellation.
func WithItemTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

func NewController(worker *Worker, logger *slog.Logger, opts ...ControllerOption) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		worker:      worker,
		itemTimeout: 3 * time.Minute,
		logger:      logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start validates the input and launches the run. Validation failures mean
// the run never begins. An empty record list is not an error: it yields an
// already-terminal run with all-zero counts.
func (c *Controller) Start(ctx context.Context, records []entity.ProductRecord, cfg entity.ExtractionConfig) (*Run, error) {
	if cfg.Concurrency < 1 {
		return nil, common.NewAppError("VALIDATION_ERROR", "concurrency must be >= 1", common.ErrValidation)
	}
	v := common.NewValidator()
	for i, r := range records {
		v.Field(fmt.Sprintf("records[%d].product_name", i), r.ProductName, common.Required)
	}
	if err := v.Error(); err != nil {
		return nil, common.NewAppError("VALIDATION_ERROR", err.Error(), common.ErrValidation)
	}

	runCtx, cancel := context.WithCancel(ctx)
	store := NewStatusStore(records, c.observer)
	run := newRun(cfg, store, cancel)

	c.mu.Lock()
	c.current = run
	c.mu.Unlock()

	if len(records) == 0 {
		cancel()
		c.finishRun(run, entity.RunSummary{})
		return run, nil
	}

	c.logger.Info("batch.run.start",
		"run_id", run.ID,
		"records", len(records),
		"concurrency", cfg.Concurrency,
		"pdf_enabled", cfg.PDFEnabled,
		"web_enabled", cfg.WebEnabled,
	)
	go c.execute(runCtx, run, records, cfg)
	return run, nil
}

// Stop cancels the current run, if any. Idempotent and safe after natural
// completion.
func (c *Controller) Stop() {
	c.mu.Lock()
	run := c.current
	c.mu.Unlock()
	if run != nil {
		run.Stop()
	}
}

// Current returns the most recently started run, or nil.
func (c *Controller) Current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Reset drops the reference to the current run, giving callers a blank
// slate. It does not cancel an in-flight run; call Stop first for that.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

func (c *Controller) execute(runCtx context.Context, run *Run, records []entity.ProductRecord, cfg entity.ExtractionConfig) {
	start := time.Now()

	for offset := 0; offset < len(records); offset += cfg.Concurrency {
		if runCtx.Err() != nil {
			break
		}
		end := offset + cfg.Concurrency
		if end > len(records) {
			end = len(records)
		}
		chunk := records[offset:end]

		var g errgroup.Group
		launched := 0
		for _, rec := range chunk {
			if runCtx.Err() != nil {
				break
			}
			rec := rec
			launched++
			g.Go(func() error {
				itemCtx, cancel := context.WithTimeout(runCtx, c.itemTimeout)
				defer cancel()
				c.worker.Process(runCtx, itemCtx, run.store, rec, cfg)
				return nil
			})
		}
		_ = g.Wait()
		c.logger.Debug("batch.chunk.settled",
			"run_id", run.ID, "offset", offset, "launched", launched)
	}

	cancelled := run.Cancelled() || runCtx.Err() != nil
	if cancelled {
		marked := run.store.MarkPendingStopped("stopped before start")
		c.logger.Info("batch.run.cancelled", "run_id", run.ID, "marked_stopped", marked)
	}

	completed, failed, stopped := run.store.Counts()
	summary := entity.RunSummary{
		Completed: completed,
		Failed:    failed,
		Stopped:   stopped,
		Cancelled: cancelled,
	}
	c.finishRun(run, summary)

	c.logger.Info("batch.run.done",
		"run_id", run.ID,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"stopped", summary.Stopped,
		"cancelled", summary.Cancelled,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}

// finishRun publishes the terminal summary exactly once and runs the
// completion hooks.
func (c *Controller) finishRun(run *Run, summary entity.RunSummary) {
	run.finish(summary)

	if c.onComplete != nil {
		c.onComplete(summary)
	}
	if c.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.recorder.RecordRun(ctx, run.ID.String(), summary, run.CompletedResults()); err != nil {
			c.logger.Warn("batch.run.record_failed", "run_id", run.ID, "error", err)
		}
	}
}
