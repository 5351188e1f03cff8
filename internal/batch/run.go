package batch

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/mlindqvist/product-enricher/constants"
	"github.com/mlindqvist/product-enricher/internal/entity"
)

// Run is the handle for one batch execution. All state lives in the status
// store; the run itself only owns the cancellation signal and the terminal
// summary.
type Run struct {
	ID     uuid.UUID
	Config entity.ExtractionConfig

	store  *StatusStore
	cancel context.CancelFunc

	cancelled atomic.Bool
	done      chan struct{}

	summaryOnce sync.Once
	summary     entity.RunSummary
}

func newRun(cfg entity.ExtractionConfig, store *StatusStore, cancel context.CancelFunc) *Run {
	return &Run{
		ID:     uuid.New(),
		Config: cfg,
		store:  store,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Items returns a copy of the current per-item state snapshot.
func (r *Run) Items() []entity.ItemState {
	return r.store.Items()
}

// CompletedResults returns the results of every COMPLETED item, in input
// order. Safe to call at any time; mid-run it returns what is done so far.
func (r *Run) CompletedResults() []entity.ExtractionResult {
	var out []entity.ExtractionResult
	for _, item := range r.store.Items() {
		if item.Status == constants.ItemStatusCompleted && item.Result != nil {
			out = append(out, *item.Result)
		}
	}
	return out
}

// Stop signals cancellation. Idempotent; a no-op after natural completion.
// In-flight network calls are aborted through the run context, items still
// PENDING are marked STOPPED by the controller loop.
func (r *Run) Stop() {
	select {
	case <-r.done:
		return // already terminal
	default:
	}
	if r.cancelled.CompareAndSwap(false, true) {
		r.cancel()
	}
}

// Cancelled reports whether Stop was called. Monotonic.
func (r *Run) Cancelled() bool {
	return r.cancelled.Load()
}

// Done is closed once the run reaches its terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Summary returns the terminal summary. ok is false while the run is still
// in flight.
func (r *Run) Summary() (summary entity.RunSummary, ok bool) {
	select {
	case <-r.done:
		return r.summary, true
	default:
		return entity.RunSummary{}, false
	}
}

// finish records the terminal summary exactly once, releases the run
// context, and closes Done. Cancelling here detaches the run from its
// parent context so naturally-completed runs do not accumulate there.
func (r *Run) finish(summary entity.RunSummary) {
	r.summaryOnce.Do(func() {
		r.summary = summary
		r.cancel()
		close(r.done)
	})
}
