package batch

import (
	"sync"
	"sync/atomic"

	"github.com/mlindqvist/product-enricher/constants"
	"github.com/mlindqvist/product-enricher/internal/entity"
)

// Observer is invoked with the full item snapshot after every publish.
// Deliveries are serialized in publish order, so the callback must not
// block; ProgressHub.Publish satisfies that.
type Observer func(items []entity.ItemState)

// StatusStore holds the ordered collection of item states for one run.
// Every update is computed as a pure function over the previous snapshot:
// find-by-id, replace, publish a fresh slice through an atomic pointer.
// Readers never see a partially-updated collection; a mutex serializes
// writers so no update is lost.
type StatusStore struct {
	mu       sync.Mutex
	snapshot atomic.Pointer[[]entity.ItemState]
	observer Observer
}

// NewStatusStore seeds one PENDING entry per record, index-aligned with the
// input order.
func NewStatusStore(records []entity.ProductRecord, observer Observer) *StatusStore {
	items := make([]entity.ItemState, len(records))
	for i, r := range records {
		items[i] = entity.ItemState{
			ID:           r.ID,
			Status:       constants.ItemStatusPending,
			Progress:     0,
			StatusDetail: "waiting",
		}
	}
	s := &StatusStore{observer: observer}
	s.snapshot.Store(&items)
	return s
}

// Items returns a copy of the current snapshot.
func (s *StatusStore) Items() []entity.ItemState {
	cur := *s.snapshot.Load()
	out := make([]entity.ItemState, len(cur))
	copy(out, cur)
	return out
}

// Update applies mutate to the entry with the given id and publishes a new
// snapshot. Terminal entries are never changed and progress never decreases;
// out-of-range progress is clamped to [0,100]. Unknown ids are ignored.
func (s *StatusStore) Update(id string, mutate func(entity.ItemState) entity.ItemState) {
	s.mu.Lock()
	cur := *s.snapshot.Load()
	next := make([]entity.ItemState, len(cur))
	copy(next, cur)

	changed := false
	for i, item := range next {
		if item.ID != id {
			continue
		}
		if item.Status.Terminal() {
			break
		}
		updated := mutate(item)
		updated.ID = item.ID
		if updated.Progress < item.Progress {
			updated.Progress = item.Progress
		}
		if updated.Progress > 100 {
			updated.Progress = 100
		}
		next[i] = updated
		changed = true
		break
	}
	if !changed {
		s.mu.Unlock()
		return
	}
	s.snapshot.Store(&next)
	s.notify(next)
	s.mu.Unlock()
}

// MarkPendingStopped transitions every still-PENDING entry to STOPPED in one
// publish and returns how many were marked.
func (s *StatusStore) MarkPendingStopped(detail string) int {
	s.mu.Lock()
	cur := *s.snapshot.Load()
	next := make([]entity.ItemState, len(cur))
	copy(next, cur)

	marked := 0
	for i, item := range next {
		if item.Status != constants.ItemStatusPending {
			continue
		}
		item.Status = constants.ItemStatusStopped
		item.Progress = 100
		item.StatusDetail = detail
		next[i] = item
		marked++
	}
	if marked == 0 {
		s.mu.Unlock()
		return 0
	}
	s.snapshot.Store(&next)
	s.notify(next)
	s.mu.Unlock()
	return marked
}

// Counts tallies terminal states in the current snapshot.
func (s *StatusStore) Counts() (completed, failed, stopped int) {
	for _, item := range *s.snapshot.Load() {
		switch item.Status {
		case constants.ItemStatusCompleted:
			completed++
		case constants.ItemStatusFailed:
			failed++
		case constants.ItemStatusStopped:
			stopped++
		}
	}
	return completed, failed, stopped
}

func (s *StatusStore) notify(items []entity.ItemState) {
	if s.observer == nil {
		return
	}
	out := make([]entity.ItemState, len(items))
	copy(out, items)
	s.observer(out)
}
