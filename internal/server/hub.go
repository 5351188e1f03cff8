package server

import (
	"sync"

	"github.com/mlindqvist/product-enricher/internal/entity"
)

// ProgressHub fans item-state snapshots out to SSE subscribers. Slow
// subscribers are skipped, never blocked on: each keeps only the latest
// snapshot it has not consumed yet.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[chan []entity.ItemState]struct{}
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{subs: make(map[chan []entity.ItemState]struct{})}
}

// Publish delivers the snapshot to every subscriber, dropping the stale
// pending snapshot of any subscriber that has fallen behind.
func (h *ProgressHub) Publish(items []entity.ItemState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- items:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- items:
			default:
			}
		}
	}
}

// Subscribe registers a new subscriber channel.
func (h *ProgressHub) Subscribe() chan []entity.ItemState {
	ch := make(chan []entity.ItemState, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel; it must not be used afterwards.
func (h *ProgressHub) Unsubscribe(ch chan []entity.ItemState) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}
