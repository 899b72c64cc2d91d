package storage

import (
	"sync"

	"github.com/waschgehtab/washd/internal/models"
)

// hub fans committed snapshots out to subscribers. Sends never block: a
// subscriber that falls behind misses intermediate snapshots and catches
// up on the next commit, which is fine because every snapshot is complete.
type hub struct {
	mu   sync.Mutex
	subs map[chan models.Snapshot]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan models.Snapshot]struct{})}
}

func (h *hub) subscribe() (<-chan models.Snapshot, func()) {
	ch := make(chan models.Snapshot, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *hub) broadcast(snap models.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- snap:
		default:
			// Drop for slow subscribers
		}
	}
}
