package preview

import (
	"context"
	"sync"
	"time"
)

// Snapshot is one sandbox boot.
type Snapshot struct {
	Sequence uint64    `json:"sequence"`
	Bundle   Bundle    `json:"bundle"`
	BootedAt time.Time `json:"booted_at"`
}

// Hub is the in-process sandbox: it keeps the latest booted bundle and
// fans every boot out to connected viewers. Slow viewers only ever see the
// most recent boot.
type Hub struct {
	mu     sync.RWMutex
	latest Snapshot
	booted bool
	subs   map[int]chan Snapshot
	nextID int
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Snapshot)}
}

func (h *Hub) Boot(ctx context.Context, b Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.latest = Snapshot{
		Sequence: h.latest.Sequence + 1,
		Bundle:   b,
		BootedAt: time.Now(),
	}
	h.booted = true

	for _, ch := range h.subs {
		select {
		case ch <- h.latest:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- h.latest
		}
	}
	return nil
}

func (h *Hub) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest, h.booted
}

// Subscribe returns a channel receiving every subsequent boot, primed with
// the current one if any.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	if h.booted {
		ch <- h.latest
	}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}
