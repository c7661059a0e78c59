package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Broadcaster fans status snapshots out to /api/stream listeners. It keeps
// the most recent value so new subscribers get an immediate sample. Slow
// subscribers miss values rather than stall Publish.
type Broadcaster struct {
	mu       sync.RWMutex
	subs     map[int]chan StatusSnapshot
	nextID   int
	last     StatusSnapshot
	haveLast bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan StatusSnapshot)}
}

func (b *Broadcaster) Subscribe(buffer int) (int, <-chan StatusSnapshot) {
	if buffer <= 0 {
		buffer = 2
	}
	ch := make(chan StatusSnapshot, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	last, have := b.last, b.haveLast
	b.mu.Unlock()
	if have {
		ch <- last
	}
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id int) {
	b.mu.Lock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) Publish(s StatusSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = s
	b.haveLast = true
	for _, ch := range b.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

// Run publishes a status snapshot every period until ctx is done. Nothing is
// built while no one is listening.
func (b *Broadcaster) Run(ctx context.Context, status *Status, period time.Duration) {
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if b.Subscribers() == 0 {
				continue
			}
			b.Publish(status.Snapshot(now.UTC()))
		}
	}
}

// Handler streams snapshots as server-sent events.
func (b *Broadcaster) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, http.MethodGet) {
			return
		}
		rc := http.NewResponseController(w)
		// The server's write timeout would otherwise end the stream.
		_ = rc.SetWriteDeadline(time.Time{})
		id, ch := b.Subscribe(4)
		defer b.Unsubscribe(id)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case snap, ok := <-ch:
				if !ok {
					return
				}
				bts, err := json.Marshal(snap)
				if err != nil {
					continue
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", bts); err != nil {
					return
				}
				if err := rc.Flush(); err != nil {
					return
				}
			}
		}
	})
}
