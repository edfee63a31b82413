package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rallylog/rallylog/internal/infra/syncstore"
)

// ─── Live Sync Feed ─────────────────────────────────────────────────────────
// Remote operation outcomes from the sync engine, delivered over SSE:
// {"op":"insert","id":"…","at":"…"} or {"op":"refresh","records":42,…}

// SyncHub fans sync events out to connected SSE clients.
type SyncHub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
}

// NewSyncHub creates a new sync event broadcast hub.
func NewSyncHub() *SyncHub {
	return &SyncHub{
		clients: make(map[chan []byte]struct{}),
	}
}

// Run forwards events to clients until ctx is done or events is closed.
func (h *SyncHub) Run(ctx context.Context, events <-chan syncstore.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// Broadcast sends an event to all connected clients.
func (h *SyncHub) Broadcast(event syncstore.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			// Client too slow; drop message
		}
	}
}

// Subscribe registers a new client. Returns the channel and an unsubscribe func.
func (h *SyncHub) Subscribe() (chan []byte, func()) {
	ch := make(chan []byte, 32)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.clients, ch)
		h.mu.Unlock()
		close(ch)
	}
}

// ClientCount returns the number of connected clients.
func (h *SyncHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleSyncSSE serves the sync feed via Server-Sent Events.
// GET /api/sync/events
func (h *SyncHub) HandleSyncSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsub := h.Subscribe()
	defer unsub()
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case data := <-ch:
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}
