package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Event is pushed to every case stream subscriber after a write.
type Event struct {
	Type   string `json:"type"`
	Entity string `json:"entity,omitempty"`
	CaseID int64  `json:"case_id"`
}

type frame struct {
	id   uint64
	name string
	data []byte
}

// EventBus fans events out per topic. Slow subscribers miss events rather
// than block publishers.
type EventBus struct {
	Heartbeat time.Duration

	seq  atomic.Uint64
	mu   sync.RWMutex
	subs map[string]map[chan frame]struct{}
}

func NewEventBus() *EventBus {
	return &EventBus{Heartbeat: 25 * time.Second, subs: make(map[string]map[chan frame]struct{})}
}

func (b *EventBus) Subscribe(topic string) (<-chan frame, func()) {
	ch := make(chan frame, 16)
	b.mu.Lock()
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[chan frame]struct{})
		b.subs[topic] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[topic], ch)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers reports how many streams are open on topic.
func (b *EventBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

func (b *EventBus) Publish(topic string, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	f := frame{id: b.seq.Add(1), name: ev.Type, data: data}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs[topic] {
		select {
		case ch <- f:
		default:
		}
	}
}

// ServeSSE streams topic to one client until it disconnects.
func (b *EventBus) ServeSSE(w http.ResponseWriter, r *http.Request, topic string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")

	ch, cancel := b.Subscribe(topic)
	defer cancel()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	beat := time.NewTicker(b.Heartbeat)
	defer beat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-beat.C:
			fmt.Fprint(w, ": ping\n\n")
		case f, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", f.id, f.name, f.data)
		}
		flusher.Flush()
	}
}
