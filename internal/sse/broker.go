// Package sse implements a Server-Sent Events broker for content change
// notifications.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type changeReq struct {
	kind string
	path string
	tags []string
}

type changeData struct {
	Path string   `json:"path"`
	Tags []string `json:"tags"`
}

type graphData struct {
	Tags []string `json:"tags"`
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop owns the clients, the graph throttle timestamp and the
// tags invalidated since the last graph.updated event. Public methods talk to
// it over channels.
type Broker struct {
	graphMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	changeCh      chan changeReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given graph throttle interval.
func NewBroker(graphThrottle time.Duration) *Broker {
	if graphThrottle <= 0 {
		graphThrottle = 2 * time.Second
	}

	b := &Broker{
		graphMin:      graphThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		changeCh:      make(chan changeReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastGraph time.Time
	pending := make(map[string]struct{})
	var flushTimer *time.Timer
	var flushC <-chan time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		msg := fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)
		raw := []byte(msg)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	flushGraph := func(now time.Time) {
		tags := make([]string, 0, len(pending))
		for t := range pending {
			tags = append(tags, t)
		}
		sort.Strings(tags)
		clear(pending)
		lastGraph = now
		broadcast(Event{Type: "graph.updated", Data: graphData{Tags: tags}})
	}

	for {
		select {
		case <-b.stopCh:
			if flushTimer != nil {
				flushTimer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.changeCh:
			data := changeData{Path: req.path, Tags: req.tags}
			if data.Tags == nil {
				data.Tags = []string{}
			}
			switch req.kind {
			case "created", "updated", "deleted":
				broadcast(Event{Type: "content." + req.kind, Data: data})
			default:
				continue
			}

			// Only changes that invalidated cached graphs reach graph.updated.
			if len(req.tags) == 0 {
				continue
			}
			for _, t := range req.tags {
				pending[t] = struct{}{}
			}
			if flushC != nil {
				continue
			}
			now := time.Now()
			if wait := b.graphMin - now.Sub(lastGraph); wait > 0 {
				flushTimer = time.NewTimer(wait)
				flushC = flushTimer.C
				continue
			}
			flushGraph(now)

		case now := <-flushC:
			flushC = nil
			flushTimer = nil
			flushGraph(now)

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishChange publishes a document change with the cache tags it
// invalidated. Tags are collected into graph.updated events, at most one per
// throttle interval.
func (b *Broker) PublishChange(kind, path string, tags []string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.changeCh <- changeReq{kind: kind, path: path, tags: tags}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
