package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "content.created", Data: map[string]string{"path": "a.md"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: content.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"path":"a.md"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChange_GraphThrottle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event should trigger graph.updated.
	b.PublishChange("created", "a.md", []string{"node:a"})
	// Second event immediately should NOT trigger another graph.updated.
	b.PublishChange("updated", "b.md", nil)

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	graphCount := 0
	changeCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "graph.updated") {
				graphCount++
			} else {
				changeCount++
			}
		default:
			break loop
		}
	}

	if changeCount != 2 {
		t.Errorf("change events = %d, want 2", changeCount)
	}
	if graphCount != 1 {
		t.Errorf("graph events = %d, want 1 (throttled)", graphCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: "content.updated", Data: map[string]string{"path": "x.md"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: content.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "content.updated", Data: map[string]string{"path": "x.md"}})
	b.PublishChange("updated", "x.md", nil)
}

func TestPublishChange_Payload(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange("deleted", "news/a.md", []string{"config:hn", "node:1"})
	b.PublishChange("renamed", "ignored.md", nil)

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: content.deleted") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"tags":["config:hn","node:1"]`) {
			t.Errorf("missing tags in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	time.Sleep(50 * time.Millisecond)
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "ignored.md") {
				t.Errorf("unknown kind was broadcast: %q", msg)
			}
		default:
			return
		}
	}
}

func TestPublishChange_GraphCarriesTags(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange("updated", "a.md", []string{"node:a", "config:hn"})
	b.PublishChange("updated", "b.md", []string{"node:b"})
	b.PublishChange("updated", "c.md", []string{"node:c", "config:hn"})
	b.PublishChange("updated", "d.md", nil)

	var graphs []string
	deadline := time.After(time.Second)
	for len(graphs) < 2 {
		select {
		case msg := <-ch:
			if s := string(msg); strings.Contains(s, "event: graph.updated") {
				graphs = append(graphs, s)
			}
		case <-deadline:
			t.Fatalf("graph events = %d, want 2", len(graphs))
		}
	}

	if !strings.Contains(graphs[0], `"tags":["config:hn","node:a"]`) {
		t.Errorf("first graph event = %q", graphs[0])
	}
	if !strings.Contains(graphs[1], `"tags":["config:hn","node:b","node:c"]`) {
		t.Errorf("coalesced graph event = %q", graphs[1])
	}

	time.Sleep(200 * time.Millisecond)
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "graph.updated") {
				t.Errorf("tag-less change produced %q", msg)
			}
		default:
			return
		}
	}
}
