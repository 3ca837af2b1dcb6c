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
	b := NewBroker(Options{SiteThrottle: 100 * time.Millisecond})
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
	b := NewBroker(Options{SiteThrottle: 100 * time.Millisecond})
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeChartCreated, Data: map[string]string{"slug": "ops/"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: chart.created") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"slug":"ops/"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishChartEvent_SiteThrottle(t *testing.T) {
	b := NewBroker(Options{SiteThrottle: 500 * time.Millisecond})
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First event triggers site.updated.
	b.PublishChartEvent("created", "a/")
	// An immediate second one is throttled.
	b.PublishChartEvent("updated", "b/")

	// Drain and count events.
	time.Sleep(50 * time.Millisecond)
	siteCount := 0
	chartCount := 0
loop:
	for {
		select {
		case msg := <-ch:
			s := string(msg)
			if strings.Contains(s, "site.updated") {
				siteCount++
			} else {
				chartCount++
			}
		default:
			break loop
		}
	}

	if chartCount != 2 {
		t.Errorf("chart events = %d, want 2", chartCount)
	}
	if siteCount != 1 {
		t.Errorf("site events = %d, want 1 (throttled)", siteCount)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(Options{SiteThrottle: 100 * time.Millisecond})
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

	b.Publish(Event{Type: TypeChartUpdated, Data: map[string]string{"slug": "x/"}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: chart.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(Options{SiteThrottle: time.Second})
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
	b := NewBroker(Options{SiteThrottle: 100 * time.Millisecond})
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
	b.Publish(Event{Type: TypeChartUpdated, Data: map[string]string{"slug": "x/"}})
	b.PublishChartEvent("updated", "x/")
}

func TestPublishChartEvent_Payload(t *testing.T) {
	b := NewBroker(Options{SiteThrottle: time.Hour})
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChartEvent("deleted", "ops/old/")
	b.PublishChartEvent("renamed", "ignored/")

	select {
	case msg := <-ch:
		s := string(msg)
		for _, want := range []string{"id: 1\n", "event: chart.deleted", `"slug":"ops/old/"`, `"href":"/ops/old/"`} {
			if !strings.Contains(s, want) {
				t.Errorf("missing %q in %q", want, s)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	select {
	case msg := <-ch:
		if !strings.Contains(string(msg), "event: site.updated") {
			t.Errorf("expected site.updated, got %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for site.updated")
	}

	time.Sleep(50 * time.Millisecond)
	select {
	case msg := <-ch:
		t.Errorf("unknown kind produced %q", msg)
	default:
	}
}

func TestSSEHandler_KeepAlive(t *testing.T) {
	b := NewBroker(Options{KeepAlive: 20 * time.Millisecond})
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	b.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), ": ping") {
		t.Errorf("expected keep-alive comment, got %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
}

func TestEncodeFrame_MultilineData(t *testing.T) {
	got := string(encodeFrame(7, "note", []byte("a\nb")))
	want := "id: 7\nevent: note\ndata: a\ndata: b\n\n"
	if got != want {
		t.Errorf("frame = %q, want %q", got, want)
	}
}

func TestSubscribeBuffer(t *testing.T) {
	b := NewBroker(Options{Buffer: 2})
	defer b.Close()
	ch := b.Subscribe()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: "test", Data: i})
	}
	if len(ch) != 2 {
		t.Fatalf("queued = %d, want 2", len(ch))
	}
	if msg := string(<-ch); !strings.HasPrefix(msg, "id: 1\n") {
		t.Errorf("first frame = %q", msg)
	}
}

func TestServeHTTPEndsOnClose(t *testing.T) {
	b := NewBroker(Options{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	b.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream still open after Close")
	}
	if b.ClientCount() != 0 {
		t.Errorf("clients = %d after close", b.ClientCount())
	}
}

func TestSubscribeAfterClose(t *testing.T) {
	b := NewBroker(Options{})
	b.Close()
	b.Close()
	if _, ok := <-b.Subscribe(); ok {
		t.Fatal("subscription after close should be closed")
	}
}
