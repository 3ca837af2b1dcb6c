// Package sse streams chart and site change notifications to open search
// pages as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Event types.
const (
	TypeChartCreated = "chart.created"
	TypeChartUpdated = "chart.updated"
	TypeChartDeleted = "chart.deleted"
	TypeSiteUpdated  = "site.updated"
)

// Event is one notification. Data is encoded as JSON.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ChartChange is the payload of the chart.* events.
type ChartChange struct {
	Slug string `json:"slug"`
	Href string `json:"href"`
}

// Options tune a Broker. Zero values select defaults.
type Options struct {
	// SiteThrottle is the minimum interval between site.updated events.
	SiteThrottle time.Duration
	// KeepAlive is the interval of comment lines sent to idle streams.
	KeepAlive time.Duration
	// Buffer is the number of frames queued per subscriber before new
	// frames are dropped for it.
	Buffer int
}

// Broker fans chart changes out to subscribed streams. Frames are numbered
// in publish order. A chart change is followed by a site.updated event
// unless one was sent less than SiteThrottle ago.
type Broker struct {
	opts Options

	mu       sync.Mutex
	subs     map[chan []byte]struct{}
	seq      uint64
	lastSite time.Time
	closed   bool
}

// NewBroker creates a broker.
func NewBroker(opts Options) *Broker {
	if opts.SiteThrottle <= 0 {
		opts.SiteThrottle = 2 * time.Second
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = 15 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	return &Broker{opts: opts, subs: make(map[chan []byte]struct{})}
}

// Subscribe registers a stream. The returned channel is closed by
// Unsubscribe or Close; it is closed already if the broker is.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, b.opts.Buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a stream and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// ClientCount returns the number of subscribed streams.
func (b *Broker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close disconnects every stream. Later publishes are dropped.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	clear(b.subs)
}

// Publish sends ev to every stream.
func (b *Broker) Publish(ev Event) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sendLocked(ev.Type, data)
}

// PublishChartEvent reports a change of kind "created", "updated" or
// "deleted" to slug. Other kinds are ignored. Its signature matches
// index.EventCallback.
func (b *Broker) PublishChartEvent(kind, slug string) {
	typ, ok := chartEventType(kind)
	if !ok {
		return
	}
	data, err := json.Marshal(ChartChange{Slug: slug, Href: "/" + slug})
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.sendLocked(typ, data) {
		return
	}
	if now := time.Now(); now.Sub(b.lastSite) >= b.opts.SiteThrottle {
		b.lastSite = now
		b.sendLocked(TypeSiteUpdated, []byte("{}"))
	}
}

// sendLocked numbers and queues one frame. A subscriber whose buffer is full
// misses the frame. It reports false once the broker is closed.
func (b *Broker) sendLocked(typ string, data []byte) bool {
	if b.closed {
		return false
	}
	b.seq++
	frame := encodeFrame(b.seq, typ, data)
	for ch := range b.subs {
		select {
		case ch <- frame:
		default:
		}
	}
	return true
}

func encodeFrame(id uint64, typ string, data []byte) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "id: %d\nevent: %s\n", id, typ)
	for _, line := range strings.Split(string(data), "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	return []byte(sb.String())
}

func chartEventType(kind string) (string, bool) {
	switch kind {
	case "created":
		return TypeChartCreated, true
	case "updated":
		return TypeChartUpdated, true
	case "deleted":
		return TypeChartDeleted, true
	}
	return "", false
}

// ServeHTTP streams events to one client until it disconnects or the broker
// closes (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	keepAlive := time.NewTicker(b.opts.KeepAlive)
	defer keepAlive.Stop()

	for {
		var frame []byte
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			frame = []byte(": ping\n\n")
		case msg, ok := <-ch:
			if !ok {
				return
			}
			frame = msg
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
