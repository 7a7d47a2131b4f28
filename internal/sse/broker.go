// Package sse implements a Server-Sent Events broker used to stream sync
// run progress to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
)

// Event is a broadcast payload.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop owns the client set.
// Public methods communicate with the loop through channels, so no
// mutexes are required.
type Broker struct {
	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop.
func NewBroker() *Broker {
	b := &Broker{
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 16),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)
	clients := make(map[chan []byte]struct{})

	for {
		select {
		case <-b.stopCh:
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

		case ev := <-b.publishCh:
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			msg := []byte("data: " + string(payload) + "\n\n")
			for ch := range clients {
				// Drop the message for slow clients rather than block the loop.
				select {
				case ch <- msg:
				default:
				}
			}
		}
	}
}

// Publish broadcasts an event to all connected clients. Safe to call
// after Close (becomes a no-op).
func (b *Broker) Publish(eventType string, data any) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- Event{Type: eventType, Data: data}:
	case <-b.stopCh:
	}
}

// Close shuts down the broker and disconnects all clients.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
		<-b.stopped
	}
}

// ServeHTTP streams events to one client until it disconnects.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan []byte, 8)
	select {
	case b.subscribeCh <- ch:
	case <-b.stopCh:
		return
	}
	defer func() {
		select {
		case b.unsubscribeCh <- ch:
		case <-b.stopCh:
		}
	}()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
