// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"log/slog"
	"sync"
)

// DefaultSubscriberBuffer is the channel capacity given to each subscriber.
const DefaultSubscriberBuffer = 100

// Broadcaster distributes journal events to live subscribers, such as the
// simulator's event printer.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event
	buffer int
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return NewBroadcasterWithBuffer(DefaultSubscriberBuffer)
}

// NewBroadcasterWithBuffer creates a broadcaster whose subscriber channels
// hold up to buffer events. Values below 1 use 1.
func NewBroadcasterWithBuffer(buffer int) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[string][]chan Event),
		buffer: max(buffer, 1),
	}
}

// Subscribe creates a channel for receiving events on a stream.
func (b *Broadcaster) Subscribe(stream string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.buffer)
	b.subs[stream] = append(b.subs[stream], ch)
	return ch
}

// Unsubscribe removes a channel from a stream.
func (b *Broadcaster) Unsubscribe(stream string, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[stream]
	for i, sub := range subs {
		if sub == ch {
			b.subs[stream] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Broadcast sends an event to all subscribers of its stream.
func (b *Broadcaster) Broadcast(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.Stream] {
		select {
		case ch <- event:
		default:
			// The journal already holds the event; slow subscribers can replay it.
			slog.Warn("event dropped: subscriber buffer full",
				"stream", event.Stream,
				"event_id", event.ID.String(),
				"event_type", event.Type,
			)
		}
	}
}
