// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// EnlistedPayload is the JSON payload for enlisted events.
type EnlistedPayload struct {
	CommanderID string `json:"commander_id"`
	Joined      bool   `json:"joined"`
}

// DischargedPayload is the JSON payload for discharged and service_ended events.
type DischargedPayload struct {
	CommanderID string `json:"commander_id,omitempty"`
	Reason      string `json:"reason"`
	Restored    bool   `json:"restored"`
}

// PromotedPayload is the JSON payload for promoted events.
type PromotedPayload struct {
	FromTier int    `json:"from_tier"`
	ToTier   int    `json:"to_tier"`
	Rank     string `json:"rank"`
}

// WagePaidPayload is the JSON payload for wage_paid events.
type WagePaidPayload struct {
	Day    uint64 `json:"day"`
	Amount int    `json:"amount"`
	Tier   int    `json:"tier"`
}

// XPAwardedPayload is the JSON payload for xp_awarded events.
type XPAwardedPayload struct {
	Amount int    `json:"amount"`
	Source string `json:"source"`
	Tier   int    `json:"tier"`
	XP     int    `json:"xp"`
}

// Journal appends enlistment events to a store and fans them out to live
// subscribers.
type Journal struct {
	store       EventStore
	broadcaster *Broadcaster
}

// NewJournal creates a journal. broadcaster may be nil.
func NewJournal(store EventStore, broadcaster *Broadcaster) *Journal {
	return &Journal{
		store:       store,
		broadcaster: broadcaster,
	}
}

// Publish marshals payload, appends the event and broadcasts it.
func (j *Journal) Publish(ctx context.Context, stream string, eventType EventType, actor Actor, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, oops.Code("EVENT_MARSHAL_FAILED").
			With("event_type", string(eventType)).
			Wrapf(err, "marshal %s payload", eventType)
	}

	event := Event{
		ID:        NewULID(),
		Stream:    stream,
		Type:      eventType,
		Timestamp: time.Now(),
		Actor:     actor,
		Payload:   data,
	}

	if err := j.store.Append(ctx, event); err != nil {
		return Event{}, oops.Code("EVENT_STORE_APPEND_FAILED").
			With("stream", stream).
			With("event_type", string(eventType)).
			Wrapf(err, "append %s event", eventType)
	}

	if j.broadcaster != nil {
		j.broadcaster.Broadcast(event)
	}

	return event, nil
}

// Replay returns up to limit events of stream after afterID.
func (j *Journal) Replay(ctx context.Context, stream string, afterID ulid.ULID, limit int) ([]Event, error) {
	events, err := j.store.Replay(ctx, stream, afterID, limit)
	if err != nil {
		return nil, oops.Code("EVENT_REPLAY_FAILED").With("stream", stream).Wrapf(err, "replay events")
	}
	return events, nil
}

// Subscribe returns a channel receiving live events of stream, or nil when
// the journal has no broadcaster.
func (j *Journal) Subscribe(stream string) chan Event {
	if j.broadcaster == nil {
		return nil
	}
	return j.broadcaster.Subscribe(stream)
}

// Unsubscribe releases a channel returned by Subscribe.
func (j *Journal) Unsubscribe(stream string, ch chan Event) {
	if j.broadcaster == nil || ch == nil {
		return
	}
	j.broadcaster.Unsubscribe(stream, ch)
}
