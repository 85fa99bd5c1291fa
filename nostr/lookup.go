package nostr

import (
	"context"
	"fmt"
)

// EventSource is the narrow read interface onto the relay network. The zap
// pipeline only ever needs two queries (an event by id, a profile by
// author), so collaborators implement just this.
type EventSource interface {
	GetEvents(ctx context.Context, filter Filter) ([]Event, error)
}

// FetchEventByID returns the event with the given hex id, or nil if no
// relay knows it.
func FetchEventByID(ctx context.Context, src EventSource, id string) (*Event, error) {
	events, err := src.GetEvents(ctx, Filter{IDs: []string{id}, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", id, err)
	}
	for i := range events {
		if events[i].ID == id {
			return &events[i], nil
		}
	}
	return nil, nil
}

// FetchProfile returns the newest kind-0 metadata for a pubkey, or nil if
// the author has none.
func FetchProfile(ctx context.Context, src EventSource, pubkey string) (*ProfileMetadata, error) {
	events, err := src.GetEvents(ctx, Filter{
		Authors: []string{pubkey},
		Kinds:   []int{KindProfileMetadata},
		Limit:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch profile %s: %w", pubkey, err)
	}

	var newest *Event
	for i := range events {
		ev := &events[i]
		if ev.PubKey != pubkey || ev.Kind != KindProfileMetadata {
			continue
		}
		if newest == nil || ev.CreatedAt > newest.CreatedAt {
			newest = ev
		}
	}
	if newest == nil {
		return nil, nil
	}
	return ParseProfile(newest)
}
