package nostr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeSource serves canned events and records the filters it saw.
type fakeSource struct {
	events  []Event
	err     error
	filters []Filter
}

func (f *fakeSource) GetEvents(ctx context.Context, filter Filter) ([]Event, error) {
	f.filters = append(f.filters, filter)
	if f.err != nil {
		return nil, f.err
	}
	return f.events, nil
}

func TestFetchEventByID(t *testing.T) {
	id := strings.Repeat("aa", 32)
	src := &fakeSource{events: []Event{{ID: id, Kind: KindTextNote}}}

	ev, err := FetchEventByID(context.Background(), src, id)
	if err != nil {
		t.Fatalf("FetchEventByID() failed: %v", err)
	}
	if ev == nil || ev.ID != id {
		t.Fatalf("got %+v, want event %s", ev, id)
	}
	if len(src.filters) != 1 || len(src.filters[0].IDs) != 1 || src.filters[0].IDs[0] != id {
		t.Fatalf("unexpected filter %+v", src.filters)
	}
}

func TestFetchEventByIDAbsent(t *testing.T) {
	src := &fakeSource{}
	ev, err := FetchEventByID(context.Background(), src, strings.Repeat("bb", 32))
	if err != nil {
		t.Fatalf("FetchEventByID() failed: %v", err)
	}
	if ev != nil {
		t.Fatalf("expected nil for an unknown event, got %+v", ev)
	}
}

func TestFetchEventByIDSourceError(t *testing.T) {
	src := &fakeSource{err: errors.New("relay unreachable")}
	if _, err := FetchEventByID(context.Background(), src, strings.Repeat("cc", 32)); err == nil {
		t.Fatal("expected source error to propagate")
	}
}

func TestFetchProfilePicksNewest(t *testing.T) {
	pk := strings.Repeat("dd", 32)
	src := &fakeSource{events: []Event{
		{PubKey: pk, Kind: KindProfileMetadata, CreatedAt: 100, Content: `{"name":"old","lud16":"old@pay.example.com"}`},
		{PubKey: pk, Kind: KindProfileMetadata, CreatedAt: 200, Content: `{"name":"new","lud16":"new@pay.example.com"}`},
	}}

	meta, err := FetchProfile(context.Background(), src, pk)
	if err != nil {
		t.Fatalf("FetchProfile() failed: %v", err)
	}
	if meta == nil || meta.Lud16 != "new@pay.example.com" {
		t.Fatalf("got %+v, want the newest profile", meta)
	}
}

func TestFetchProfileIgnoresForeignEvents(t *testing.T) {
	pk := strings.Repeat("ee", 32)
	other := strings.Repeat("ff", 32)
	src := &fakeSource{events: []Event{
		{PubKey: other, Kind: KindProfileMetadata, CreatedAt: 100, Content: `{"name":"imposter"}`},
	}}

	meta, err := FetchProfile(context.Background(), src, pk)
	if err != nil {
		t.Fatalf("FetchProfile() failed: %v", err)
	}
	if meta != nil {
		t.Fatalf("expected nil for an author with no profile, got %+v", meta)
	}
}

func TestParseProfileRejectsWrongKind(t *testing.T) {
	ev := &Event{Kind: KindTextNote, Content: `{}`}
	if _, err := ParseProfile(ev); err == nil {
		t.Fatal("ParseProfile() accepted a non-metadata event")
	}
}

func TestParseProfileLud06(t *testing.T) {
	ev := &Event{Kind: KindProfileMetadata, Content: `{"lud06":"lnurl1dp68gurn8ghj7um9wfmxjcm99e3k7mf0v9cxj0m385ekvcenxc6r2c35xvukxefcv5mkvv34x5ekzd3ev56nyd3hxqurzepexejxxepnxscrvwfnv9nxzcn9xq6xyefhvgcxxcmyxymnserxfq5fns"}`}
	meta, err := ParseProfile(ev)
	if err != nil {
		t.Fatalf("ParseProfile() failed: %v", err)
	}
	if meta.Lud06 == "" {
		t.Fatal("lud06 field not parsed")
	}
}
