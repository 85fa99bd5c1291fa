// Package sessions holds the in-memory correlation state between client
// sessions and the payment links provisioned for them. The Store is the
// only holder of this state: a forward table keyed by (session id, event
// id) and a reverse index keyed by payment-link id, mutated together under
// one lock so neither is ever observed without its counterpart.
//
// Nothing here is persisted. A process restart forgets every session and
// any webhook arriving afterwards is rejected as uncorrelatable.
package sessions

import (
	"sync"
	"time"
)

// EventLink is the payment link provisioned for one (session, event) pair.
// An inactive link is retained until reaped so that late webhooks get an
// explicit "inactive" rejection instead of a silent drop.
type EventLink struct {
	LinkURI    string
	LinkID     string
	LastSeenAt time.Time
	Active     bool
}

// Correlation points from a payment-link id back to the pair it was
// provisioned for.
type Correlation struct {
	SessionID string
	EventID   string
}

// ClientSession is the snapshot view of one session's links, keyed by
// target event id.
type ClientSession struct {
	Links map[string]EventLink
}

type clientSession struct {
	links map[string]*EventLink
}

// Store maps (session id, event id) to payment-link state and payment-link
// id back to (session id, event id).
type Store struct {
	mu       sync.Mutex
	sessions map[string]*clientSession
	byLink   map[string]Correlation
	now      func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock replaces the time source. Used by tests and the reaper's
// per-entry age checks.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*clientSession),
		byLink:   make(map[string]Correlation),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrUpdate upserts the link for (sessionID, eventID) as active with a
// fresh LastSeenAt, and points the reverse index for linkID at the pair.
// The session is created lazily on first use.
func (s *Store) CreateOrUpdate(sessionID, eventID, linkURI, linkID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.sessions[sessionID]
	if !ok {
		cs = &clientSession{links: make(map[string]*EventLink)}
		s.sessions[sessionID] = cs
	}

	// If the pair is being re-provisioned under a new link id, the stale
	// reverse entry must go with it.
	if prev, ok := cs.links[eventID]; ok && prev.LinkID != linkID {
		delete(s.byLink, prev.LinkID)
	}

	cs.links[eventID] = &EventLink{
		LinkURI:    linkURI,
		LinkID:     linkID,
		LastSeenAt: s.now(),
		Active:     true,
	}
	s.byLink[linkID] = Correlation{SessionID: sessionID, EventID: eventID}
}

// Get returns a snapshot of the session's links, or false if the session
// does not exist.
func (s *Store) Get(sessionID string) (ClientSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.sessions[sessionID]
	if !ok {
		return ClientSession{}, false
	}
	out := ClientSession{Links: make(map[string]EventLink, len(cs.links))}
	for eventID, link := range cs.links {
		out.Links[eventID] = *link
	}
	return out, true
}

// Active returns the link for (sessionID, eventID) if it exists and is
// active. Provisioning uses this to reuse a still-payable link instead of
// orphaning it.
func (s *Store) Active(sessionID, eventID string) (EventLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.sessions[sessionID]
	if !ok {
		return EventLink{}, false
	}
	link, ok := cs.links[eventID]
	if !ok || !link.Active {
		return EventLink{}, false
	}
	return *link, true
}

// Resolve looks a payment-link id up in the reverse index. The second
// return reports whether the resolved link is still active, so callers can
// distinguish "unknown link" from "link disabled" in one lookup.
func (s *Store) Resolve(linkID string) (corr Correlation, active bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	corr, ok = s.byLink[linkID]
	if !ok {
		return Correlation{}, false, false
	}
	if cs, found := s.sessions[corr.SessionID]; found {
		if link, found := cs.links[corr.EventID]; found {
			active = link.Active
		}
	}
	return corr, active, true
}

// Touch refreshes LastSeenAt for an existing active link. Missing or
// inactive links are left untouched; Touch never errors.
func (s *Store) Touch(sessionID, eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.sessions[sessionID]
	if !ok {
		return
	}
	link, ok := cs.links[eventID]
	if !ok || !link.Active {
		return
	}
	link.LastSeenAt = s.now()
}

// Deactivate marks the link inactive and reports whether it was active
// before the call. The link and its reverse entry are retained until the
// reaper evicts them. Idempotent.
func (s *Store) Deactivate(sessionID, eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	link, ok := cs.links[eventID]
	if !ok {
		return false
	}
	wasActive := link.Active
	link.Active = false
	link.LastSeenAt = s.now()
	return wasActive
}

// Sweep evicts every link idle longer than idleFor and removes sessions
// left with no links. Age is evaluated per entry at visit time, and the
// lock is released between sessions, so a link touched mid-sweep survives.
// Returns the number of links and sessions removed.
func (s *Store) Sweep(idleFor time.Duration) (links, sessionsRemoved int) {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, sessionID := range ids {
		s.mu.Lock()
		cs, ok := s.sessions[sessionID]
		if !ok {
			s.mu.Unlock()
			continue
		}
		for eventID, link := range cs.links {
			if s.now().Sub(link.LastSeenAt) > idleFor {
				delete(s.byLink, link.LinkID)
				delete(cs.links, eventID)
				links++
			}
		}
		if len(cs.links) == 0 {
			delete(s.sessions, sessionID)
			sessionsRemoved++
		}
		s.mu.Unlock()
	}
	return links, sessionsRemoved
}

// Len reports the number of live sessions and reverse-index entries.
func (s *Store) Len() (sessionCount, linkCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), len(s.byLink)
}
