// Package relay provides a minimal Nostr relay client implementing
// nostr.EventSource. It speaks just enough NIP-01 for the zap pipeline's
// two read queries: dial, REQ, collect EVENT frames until EOSE, CLOSE.
//
// The core packages never depend on this concretely; anything satisfying
// nostr.EventSource can replace it.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nospay/zapgate/nostr"
)

// Client fans a query out to a fixed set of relays and merges the results.
type Client struct {
	urls    []string
	dialer  *websocket.Dialer
	timeout time.Duration
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds each query round-trip. Default 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a Client querying the given relay URLs.
func New(urls []string, opts ...Option) (*Client, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("relay: at least one relay URL is required")
	}
	c := &Client{
		urls:    urls,
		dialer:  websocket.DefaultDialer,
		timeout: 5 * time.Second,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var _ nostr.EventSource = (*Client)(nil)

// GetEvents queries every configured relay concurrently and returns the
// deduplicated union. Per-relay failures are logged and skipped; an error
// is returned only when every relay failed.
func (c *Client) GetEvents(ctx context.Context, filter nostr.Filter) ([]nostr.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	eventCh := make(chan nostr.Event, 64)
	errCh := make(chan error, len(c.urls))

	var wg sync.WaitGroup
	for _, u := range c.urls {
		wg.Add(1)
		go func(relayURL string) {
			defer wg.Done()
			if err := c.fetchOne(ctx, relayURL, filter, eventCh); err != nil {
				c.log.Debug("relay query failed", "relay", relayURL, "error", err)
				errCh <- err
			}
		}(u)
	}
	go func() {
		wg.Wait()
		close(eventCh)
		close(errCh)
	}()

	seen := make(map[string]struct{})
	var events []nostr.Event
	for ev := range eventCh {
		if _, dup := seen[ev.ID]; dup || ev.ID == "" {
			continue
		}
		if !ev.Verify() {
			c.log.Warn("dropping event with invalid signature", "event_id", ev.ID)
			continue
		}
		seen[ev.ID] = struct{}{}
		events = append(events, ev)
	}

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(events) == 0 && len(errs) == len(c.urls) && len(errs) > 0 {
		return nil, fmt.Errorf("relay: all %d relays failed, first error: %w", len(errs), errs[0])
	}
	return events, nil
}

func (c *Client) fetchOne(ctx context.Context, relayURL string, filter nostr.Filter, out chan<- nostr.Event) error {
	conn, _, err := c.dialer.DialContext(ctx, relayURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", relayURL, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	subID := "zg-" + uuid.NewString()[:8]
	if err := conn.WriteJSON([]any{"REQ", subID, filter}); err != nil {
		return fmt.Errorf("subscribe on %s: %w", relayURL, err)
	}

	for {
		var frame []json.RawMessage
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("read from %s: %w", relayURL, err)
		}
		if len(frame) < 2 {
			continue
		}

		var kind string
		if err := json.Unmarshal(frame[0], &kind); err != nil {
			continue
		}
		switch kind {
		case "EVENT":
			if len(frame) < 3 {
				continue
			}
			var ev nostr.Event
			if err := json.Unmarshal(frame[2], &ev); err != nil {
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case "EOSE":
			// Best effort; the connection closes right after anyway.
			_ = conn.WriteJSON([]any{"CLOSE", subID})
			return nil
		case "NOTICE":
			if len(frame) >= 2 {
				var notice string
				_ = json.Unmarshal(frame[1], &notice)
				c.log.Debug("relay notice", "relay", relayURL, "notice", notice)
			}
		case "CLOSED":
			return fmt.Errorf("subscription closed by %s", relayURL)
		}
	}
}
