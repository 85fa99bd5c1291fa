// Package lnurl implements the LNURL-pay client side of the zap pipeline:
// resolving a lightning address to its pay endpoint and exchanging a signed
// zap request for a bolt11 invoice.
package lnurl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Address is a parsed lightning address (user@domain).
type Address struct {
	Name   string
	Domain string
}

// ParseAddress splits a user@domain lightning address.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	name, domain, ok := strings.Cut(s, "@")
	if !ok || name == "" || domain == "" || strings.Contains(domain, "@") {
		return Address{}, fmt.Errorf("invalid lightning address %q", s)
	}
	return Address{Name: name, Domain: domain}, nil
}

func (a Address) String() string { return a.Name + "@" + a.Domain }

// DecodeLNURL decodes a bech32 lnurl1... string (lud06) to its URL form.
func DecodeLNURL(s string) (string, error) {
	hrp, grouped, err := bech32.DecodeNoLimit(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return "", fmt.Errorf("lnurl bech32 decode: %w", err)
	}
	if hrp != "lnurl" {
		return "", fmt.Errorf("expected lnurl entity, got %q", hrp)
	}
	raw, err := bech32.ConvertBits(grouped, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("lnurl bech32 convert bits: %w", err)
	}
	return string(raw), nil
}

// PayParams is the discovery document served at
// /.well-known/lnurlp/<user>. Only the fields the zap pipeline needs are
// modeled.
type PayParams struct {
	Callback    string `json:"callback"`
	MinSendable int64  `json:"minSendable"` // millisats
	MaxSendable int64  `json:"maxSendable"` // millisats
	Metadata    string `json:"metadata"`
	Tag         string `json:"tag"`
	AllowsNostr bool   `json:"allowsNostr"`
	NostrPubkey string `json:"nostrPubkey"`

	// LNURL error envelope; set when the endpoint reports failure.
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// InBounds reports whether amountMsat is inside the advertised
// min/max sendable range. Zero bounds are treated as unconstrained.
func (p *PayParams) InBounds(amountMsat int64) bool {
	if p.MinSendable > 0 && amountMsat < p.MinSendable {
		return false
	}
	if p.MaxSendable > 0 && amountMsat > p.MaxSendable {
		return false
	}
	return true
}

// InvoiceResponse is the callback response: either a bolt11 invoice or an
// error reason.
type InvoiceResponse struct {
	PR     string `json:"pr"`
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Client talks LNURL-pay over HTTPS.
type Client struct {
	http   *http.Client
	scheme string
	log    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithScheme overrides the URL scheme used for well-known discovery.
// Anything other than https is only sensible against local test servers.
func WithScheme(scheme string) Option {
	return func(c *Client) { c.scheme = scheme }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient returns a Client with a 15s request timeout.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: 15 * time.Second},
		scheme: "https",
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover fetches the LNURL-pay parameters for a lightning address.
func (c *Client) Discover(ctx context.Context, addr Address) (*PayParams, error) {
	u := fmt.Sprintf("%s://%s/.well-known/lnurlp/%s", c.scheme, addr.Domain, url.PathEscape(addr.Name))
	return c.discoverURL(ctx, u)
}

// DiscoverLNURL fetches LNURL-pay parameters from a decoded lud06 URL.
func (c *Client) DiscoverLNURL(ctx context.Context, payURL string) (*PayParams, error) {
	return c.discoverURL(ctx, payURL)
}

func (c *Client) discoverURL(ctx context.Context, u string) (*PayParams, error) {
	body, err := c.getJSON(ctx, u)
	if err != nil {
		return nil, err
	}

	var params PayParams
	if err := json.Unmarshal(body, &params); err != nil {
		return nil, fmt.Errorf("parse lnurlp response: %w", err)
	}
	if strings.EqualFold(params.Status, "ERROR") {
		return nil, fmt.Errorf("lnurlp endpoint error: %s", params.Reason)
	}
	if params.Callback == "" {
		return nil, fmt.Errorf("lnurlp response missing callback")
	}
	return &params, nil
}

// RequestInvoice delivers the signed zap request to the discovered callback
// and returns the bolt11 invoice. amountMsat and the serialized event ride
// as query parameters per NIP-57.
func (c *Client) RequestInvoice(ctx context.Context, callback string, amountMsat int64, zapRequestJSON []byte) (string, error) {
	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("invalid callback url %q: %w", callback, err)
	}
	q := u.Query()
	q.Set("amount", strconv.FormatInt(amountMsat, 10))
	q.Set("nostr", string(zapRequestJSON))
	u.RawQuery = q.Encode()

	body, err := c.getJSON(ctx, u.String())
	if err != nil {
		return "", err
	}

	var resp InvoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse callback response: %w", err)
	}
	if strings.EqualFold(resp.Status, "ERROR") {
		return "", fmt.Errorf("invoice request rejected: %s", resp.Reason)
	}
	if resp.PR == "" {
		return "", fmt.Errorf("callback response missing invoice")
	}
	return resp.PR, nil
}

func (c *Client) getJSON(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: status %d: %s", u, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
