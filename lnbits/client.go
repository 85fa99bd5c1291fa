// Package lnbits is a client for the two LNbits surfaces the zap gateway
// consumes: the lnurlp extension that mints payment links with webhook
// callbacks, and the payments API that settles outbound bolt11 invoices
// from the operator's wallet.
package lnbits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config for an LNbits instance. Defaults can be loaded via envdecode.
type Config struct {
	// BaseURL like "https://lnbits.example.com". ENV: LNBITS_URL
	BaseURL string `env:"LNBITS_URL,required"`
	// InvoiceKey authorizes read/invoice operations. ENV: LNBITS_INVOICE_KEY
	InvoiceKey string `env:"LNBITS_INVOICE_KEY"`
	// AdminKey authorizes outbound payments. ENV: LNBITS_ADMIN_KEY
	AdminKey string `env:"LNBITS_ADMIN_KEY"`
}

// PayLinkParams is the fixed policy a new payment link is minted with.
type PayLinkParams struct {
	Description string `json:"description"`
	Min         int64  `json:"min"` // sats
	Max         int64  `json:"max"` // sats
	WebhookURL  string `json:"webhook_url"`
}

// PayLink is a provisioned payment link.
type PayLink struct {
	ID    string `json:"id"`
	LNURL string `json:"lnurl"`
}

// Payment is the result of an outbound payment submission.
type Payment struct {
	PaymentHash string `json:"payment_hash"`
}

// APIError carries the upstream status and response text for a rejected
// call.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lnbits: status %d: %s", e.Status, e.Detail)
}

// Client talks to one LNbits instance.
type Client struct {
	cfg  Config
	http *http.Client
	log  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a Client for the given instance.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("lnbits: base URL is required")
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  slog.Default(),
	}
	c.cfg.BaseURL = strings.TrimRight(c.cfg.BaseURL, "/")
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewFromEnv builds a Client using envdecode to populate Config.
func NewFromEnv(opts ...Option) (*Client, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("lnbits config: %w", err)
	}
	return New(cfg, opts...)
}

// CreatePayLink mints a payment link with the given policy. The returned
// link id is what the webhook later carries back.
func (c *Client) CreatePayLink(ctx context.Context, params PayLinkParams) (*PayLink, error) {
	var raw struct {
		ID    json.Number `json:"id"`
		LNURL string      `json:"lnurl"`
	}
	if err := c.call(ctx, http.MethodPost, "/lnurlp/api/v1/links", c.cfg.InvoiceKey, params, &raw); err != nil {
		return nil, err
	}
	link := &PayLink{ID: raw.ID.String(), LNURL: raw.LNURL}
	if link.ID == "" || link.LNURL == "" {
		return nil, fmt.Errorf("lnbits: pay link response missing id or lnurl")
	}
	c.log.Debug("created pay link", "link_id", link.ID)
	return link, nil
}

// PayInvoice submits a bolt11 invoice for outbound payment from the
// operator's wallet. Irreversible once accepted; callers own at-most-once
// discipline.
func (c *Client) PayInvoice(ctx context.Context, bolt11 string) (*Payment, error) {
	if bolt11 == "" {
		return nil, fmt.Errorf("lnbits: empty invoice")
	}
	body := map[string]any{"out": true, "bolt11": bolt11}
	var payment Payment
	if err := c.call(ctx, http.MethodPost, "/api/v1/payments", c.cfg.AdminKey, body, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

func (c *Client) call(ctx context.Context, method, path, apiKey string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("lnbits: encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("lnbits: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-Api-Key", apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("lnbits: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("lnbits: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: upstreamDetail(respBody)}
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("lnbits: parse response: %w", err)
		}
	}
	return nil
}

// upstreamDetail extracts the "detail" field LNbits wraps errors in,
// falling back to the raw body.
func upstreamDetail(body []byte) string {
	var envelope struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		return envelope.Detail
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
