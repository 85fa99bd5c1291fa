// Package zapper turns a correlated payment into an anonymous zap: it
// resolves the target note and its author's lightning address, obtains an
// invoice via LNURL-pay, and settles it from the operator's wallet.
//
// The pipeline is strictly sequential and fail-fast. It keeps no state
// between runs and performs no retries; each failure is classified
// (FailureClass) so callers know whether funds could have moved.
package zapper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nospay/zapgate/internal/logctx"
	"github.com/nospay/zapgate/lnbits"
	"github.com/nospay/zapgate/lnurl"
	"github.com/nospay/zapgate/nostr"
)

// PayEndpoint is the LNURL-pay client surface the pipeline needs.
// *lnurl.Client satisfies it.
type PayEndpoint interface {
	Discover(ctx context.Context, addr lnurl.Address) (*lnurl.PayParams, error)
	DiscoverLNURL(ctx context.Context, payURL string) (*lnurl.PayParams, error)
	RequestInvoice(ctx context.Context, callback string, amountMsat int64, zapRequestJSON []byte) (string, error)
}

// InvoicePayer submits an invoice for outbound payment. *lnbits.Client
// satisfies it.
type InvoicePayer interface {
	PayInvoice(ctx context.Context, bolt11 string) (*lnbits.Payment, error)
}

// Result of a successful emission.
type Result struct {
	RequestID   string
	PaymentHash string
}

// Emitter drives the zap emission pipeline.
type Emitter struct {
	source nostr.EventSource
	pay    PayEndpoint
	payer  InvoicePayer
	relays []string
	log    *slog.Logger
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithRelays sets the relay hints embedded in zap requests so the
// recipient's wallet publishes the receipt where the sender's clients look.
func WithRelays(relays []string) Option {
	return func(e *Emitter) { e.relays = relays }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Emitter) { e.log = log }
}

// New returns an Emitter over the given collaborators.
func New(source nostr.EventSource, pay PayEndpoint, payer InvoicePayer, opts ...Option) *Emitter {
	e := &Emitter{
		source: source,
		pay:    pay,
		payer:  payer,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit runs the full pipeline for one payment. eventID may be hex, note1
// or nevent1. On failure the returned error is a *Error whose Class
// records whether payment submission had begun; everything up to the
// invoice stage leaves no side effects. Emit itself never deduplicates:
// at-most-once per real-world payment is the caller's responsibility.
func (e *Emitter) Emit(ctx context.Context, eventID string, amountMsat int64, comment string) (*Result, error) {
	requestID := uuid.NewString()
	ctx = logctx.WithZapData(ctx, &logctx.ZapData{
		RequestID:     requestID,
		TargetEventID: eventID,
		AmountMsat:    amountMsat,
	})

	// Stage 1: single-use signing identity. Discarded with this call frame
	// so nothing ties the zap request to the operator's keys.
	privKey, err := nostr.GeneratePrivateKey()
	if err != nil {
		return nil, fail(StageKeygen, Retryable, err)
	}

	// Stage 2: resolve the target note.
	targetID, hintRelays, err := nostr.DecodeEventID(eventID)
	if err != nil {
		return nil, fail(StageTarget, Terminal, err)
	}
	target, err := nostr.FetchEventByID(ctx, e.source, targetID)
	if err != nil {
		return nil, fail(StageTarget, Retryable, err)
	}
	if target == nil {
		return nil, fail(StageTarget, Retryable, fmt.Errorf("target event %s not found", targetID))
	}

	// Stage 3: the author's lightning address.
	profile, err := nostr.FetchProfile(ctx, e.source, target.PubKey)
	if err != nil {
		return nil, fail(StageRecipient, Retryable, err)
	}
	if profile == nil || (profile.Lud16 == "" && profile.Lud06 == "") {
		return nil, fail(StageRecipient, Terminal,
			fmt.Errorf("author %s has no lightning address", target.PubKey))
	}

	// Stage 4: LNURL-pay discovery.
	params, err := e.discover(ctx, profile)
	if err != nil {
		return nil, fail(StageDiscovery, Retryable, err)
	}
	if !params.InBounds(amountMsat) {
		return nil, fail(StageDiscovery, Terminal,
			fmt.Errorf("amount %d msat outside sendable range [%d, %d]",
				amountMsat, params.MinSendable, params.MaxSendable))
	}

	// Stage 5: build and sign the zap request with the ephemeral key.
	zapReq, err := nostr.BuildZapRequest(privKey, nostr.ZapRequestParams{
		RecipientPubKey: target.PubKey,
		TargetEventID:   targetID,
		AmountMsat:      amountMsat,
		Comment:         comment,
		Relays:          mergeRelays(e.relays, hintRelays),
	})
	if err != nil {
		return nil, fail(StageRequest, Retryable, err)
	}
	zapReqJSON := mustMarshal(zapReq)

	// Stage 6: exchange it for an invoice.
	bolt11, err := e.pay.RequestInvoice(ctx, params.Callback, amountMsat, zapReqJSON)
	if err != nil {
		return nil, fail(StageInvoice, Retryable, err)
	}

	// Stage 7: settle it. From here on there is no compensating
	// transaction, so any failure is reported as irreversible.
	payment, err := e.payer.PayInvoice(ctx, bolt11)
	if err != nil {
		e.log.ErrorContext(ctx, "outbound payment failed after invoice was obtained",
			"recipient", target.PubKey,
			"error", err)
		return nil, fail(StagePayment, Irreversible, err)
	}

	// The kind-9735 receipt is the recipient infrastructure's job; the
	// sender publishing it would deanonymize the payer.
	e.log.InfoContext(ctx, "zap emitted",
		"recipient", target.PubKey,
		"payment_hash", payment.PaymentHash)

	return &Result{RequestID: requestID, PaymentHash: payment.PaymentHash}, nil
}

func (e *Emitter) discover(ctx context.Context, profile *nostr.ProfileMetadata) (*lnurl.PayParams, error) {
	if profile.Lud16 != "" {
		addr, err := lnurl.ParseAddress(profile.Lud16)
		if err != nil {
			return nil, err
		}
		return e.pay.Discover(ctx, addr)
	}
	payURL, err := lnurl.DecodeLNURL(profile.Lud06)
	if err != nil {
		return nil, err
	}
	return e.pay.DiscoverLNURL(ctx, payURL)
}

func mergeRelays(configured, hints []string) []string {
	out := make([]string, 0, len(configured)+len(hints))
	seen := make(map[string]struct{}, len(configured)+len(hints))
	for _, r := range append(append([]string{}, configured...), hints...) {
		if _, dup := seen[r]; dup || r == "" {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func mustMarshal(ev *nostr.Event) []byte {
	b, err := json.Marshal(ev)
	if err != nil {
		// Event structs always marshal; this guards programmer error only.
		panic(fmt.Sprintf("marshal zap request: %v", err))
	}
	return b
}
