package zapgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// defaultComment stands in when a payer sent no comment. A webhook on
// sparse data must still zap; a real payment was captured upstream.
const defaultComment = "⚡"

// minAmountMsat is the defaulted amount when the webhook omits one.
const minAmountMsat = 1

// WebhookResult is the gateway's answer to the payment provider. OK is
// true whenever the payment was attributed, even if the zap itself could
// not be published afterwards; the provider must not re-deliver a webhook
// for funds it has already settled.
type WebhookResult struct {
	OK        bool
	Message   string
	RequestID string
}

// ProcessWebhook validates and correlates an inbound payment notification,
// then runs the zap pipeline for it.
//
// Hard failures (typed errors) are returned only for payloads that can
// never succeed: malformed payloads, unknown link ids, and links already
// disabled. An emission failure after successful correlation is a soft
// failure: the result still reports OK with an explanatory message.
//
// Duplicate deliveries for the same underlying payment are only fenced by
// the link's active flag; a provider that redelivers while the link is
// still active will trigger a second emission. Deployments that cannot
// tolerate that must deduplicate upstream.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte) (*WebhookResult, error) {
	raw, err := decodePayload(payload)
	if err != nil {
		return nil, err
	}

	linkID, err := linkIDField(raw)
	if err != nil {
		// The store is deliberately never consulted for invalid payloads.
		return nil, err
	}

	amountMsat, err := amountField(raw)
	if err != nil {
		return nil, err
	}
	comment := commentField(raw)

	corr, active, ok := s.store.Resolve(linkID)
	if !ok {
		// Money moved upstream with nothing to attribute it to. Log loudly.
		s.log.WarnContext(ctx, "webhook for unknown payment link",
			"link_id", linkID, "amount_msat", amountMsat)
		return nil, &CorrelationError{LinkID: linkID, Reason: ReasonSessionNotFound}
	}
	if !active {
		s.log.WarnContext(ctx, "webhook for disabled payment link",
			"link_id", linkID, "session_id", corr.SessionID, "event_id", corr.EventID)
		return nil, &CorrelationError{LinkID: linkID, Reason: ReasonInactiveSession}
	}

	s.store.Touch(corr.SessionID, corr.EventID)
	ctx = withLinkCtx(ctx, corr, linkID)

	result, err := s.emitter.Emit(ctx, corr.EventID, amountMsat, comment)
	if err != nil {
		// The payment was already captured; failing the webhook would only
		// invite a redelivery that cannot help.
		s.log.ErrorContext(ctx, "zap emission failed for captured payment", "error", err)
		return &WebhookResult{OK: true, Message: "payment received, zap publish failed"}, nil
	}

	s.log.InfoContext(ctx, "webhook processed", "request_id", result.RequestID)
	return &WebhookResult{OK: true, Message: "zap emitted", RequestID: result.RequestID}, nil
}

func decodePayload(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}
	return raw, nil
}

// linkIDField extracts the payment-link identifier. LNbits sends it as
// "lnurlp"; "link_id" is accepted as a generic alias. Numeric ids are
// coerced to their decimal string form.
func linkIDField(raw map[string]any) (string, error) {
	for _, key := range []string{"lnurlp", "link_id"} {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if t != "" {
				return t, nil
			}
		case json.Number:
			return t.String(), nil
		default:
			return fmt.Sprint(t), nil
		}
	}
	return "", &ValidationError{Field: "lnurlp", Reason: "missing payment-link id"}
}

// amountField returns the payment amount in millisats, defaulting a
// missing amount to the minimal nonzero unit. Millisats are indivisible,
// so a fractional amount is rejected rather than truncated.
func amountField(raw map[string]any) (int64, error) {
	v, ok := raw["amount"]
	if !ok || v == nil {
		return minAmountMsat, nil
	}
	num, ok := v.(json.Number)
	if !ok {
		return 0, &ValidationError{Field: "amount", Reason: fmt.Sprintf("not a number: %v", v)}
	}
	f, err := num.Float64()
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: fmt.Sprintf("not a number: %v", num)}
	}
	if f < 0 {
		return 0, &ValidationError{Field: "amount", Reason: "negative"}
	}
	if f != math.Trunc(f) {
		return 0, &ValidationError{Field: "amount", Reason: fmt.Sprintf("not a whole number of millisats: %v", num)}
	}
	msat := int64(f)
	if msat == 0 {
		msat = minAmountMsat
	}
	return msat, nil
}

// commentField coerces whatever the provider sent into one string. Arrays
// are joined with spaces; any other non-string value is stringified.
func commentField(raw map[string]any) string {
	v, ok := raw["comment"]
	if !ok || v == nil {
		return defaultComment
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return defaultComment
		}
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, elem := range t {
			parts = append(parts, fmt.Sprint(elem))
		}
		joined := strings.TrimSpace(strings.Join(parts, " "))
		if joined == "" {
			return defaultComment
		}
		return joined
	default:
		return fmt.Sprint(t)
	}
}
