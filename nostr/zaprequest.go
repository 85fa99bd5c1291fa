package nostr

import (
	"fmt"
	"strconv"
	"time"
)

// ZapRequestParams describe a NIP-57 kind-9734 zap request. The request is
// signed by a throwaway key and delivered to the recipient's LNURL callback;
// it is never published to relays by the sender.
type ZapRequestParams struct {
	RecipientPubKey string
	TargetEventID   string
	AmountMsat      int64
	Comment         string
	Relays          []string
}

// BuildZapRequest constructs and signs a kind-9734 event with the given
// private key.
func BuildZapRequest(privKeyHex string, p ZapRequestParams) (*Event, error) {
	if p.RecipientPubKey == "" {
		return nil, fmt.Errorf("zap request requires a recipient pubkey")
	}
	if p.AmountMsat <= 0 {
		return nil, fmt.Errorf("zap request amount must be positive, got %d", p.AmountMsat)
	}

	relayTag := append([]string{"relays"}, p.Relays...)
	tags := [][]string{
		relayTag,
		{"amount", strconv.FormatInt(p.AmountMsat, 10)},
		{"p", p.RecipientPubKey},
	}
	if p.TargetEventID != "" {
		tags = append(tags, []string{"e", p.TargetEventID})
	}

	ev := &Event{
		CreatedAt: time.Now().Unix(),
		Kind:      KindZapRequest,
		Tags:      tags,
		Content:   p.Comment,
	}
	if err := ev.Sign(privKeyHex); err != nil {
		return nil, fmt.Errorf("sign zap request: %w", err)
	}
	return ev, nil
}
