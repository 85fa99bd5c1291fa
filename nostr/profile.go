package nostr

import (
	"encoding/json"
	"fmt"
)

// ProfileMetadata is the parsed content of a kind-0 event.
type ProfileMetadata struct {
	Name    string `json:"name"`
	About   string `json:"about"`
	Picture string `json:"picture"`
	NIP05   string `json:"nip05"`
	// Lud16 is a lightning address (user@domain). Lud06 is the older
	// LNURL-encoded form. Most profiles set one or the other.
	Lud16 string `json:"lud16"`
	Lud06 string `json:"lud06"`
}

// ParseProfile decodes the JSON content of a kind-0 event.
func ParseProfile(ev *Event) (*ProfileMetadata, error) {
	if ev.Kind != KindProfileMetadata {
		return nil, fmt.Errorf("expected kind %d event, got kind %d", KindProfileMetadata, ev.Kind)
	}
	var meta ProfileMetadata
	if err := json.Unmarshal([]byte(ev.Content), &meta); err != nil {
		return nil, fmt.Errorf("parse profile content: %w", err)
	}
	return &meta, nil
}
