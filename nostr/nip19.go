package nostr

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// NIP-19 bech32 entity codecs. Clients hand event identifiers around in
// note1/nevent1 form; everything internal works on 32-byte hex.

// EventPointer is a decoded nevent: the event id plus optional relay hints
// and author pubkey.
type EventPointer struct {
	ID     string
	Relays []string
	Author string
}

// DecodeEventID accepts a hex event id, a note1 entity, or a nevent1 entity
// and returns the 64-char hex id plus any relay hints carried by the
// encoding.
func DecodeEventID(s string) (string, []string, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "note1"):
		id, err := decodeBare("note", s)
		return id, nil, err
	case strings.HasPrefix(s, "nevent1"):
		ptr, err := DecodeEventPointer(s)
		if err != nil {
			return "", nil, err
		}
		return ptr.ID, ptr.Relays, nil
	}
	if len(s) == 64 && isLowerHex(s) {
		return s, nil, nil
	}
	return "", nil, fmt.Errorf("unrecognized event identifier %q", s)
}

// DecodePubKey accepts a hex pubkey or an npub1 entity and returns the
// 64-char hex form.
func DecodePubKey(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "npub1") {
		return decodeBare("npub", s)
	}
	if len(s) == 64 && isLowerHex(s) {
		return s, nil
	}
	return "", fmt.Errorf("unrecognized pubkey %q", s)
}

// DecodeEventPointer decodes a nevent1 TLV entity.
func DecodeEventPointer(s string) (*EventPointer, error) {
	hrp, data, err := decodeToBytes(s)
	if err != nil {
		return nil, err
	}
	if hrp != "nevent" {
		return nil, fmt.Errorf("expected nevent entity, got %q", hrp)
	}

	ptr := &EventPointer{}
	for len(data) >= 2 {
		typ, length := data[0], int(data[1])
		data = data[2:]
		if length > len(data) {
			return nil, fmt.Errorf("truncated nevent TLV")
		}
		value := data[:length]
		data = data[length:]

		switch typ {
		case 0: // special: event id
			if length != 32 {
				return nil, fmt.Errorf("nevent id must be 32 bytes, got %d", length)
			}
			ptr.ID = hex.EncodeToString(value)
		case 1: // relay hint
			ptr.Relays = append(ptr.Relays, string(value))
		case 2: // author
			if length == 32 {
				ptr.Author = hex.EncodeToString(value)
			}
		}
		// Unknown types are skipped per NIP-19.
	}
	if ptr.ID == "" {
		return nil, fmt.Errorf("nevent entity missing event id")
	}
	return ptr, nil
}

// EncodeNote encodes a hex event id as a note1 entity.
func EncodeNote(idHex string) (string, error) {
	return encodeBare("note", idHex)
}

// EncodePubKey encodes a hex pubkey as an npub1 entity.
func EncodePubKey(pubKeyHex string) (string, error) {
	return encodeBare("npub", pubKeyHex)
}

// EncodeEventPointer encodes an nevent1 TLV entity.
func EncodeEventPointer(ptr EventPointer) (string, error) {
	idBytes, err := hex.DecodeString(ptr.ID)
	if err != nil || len(idBytes) != 32 {
		return "", fmt.Errorf("invalid event id %q", ptr.ID)
	}
	data := append([]byte{0, 32}, idBytes...)
	for _, relay := range ptr.Relays {
		if len(relay) > 255 {
			return "", fmt.Errorf("relay hint too long")
		}
		data = append(data, 1, byte(len(relay)))
		data = append(data, relay...)
	}
	if ptr.Author != "" {
		authorBytes, err := hex.DecodeString(ptr.Author)
		if err != nil || len(authorBytes) != 32 {
			return "", fmt.Errorf("invalid author pubkey %q", ptr.Author)
		}
		data = append(data, 2, 32)
		data = append(data, authorBytes...)
	}
	return encodeBytes("nevent", data)
}

func decodeBare(wantHRP, s string) (string, error) {
	hrp, data, err := decodeToBytes(s)
	if err != nil {
		return "", err
	}
	if hrp != wantHRP {
		return "", fmt.Errorf("expected %s entity, got %q", wantHRP, hrp)
	}
	if len(data) != 32 {
		return "", fmt.Errorf("%s payload must be 32 bytes, got %d", wantHRP, len(data))
	}
	return hex.EncodeToString(data), nil
}

func decodeToBytes(s string) (string, []byte, error) {
	hrp, grouped, err := bech32.DecodeNoLimit(strings.ToLower(s))
	if err != nil {
		return "", nil, fmt.Errorf("bech32 decode: %w", err)
	}
	data, err := bech32.ConvertBits(grouped, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("bech32 convert bits: %w", err)
	}
	return hrp, data, nil
}

func encodeBare(hrp, payloadHex string) (string, error) {
	payload, err := hex.DecodeString(payloadHex)
	if err != nil || len(payload) != 32 {
		return "", fmt.Errorf("payload must be 32 hex-encoded bytes")
	}
	return encodeBytes(hrp, payload)
}

func encodeBytes(hrp string, payload []byte) (string, error) {
	grouped, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("bech32 convert bits: %w", err)
	}
	s, err := bech32.Encode(hrp, grouped)
	if err != nil {
		return "", fmt.Errorf("bech32 encode: %w", err)
	}
	return s, nil
}

func isLowerHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
