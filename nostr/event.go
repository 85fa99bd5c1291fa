package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// Event kinds used by this module.
const (
	KindProfileMetadata = 0
	KindTextNote        = 1
	KindZapRequest      = 9734
	KindZapReceipt      = 9735
)

// Event is a signed Nostr event per NIP-01.
type Event struct {
	ID        string     `json:"id"`
	PubKey    string     `json:"pubkey"`
	CreatedAt int64      `json:"created_at"`
	Kind      int        `json:"kind"`
	Tags      [][]string `json:"tags"`
	Content   string     `json:"content"`
	Sig       string     `json:"sig"`
}

// Filter selects events from an EventSource. Zero fields are omitted from
// the wire form.
type Filter struct {
	IDs     []string `json:"ids,omitempty"`
	Authors []string `json:"authors,omitempty"`
	Kinds   []int    `json:"kinds,omitempty"`
	Limit   int      `json:"limit,omitempty"`
}

// Tag returns the first tag with the given name, or nil.
func (e *Event) Tag(name string) []string {
	for _, t := range e.Tags {
		if len(t) > 0 && t[0] == name {
			return t
		}
	}
	return nil
}

// Serialize returns the canonical NIP-01 serialization:
// [0, pubkey, created_at, kind, tags, content].
func (e *Event) Serialize() []byte {
	tags := e.Tags
	if tags == nil {
		tags = [][]string{}
	}
	s := fmt.Sprintf(`[0,"%s",%d,%d,%s,%s]`,
		e.PubKey,
		e.CreatedAt,
		e.Kind,
		mustJSON(tags),
		mustJSON(e.Content),
	)
	return []byte(s)
}

// ComputeID returns the hex sha256 of the canonical serialization.
func (e *Event) ComputeID() string {
	h := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(h[:])
}

// Sign sets PubKey (if empty), ID and Sig from the given hex-encoded
// secp256k1 private key using a BIP-340 schnorr signature.
func (e *Event) Sign(privKeyHex string) error {
	skBytes, err := hex.DecodeString(privKeyHex)
	if err != nil {
		return fmt.Errorf("invalid private key hex: %w", err)
	}
	priv, _ := btcec.PrivKeyFromBytes(skBytes)
	if priv == nil {
		return fmt.Errorf("invalid private key")
	}

	if e.PubKey == "" {
		e.PubKey = hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey()))
	}
	e.ID = e.ComputeID()

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return fmt.Errorf("invalid event id: %w", err)
	}
	sig, err := schnorr.Sign(priv, idBytes)
	if err != nil {
		return fmt.Errorf("schnorr sign: %w", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// Verify checks the event id against the canonical serialization and the
// schnorr signature against the author pubkey.
func (e *Event) Verify() bool {
	if len(e.Sig) != 128 || len(e.PubKey) != 64 {
		return false
	}
	if e.ComputeID() != e.ID {
		return false
	}

	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return false
	}
	pubKeyBytes, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return false
	}
	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return false
	}

	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	pubKey, err := schnorr.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false
	}
	return sig.Verify(idBytes, pubKey)
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
