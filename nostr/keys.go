package nostr

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
)

// GeneratePrivateKey returns a fresh hex-encoded secp256k1 private key.
// Zap requests are signed with a key generated per request and discarded
// afterwards, so the payer identity never appears on the wire.
func GeneratePrivateKey() (string, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return "", fmt.Errorf("generate private key: %w", err)
	}
	return hex.EncodeToString(priv.Serialize()), nil
}

// GetPublicKey derives the x-only (BIP-340) public key for a hex-encoded
// private key.
func GetPublicKey(privKeyHex string) (string, error) {
	skBytes, err := hex.DecodeString(privKeyHex)
	if err != nil {
		return "", fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(skBytes) != 32 {
		return "", fmt.Errorf("invalid private key: want 32 bytes, got %d", len(skBytes))
	}
	priv, _ := btcec.PrivKeyFromBytes(skBytes)
	if priv == nil {
		return "", fmt.Errorf("invalid private key")
	}
	return hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())), nil
}
