package webhook

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

var (
	ErrMissingSignature = errors.New("missing signature headers")
	ErrInvalidSignature = errors.New("invalid request signature")
)

// ParsePublicKey decodes a hex-encoded Ed25519 public key.
func ParsePublicKey(publicKeyHex string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("public key is not valid hex: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Verify reports whether signatureHex is a valid Ed25519 signature by publicKeyHex over
// timestamp followed by body.
//
// Malformed hex and wrong-length keys or signatures return false; Verify never panics.
// The timestamp is opaque: it is signed as sent, never parsed.
func Verify(body []byte, timestamp, signatureHex, publicKeyHex string) bool {
	key, err := ParsePublicKey(publicKeyHex)
	if err != nil {
		return false
	}
	return verifyWithKey(key, body, timestamp, signatureHex)
}

func verifyWithKey(key ed25519.PublicKey, body []byte, timestamp, signatureHex string) bool {
	if len(key) != ed25519.PublicKeySize {
		return false
	}

	sig, err := hex.DecodeString(signatureHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(key, signedMessage(timestamp, body), sig)
}

// signedMessage is the exact byte sequence the platform signs: timestamp || body.
func signedMessage(timestamp string, body []byte) []byte {
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	return append(msg, body...)
}

// signRequest produces the hex signature the platform would send. Used for testing.
func signRequest(key ed25519.PrivateKey, timestamp string, body []byte) string {
	return hex.EncodeToString(ed25519.Sign(key, signedMessage(timestamp, body)))
}
