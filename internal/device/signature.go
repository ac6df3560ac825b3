// Package device implements the Ed25519 signature verifier and canonical
// signing payload for connect-time device pairing, grounded on
// original_source's device_signature_payload / verify_device_signature.
package device

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel errors for connect-time device verification.
var (
	ErrNonceMismatch    = errors.New("device nonce does not match challenge")
	ErrInvalidPublicKey = errors.New("invalid device publicKey")
	ErrInvalidSignature = errors.New("invalid device signature")
	ErrSignatureInvalid = errors.New("device signature verification failed")
)

// ConnectDevice is the wire shape of the connect request's optional `device`
// field (spec.md §6).
type ConnectDevice struct {
	ID        string
	PublicKey string // base64-standard Ed25519 public key
	Signature string // base64-standard Ed25519 signature
	SignedAt  int64  // Unix ms
	Nonce     string
}

// CanonicalPayload builds the newline-joined canonical signing payload, in
// the exact order spec.md §3 requires: device id, client id, client mode,
// role, comma-joined scopes, signed-at timestamp, connect-time bearer token
// (empty string if absent), challenge nonce.
func CanonicalPayload(deviceID, clientID, clientMode, role string, scopes []string, signedAt int64, token, nonce string) string {
	fields := []string{
		deviceID,
		clientID,
		clientMode,
		role,
		strings.Join(scopes, ","),
		strconv.FormatInt(signedAt, 10),
		token,
		nonce,
	}
	return strings.Join(fields, "\n")
}

// VerifyConnectSignature checks that dev.Nonce matches challengeNonce, then
// verifies the Ed25519 signature over the canonical payload built from the
// connect params. Returns a descriptive error on any failure.
func VerifyConnectSignature(dev ConnectDevice, clientID, clientMode, role string, scopes []string, token, challengeNonce string) error {
	if dev.Nonce != challengeNonce {
		return ErrNonceMismatch
	}

	payload := CanonicalPayload(dev.ID, clientID, clientMode, role, scopes, dev.SignedAt, token, dev.Nonce)

	pubKeyBytes, err := base64.StdEncoding.DecodeString(dev.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: wrong length", ErrInvalidPublicKey)
	}

	sigBytes, err := base64.StdEncoding.DecodeString(dev.Signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return fmt.Errorf("%w: wrong length", ErrInvalidSignature)
	}

	if !ed25519.Verify(ed25519.PublicKey(pubKeyBytes), []byte(payload), sigBytes) {
		return ErrSignatureInvalid
	}
	return nil
}
