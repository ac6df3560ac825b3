package gateway

import "errors"

// Error kinds surfaced to clients in ResponseFrame.Error, per spec.md §7.
var (
	ErrInvalidParams      = errors.New("invalid-params")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrPairingRequired    = errors.New("pairing-required")
	ErrNoSuchSession      = errors.New("no-such-session")
	ErrNoSuchChannel      = errors.New("no-such-channel")
	ErrSignatureInvalid   = errors.New("signature-invalid")
	ErrNonceMismatch      = errors.New("nonce-mismatch")
	ErrUnknownMethod      = errors.New("unknown-method")
	ErrInvalidDeviceToken = errors.New("invalid-device-token")
)
