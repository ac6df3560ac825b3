package gateway

import (
	"crypto/ed25519"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chora-ai/chai/internal/config"
	"github.com/chora-ai/chai/internal/device"
	"github.com/chora-ai/chai/internal/pairing"
)

func newTestServer(t *testing.T, authMode, token string) *Server {
	t.Helper()
	s := New(&config.Config{
		Gateway: config.GatewayConfig{Auth: config.AuthConfig{Mode: authMode, Token: token}},
	})
	store, err := pairing.Load(t.TempDir() + "/pairing.json")
	require.NoError(t, err)
	s.Pairing = store
	return s
}

func TestConnectByBearerAcceptsMatchingToken(t *testing.T) {
	s := newTestServer(t, "token", "secret")
	challenge, err := newChallenge()
	require.NoError(t, err)

	params := ConnectParams{Role: "owner"}
	params.Auth.Token = "secret"

	result, err := s.handleConnect(params, challenge)
	require.NoError(t, err)
	require.Nil(t, result.auth)
}

func TestConnectByBearerRejectsWrongToken(t *testing.T) {
	s := newTestServer(t, "token", "secret")
	challenge, err := newChallenge()
	require.NoError(t, err)

	params := ConnectParams{Role: "owner"}
	params.Auth.Token = "wrong"

	_, err = s.handleConnect(params, challenge)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestConnectByDeviceTokenResolvesStoredEntry(t *testing.T) {
	s := newTestServer(t, "none", "")
	require.NoError(t, s.Pairing.Upsert("dev-1", "owner", []string{"chat"}, "dtok-1"))

	challenge, err := newChallenge()
	require.NoError(t, err)

	params := ConnectParams{Role: "owner"}
	params.Auth.DeviceToken = "dtok-1"

	result, err := s.handleConnect(params, challenge)
	require.NoError(t, err)
	require.Equal(t, "dtok-1", result.auth.DeviceToken)
	require.Equal(t, "owner", result.auth.Role)
}

func TestConnectByDeviceTokenRejectsUnknownToken(t *testing.T) {
	s := newTestServer(t, "none", "")
	challenge, err := newChallenge()
	require.NoError(t, err)

	params := ConnectParams{Role: "owner"}
	params.Auth.DeviceToken = "does-not-exist"

	_, err = s.handleConnect(params, challenge)
	require.ErrorIs(t, err, ErrInvalidDeviceToken)
}

func signedDeviceParams(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey, clientID, clientMode, role string, scopes []string, token, nonce string, signedAt int64) ConnectParams {
	t.Helper()
	payload := device.CanonicalPayload("dev-2", clientID, clientMode, role, scopes, signedAt, token, nonce)
	sig := ed25519.Sign(priv, []byte(payload))

	params := ConnectParams{Role: role, Scopes: scopes}
	params.Client.ID = clientID
	params.Client.Mode = clientMode
	params.Auth.Token = token
	params.Device = &device.ConnectDevice{
		ID:        "dev-2",
		PublicKey: base64.StdEncoding.EncodeToString(pub),
		Signature: base64.StdEncoding.EncodeToString(sig),
		SignedAt:  signedAt,
		Nonce:     nonce,
	}
	return params
}

func TestConnectByDeviceSignatureBootstrapsNewPairing(t *testing.T) {
	s := newTestServer(t, "token", "T")
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	challenge, err := newChallenge()
	require.NoError(t, err)

	params := signedDeviceParams(t, pub, priv, "cli-1", "headless", "owner", []string{"chat"}, "T", challenge.Nonce, 1000)

	result, err := s.handleConnect(params, challenge)
	require.NoError(t, err)
	require.NotEmpty(t, result.auth.DeviceToken)

	entry, ok := s.Pairing.FindByDeviceID("dev-2")
	require.True(t, ok)
	require.Equal(t, result.auth.DeviceToken, entry.DeviceToken)
}

func TestConnectByDeviceSignatureReconnectReturnsSameToken(t *testing.T) {
	s := newTestServer(t, "token", "T")
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	first, err := newChallenge()
	require.NoError(t, err)
	firstParams := signedDeviceParams(t, pub, priv, "cli-1", "headless", "owner", []string{"chat"}, "T", first.Nonce, 1000)
	firstResult, err := s.handleConnect(firstParams, first)
	require.NoError(t, err)

	second, err := newChallenge()
	require.NoError(t, err)
	secondParams := signedDeviceParams(t, pub, priv, "cli-1", "headless", "owner", []string{"chat"}, "", second.Nonce, 2000)
	secondResult, err := s.handleConnect(secondParams, second)
	require.NoError(t, err)

	require.Equal(t, firstResult.auth.DeviceToken, secondResult.auth.DeviceToken)
}

func TestConnectByDeviceSignatureRequiresPairingWithoutBearer(t *testing.T) {
	s := newTestServer(t, "token", "T")
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	challenge, err := newChallenge()
	require.NoError(t, err)
	params := signedDeviceParams(t, pub, priv, "cli-1", "headless", "owner", []string{"chat"}, "", challenge.Nonce, 1000)

	_, err = s.handleConnect(params, challenge)
	require.ErrorIs(t, err, ErrPairingRequired)
}

func TestConnectByDeviceSignatureRejectsNonceMismatch(t *testing.T) {
	s := newTestServer(t, "token", "T")
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	challenge, err := newChallenge()
	require.NoError(t, err)
	params := signedDeviceParams(t, pub, priv, "cli-1", "headless", "owner", []string{"chat"}, "T", "not-the-challenge-nonce", 1000)

	_, err = s.handleConnect(params, challenge)
	require.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestNegotiateProtocolClampsToServerMax(t *testing.T) {
	require.Equal(t, Protocol, negotiateProtocol(0))
	require.Equal(t, Protocol, negotiateProtocol(99))
	require.Equal(t, 1, negotiateProtocol(1))
}
