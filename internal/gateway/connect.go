package gateway

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/chora-ai/chai/internal/device"
	"github.com/chora-ai/chai/internal/pairing"
)

// Challenge is the per-connection connect challenge: a freshly minted
// nonce bound to the connection, never reused.
type Challenge struct {
	Nonce string `json:"nonce"`
	TS    int64  `json:"ts"`
}

// newChallenge mints a fresh opaque nonce.
func newChallenge() (Challenge, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return Challenge{}, fmt.Errorf("gateway: mint challenge nonce: %w", err)
	}
	return Challenge{
		Nonce: base64.RawURLEncoding.EncodeToString(buf),
		TS:    time.Now().UnixMilli(),
	}, nil
}

// ConnectParams is the connect request's params object (spec.md §6).
type ConnectParams struct {
	MinProtocol int `json:"minProtocol,omitempty"`
	MaxProtocol int `json:"maxProtocol,omitempty"`
	Client      struct {
		ID       string `json:"id,omitempty"`
		Version  string `json:"version,omitempty"`
		Platform string `json:"platform,omitempty"`
		Mode     string `json:"mode,omitempty"`
	} `json:"client"`
	Role   string   `json:"role"`
	Scopes []string `json:"scopes"`
	Auth   struct {
		Token       string `json:"token,omitempty"`
		DeviceToken string `json:"deviceToken,omitempty"`
	} `json:"auth"`
	Device *device.ConnectDevice `json:"device,omitempty"`
}

// ConnectAuth is returned inside hello-ok when device material resolved to
// a paired identity.
type ConnectAuth struct {
	DeviceToken string   `json:"deviceToken"`
	Role        string   `json:"role"`
	Scopes      []string `json:"scopes"`
}

// HelloPolicy carries optional connection-tuning hints for the client.
type HelloPolicy struct {
	TickIntervalMs int `json:"tickIntervalMs,omitempty"`
}

// HelloOk is the connect response payload on success.
type HelloOk struct {
	Type     string       `json:"type"`
	Protocol int          `json:"protocol"`
	Policy   *HelloPolicy `json:"policy,omitempty"`
	Auth     *ConnectAuth `json:"auth,omitempty"`
}

// connectAuthResult carries what the connect handler resolved, for the
// caller to stash on the connection.
type connectAuthResult struct {
	auth *ConnectAuth
}

// handleConnect implements the three acceptance paths of spec.md §4.11, in
// order: device-token, device-signature, bearer-only.
func (s *Server) handleConnect(params ConnectParams, challenge Challenge) (connectAuthResult, error) {
	if params.Auth.DeviceToken != "" {
		return s.connectByDeviceToken(params.Auth.DeviceToken)
	}
	if params.Device != nil {
		return s.connectByDeviceSignature(params, challenge)
	}
	return s.connectByBearer(params)
}

func (s *Server) connectByDeviceToken(token string) (connectAuthResult, error) {
	entry, ok := s.Pairing.FindByToken(token)
	if !ok {
		return connectAuthResult{}, ErrInvalidDeviceToken
	}
	return connectAuthResult{auth: &ConnectAuth{
		DeviceToken: entry.DeviceToken,
		Role:        entry.Role,
		Scopes:      entry.Scopes,
	}}, nil
}

func (s *Server) connectByDeviceSignature(params ConnectParams, challenge Challenge) (connectAuthResult, error) {
	dev := *params.Device
	err := device.VerifyConnectSignature(dev, params.Client.ID, params.Client.Mode, params.Role, params.Scopes, params.Auth.Token, challenge.Nonce)
	if err != nil {
		return connectAuthResult{}, fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}

	if existing, ok := s.Pairing.FindByDeviceID(dev.ID); ok {
		return connectAuthResult{auth: &ConnectAuth{
			DeviceToken: existing.DeviceToken,
			Role:        existing.Role,
			Scopes:      existing.Scopes,
		}}, nil
	}

	if !s.bearerSatisfied(params.Auth.Token) {
		return connectAuthResult{}, ErrPairingRequired
	}

	token, err := newDeviceToken()
	if err != nil {
		return connectAuthResult{}, err
	}
	if err := s.Pairing.Upsert(dev.ID, params.Role, params.Scopes, token); err != nil {
		return connectAuthResult{}, err
	}
	return connectAuthResult{auth: &ConnectAuth{DeviceToken: token, Role: params.Role, Scopes: params.Scopes}}, nil
}

func (s *Server) connectByBearer(params ConnectParams) (connectAuthResult, error) {
	if !s.bearerSatisfied(params.Auth.Token) {
		return connectAuthResult{}, ErrUnauthorized
	}
	return connectAuthResult{}, nil
}

// bearerSatisfied reports whether token matches the configured gateway
// bearer, or whether no bearer is required at all.
func (s *Server) bearerSatisfied(token string) bool {
	if s.Config.Gateway.Auth.Mode != "token" || s.Config.Gateway.Auth.Token == "" {
		return true
	}
	return token == s.Config.Gateway.Auth.Token
}

// newDeviceToken mints a fresh UUID device token.
func newDeviceToken() (string, error) {
	return uuid.NewString(), nil
}

func negotiateProtocol(maxProtocol int) int {
	if maxProtocol <= 0 || maxProtocol > Protocol {
		return Protocol
	}
	return maxProtocol
}

func decodeParams[T any](raw json.RawMessage) (T, error) {
	var out T
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return out, nil
}
