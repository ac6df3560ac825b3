package gateway

import (
	"fmt"
	"os"
	"strings"

	"github.com/chora-ai/chai/internal/config"
)

// loopbackHosts are bind addresses considered local-only; anything else is
// treated as a non-loopback bind for the purposes of ValidateBindPolicy.
var loopbackHosts = map[string]bool{
	"":          true,
	"127.0.0.1": true,
	"localhost": true,
	"::1":       true,
}

// ValidateBindPolicy enforces spec.md §4.11's startup rule: binding to a
// non-loopback address requires auth.mode=token with a non-empty resolved
// token. Returns a single-line error describing the violation.
func ValidateBindPolicy(cfg config.GatewayConfig) error {
	if loopbackHosts[cfg.Bind] {
		return nil
	}
	if cfg.Auth.Mode != "token" || strings.TrimSpace(cfg.Auth.Token) == "" {
		return fmt.Errorf("gateway: refusing to bind %q without auth.mode=token and a non-empty token", cfg.Bind)
	}
	return nil
}

// ReadAgentContext returns the trimmed contents of path, or "" if path is
// empty or the file does not exist. Any other read error is returned.
func ReadAgentContext(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("gateway: read agent context %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}
