package config

// GatewayConfig configures the duplex transport listener and its auth mode.
type GatewayConfig struct {
	// Port is the TCP port the duplex transport and health/webhook HTTP
	// routes are served on.
	Port int `yaml:"port"`

	// Bind is the listen address (e.g. "127.0.0.1" or "0.0.0.0"). Binding
	// to a non-loopback address without Auth.Token set is a fatal startup
	// error.
	Bind string `yaml:"bind"`

	Auth AuthConfig `yaml:"auth"`

	// PairingPath is the JSON file the pairing store persists to. Defaults
	// to "pairing.json" in the working directory if unset.
	PairingPath string `yaml:"pairingPath"`
}

// AuthConfig selects the gateway's connect-time authentication mode.
type AuthConfig struct {
	// Mode is "none" or "token".
	Mode string `yaml:"mode"`

	// Token is the bearer token required by connect when Mode is "token".
	Token string `yaml:"token"`
}
