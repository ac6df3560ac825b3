package config

// AgentsConfig selects and configures the LLM backends the agent loop may
// drive a turn against.
type AgentsConfig struct {
	// DefaultBackend is "ollama" or "lmstudio".
	DefaultBackend string `yaml:"defaultBackend"`

	// DefaultModel is passed as-is to the selected backend.
	DefaultModel string `yaml:"defaultModel"`

	// EnabledBackends lists which backends to discover at startup.
	EnabledBackends []string `yaml:"enabledBackends"`

	Backends BackendsConfig `yaml:"backends"`
}

// BackendsConfig holds per-backend connection settings.
type BackendsConfig struct {
	Ollama   BackendConfig `yaml:"ollama"`
	LMStudio BackendConfig `yaml:"lmstudio"`
}

// BackendConfig is one backend's base URL and endpoint flavor.
type BackendConfig struct {
	// BaseURL is the backend's HTTP base address.
	BaseURL string `yaml:"baseUrl"`

	// Flavor selects the wire dialect: "ollama-native", "openai-compatible",
	// or "content-only".
	Flavor string `yaml:"flavor"`
}
